package store

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/user/ems-go/apperror"
)

// Memory is an in-memory Store. It backs the test suites and is selectable
// as a storage backend (EMS_STORAGE=memory) for local runs without Postgres.
// All methods are safe for concurrent use; a single mutex stands in for the
// transaction isolation the Postgres implementation gets from the database.
type Memory struct {
	mu           sync.Mutex
	users        map[int64]*User
	events       map[int64]*Event
	participants map[int64]map[int64]struct{} // eventID -> set of userIDs
	userKeys     map[int64]*APIKey
	adminKey     *APIKey
	nextUserID   int64
	nextEventID  int64

	// eventDeleteHook, when set, runs before each event removal performed
	// inside a user-delete cascade. A returned error aborts and rolls back
	// the whole cascade, which is how the atomicity contract is exercised
	// without a real transaction manager.
	eventDeleteHook func(eventID int64) error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:        make(map[int64]*User),
		events:       make(map[int64]*Event),
		participants: make(map[int64]map[int64]struct{}),
		userKeys:     make(map[int64]*APIKey),
	}
}

// SetEventDeleteHook installs a hook invoked for every event removed by a
// user-delete cascade. Passing nil removes the hook.
func (m *Memory) SetEventDeleteHook(fn func(eventID int64) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventDeleteHook = fn
}

func copyUser(u *User) *User {
	c := *u
	if u.PhoneNumber != nil {
		p := *u.PhoneNumber
		c.PhoneNumber = &p
	}
	return &c
}

func copyEvent(e *Event) *Event {
	c := *e
	if e.Organizer != nil {
		o := *e.Organizer
		c.Organizer = &o
	}
	if e.Description != nil {
		d := *e.Description
		c.Description = &d
	}
	c.Category = append([]string(nil), e.Category...)
	c.Tags = append([]string(nil), e.Tags...)
	return &c
}

func copyKey(k *APIKey) *APIKey {
	c := *k
	c.Digest = append([]byte(nil), k.Digest...)
	if k.UserID != nil {
		id := *k.UserID
		c.UserID = &id
	}
	return &c
}

// CreateUser stores a new user, assigning the next id. Names are unique.
func (m *Memory) CreateUser(_ context.Context, u *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Name == u.Name {
			return nil, apperror.NewConflictError(fmt.Sprintf("user '%s' already exists", u.Name), nil)
		}
	}

	m.nextUserID++
	stored := copyUser(u)
	stored.ID = m.nextUserID
	m.users[stored.ID] = stored
	return copyUser(stored), nil
}

// UserByName resolves a user by exact name match.
func (m *Memory) UserByName(_ context.Context, name string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []*User
	for _, u := range m.users {
		if u.Name == name {
			matches = append(matches, u)
		}
	}
	if len(matches) == 0 {
		return nil, apperror.NewNotFoundError(fmt.Sprintf("user '%s' not found", name), nil)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	if len(matches) > 1 {
		log.Printf("consistency warning: %d users share the name '%s', resolving to id %d", len(matches), name, matches[0].ID)
	}
	return copyUser(matches[0]), nil
}

// Users lists all users ordered by id.
func (m *Memory) Users(_ context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateUser replaces the stored attributes of the user with the given id.
func (m *Memory) UpdateUser(_ context.Context, id int64, u *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.users[id]
	if !ok {
		return nil, apperror.NewNotFoundError(fmt.Sprintf("user with id %d not found", id), nil)
	}
	for _, other := range m.users {
		if other.ID != id && other.Name == u.Name {
			return nil, apperror.NewConflictError(fmt.Sprintf("user '%s' already exists", u.Name), nil)
		}
	}

	updated := copyUser(u)
	updated.ID = existing.ID
	m.users[id] = updated
	return copyUser(updated), nil
}

// DeleteUser runs the cascade: every event the user organizes goes first,
// then the user, the user's participation links, and the user's API key.
// The whole operation is all-or-nothing; a hook failure mid-cascade restores
// the previous state.
func (m *Memory) DeleteUser(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return apperror.NewNotFoundError(fmt.Sprintf("user with id %d not found", id), nil)
	}

	snapshot := m.snapshotLocked()

	for eventID, e := range m.events {
		if e.Organizer != nil && *e.Organizer == id {
			if m.eventDeleteHook != nil {
				if err := m.eventDeleteHook(eventID); err != nil {
					m.restoreLocked(snapshot)
					return apperror.NewDatabaseError("user delete cascade failed", err)
				}
			}
			delete(m.events, eventID)
			delete(m.participants, eventID)
		}
	}
	for _, set := range m.participants {
		delete(set, id)
	}
	delete(m.userKeys, id)
	delete(m.users, id)
	return nil
}

type memorySnapshot struct {
	users        map[int64]*User
	events       map[int64]*Event
	participants map[int64]map[int64]struct{}
	userKeys     map[int64]*APIKey
}

func (m *Memory) snapshotLocked() memorySnapshot {
	s := memorySnapshot{
		users:        make(map[int64]*User, len(m.users)),
		events:       make(map[int64]*Event, len(m.events)),
		participants: make(map[int64]map[int64]struct{}, len(m.participants)),
		userKeys:     make(map[int64]*APIKey, len(m.userKeys)),
	}
	for id, u := range m.users {
		s.users[id] = copyUser(u)
	}
	for id, e := range m.events {
		s.events[id] = copyEvent(e)
	}
	for eventID, set := range m.participants {
		copied := make(map[int64]struct{}, len(set))
		for userID := range set {
			copied[userID] = struct{}{}
		}
		s.participants[eventID] = copied
	}
	for id, k := range m.userKeys {
		s.userKeys[id] = copyKey(k)
	}
	return s
}

func (m *Memory) restoreLocked(s memorySnapshot) {
	m.users = s.users
	m.events = s.events
	m.participants = s.participants
	m.userKeys = s.userKeys
}

// CreateEvent stores a new event, assigning the next id. Names are unique.
func (m *Memory) CreateEvent(_ context.Context, e *Event) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.events {
		if existing.Name == e.Name {
			return nil, apperror.NewConflictError(fmt.Sprintf("event '%s' already exists", e.Name), nil)
		}
	}

	m.nextEventID++
	stored := copyEvent(e)
	stored.ID = m.nextEventID
	m.events[stored.ID] = stored
	return copyEvent(stored), nil
}

// EventByName resolves an event by exact name match.
func (m *Memory) EventByName(_ context.Context, name string) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []*Event
	for _, e := range m.events {
		if e.Name == name {
			matches = append(matches, e)
		}
	}
	if len(matches) == 0 {
		return nil, apperror.NewNotFoundError(fmt.Sprintf("event '%s' not found", name), nil)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	if len(matches) > 1 {
		log.Printf("consistency warning: %d events share the name '%s', resolving to id %d", len(matches), name, matches[0].ID)
	}
	return copyEvent(matches[0]), nil
}

// Events lists all events ordered by id.
func (m *Memory) Events(_ context.Context) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, *copyEvent(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateEvent replaces the stored attributes of the event with the given id.
func (m *Memory) UpdateEvent(_ context.Context, id int64, e *Event) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.events[id]
	if !ok {
		return nil, apperror.NewNotFoundError(fmt.Sprintf("event with id %d not found", id), nil)
	}
	for _, other := range m.events {
		if other.ID != id && other.Name == e.Name {
			return nil, apperror.NewConflictError(fmt.Sprintf("event '%s' already exists", e.Name), nil)
		}
	}

	updated := copyEvent(e)
	updated.ID = existing.ID
	m.events[id] = updated
	return copyEvent(updated), nil
}

// DeleteEvent removes the event and its participation links only.
func (m *Memory) DeleteEvent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[id]; !ok {
		return apperror.NewNotFoundError(fmt.Sprintf("event with id %d not found", id), nil)
	}
	delete(m.events, id)
	delete(m.participants, id)
	return nil
}

// EventsOrganizedBy lists events with the given organizer, ordered by id.
func (m *Memory) EventsOrganizedBy(_ context.Context, userID int64) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Event
	for _, e := range m.events {
		if e.Organizer != nil && *e.Organizer == userID {
			out = append(out, *copyEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// EventsAttendedBy lists events the user participates in, ordered by id.
func (m *Memory) EventsAttendedBy(_ context.Context, userID int64) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Event
	for eventID, set := range m.participants {
		if _, ok := set[userID]; ok {
			if e, found := m.events[eventID]; found {
				out = append(out, *copyEvent(e))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AddParticipant links the user to the event.
func (m *Memory) AddParticipant(_ context.Context, eventID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[eventID]; !ok {
		return apperror.NewNotFoundError(fmt.Sprintf("event with id %d not found", eventID), nil)
	}
	if _, ok := m.users[userID]; !ok {
		return apperror.NewNotFoundError(fmt.Sprintf("user with id %d not found", userID), nil)
	}
	set, ok := m.participants[eventID]
	if !ok {
		set = make(map[int64]struct{})
		m.participants[eventID] = set
	}
	if _, already := set[userID]; already {
		return apperror.NewConflictError("user is already participating in this event", nil)
	}
	set[userID] = struct{}{}
	return nil
}

// RemoveParticipant deletes the participation link.
func (m *Memory) RemoveParticipant(_ context.Context, eventID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.participants[eventID]
	if !ok {
		return apperror.NewNotFoundError("user is not participating in this event", nil)
	}
	if _, participating := set[userID]; !participating {
		return apperror.NewNotFoundError("user is not participating in this event", nil)
	}
	delete(set, userID)
	return nil
}

// Participants lists the users attending the event, ordered by id.
func (m *Memory) Participants(_ context.Context, eventID int64) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []User
	for userID := range m.participants[eventID] {
		if u, ok := m.users[userID]; ok {
			out = append(out, *copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// InsertKey stores a key digest for its principal.
func (m *Memory) InsertKey(_ context.Context, k *APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if k.Admin {
		if m.adminKey != nil {
			return apperror.NewConflictError("an admin API key already exists", nil)
		}
		m.adminKey = copyKey(k)
		return nil
	}
	if k.UserID == nil {
		return apperror.NewBadRequestError("API key must belong to a user or the admin role", nil)
	}
	if _, ok := m.userKeys[*k.UserID]; ok {
		return apperror.NewConflictError("user already holds an API key", nil)
	}
	for _, existing := range m.userKeys {
		if bytes.Equal(existing.Digest, k.Digest) {
			return apperror.NewConflictError("API key digest already exists", nil)
		}
	}
	m.userKeys[*k.UserID] = copyKey(k)
	return nil
}

// KeyForUser returns the key held by the user, if any.
func (m *Memory) KeyForUser(_ context.Context, userID int64) (*APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.userKeys[userID]
	if !ok {
		return nil, apperror.NewNotFoundError(fmt.Sprintf("no API key for user %d", userID), nil)
	}
	return copyKey(k), nil
}

// AdminKey returns the deployment's admin key, if any.
func (m *Memory) AdminKey(_ context.Context) (*APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.adminKey == nil {
		return nil, apperror.NewNotFoundError("no admin API key", nil)
	}
	return copyKey(m.adminKey), nil
}

// DeleteKeyForUser removes the user's key. No-op when none exists.
func (m *Memory) DeleteKeyForUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.userKeys, userID)
	return nil
}

// DeleteAdminKey removes the admin key. No-op when none exists.
func (m *Memory) DeleteAdminKey(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.adminKey = nil
	return nil
}
