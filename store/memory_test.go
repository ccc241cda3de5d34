package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/ems-go/apperror"
)

func newUser(t *testing.T, m *Memory, name string) *User {
	t.Helper()
	u, err := m.CreateUser(context.Background(), &User{Name: name, Email: name + "@example.com"})
	require.NoError(t, err)
	return u
}

func newEvent(t *testing.T, m *Memory, name string, organizer int64) *Event {
	t.Helper()
	e, err := m.CreateEvent(context.Background(), &Event{
		Name:      name,
		Location:  "somewhere",
		Time:      time.Now().Add(24 * time.Hour),
		Organizer: &organizer,
	})
	require.NoError(t, err)
	return e
}

func TestCreateUserRejectsDuplicateName(t *testing.T) {
	m := NewMemory()
	newUser(t, m, "alice")

	_, err := m.CreateUser(context.Background(), &User{Name: "alice", Email: "other@example.com"})
	assert.True(t, apperror.IsConflict(err))
}

func TestUserByNameNotFound(t *testing.T) {
	m := NewMemory()

	_, err := m.UserByName(context.Background(), "ghost")
	assert.True(t, apperror.IsNotFound(err))
}

func TestUserByNameResolvesLowestID(t *testing.T) {
	m := NewMemory()

	// Duplicate names cannot be created through the write path, but the
	// resolver must still behave deterministically if the data ever holds
	// them. Seed the maps directly.
	m.users[1] = &User{ID: 1, Name: "twin", Email: "a@example.com"}
	m.users[2] = &User{ID: 2, Name: "twin", Email: "b@example.com"}

	u, err := m.UserByName(context.Background(), "twin")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
}

func TestUpdateUserKeepsIDAndChecksConflicts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	alice := newUser(t, m, "alice")
	newUser(t, m, "bob")

	updated, err := m.UpdateUser(ctx, alice.ID, &User{Name: "alicia", Email: "alicia@example.com"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, updated.ID)
	assert.Equal(t, "alicia", updated.Name)

	_, err = m.UpdateUser(ctx, alice.ID, &User{Name: "bob", Email: "alicia@example.com"})
	assert.True(t, apperror.IsConflict(err))

	// Renaming to the current name is not a conflict with itself.
	_, err = m.UpdateUser(ctx, alice.ID, &User{Name: "alicia", Email: "new@example.com"})
	assert.NoError(t, err)
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	alice := newUser(t, m, "alice")
	bob := newUser(t, m, "bob")

	gig := newEvent(t, m, "gig", alice.ID)
	newEvent(t, m, "jam", alice.ID)
	bobParty := newEvent(t, m, "party", bob.ID)

	require.NoError(t, m.AddParticipant(ctx, gig.ID, bob.ID))
	require.NoError(t, m.AddParticipant(ctx, bobParty.ID, alice.ID))
	require.NoError(t, m.InsertKey(ctx, &APIKey{Digest: []byte("alice-digest"), UserID: &alice.ID}))

	require.NoError(t, m.DeleteUser(ctx, alice.ID))

	// Alice, her key, and every event she organized are gone.
	_, err := m.UserByName(ctx, "alice")
	assert.True(t, apperror.IsNotFound(err))
	_, err = m.KeyForUser(ctx, alice.ID)
	assert.True(t, apperror.IsNotFound(err))
	_, err = m.EventByName(ctx, "gig")
	assert.True(t, apperror.IsNotFound(err))
	_, err = m.EventByName(ctx, "jam")
	assert.True(t, apperror.IsNotFound(err))

	// Bob and his event survive, without Alice on the guest list.
	_, err = m.UserByName(ctx, "bob")
	assert.NoError(t, err)
	_, err = m.EventByName(ctx, "party")
	assert.NoError(t, err)
	guests, err := m.Participants(ctx, bobParty.ID)
	require.NoError(t, err)
	assert.Empty(t, guests)
}

func TestDeleteUserCascadeIsAtomic(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	alice := newUser(t, m, "alice")
	bob := newUser(t, m, "bob")

	gig := newEvent(t, m, "gig", alice.ID)
	newEvent(t, m, "jam", alice.ID)
	require.NoError(t, m.AddParticipant(ctx, gig.ID, bob.ID))
	require.NoError(t, m.InsertKey(ctx, &APIKey{Digest: []byte("alice-digest"), UserID: &alice.ID}))

	// Fail the cascade on its second event removal.
	var calls int
	m.SetEventDeleteHook(func(int64) error {
		calls++
		if calls == 2 {
			return errors.New("disk on fire")
		}
		return nil
	})

	err := m.DeleteUser(ctx, alice.ID)
	require.Error(t, err)
	appErr, ok := apperror.FromError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.DatabaseError, appErr.Type)

	// Nothing was deleted: the user, both events, the key, and the
	// participation link are all still there.
	_, err = m.UserByName(ctx, "alice")
	assert.NoError(t, err)
	_, err = m.EventByName(ctx, "gig")
	assert.NoError(t, err)
	_, err = m.EventByName(ctx, "jam")
	assert.NoError(t, err)
	_, err = m.KeyForUser(ctx, alice.ID)
	assert.NoError(t, err)
	guests, err := m.Participants(ctx, gig.ID)
	require.NoError(t, err)
	assert.Len(t, guests, 1)

	// With the failure gone the cascade completes.
	m.SetEventDeleteHook(nil)
	assert.NoError(t, m.DeleteUser(ctx, alice.ID))
}

func TestDeleteEventDoesNotTouchUsers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	alice := newUser(t, m, "alice")
	bob := newUser(t, m, "bob")
	gig := newEvent(t, m, "gig", alice.ID)
	require.NoError(t, m.AddParticipant(ctx, gig.ID, bob.ID))

	require.NoError(t, m.DeleteEvent(ctx, gig.ID))

	_, err := m.UserByName(ctx, "alice")
	assert.NoError(t, err)
	_, err = m.UserByName(ctx, "bob")
	assert.NoError(t, err)

	attended, err := m.EventsAttendedBy(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, attended)
}

func TestParticipationLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	alice := newUser(t, m, "alice")
	gig := newEvent(t, m, "gig", alice.ID)

	require.NoError(t, m.AddParticipant(ctx, gig.ID, alice.ID))

	err := m.AddParticipant(ctx, gig.ID, alice.ID)
	assert.True(t, apperror.IsConflict(err))

	require.NoError(t, m.RemoveParticipant(ctx, gig.ID, alice.ID))

	err = m.RemoveParticipant(ctx, gig.ID, alice.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestEventsOrganizedAndAttended(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	alice := newUser(t, m, "alice")
	bob := newUser(t, m, "bob")
	gig := newEvent(t, m, "gig", alice.ID)
	party := newEvent(t, m, "party", bob.ID)
	require.NoError(t, m.AddParticipant(ctx, party.ID, alice.ID))

	organized, err := m.EventsOrganizedBy(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, organized, 1)
	assert.Equal(t, gig.ID, organized[0].ID)

	attended, err := m.EventsAttendedBy(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, attended, 1)
	assert.Equal(t, party.ID, attended[0].ID)
}

func TestStoredValuesAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	alice := newUser(t, m, "alice")

	e, err := m.CreateEvent(ctx, &Event{
		Name:      "gig",
		Location:  "basement",
		Time:      time.Now().Add(time.Hour),
		Organizer: &alice.ID,
		Category:  []string{"music"},
	})
	require.NoError(t, err)

	// Mutating a returned value must not reach the stored copy.
	e.Category[0] = "mutated"
	e.Location = "mutated"

	stored, err := m.EventByName(ctx, "gig")
	require.NoError(t, err)
	assert.Equal(t, []string{"music"}, stored.Category)
	assert.Equal(t, "basement", stored.Location)
}
