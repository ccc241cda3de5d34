package events

import (
	"context"
	"fmt"
	"time"

	"github.com/user/ems-go/apperror"
	"github.com/user/ems-go/store"
)

// Service provides the business logic for event management.
type Service struct {
	store store.Store
}

// NewService creates a new event Service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// organizedBy reports whether the user organizes the event. Events whose
// organizer link was nulled out belong to nobody.
func organizedBy(e *store.Event, u *store.User) bool {
	return e.Organizer != nil && *e.Organizer == u.ID
}

// Create stores a new event organized by the authenticated user. The event
// time must not lie in the past.
func (s *Service) Create(ctx context.Context, organizer *store.User, req *EventRequest) (*store.Event, error) {
	if req.Time.Before(time.Now()) {
		return nil, apperror.NewBadRequestError("event time cannot be in the past", nil)
	}

	id := organizer.ID
	return s.store.CreateEvent(ctx, &store.Event{
		Name:        req.Name,
		Location:    req.Location,
		Time:        req.Time,
		Organizer:   &id,
		Description: req.Description,
		Category:    req.Category,
		Tags:        req.Tags,
	})
}

// List returns all events.
func (s *Service) List(ctx context.Context) ([]store.Event, error) {
	return s.store.Events(ctx)
}

// Update replaces the event's attributes on behalf of its organizer. The
// caller must organize the event; a payload organizer differing from the
// caller is a request error. A time change must not move the event into the
// past, but an already-past time may be kept as is.
func (s *Service) Update(ctx context.Context, caller *store.User, event *store.Event, req *EventRequest) (*store.Event, error) {
	if !organizedBy(event, caller) {
		return nil, apperror.NewForbiddenError("only the organizer can modify this event", nil)
	}
	if req.Organizer != nil && *req.Organizer != caller.ID {
		return nil, apperror.NewBadRequestError(
			fmt.Sprintf("organizer id %d does not match the authenticated user", *req.Organizer), nil)
	}
	if !req.Time.Equal(event.Time) && req.Time.Before(time.Now()) {
		return nil, apperror.NewBadRequestError("event time cannot be moved into the past", nil)
	}

	id := caller.ID
	return s.store.UpdateEvent(ctx, event.ID, &store.Event{
		Name:        req.Name,
		Location:    req.Location,
		Time:        req.Time,
		Organizer:   &id,
		Description: req.Description,
		Category:    req.Category,
		Tags:        req.Tags,
	})
}

// Delete removes the event on behalf of its organizer. Participation links
// go with it; participating users are untouched.
func (s *Service) Delete(ctx context.Context, caller *store.User, event *store.Event) error {
	if !organizedBy(event, caller) {
		return apperror.NewForbiddenError("only the organizer can delete this event", nil)
	}
	return s.store.DeleteEvent(ctx, event.ID)
}

// AddParticipant links the user to the event. Adding an existing participant
// is a conflict.
func (s *Service) AddParticipant(ctx context.Context, event *store.Event, user *store.User) error {
	return s.store.AddParticipant(ctx, event.ID, user.ID)
}

// RemoveParticipant unlinks the user from the event. Removing a
// non-participant is a not-found.
func (s *Service) RemoveParticipant(ctx context.Context, event *store.Event, user *store.User) error {
	return s.store.RemoveParticipant(ctx, event.ID, user.ID)
}
