package users

import (
	"context"
	"log"

	"github.com/user/ems-go/apikey"
	"github.com/user/ems-go/store"
)

// Service provides the business logic for user management.
type Service struct {
	store store.Store
	keys  *apikey.Service
}

// NewService creates a new user Service.
func NewService(st store.Store, keys *apikey.Service) *Service {
	return &Service{store: st, keys: keys}
}

// Create registers a new user and issues the user's API key. The returned
// secret is the only copy that will ever exist; the caller must deliver it
// in the response. If issuing the key fails the freshly created user is
// removed again, so no user ends up permanently keyless.
func (s *Service) Create(ctx context.Context, req *UserRequest) (*store.User, string, error) {
	user, err := s.store.CreateUser(ctx, &store.User{
		Name:        req.Name,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return nil, "", err
	}

	secret, err := s.keys.Issue(ctx, apikey.UserPrincipal(user.ID))
	if err != nil {
		if delErr := s.store.DeleteUser(ctx, user.ID); delErr != nil {
			log.Printf("failed to roll back user %d after key issue failure: %v", user.ID, delErr)
		}
		return nil, "", err
	}
	return user, secret, nil
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]store.User, error) {
	return s.store.Users(ctx)
}

// Update replaces the user's attributes. Renames are allowed as long as the
// new name is free.
func (s *Service) Update(ctx context.Context, current *store.User, req *UserRequest) (*store.User, error) {
	return s.store.UpdateUser(ctx, current.ID, &store.User{
		Name:        req.Name,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
	})
}

// Delete removes the user. Events the user organizes are deleted in the same
// storage transaction; the slice of those events is returned so callers can
// invalidate anything derived from them. The user's API key and
// participation links disappear with the cascade.
func (s *Service) Delete(ctx context.Context, current *store.User) ([]store.Event, error) {
	organized, err := s.store.EventsOrganizedBy(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteUser(ctx, current.ID); err != nil {
		return nil, err
	}
	return organized, nil
}

// Events lists the events the user has organized and attended.
func (s *Service) Events(ctx context.Context, current *store.User) (*UserEventsResponse, error) {
	organized, err := s.store.EventsOrganizedBy(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	attended, err := s.store.EventsAttendedBy(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	if organized == nil {
		organized = []store.Event{}
	}
	if attended == nil {
		attended = []store.Event{}
	}
	return &UserEventsResponse{
		UserName: current.Name,
		EventInfos: EventInfos{
			AttendedEvents:  attended,
			OrganizedEvents: organized,
		},
	}, nil
}
