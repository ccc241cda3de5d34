package store

import "context"

// Store is the full storage contract the services are built against.
// Implementations return *apperror.AppError values for the documented
// failure modes so the HTTP boundary can translate them directly.
type Store interface {
	UserStore
	EventStore
	KeyStore
}

// UserStore persists users.
//
// Names are unique; Create and Update return a ConflictError when the chosen
// name is already taken. UserByName returns a NotFoundError when no user
// carries the name. Should storage ever hold several rows with the same name
// (which the schema prevents), implementations must return the one with the
// lowest id and log a consistency warning rather than pick arbitrarily.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) (*User, error)
	UserByName(ctx context.Context, name string) (*User, error)
	Users(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id int64, u *User) (*User, error)

	// DeleteUser removes the user together with every event the user
	// organizes, atomically: either the whole cascade commits or nothing
	// does. Participation links of the deleted user and of the deleted
	// events disappear with them, as does the user's API key. Events the
	// user merely attended are left in place.
	DeleteUser(ctx context.Context, id int64) error
}

// EventStore persists events and the user/event participation relation.
type EventStore interface {
	CreateEvent(ctx context.Context, e *Event) (*Event, error)
	EventByName(ctx context.Context, name string) (*Event, error)
	Events(ctx context.Context) ([]Event, error)
	UpdateEvent(ctx context.Context, id int64, e *Event) (*Event, error)

	// DeleteEvent removes the event and its participation links. Users who
	// organized or attended it are untouched.
	DeleteEvent(ctx context.Context, id int64) error

	EventsOrganizedBy(ctx context.Context, userID int64) ([]Event, error)
	EventsAttendedBy(ctx context.Context, userID int64) ([]Event, error)

	// AddParticipant links a user to an event. Returns a ConflictError when
	// the link already exists.
	AddParticipant(ctx context.Context, eventID, userID int64) error
	// RemoveParticipant deletes the link. Returns a NotFoundError when the
	// user is not participating.
	RemoveParticipant(ctx context.Context, eventID, userID int64) error
	Participants(ctx context.Context, eventID int64) ([]User, error)
}

// KeyStore persists API key digests. A user holds at most one key and the
// admin role holds at most one key per deployment; InsertKey returns a
// ConflictError when the owning principal already has one. Lookups return a
// NotFoundError on miss. Deletes are idempotent.
type KeyStore interface {
	InsertKey(ctx context.Context, k *APIKey) error
	KeyForUser(ctx context.Context, userID int64) (*APIKey, error)
	AdminKey(ctx context.Context) (*APIKey, error)
	DeleteKeyForUser(ctx context.Context, userID int64) error
	DeleteAdminKey(ctx context.Context) error
}
