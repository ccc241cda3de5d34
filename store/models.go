// Package store defines the persisted entities of the event management
// service and the storage contract they are accessed through. Two
// implementations exist: the Postgres-backed one in the db package and the
// in-memory one in this package.
package store

import "time"

// User is a registered user. Name is the unique lookup key in the URL space;
// email is mandatory, phone number optional.
type User struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

// Event is an organized happening. Name is the unique lookup key. Organizer
// is nullable: an event can outlive the removal of an unrelated linkage, but
// deleting the organizing user deletes the event (see UserStore.DeleteUser).
type Event struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Location    string    `json:"location"`
	Time        time.Time `json:"time"`
	Organizer   *int64    `json:"organizer,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    []string  `json:"category,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// APIKey holds the irreversible digest of an issued secret. A key belongs
// either to exactly one user or, with UserID nil and Admin set, to the
// deployment-wide admin role. The raw secret is never stored.
type APIKey struct {
	Digest []byte
	UserID *int64
	Admin  bool
}
