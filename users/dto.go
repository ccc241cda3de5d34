// Package users encapsulates user profile management: registration, profile
// reads and updates, deletion with its event cascade, and the per-user event
// listing.
package users

import "github.com/user/ems-go/store"

// UserRequest is the payload for creating or fully updating a user.
// Name and email are mandatory, the phone number is optional.
type UserRequest struct {
	Name        string  `json:"name" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

// EventInfos groups the two event relations a user can have.
type EventInfos struct {
	AttendedEvents  []store.Event `json:"attended_events"`
	OrganizedEvents []store.Event `json:"organized_events"`
}

// UserEventsResponse is the payload of the per-user event listing.
type UserEventsResponse struct {
	UserName   string     `json:"user_name"`
	EventInfos EventInfos `json:"event_infos"`
}
