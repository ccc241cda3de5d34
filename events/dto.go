// Package events encapsulates event management: public listings, creation
// and modification by the organizing user, and the participation relation.
package events

import "time"

// EventRequest is the payload for creating or fully updating an event.
// Name, location and time are mandatory; the rest is optional. The organizer
// field is never taken at face value: on create it is overwritten with the
// authenticated user, on update it must match the authenticated user.
type EventRequest struct {
	Name        string    `json:"name" validate:"required"`
	Location    string    `json:"location" validate:"required"`
	Time        time.Time `json:"time" validate:"required"`
	Organizer   *int64    `json:"organizer,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    []string  `json:"category,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}
