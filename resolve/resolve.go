// Package resolve maps the name segments of the URL space to persisted
// entities. Routes address users and events by name, not by numeric id:
// /api/users/{user}/ and /api/events/{event}/ carry the entity's unique name,
// and the middleware here turns that name into the entity itself before any
// authorization decision is made. A name that resolves to nothing is a
// NotFound regardless of what credentials the request carries.
package resolve

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/user/ems-go/apperror"
	"github.com/user/ems-go/store"
)

// contextKey is a private type for context keys, preventing collisions with
// values set by other packages.
type contextKey string

const (
	userContextKey  contextKey = "resolved_user"
	eventContextKey contextKey = "resolved_event"
)

// urlParamName extracts and percent-decodes a chi URL parameter.
func urlParamName(r *http.Request, key string) (string, error) {
	raw := chi.URLParam(r, key)
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", apperror.NewBadRequestError("malformed name in URL", err)
	}
	return name, nil
}

// UserCtx returns middleware that resolves the {user} URL segment to a user
// and injects it into the request context. Resolution failures end the
// request with NotFound.
func UserCtx(users store.UserStore) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name, err := urlParamName(r, "user")
			if err != nil {
				apperror.WriteError(w, r, err)
				return
			}
			user, err := users.UserByName(r.Context(), name)
			if err != nil {
				apperror.WriteError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// EventCtx returns middleware that resolves the {event} URL segment to an
// event and injects it into the request context.
func EventCtx(events store.EventStore) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name, err := urlParamName(r, "event")
			if err != nil {
				apperror.WriteError(w, r, err)
				return
			}
			event, err := events.EventByName(r.Context(), name)
			if err != nil {
				apperror.WriteError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), eventContextKey, event)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext retrieves the resolved user set by UserCtx.
func UserFromContext(ctx context.Context) (*store.User, bool) {
	user, ok := ctx.Value(userContextKey).(*store.User)
	return user, ok
}

// EventFromContext retrieves the resolved event set by EventCtx.
func EventFromContext(ctx context.Context) (*store.Event, bool) {
	event, ok := ctx.Value(eventContextKey).(*store.Event)
	return event, ok
}

// NewContextWithUser injects a resolved user directly. Exists for handler
// tests that bypass the middleware chain.
func NewContextWithUser(ctx context.Context, u *store.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// NewContextWithEvent injects a resolved event directly.
func NewContextWithEvent(ctx context.Context, e *store.Event) context.Context {
	return context.WithValue(ctx, eventContextKey, e)
}

// UserURL builds the canonical, percent-encoded location path of a user.
// This is the inverse of the name resolution above.
func UserURL(u *store.User) string {
	return "/api/users/" + url.PathEscape(u.Name) + "/"
}

// UserEventsURL builds the canonical path of a user's event listing.
func UserEventsURL(u *store.User) string {
	return UserURL(u) + "events/"
}

// UserEventURL builds the canonical path of an event under its organizer.
func UserEventURL(u *store.User, e *store.Event) string {
	return UserEventsURL(u) + url.PathEscape(e.Name) + "/"
}

// EventURL builds the canonical, percent-encoded location path of an event.
func EventURL(e *store.Event) string {
	return "/api/events/" + url.PathEscape(e.Name) + "/"
}

// EventParticipantURL builds the canonical path of a participation link.
func EventParticipantURL(e *store.Event, u *store.User) string {
	return EventURL(e) + "participants/" + url.PathEscape(u.Name) + "/"
}
