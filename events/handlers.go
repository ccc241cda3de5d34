package events

import (
	"net/http"

	"github.com/user/ems-go/apperror"
	"github.com/user/ems-go/cache"
	"github.com/user/ems-go/resolve"
	"github.com/user/ems-go/store"
)

// Handlers provides the HTTP handlers for event management.
type Handlers struct {
	service *Service
	cache   *cache.Cache
}

// NewHandlers creates new event Handlers. The cache may be nil.
func NewHandlers(service *Service, c *cache.Cache) *Handlers {
	return &Handlers{service: service, cache: c}
}

// resolved pulls both context entities a handler needs, writing the error
// response when the middleware chain did not run as expected.
func resolvedUser(w http.ResponseWriter, r *http.Request) (*store.User, bool) {
	user, ok := resolve.UserFromContext(r.Context())
	if !ok {
		apperror.WriteError(w, r, apperror.NewInternalError("user not resolved", nil))
	}
	return user, ok
}

func resolvedEvent(w http.ResponseWriter, r *http.Request) (*store.Event, bool) {
	event, ok := resolve.EventFromContext(r.Context())
	if !ok {
		apperror.WriteError(w, r, apperror.NewInternalError("event not resolved", nil))
	}
	return event, ok
}

// HandleList godoc
// @Summary List all events
// @Tags events
// @Produce json
// @Success 200 {array} store.Event
// @Router /api/events/ [get]
func (h *Handlers) HandleList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := h.service.List(r.Context())
		if err != nil {
			apperror.WriteError(w, r, err)
			return
		}
		if events == nil {
			events = []store.Event{}
		}
		apperror.WriteJSON(w, http.StatusOK, events)
	}
}

// HandleGet godoc
// @Summary Get an event
// @Tags events
// @Produce json
// @Success 200 {object} store.Event
// @Failure 404 {object} apperror.ErrorResponse
// @Router /api/events/{event}/ [get]
func (h *Handlers) HandleGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		event, ok := resolvedEvent(w, r)
		if !ok {
			return
		}
		apperror.WriteJSON(w, http.StatusOK, event)
	}
}

// HandleCreate godoc
// @Summary Create an event
// @Description Creates an event organized by the authenticated user.
// @Tags events
// @Accept json
// @Success 201 "Created; Location header set"
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 409 {object} apperror.ErrorResponse
// @Failure 415 {object} apperror.ErrorResponse
// @Router /api/users/{user}/events/ [post]
func (h *Handlers) HandleCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := resolvedUser(w, r)
		if !ok {
			return
		}

		var req EventRequest
		if !apperror.DecodeJSON(w, r, &req) {
			return
		}

		event, err := h.service.Create(r.Context(), user, &req)
		if err != nil {
			apperror.WriteError(w, r, err)
			return
		}

		h.cache.Drop(r.Context(), "/api/events/", resolve.UserEventsURL(user))

		w.Header().Set("Location", resolve.EventURL(event))
		apperror.WriteJSON(w, http.StatusCreated, nil)
	}
}

// HandleUpdate godoc
// @Summary Update an event
// @Tags events
// @Accept json
// @Produce json
// @Success 200 {object} store.Event
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Failure 409 {object} apperror.ErrorResponse
// @Router /api/users/{user}/events/{event}/ [put]
func (h *Handlers) HandleUpdate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := resolvedUser(w, r)
		if !ok {
			return
		}
		event, ok := resolvedEvent(w, r)
		if !ok {
			return
		}

		var req EventRequest
		if !apperror.DecodeJSON(w, r, &req) {
			return
		}

		updated, err := h.service.Update(r.Context(), user, event, &req)
		if err != nil {
			apperror.WriteError(w, r, err)
			return
		}

		h.cache.Drop(r.Context(), "/api/events/",
			resolve.EventURL(event), resolve.EventURL(updated), resolve.UserEventsURL(user))

		w.Header().Set("Location", resolve.EventURL(updated))
		apperror.WriteJSON(w, http.StatusOK, updated)
	}
}

// HandleDelete godoc
// @Summary Delete an event
// @Tags events
// @Success 204 "Deleted"
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /api/users/{user}/events/{event}/ [delete]
func (h *Handlers) HandleDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := resolvedUser(w, r)
		if !ok {
			return
		}
		event, ok := resolvedEvent(w, r)
		if !ok {
			return
		}

		if err := h.service.Delete(r.Context(), user, event); err != nil {
			apperror.WriteError(w, r, err)
			return
		}

		h.cache.Drop(r.Context(), "/api/events/",
			resolve.EventURL(event), resolve.UserEventsURL(user))

		apperror.WriteJSON(w, http.StatusNoContent, nil)
	}
}

// HandleAddParticipant godoc
// @Summary Add a participant to an event
// @Tags participants
// @Success 201 "Participation created"
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Failure 409 {object} apperror.ErrorResponse
// @Router /api/events/{event}/participants/{user}/ [post]
func (h *Handlers) HandleAddParticipant() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := resolvedUser(w, r)
		if !ok {
			return
		}
		event, ok := resolvedEvent(w, r)
		if !ok {
			return
		}

		if err := h.service.AddParticipant(r.Context(), event, user); err != nil {
			apperror.WriteError(w, r, err)
			return
		}

		h.cache.Drop(r.Context(), resolve.EventURL(event), resolve.UserEventsURL(user))

		w.Header().Set("Location", resolve.EventParticipantURL(event, user))
		apperror.WriteJSON(w, http.StatusCreated, nil)
	}
}

// HandleRemoveParticipant godoc
// @Summary Remove a participant from an event
// @Tags participants
// @Success 204 "Participation removed"
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /api/events/{event}/participants/{user}/ [delete]
func (h *Handlers) HandleRemoveParticipant() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := resolvedUser(w, r)
		if !ok {
			return
		}
		event, ok := resolvedEvent(w, r)
		if !ok {
			return
		}

		if err := h.service.RemoveParticipant(r.Context(), event, user); err != nil {
			apperror.WriteError(w, r, err)
			return
		}

		h.cache.Drop(r.Context(), resolve.EventURL(event), resolve.UserEventsURL(user))

		apperror.WriteJSON(w, http.StatusNoContent, nil)
	}
}
