package users

import (
	"net/http"

	"github.com/user/ems-go/apperror"
	"github.com/user/ems-go/cache"
	"github.com/user/ems-go/resolve"
	"github.com/user/ems-go/store"
)

// Handlers provides the HTTP handlers for user management.
type Handlers struct {
	service    *Service
	cache      *cache.Cache
	userHeader string
}

// NewHandlers creates new user Handlers. The cache may be nil; userHeader is
// the response header that delivers a freshly issued API key.
func NewHandlers(service *Service, c *cache.Cache, userHeader string) *Handlers {
	return &Handlers{service: service, cache: c, userHeader: userHeader}
}

// HandleCreate godoc
// @Summary Register a user
// @Description Creates a user and issues its API key. The key is returned
// @Description once, in the response header, and cannot be recovered later.
// @Tags users
// @Accept json
// @Success 201 "Created; Location header and API key header set"
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 409 {object} apperror.ErrorResponse
// @Failure 415 {object} apperror.ErrorResponse
// @Router /api/users/ [post]
func (h *Handlers) HandleCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UserRequest
		if !apperror.DecodeJSON(w, r, &req) {
			return
		}

		user, secret, err := h.service.Create(r.Context(), &req)
		if err != nil {
			apperror.WriteError(w, r, err)
			return
		}

		h.cache.Drop(r.Context(), "/api/users/")

		// The raw secret travels in this one header and nowhere else.
		w.Header().Set("Location", resolve.UserURL(user))
		w.Header().Set(h.userHeader, secret)
		apperror.WriteJSON(w, http.StatusCreated, nil)
	}
}

// HandleList godoc
// @Summary List all users
// @Tags users
// @Produce json
// @Success 200 {array} store.User
// @Failure 403 {object} apperror.ErrorResponse
// @Router /api/users/ [get]
func (h *Handlers) HandleList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := h.service.List(r.Context())
		if err != nil {
			apperror.WriteError(w, r, err)
			return
		}
		if users == nil {
			users = []store.User{}
		}
		apperror.WriteJSON(w, http.StatusOK, users)
	}
}

// HandleGet godoc
// @Summary Get a user's profile
// @Tags users
// @Produce json
// @Success 200 {object} store.User
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /api/users/{user}/ [get]
func (h *Handlers) HandleGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := resolve.UserFromContext(r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewInternalError("user not resolved", nil))
			return
		}
		apperror.WriteJSON(w, http.StatusOK, user)
	}
}

// HandleUpdate godoc
// @Summary Update a user's profile
// @Tags users
// @Accept json
// @Produce json
// @Success 200 {object} store.User
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Failure 409 {object} apperror.ErrorResponse
// @Router /api/users/{user}/ [put]
func (h *Handlers) HandleUpdate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := resolve.UserFromContext(r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewInternalError("user not resolved", nil))
			return
		}

		var req UserRequest
		if !apperror.DecodeJSON(w, r, &req) {
			return
		}

		updated, err := h.service.Update(r.Context(), user, &req)
		if err != nil {
			apperror.WriteError(w, r, err)
			return
		}

		h.cache.Drop(r.Context(), "/api/users/",
			resolve.UserURL(user), resolve.UserEventsURL(user),
			resolve.UserURL(updated), resolve.UserEventsURL(updated))

		w.Header().Set("Location", resolve.UserURL(updated))
		apperror.WriteJSON(w, http.StatusOK, updated)
	}
}

// HandleDelete godoc
// @Summary Delete a user
// @Description Deletes the user and, in the same transaction, every event
// @Description the user organizes.
// @Tags users
// @Success 204 "Deleted"
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /api/users/{user}/ [delete]
func (h *Handlers) HandleDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := resolve.UserFromContext(r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewInternalError("user not resolved", nil))
			return
		}

		cascaded, err := h.service.Delete(r.Context(), user)
		if err != nil {
			apperror.WriteError(w, r, err)
			return
		}

		stale := []string{"/api/users/", "/api/events/",
			resolve.UserURL(user), resolve.UserEventsURL(user)}
		for i := range cascaded {
			stale = append(stale, resolve.EventURL(&cascaded[i]))
		}
		h.cache.Drop(r.Context(), stale...)

		apperror.WriteJSON(w, http.StatusNoContent, nil)
	}
}

// HandleEvents godoc
// @Summary List a user's organized and attended events
// @Tags users
// @Produce json
// @Success 200 {object} UserEventsResponse
// @Failure 403 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Router /api/users/{user}/events/ [get]
func (h *Handlers) HandleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := resolve.UserFromContext(r.Context())
		if !ok {
			apperror.WriteError(w, r, apperror.NewInternalError("user not resolved", nil))
			return
		}

		resp, err := h.service.Events(r.Context(), user)
		if err != nil {
			apperror.WriteError(w, r, err)
			return
		}

		w.Header().Set("Location", resolve.UserEventsURL(user))
		apperror.WriteJSON(w, http.StatusOK, resp)
	}
}
