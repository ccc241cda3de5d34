// Package api assembles the HTTP route tree. Every route that addresses an
// entity by name goes through the same middleware order: resolve the name
// first, authorize second, serve from cache last. The order is load-bearing:
// resolution first means a request for a name that does not exist is
// NotFound no matter what credentials it carries, and a request for an
// existing name with a bad credential is Forbidden; caching last means a
// cached response is only ever served to a request that passed the guard.
package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/user/ems-go/apikey"
	"github.com/user/ems-go/cache"
	"github.com/user/ems-go/config"
	"github.com/user/ems-go/events"
	"github.com/user/ems-go/resolve"
	"github.com/user/ems-go/store"
	"github.com/user/ems-go/users"
)

// Options carries the collaborators the route tree is built from.
type Options struct {
	Store store.Store
	Keys  *config.KeysConfig
	// Cache may be nil, which disables response caching.
	Cache *cache.Cache
}

// NewRouter builds the API route tree. Global concerns (logging, recovery,
// CORS, metrics) are the caller's to attach.
func NewRouter(opts Options) *chi.Mux {
	keySvc := apikey.NewService(opts.Store)
	userSvc := users.NewService(opts.Store, keySvc)
	eventSvc := events.NewService(opts.Store)

	userHandlers := users.NewHandlers(userSvc, opts.Cache, opts.Keys.UserHeader)
	eventHandlers := events.NewHandlers(eventSvc, opts.Cache)

	userCtx := resolve.UserCtx(opts.Store)
	eventCtx := resolve.EventCtx(opts.Store)
	requireUser := apikey.RequireUser(keySvc, opts.Keys.UserHeader)
	requireAdmin := apikey.RequireAdmin(keySvc, opts.Keys.AdminHeader)
	cached := opts.Cache.Middleware

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/", userHandlers.HandleCreate())
			r.With(requireAdmin, cached).Get("/", userHandlers.HandleList())

			r.Route("/{user}", func(r chi.Router) {
				// The guard is attached per route, not per subtree, so that
				// the nested event segment is resolved before any credential
				// check. A request naming an unknown event must be NotFound
				// even when it carries no usable key.
				r.Use(userCtx)

				r.With(requireUser, cached).Get("/", userHandlers.HandleGet())
				r.With(requireUser).Put("/", userHandlers.HandleUpdate())
				r.With(requireUser).Delete("/", userHandlers.HandleDelete())

				r.Route("/events", func(r chi.Router) {
					r.With(requireUser, cached).Get("/", userHandlers.HandleEvents())
					r.With(requireUser).Post("/", eventHandlers.HandleCreate())

					r.Route("/{event}", func(r chi.Router) {
						r.Use(eventCtx)
						r.Use(requireUser)
						r.Put("/", eventHandlers.HandleUpdate())
						r.Delete("/", eventHandlers.HandleDelete())
					})
				})
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.With(cached).Get("/", eventHandlers.HandleList())

			r.Route("/{event}", func(r chi.Router) {
				r.Use(eventCtx)
				r.With(cached).Get("/", eventHandlers.HandleGet())

				r.Route("/participants/{user}", func(r chi.Router) {
					r.Use(userCtx)
					r.Use(requireUser)
					r.Post("/", eventHandlers.HandleAddParticipant())
					r.Delete("/", eventHandlers.HandleRemoveParticipant())
				})
			})
		})
	})

	return r
}
