package apikey

import (
	"net/http"

	"github.com/user/ems-go/apperror"
	"github.com/user/ems-go/resolve"
)

// RequireUser returns middleware gating a route behind the resolved user's
// own API key, carried in the given header. It must run after
// resolve.UserCtx: resolution decides NotFound first, so the guard only ever
// answers Forbidden about entities that exist. A missing header, an unknown
// credential, and a non-matching credential all fail the same way to keep
// the error surface uniform.
func RequireUser(svc *Service, header string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := resolve.UserFromContext(r.Context())
			if !ok {
				apperror.WriteError(w, r, apperror.NewInternalError("user not resolved before authorization", nil))
				return
			}

			secret := r.Header.Get(header)
			if secret == "" {
				apperror.WriteError(w, r, apperror.NewForbiddenError("missing API key", nil))
				return
			}

			valid, err := svc.Verify(r.Context(), UserPrincipal(user.ID), secret)
			if err != nil {
				apperror.WriteError(w, r, err)
				return
			}
			if !valid {
				apperror.WriteError(w, r, apperror.NewForbiddenError("invalid API key", nil))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin returns middleware gating a route behind the deployment's
// admin key, carried in the given header.
func RequireAdmin(svc *Service, header string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := r.Header.Get(header)
			if secret == "" {
				apperror.WriteError(w, r, apperror.NewForbiddenError("missing admin API key", nil))
				return
			}

			valid, err := svc.Verify(r.Context(), AdminPrincipal(), secret)
			if err != nil {
				apperror.WriteError(w, r, err)
				return
			}
			if !valid {
				apperror.WriteError(w, r, apperror.NewForbiddenError("invalid admin API key", nil))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
