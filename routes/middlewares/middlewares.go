package middlewares

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"

	"github.com/mbolis/quick-poll/httpx"
	"github.com/mbolis/quick-poll/log"
	"github.com/mbolis/quick-poll/model"
	"github.com/mbolis/quick-poll/service"
)

type contextKey struct{ name string }

var principalCtxKey = &contextKey{"principal"}

// Authenticated verifies the session token, from the cookie or a bearer
// header, and stores the caller's Principal in the request context.
func Authenticated(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(
			jwtauth.Verify(ja, httpx.TokenFromCookie, jwtauth.TokenFromHeader),
			authenticate,
		).Handler(next)
	}
}

func authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "auth.verify_token")
			return
		}

		principal, err := service.Principal(claims)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "auth.claims")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// Admin rejects authenticated callers without the ADMIN role. It must run
// after Authenticated.
func Admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFrom(r.Context())
		if !ok {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "auth.admin.no_principal")
			return
		}
		if !principal.IsAdmin() {
			httpx.LogStatus(w, r, http.StatusForbidden, log.DebugLevel, "auth.admin")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

func PrincipalFrom(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalCtxKey).(model.Principal)
	return p, ok
}
