package middleware

import (
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

// RequireAuthenticated rejects requests with 401 while the engine holds no
// authenticated session.
func RequireAuthenticated(engine *goSession.Engine) func(http.Handler) http.Handler {
	return Guard(engine, "")
}

// Guard gates a handler on the engine session. Requests get 401 while no user
// is authenticated and 403 when permission is non-empty and not granted.
func Guard(engine *goSession.Engine, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil || !engine.Authenticated() {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if permission != "" && !engine.HasPermission(permission) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
