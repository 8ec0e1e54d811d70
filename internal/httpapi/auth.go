package httpapi

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// requireAdmin wraps next so it only runs when the request carries a
// bearer token matching the configured operator token's bcrypt hash. Used
// on the mutating image endpoints and on the operator log endpoints
// (including their GET methods); /query and /status stay open.
func (app *App) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := app.Config.Get().Server.AdminToken
		if hash == "" {
			// No operator token configured: the service is running in an
			// open/trusted mode (e.g. behind an authenticating proxy).
			next(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
			WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimPrefix(auth, prefix)
}
