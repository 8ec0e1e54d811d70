package httpapi

import (
	"net/http"
	"time"

	"iqdb/internal/middleware"
)

// Register wires every route onto mux, with the security-headers + CORS
// + request-id middleware chain and a per-IP rate limiter on every route.
// The mutating image endpoints and the operator log endpoints get the
// stricter write limiter plus bearer-token auth.
func (app *App) Register(mux *http.ServeMux) {
	secureAPI := middleware.Chain(
		middleware.SecurityHeaders(),
		middleware.CORS(),
		middleware.RequestID(),
	)
	writeLimiter := middleware.NewRateLimiter(30, time.Minute)
	readLimiter := middleware.NewRateLimiter(120, time.Minute)

	secure := func(h http.HandlerFunc) http.HandlerFunc {
		return secureAPI(readLimiter.Limit()(h))
	}
	secureWrite := func(h http.HandlerFunc) http.HandlerFunc {
		return secureAPI(writeLimiter.Limit()(app.requireAdmin(h)))
	}

	mux.HandleFunc("/query", secure(app.HandleQuery))
	mux.HandleFunc("/images/", secureWrite(app.HandleImages))
	mux.HandleFunc("/status", secure(app.HandleStatus))
	mux.HandleFunc("/logs/errors", secureWrite(app.HandleLogsRecent))
	mux.HandleFunc("/logs/rotation", secureWrite(app.HandleLogsRotation))
}
