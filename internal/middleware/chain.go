// Package middleware provides the HTTP middleware chain the API surface
// wraps every route in: security headers, CORS, request ids, and per-IP
// rate limiting.
package middleware

import "net/http"

// Middleware wraps an http.HandlerFunc with additional behavior.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// Chain composes middlewares in order: Chain(m1, m2)(handler) runs
// m1, then m2, then handler, then unwinds back through m2 and m1.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.HandlerFunc) http.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
