package app

import (
	"net/http"
)

// Option configures the environment run by Run().
type Option func(o *opts)

type opts struct {
	middleware []func(http.Handler) http.Handler
}

// WithMiddleware wraps the app's handler with the provided middleware.
//
// Middleware is evaluated in addition order, outermost first.
func WithMiddleware(middleware func(http.Handler) http.Handler) Option {
	return func(o *opts) {
		o.middleware = append(o.middleware, middleware)
	}
}
