package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the storefront front end at origin to call the API with
// credentials. An empty origin disables cross-origin access.
func CORS(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{origin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID", "X-Device-ID", "X-Service-Auth"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
