package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/promoengine/pkg/types"
)

// CORS applies the configured allowed origin policy. The pricing API is read
// and quote-only, so credentials are never allowed.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", types.RequestIDHeader},
		ExposedHeaders: []string{types.RequestIDHeader},
		MaxAge:         300,
	}).Handler
}
