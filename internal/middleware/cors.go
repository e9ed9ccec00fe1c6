package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

const defaultFrontendOrigin = "http://localhost:3000"

// ParseOrigins splits a comma-separated FRONTEND_URL value into distinct origins.
// The local development origin is always allowed.
func ParseOrigins(frontendURL string) []string {
	origins := []string{defaultFrontendOrigin}
	for _, origin := range strings.Split(frontendURL, ",") {
		trimmed := strings.TrimRight(strings.TrimSpace(origin), "/")
		if trimmed != "" && !slices.Contains(origins, trimmed) {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// CORS returns rs/cors middleware for the rendering layer origins
func CORS(frontendURL string, logger *zap.Logger) func(http.Handler) http.Handler {
	origins := ParseOrigins(frontendURL)
	logger.Info("CORS middleware initialized", zap.Strings("allowed_origins", origins))

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           86400, // Cache preflight for 24 hours
	})
	return c.Handler
}
