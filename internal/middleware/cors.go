package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"gemini-relay/internal/models"
)

// CORS returns the cross-origin policy for the relay. A list containing "*"
// admits every origin; otherwise only the listed origins are echoed back.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{models.SessionIDHeader, "X-Request-ID"},
		// Credentials are never needed and are incompatible with "*".
		AllowCredentials: false,
		MaxAge:           300,
	})
}
