package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Dependencies holds all injectable dependencies used by route handlers.
type Dependencies struct {
	Handler *Handler

	// JWTSecret enables bearer-token auth on the API routes when non-empty.
	JWTSecret string

	// DevMode relaxes CORS for local frontend development.
	DevMode bool
}

// NewRouter builds the chi router with the proxy route tree and the global
// middleware stack.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()

	// --- Global middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(deps.DevMode))

	// --- Health check ---
	r.Get("/health", healthHandler)

	// --- Proxy API ---
	r.Route("/api", func(r chi.Router) {
		r.Use(requireJSON)
		if deps.JWTSecret != "" {
			r.Use(authMiddleware(deps.JWTSecret))
		}

		r.Post("/elements/{id}", deps.Handler.Element)
		r.Post("/filter", deps.Handler.Filter)
		r.Post("/navigation", deps.Handler.Navigation)
		r.Get("/properties", deps.Handler.Properties)
	})

	return r
}

// corsMiddleware returns a CORS middleware configured for the proxy. In dev
// mode common local frontend origins are allowed; in production only
// same-origin requests are permitted by default.
func corsMiddleware(devMode bool) func(http.Handler) http.Handler {
	var allowedOrigins []string
	if devMode {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:5173", "http://localhost:8080"}
	} else {
		allowedOrigins = []string{}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// healthHandler reports liveness. The proxy holds no state and opens no
// upstream connection until a request arrives, so there is nothing deeper to
// check.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
