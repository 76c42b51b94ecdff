package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// MaxBodyBytes caps the request body size. Zero disables the cap.
	MaxBodyBytes int64
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   64 << 20, // room for two multipart frames plus fields
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /status", h.Status)
	mux.HandleFunc("POST /generate/text", h.GenerateText)
	mux.HandleFunc("POST /generate/image", h.GenerateImage)
	mux.HandleFunc("POST /generate/keyframe", h.GenerateKeyframe)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		MaxBodyMiddleware(cfg.MaxBodyBytes),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
