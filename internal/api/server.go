// Package api is the HTTP face of the dispatcher: one RPC endpoint plus
// health probes, wrapped in recovery, logging, and a burst guard.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/porterapi/porter/internal/dispatch"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       *slog.Logger
	Dispatcher   *dispatch.Dispatcher // Required
	Pool         *pgxpool.Pool        // Optional: nil disables the DB check in /readyz
	TrustProxy   bool                 // Trust X-Real-IP/X-Forwarded-For/X-Forwarded-Proto
	CookieDomain string
	RateBurst    int // Burst guard size per IP (0 = disabled)
}

// Server is the RPC HTTP server.
type Server struct {
	handler http.Handler
}

// NewServer creates the server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rpc := &rpcHandler{
		dispatcher:   cfg.Dispatcher,
		trustProxy:   cfg.TrustProxy,
		cookieDomain: cfg.CookieDomain,
		logger:       logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api", rpc.serve)
	mux.HandleFunc("GET /healthz", health)
	mux.HandleFunc("GET /readyz", readiness(cfg.Pool))

	// Middleware stack, outermost first: Recovery -> Logging -> BurstGuard.
	var handler http.Handler = mux
	if cfg.RateBurst > 0 {
		rl := newRateLimiter(1.0, cfg.RateBurst)
		handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	}
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	return &Server{handler: handler}, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
