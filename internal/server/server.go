// Package server provides the HTTP API over the agents, the browser runner
// and the job feed connectors.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonathan/found/internal/config"
	"github.com/jonathan/found/internal/connectors"
	"github.com/jonathan/found/internal/events"
	"github.com/jonathan/found/internal/server/middleware"
	"github.com/jonathan/found/internal/server/ratelimit"
	"github.com/jonathan/found/internal/types"
)

// DefaultPingInterval is how often an idle event stream sends a keep-alive.
const DefaultPingInterval = 25 * time.Second

// AgentService runs and configures the policy-gated agent.
type AgentService interface {
	Run(ctx context.Context, req types.CreateRunRequest) (types.Run, error)
	Runs() []types.Run
	ListOpportunities(query string, limit int) []types.Opportunity
	Config() types.AgentConfig
	UpdateConfig(ctx context.Context, update types.AgentConfigUpdate) (types.AgentConfig, error)
}

// BrowserService runs the browser-driven automation.
type BrowserService interface {
	Run(ctx context.Context, req types.CreateBrowserRunRequest) (types.BrowserRun, error)
	Runs() []types.BrowserRun
}

// FeedService reads and imports external job feeds.
type FeedService interface {
	Discover(ctx context.Context, req types.ImportJobsRequest) (connectors.DiscoverResult, error)
	Import(ctx context.Context, req types.ImportJobsRequest) (connectors.ImportResult, error)
}

// EventSource is the live update bus.
type EventSource interface {
	Subscribe(handler events.Handler) *events.Subscription
}

// Server represents the HTTP server
type Server struct {
	httpServer   *http.Server
	handler      http.Handler
	agent        AgentService
	browser      BrowserService
	feeds        FeedService
	events       EventSource
	rateLimiter  *ratelimit.Limiter
	jwtService   *JWTService
	pingInterval time.Duration
}

// Config holds server configuration
type Config struct {
	Port         int
	Agent        AgentService
	Browser      BrowserService
	Feeds        FeedService
	Events       EventSource
	RateLimit    *ratelimit.Config // nil uses ratelimit.DefaultConfig
	JWT          *config.JWTConfig // nil leaves the API open
	PingInterval time.Duration
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Agent == nil || cfg.Browser == nil || cfg.Feeds == nil || cfg.Events == nil {
		return nil, fmt.Errorf("server requires agent, browser, feeds and events")
	}

	s := &Server{
		agent:        cfg.Agent,
		browser:      cfg.Browser,
		feeds:        cfg.Feeds,
		events:       cfg.Events,
		rateLimiter:  ratelimit.NewLimiter(cfg.RateLimit),
		pingInterval: cfg.PingInterval,
	}
	if s.pingInterval <= 0 {
		s.pingInterval = DefaultPingInterval
	}
	if cfg.JWT != nil {
		s.jwtService = NewJWTService(cfg.JWT)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)

	// Agent
	mux.HandleFunc("GET /api/v1/agents/linkedin/config", s.handleGetConfig)
	mux.HandleFunc("PUT /api/v1/agents/linkedin/config", s.handleUpdateConfig)
	mux.HandleFunc("PATCH /api/v1/agents/linkedin/config", s.handleUpdateConfig)
	mux.HandleFunc("GET /api/v1/agents/linkedin/opportunities", s.handleListOpportunities)
	mux.HandleFunc("GET /api/v1/agents/linkedin/runs", s.handleListRuns)
	mux.HandleFunc("POST /api/v1/agents/linkedin/runs", s.handleCreateRun)

	// Browser automation
	mux.HandleFunc("GET /api/v1/agents/linkedin/browser-runs", s.handleListBrowserRuns)
	mux.HandleFunc("POST /api/v1/agents/linkedin/browser-runs", s.handleCreateBrowserRun)

	// Live updates
	mux.HandleFunc("GET /api/v1/automation/stream", s.handleStream)

	// External job feeds
	mux.HandleFunc("GET /api/v1/integrations/jobs", s.handleDiscoverJobs)
	mux.HandleFunc("POST /api/v1/integrations/jobs/import", s.handleImportJobs)

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(s.withAuth(mux))))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Long timeout for browser runs
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		s.rateLimiter.Stop()
		return fmt.Errorf("server error: %w", err)
	}
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Stop rate limiter cleanup goroutine
	s.rateLimiter.Stop()
	log.Println("Server stopped")
	return nil
}

// Close stops background work without serving.
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withAuth requires a bearer token on mutating requests when JWT is
// configured. Reads stay open.
func (s *Server) withAuth(next http.Handler) http.Handler {
	if s.jwtService == nil {
		return next
	}
	protected := middleware.AuthMiddleware(s.jwtService.AsTokenValidator())(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			protected.ServeHTTP(w, r)
		}
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// failure maps err to its status and writes it.
func (s *Server) failure(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[%s] %s failed: %v", r.Method, r.URL.Path, err)
	}
	s.errorResponse(w, status, errorMessage(err))
}

// extractClientID extracts the client identifier from the request.
// Uses the IP address from RemoteAddr; X-Forwarded-For is not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d", info.Limit, info.Remaining)
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
