// Package web exposes the processed collection over a JSON HTTP API.
package web

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/csrf"

	"github.com/supportdesk/triage/internal/email"
	"github.com/supportdesk/triage/internal/history"
	"github.com/supportdesk/triage/internal/inbox"
	"github.com/supportdesk/triage/internal/logger"
	"github.com/supportdesk/triage/internal/metrics"
)

const (
	defaultRateLimit  = 30
	defaultRateWindow = time.Minute
	csrfHeader        = "X-CSRF-Token"
)

type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	stop     chan struct{}
	once     sync.Once
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = defaultRateLimit
	}
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		stop:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) filterRecent(times []time.Time, windowStart time.Time) []time.Time {
	n := 0
	for _, t := range times {
		if t.After(windowStart) {
			times[n] = t
			n++
		}
	}
	return times[:n]
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	recent := rl.filterRecent(rl.requests[key], now.Add(-rl.window))

	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false
	}
	rl.requests[key] = append(recent, now)
	return true
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}
		rl.mu.Lock()
		windowStart := time.Now().Add(-rl.window)
		for key, times := range rl.requests {
			recent := rl.filterRecent(times, windowStart)
			if len(recent) == 0 {
				delete(rl.requests, key)
			} else {
				rl.requests[key] = recent
			}
		}
		rl.mu.Unlock()
	}
}

// Deps are the collaborators a Server serves.
type Deps struct {
	Store          *inbox.Store
	Outbox         *email.Outbox // nil disables sending
	History        *history.Store
	Metrics        *metrics.Metrics
	Logger         logger.Logger
	RulesVersion   string
	SendRatePerMin int
}

type Server struct {
	store        *inbox.Store
	outbox       *email.Outbox
	historyStore *history.Store
	metrics      *metrics.Metrics
	log          logger.Logger
	rulesVersion string
	httpServer   *http.Server
	port         int
	csrfKey      []byte // nil disables CSRF protection
	rateLimiter  *RateLimiter
}

func NewServer(port int, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("web: store is required")
	}

	csrfKey := make([]byte, 32)
	if _, err := rand.Read(csrfKey); err != nil {
		return nil, fmt.Errorf("failed to generate CSRF key: %w", err)
	}

	return &Server{
		store:        deps.Store,
		outbox:       deps.Outbox,
		historyStore: deps.History,
		metrics:      deps.Metrics,
		log:          logger.OrNop(deps.Logger),
		rulesVersion: deps.RulesVersion,
		port:         port,
		csrfKey:      csrfKey,
		rateLimiter:  NewRateLimiter(deps.SendRatePerMin, defaultRateWindow),
	}, nil
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("Starting HTTP API", logger.String("addr", "http://"+s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(requestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(securityHeaders)

	if s.csrfKey != nil {
		r.Use(plaintextLocal)
		r.Use(csrf.Protect(
			s.csrfKey,
			csrf.Secure(false), // Allow HTTP for localhost
			csrf.Path("/"),
			csrf.HttpOnly(true),
			csrf.SameSite(csrf.SameSiteStrictMode),
			csrf.RequestHeader(csrfHeader),
			csrf.TrustedOrigins([]string{"localhost", "127.0.0.1", fmt.Sprintf("localhost:%d", s.port), fmt.Sprintf("127.0.0.1:%d", s.port)}),
			csrf.ErrorHandler(http.HandlerFunc(csrfFailure)),
		))
		r.Use(exposeCSRFToken)
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/emails", s.handleListEmails)
		r.Get("/emails/{id}", s.handleGetEmail)
		r.Post("/emails/{id}/status", s.handleSetStatus)
		r.Post("/emails/{id}/send", s.handleSend)
		r.Post("/reload", s.handleReload)
		r.Get("/stats", s.handleStats)
		r.Get("/history", s.handleHistory)
		r.Delete("/history/failed", s.handleDeleteFailed)
	})

	return r
}

// requestID tags each request with a UUID, reusing an incoming X-Request-ID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// plaintextLocal tells the CSRF layer that non-TLS requests are expected.
func plaintextLocal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			r = csrf.PlaintextHTTPRequest(r)
		}
		next.ServeHTTP(w, r)
	})
}

// exposeCSRFToken hands API clients the token to echo on state-changing calls.
func exposeCSRFToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(csrfHeader, csrf.Token(r))
		next.ServeHTTP(w, r)
	})
}

func csrfFailure(w http.ResponseWriter, r *http.Request) {
	msg := "CSRF token invalid"
	if err := csrf.FailureReason(r); err != nil {
		msg += ": " + err.Error()
	}
	writeError(w, http.StatusForbidden, msg)
}

// securityHeaders adds security headers to all responses
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Drafts and contact details should never be cached
		if !strings.HasPrefix(r.URL.Path, "/metrics") {
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
			w.Header().Set("Pragma", "no-cache")
		}

		next.ServeHTTP(w, r)
	})
}
