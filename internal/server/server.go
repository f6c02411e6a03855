// Package server exposes the query pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"intramind/config"
	"intramind/internal/adapter/store"
	"intramind/internal/auth"
	"intramind/internal/domain"
)

const maxRequestBytes = 1 << 20

// Querier answers one question for a verified caller.
type Querier interface {
	Query(ctx context.Context, caller domain.Caller, question string, history []domain.ConversationTurn) (domain.QueryResult, error)
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Question    *string                   `json:"question"`
	ChatHistory []domain.ConversationTurn `json:"chat_history"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Server serves the query, health and index endpoints.
type Server struct {
	query    Querier
	index    *store.Handle
	verifier *auth.Verifier
	cfg      config.ServerConfig
	log      zerolog.Logger
	now      func() time.Time
}

func New(query Querier, index *store.Handle, verifier *auth.Verifier, cfg config.ServerConfig, log zerolog.Logger) *Server {
	return &Server{
		query:    query,
		index:    index,
		verifier: verifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Handler returns the routed handler wrapped with request ids and access
// logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/", s.handleHealth)

	mux.Handle("POST /query", s.verifier.Middleware(http.HandlerFunc(s.handleQuery)))
	mux.Handle("POST /query/", s.verifier.Middleware(http.HandlerFunc(s.handleQuery)))
	mux.Handle("GET /index", s.verifier.Middleware(http.HandlerFunc(s.handleIndex)))

	return hlog.NewHandler(s.log)(
		hlog.RequestIDHandler("req_id", "X-Request-Id")(
			hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
				hlog.FromRequest(r).Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", status).
					Int("size", size).
					Dur("dur", dur).
					Msg("http")
			})(mux),
		),
	)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Bool("auth", s.verifier.Enabled()).Msg("api server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownTimeout := s.cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.log.Info().Dur("timeout", shutdownTimeout).Msg("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	idx := s.index.Current()
	if idx == nil {
		writeError(w, http.StatusServiceUnavailable, "no index loaded")
		return
	}
	writeJSON(w, http.StatusOK, idx.Manifest())
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Question == nil {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		caller = domain.Caller{Subject: "unknown"}
	}

	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	result, err := s.query.Query(ctx, caller, *req.Question, req.ChatHistory)
	if err != nil {
		status := statusFor(err)
		hlog.FromRequest(r).Error().Err(err).Str("user", caller.Subject).Int("status", status).Msg("query failed")
		writeError(w, status, detailFor(status, err))
		return
	}

	if result.Sources == nil {
		result.Sources = []string{}
	}
	writeJSON(w, http.StatusOK, result)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUpstreamUnavailable),
		errors.Is(err, domain.ErrTransient),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// detailFor hides internal error text for server-side failures.
func detailFor(status int, err error) string {
	switch status {
	case http.StatusBadRequest:
		return err.Error()
	case http.StatusServiceUnavailable:
		return "upstream service unavailable, try again later"
	default:
		return "internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
