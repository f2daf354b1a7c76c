package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/logging"
)

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	// Address is the listen address (default ":8080").
	Address string

	// ReadTimeout and WriteTimeout bound each exchange.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxBodyBytes caps one request body (default MaxFrameBytes).
	MaxBodyBytes int64
}

// HTTPServer exposes the dispatcher over POST /rpc with a liveness probe
// on GET /healthz.
type HTTPServer struct {
	rpc     *Server
	server  *http.Server
	maxBody int64
}

// NewHTTP wraps the dispatcher in an HTTP transport.
func NewHTTP(rpc *Server, cfg HTTPConfig) *HTTPServer {
	if cfg.Address == "" {
		cfg.Address = ":8080"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = MaxFrameBytes
	}

	h := &HTTPServer{rpc: rpc, maxBody: cfg.MaxBodyBytes}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Post("/rpc", h.handleRPC)
	r.Get("/healthz", h.handleHealth)

	h.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return h
}

// Handler returns the routed handler for tests and embedding.
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (h *HTTPServer) Start() error {
	logging.Info().
		Add(logging.Component("rpc")).
		Add(logging.Str("address", h.server.Addr)).
		Msg("serving on http")
	err := h.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Run serves until the context is cancelled, then drains in-flight
// requests before returning.
func (h *HTTPServer) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- h.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return h.server.Shutdown(shutdownCtx)
}

// Shutdown stops the server gracefully.
func (h *HTTPServer) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

func (h *HTTPServer) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	resp := h.rpc.Handle(r.Context(), body)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(resp)
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": h.rpc.version,
	})
}
