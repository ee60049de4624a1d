// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package bridge exposes the renderer boundary over localhost HTTP. The
// hosting editor's panel connects to the event stream for display commands
// and posts user intents back. The bridge is the panel's only transport;
// it binds loopback addresses exclusively.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quill-dev/quill/internal/view"
	quillerr "github.com/quill-dev/quill/pkg/errors"
)

// IntentHandler receives each decoded intent. Satisfied by
// *assistant.Controller.
type IntentHandler interface {
	HandleIntent(ctx context.Context, intent view.Intent) error
}

// Config holds bridge server configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server fans display commands out to connected panels over SSE and feeds
// their intents into the handler. It implements view.Renderer: with no
// panel connected, Emit drops commands silently, which is exactly the
// renderer-gone behavior the chat surface expects.
type Server struct {
	router  chi.Router
	cfg     Config
	handler IntentHandler

	mu          sync.Mutex
	subscribers map[chan event]struct{}
}

// Compile-time interface check.
var _ view.Renderer = (*Server)(nil)

// New creates a bridge Server with chi router, CORS, and the event, intent,
// and health routes.
func New(cfg Config, handler IntentHandler) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, quillerr.New(quillerr.CodeBridgeStartFailure, "listen address is required")
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}

	s := &Server{
		cfg:         cfg,
		handler:     handler,
		subscribers: map[chan event]struct{}{},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(cfg.CORSOrigins))

	r.Get("/api/v1/healthz", s.handleHealthz)
	r.Get("/api/v1/events", s.handleEvents)
	r.Post("/api/v1/intents", s.handleIntent)

	s.router = r
	return s, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown. The write timeout is intentionally not
// set on the server: the event stream stays open indefinitely.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return quillerr.Wrapf(err, quillerr.CodeBridgeStartFailure, "listening on %s", s.cfg.ListenAddr)
	}

	slog.Info("bridge listening", "addr", ln.Addr().String())

	srv := &http.Server{
		Handler:     s.router,
		ReadTimeout: s.cfg.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return quillerr.Wrapf(err, quillerr.CodeBridgeInternalFailure, "shutting down")
	}

	return <-errCh
}

// event is one display command ready for the wire.
type event struct {
	name    string
	payload []byte
}

// Emit implements view.Renderer by fanning the command out to every
// connected subscriber. A subscriber that cannot keep up loses the command
// rather than blocking the event loop.
func (s *Server) Emit(cmd view.Command) {
	payload, err := view.MarshalCommand(cmd)
	if err != nil {
		slog.Warn("dropping unmarshalable display command", "command", cmd.Name(), "error", err)
		return
	}

	ev := event{name: cmd.Name(), payload: payload}

	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			slog.Debug("subscriber lagging, dropping command", "command", cmd.Name())
		}
	}
}

// Subscribers reports the number of connected panels.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

func (s *Server) subscribe() chan event {
	ch := make(chan event, 64)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan event) {
	s.mu.Lock()
	delete(s.subscribers, ch)
	s.mu.Unlock()
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// handleEvents streams display commands to one panel as SSE until the panel
// disconnects. The command name is the SSE event name; the payload carries
// the same name in its "command" discriminator for clients that parse only
// data lines.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		// httptest.ResponseRecorder doesn't implement Flusher,
		// but we still write the events for testability.
		flusher = nil
	}

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.payload); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// handleIntent decodes one JSON intent from the request body and hands it
// to the configured handler.
func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1024*1024))
	if err != nil {
		writeError(w, quillerr.Wrap(err, quillerr.CodeBridgeRequestInvalid, "reading request body"))
		return
	}

	intent, err := view.DecodeIntent(body)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.handler.HandleIntent(r.Context(), intent); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprint(w, `{"status":"accepted"}`)
}

func writeError(w http.ResponseWriter, err error) {
	status := quillerr.HTTPStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := struct {
		Error string `json:"error"`
		Code  string `json:"code,omitempty"`
	}{
		Error: err.Error(),
		Code:  string(quillerr.CodeOf(err)),
	}
	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		slog.Warn("encoding error response", "error", encErr)
	}
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"vscode-webview://*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
