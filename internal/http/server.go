// Package http serves the worker's operational endpoints: liveness,
// readiness, Prometheus metrics and the notification feed.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"pocketbook/internal/log"
	"pocketbook/internal/metrics"
	"pocketbook/internal/middleware/trace"
	"pocketbook/internal/notify"
)

const shutdownTimeout = 5 * time.Second

// Options selects what the server exposes. Ready and Feed may be nil.
type Options struct {
	Addr    string
	Metrics *metrics.Metrics
	Ready   func(context.Context) error
	Feed    *notify.Feed
	Logger  *log.Logger
}

type Server struct {
	http.Server
	ready  func(context.Context) error
	feed   *notify.Feed
	logger *log.Logger
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.ForComponent(log.ComponentHTTP)
	}
	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ready:  opts.Ready,
		feed:   opts.Feed,
		logger: logger,
	}

	mw := trace.NewMiddleware(logger, opts.Metrics)
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, mw.Wrap(pattern, h))
	}
	route("GET /healthz", handleHealth)
	route("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", opts.Metrics.Handler())
	if s.feed != nil {
		route("GET /notifications", s.handleNotifications)
		route("POST /notifications/read", s.handleMarkAllRead)
		route("POST /notifications/{id}/read", s.handleMarkRead)
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Ops server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type notificationsResponse struct {
	Unread        int            `json:"unread"`
	Notifications []notification `json:"notifications"`
}

type notification struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
	IsRead      bool   `json:"isRead"`
}

func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	notes := s.feed.Notifications()
	resp := notificationsResponse{
		Unread:        s.feed.UnreadCount(),
		Notifications: make([]notification, 0, len(notes)),
	}
	for _, n := range notes {
		resp.Notifications = append(resp.Notifications, notification{
			ID:          n.ID,
			Kind:        string(n.Kind),
			Title:       n.Title,
			Description: n.Description,
			Timestamp:   n.Timestamp,
			IsRead:      n.IsRead,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"marked": s.feed.MarkAllRead()})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if !s.feed.MarkRead(r.PathValue("id")) {
		http.Error(w, "notification not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
