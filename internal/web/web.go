package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"fitcal/internal/config"
	"fitcal/internal/grid"
	appLog "fitcal/internal/log"
	"fitcal/internal/source"
)

//go:embed templates/*.html
var templateFS embed.FS

// errBadRequest marks errors caused by request parameters.
var errBadRequest = errors.New("bad request")

// Options tweaks a Server. The zero value is production behaviour.
type Options struct {
	// Now replaces time.Now (tests).
	Now func() time.Time
}

// Server provides the JSON API and the server-rendered month page.
type Server struct {
	cfg       *config.Config
	events    source.Source
	loc       *time.Location
	weekStart time.Weekday
	now       func() time.Time
	mux       *http.ServeMux
	page      *template.Template
}

// NewServer constructs a new Server reading events from src.
func NewServer(cfg *config.Config, src source.Source, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("web: config is nil")
	}
	if src == nil {
		return nil, errors.New("web: event source is nil")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	page, err := template.New("calendar.html").Funcs(pageFuncs).ParseFS(templateFS, "templates/calendar.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		events:    src,
		loc:       loc,
		weekStart: cfg.WeekStartDay(),
		now:       opts.Now,
		mux:       http.NewServeMux(),
		page:      page,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "user", s.cfg.BasicAuth.Username)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Serve runs the HTTP server on ln until ctx is cancelled, then shuts it
// down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/grid", s.handleGrid)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calendar", http.StatusFound)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// statusFor maps request errors to 400 and everything from the event
// sources (including malformed upstream events) to 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, grid.ErrInvalidWeekStart):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
