// Package server exposes the HTTP surface: the poll trigger, health
// check, and a small status page.
package server

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"quake-notifier/pkg/seismic"
	"quake-notifier/storage"
)

// Ticker runs poll ticks.
type Ticker interface {
	RunTick(ctx context.Context) seismic.TickReport
	LastAnnouncedID() string
}

// Archive lists recent announcements for the status page.
type Archive interface {
	Recent(ctx context.Context, n int) ([]storage.Announcement, error)
}

// Server handles HTTP requests.
type Server struct {
	ticker  Ticker
	archive Archive
	logger  *slog.Logger
}

// Config holds server collaborators.
type Config struct {
	Ticker  Ticker
	Archive Archive // optional
	Logger  *slog.Logger
}

// New creates a new HTTP server handler.
func New(cfg *Config) *Server {
	return &Server{
		ticker:  cfg.Ticker,
		archive: cfg.Archive,
		logger:  cfg.Logger,
	}
}

// ListenAndServe sets up all routes and starts the server.
func (s *Server) ListenAndServe(port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/pollz", s.handlePoll)

	// Configure server with timeouts to prevent resource exhaustion
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Minute, // A tick publishes sequentially and may be slow
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "port", port)
	return server.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "healthy"}); err != nil {
		s.logger.Warn("Failed to encode health response", "error", err)
	}
}

// handlePoll runs one tick and returns its report. The external
// scheduler (Cloud Scheduler or similar) posts here on its cadence.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.logger.Info("Poll endpoint triggered")

	report := s.ticker.RunTick(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.logger.Warn("Failed to write poll response", "error", err)
	}
}

var statusTemplate = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Earthquake Alert Bot</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; }
.header { border-bottom: 2px solid #c0392b; padding-bottom: 10px; margin-bottom: 20px; }
.announcement { margin-bottom: 20px; padding-bottom: 15px; border-bottom: 1px solid #ecf0f1; }
.meta { color: #7f8c8d; font-size: 0.9em; }
.text { background: #f8f9fa; padding: 15px; border-radius: 8px; margin: 10px 0; white-space: pre-wrap; }
a { color: #c0392b; text-decoration: none; }
a:hover { text-decoration: underline; }
</style>
</head>
<body>
<div class="header">
<h2>Earthquake Alert Bot</h2>
<p class="meta">Last announced event: {{if .LastAnnouncedID}}{{.LastAnnouncedID}}{{else}}none since startup{{end}}</p>
</div>
{{range .Announcements}}
<div class="announcement">
<div class="meta">{{.EventID}} &bull; {{.PostedAt.Format "2006-01-02 15:04:05 MST"}}</div>
<div class="text">{{.Text}}</div>
<div class="meta">{{.Description}}</div>
<a href="{{.LinkURI}}">{{.LinkTitle}}</a>
</div>
{{else}}
<p>No archived announcements.</p>
{{end}}
</body>
</html>
`))

type statusData struct {
	LastAnnouncedID string
	Announcements   []storage.Announcement
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := statusData{LastAnnouncedID: s.ticker.LastAnnouncedID()}
	if s.archive != nil {
		announcements, err := s.archive.Recent(r.Context(), 20)
		if err != nil {
			s.logger.Warn("Failed to list recent announcements", "error", err)
		} else {
			data.Announcements = announcements
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")

	if err := statusTemplate.Execute(w, data); err != nil {
		s.logger.Error("Failed to render status page", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
