// Package api serves the JSON status feed for the disk monitor.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cshoesmith/diskmonitor/internal/model"
	"github.com/cshoesmith/diskmonitor/internal/publish"
	"github.com/cshoesmith/diskmonitor/internal/scheduler"
	"github.com/cshoesmith/diskmonitor/internal/smart"
	"github.com/cshoesmith/diskmonitor/internal/store"
)

// Monitor reports the poll loop's run state for the health endpoint.
// *scheduler.Scheduler satisfies it.
type Monitor interface {
	State() scheduler.State
	LastCycle() time.Time
	SourceKind() string
}

// Server is the HTTP server for the status feed.
type Server struct {
	pub     *publish.Publisher
	store   *store.Store
	monitor Monitor
	mux     *http.ServeMux
	server  *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(addr string, pub *publish.Publisher, s *store.Store, mon Monitor) *Server {
	srv := &Server{
		pub:     pub,
		store:   s,
		monitor: mon,
		mux:     http.NewServeMux(),
	}

	srv.registerRoutes()

	srv.server = &http.Server{
		Addr:         addr,
		Handler:      SecurityHeadersMiddleware(RecoveryMiddleware(LoggingMiddleware(srv.mux))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return srv
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("HTTP server starting", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/drives", s.handleDrives)
	s.mux.HandleFunc("GET /api/drives/{key}", s.handleDriveDetail)
	s.mux.HandleFunc("GET /api/drives/{key}/history", s.handleDriveHistory)
}

// writeJSON marshals v to JSON into a buffer first, then writes it to the
// response. This ensures marshalling errors can be returned as a proper 500.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding JSON response", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		slog.Debug("writing JSON response", "path", r.URL.Path, "error", err)
	}
}

// handleStatus returns the latest published snapshot with the per-drive
// history windows stripped; the history endpoint serves those on demand.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.pub.Latest()
	if !ok {
		http.Error(w, "no cycle completed yet", http.StatusServiceUnavailable)
		return
	}
	for i := range snap.Drives {
		snap.Drives[i].History = nil
	}
	writeJSON(w, r, snap)
}

// driveSummary is the list-view projection of a drive's state.
type driveSummary struct {
	Key         string            `json:"key"`
	Path        string            `json:"path,omitempty"`
	Model       string            `json:"model,omitempty"`
	Serial      string            `json:"serial,omitempty"`
	Interface   model.Interface   `json:"interface"`
	Score       int               `json:"score"`
	Status      model.Status      `json:"status"`
	Trend       model.Trend       `json:"trend"`
	Stale       bool              `json:"stale"`
	Failure     model.FailureKind `json:"failure,omitempty"`
	Present     bool              `json:"present"`
	Temperature *int              `json:"temperature,omitempty"`
	LastSeen    int64             `json:"last_seen"`
}

func (s *Server) handleDrives(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.pub.Latest()
	if !ok {
		http.Error(w, "no cycle completed yet", http.StatusServiceUnavailable)
		return
	}

	out := make([]driveSummary, 0, len(snap.Drives))
	for i := range snap.Drives {
		d := &snap.Drives[i]
		sum := driveSummary{
			Key:       d.Identity.Key,
			Model:     d.Identity.Model,
			Serial:    d.Identity.Serial,
			Interface: d.Identity.Interface,
			Score:     d.Health.Score,
			Status:    d.Health.Status,
			Trend:     d.Trend,
			Stale:     d.Stale,
			Failure:   d.Failure,
			Present:   d.Present,
			LastSeen:  d.LastSeen,
		}
		if n := len(d.Identity.Paths); n > 0 {
			sum.Path = d.Identity.Paths[n-1]
		}
		if d.Snapshot != nil {
			sum.Temperature = d.Snapshot.Temperature
		}
		out = append(out, sum)
	}
	writeJSON(w, r, out)
}

// driveDetail is the full tracked state plus presentation-only statistical
// assessments of its attributes.
type driveDetail struct {
	model.DriveState
	Assessments []smart.Assessment `json:"assessments,omitempty"`
}

func (s *Server) handleDriveDetail(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	snap, ok := s.pub.Latest()
	if !ok {
		http.Error(w, "no cycle completed yet", http.StatusServiceUnavailable)
		return
	}

	for i := range snap.Drives {
		d := &snap.Drives[i]
		if d.Identity.Key != key {
			continue
		}
		resp := driveDetail{DriveState: *d}
		if d.Snapshot != nil {
			resp.Assessments = smart.Assess(d.Snapshot.Attributes)
		}
		writeJSON(w, r, resp)
		return
	}
	http.NotFound(w, r)
}

// handleDriveHistory returns a drive's persisted health rows. Unknown keys
// yield an empty series rather than a 404 so a consumer can poll a drive it
// expects to appear.
func (s *Server) handleDriveHistory(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	hours := 24
	if h := r.URL.Query().Get("hours"); h != "" {
		if v, err := strconv.Atoi(h); err == nil && v > 0 && v <= 168 {
			hours = v
		}
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour).Unix()
	entries, err := s.store.QueryHistory(key, since)
	if err != nil {
		slog.Error("querying drive history", "drive", key, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, entries)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.pub.Latest()

	status := "ok"
	if !ok {
		status = "no_data"
	}

	lastCycle := "never"
	if t := s.monitor.LastCycle(); !t.IsZero() {
		lastCycle = fmt.Sprintf("%ds ago", int(time.Since(t).Seconds()))
	}

	present := 0
	for i := range snap.Drives {
		if snap.Drives[i].Present {
			present++
		}
	}

	writeJSON(w, r, map[string]any{
		"status":     status,
		"timestamp":  time.Now().Unix(),
		"scheduler":  s.monitor.State().String(),
		"source":     s.monitor.SourceKind(),
		"last_cycle": lastCycle,
		"drives":     present,
	})
}
