// Package api serves stored ingest runs and their points over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/locationhistory/internal/history"
	"github.com/banshee-data/locationhistory/internal/httputil"
	"github.com/banshee-data/locationhistory/internal/monitoring"
	"github.com/banshee-data/locationhistory/internal/security"
	"github.com/banshee-data/locationhistory/internal/store"
	"github.com/banshee-data/locationhistory/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

const (
	defaultRunsLimit   = 50
	defaultPointsLimit = 1000
	maxLimit           = 10000
)

// RunStore is the part of the store the API reads from.
type RunStore interface {
	Runs(ctx context.Context, limit int) ([]store.Run, error)
	GetRun(ctx context.Context, id string) (store.Run, error)
	Points(ctx context.Context, id string, limit, offset int) ([]history.Point, error)
	DeleteRun(ctx context.Context, id string) error
}

type Server struct {
	runs RunStore
}

func NewServer(runs RunStore) *Server {
	return &Server{runs: runs}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/{id}", s.handleRun)
	mux.HandleFunc("/api/runs/{id}/points", s.listPoints)
	mux.HandleFunc("/api/runs/{id}/summary", s.showSummary)
	return mux
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit, err := httputil.QueryInt(r, "limit", defaultRunsLimit, 1, maxLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	runs, err := s.runs.Runs(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, "Failed to retrieve runs: "+err.Error())
		return
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		run, err := s.runs.GetRun(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		httputil.WriteJSONOK(w, run)
	case http.MethodDelete:
		if err := s.runs.DeleteRun(r.Context(), id); err != nil {
			s.writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.MethodNotAllowed(w)
	}
}

type pointsPage struct {
	RunID  string          `json:"run_id"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
	Points []history.Point `json:"points"`
}

// listPoints returns a page of points. With download=1 the page is written as
// a bare JSON array attachment named after the run input.
func (s *Server) listPoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	id := r.PathValue("id")
	limit, err := httputil.QueryInt(r, "limit", defaultPointsLimit, 1, maxLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	offset, err := httputil.QueryInt(r, "offset", 0, 0, int(^uint(0)>>1))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	points, err := s.runs.Points(r.Context(), id, limit, offset)
	if err != nil {
		httputil.InternalServerError(w, "Failed to retrieve points: "+err.Error())
		return
	}

	if r.URL.Query().Get("download") == "1" {
		base := strings.TrimSuffix(filepath.Base(run.Input), filepath.Ext(run.Input))
		httputil.Attachment(w, security.SanitizeFilename(base)+"-points.json")
		w.Header().Set("Content-Type", "application/json")
		if err := history.WriteJSON(w, points); err != nil {
			monitoring.Errorf("failed to write points download for run %s: %v", id, err)
		}
		return
	}

	httputil.WriteJSONOK(w, pointsPage{RunID: id, Limit: limit, Offset: offset, Points: points})
}

// showSummary summarises every stored point of a run.
func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	id := r.PathValue("id")
	if _, err := s.runs.GetRun(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	// A negative limit is unbounded in SQLite.
	points, err := s.runs.Points(r.Context(), id, -1, 0)
	if err != nil {
		httputil.InternalServerError(w, "Failed to retrieve points: "+err.Error())
		return
	}
	httputil.WriteJSONOK(w, history.Summarize(points))
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.InternalServerError(w, err.Error())
}
