// Package server exposes collected news, summaries and on-demand search
// over a JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"newswatch/pkg/domain"
	"newswatch/pkg/repository"
)

// ErrUnknownEntity is returned by NewsProvider when the requested
// company is in no roster
var ErrUnknownEntity = errors.New("unknown entity")

// Server represents HTTP server instance
type Server struct {
	config    ConfigProvider
	news      NewsProvider
	records   RecordStore
	summaries SummaryStore
	version   string
	debug     bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// NewsProvider searches news for a rostered company on demand
type NewsProvider interface {
	CompanyNews(ctx context.Context, company string, window domain.TimeWindow, maxResults int) ([]domain.Article, error)
}

// RecordStore loads persisted records of past collection runs
type RecordStore interface {
	LatestRecords(ctx context.Context, mode string, kind domain.EntityKind) ([]domain.Record, error)
}

// SummaryStore loads stored executive summaries
type SummaryStore interface {
	LatestSummary(ctx context.Context, mode string) (*repository.Summary, error)
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// New initializes a new server instance
func New(cfg ConfigProvider, news NewsProvider, records RecordStore, summaries SummaryStore, version string, debug bool) *Server {
	s := &Server{
		config:    cfg,
		news:      news,
		records:   records,
		summaries: summaries,
		version:   version,
		debug:     debug,
		router:    routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	lgr.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		lgr.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			lgr.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("newswatch", "newswatch", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("GET /news", s.newsHandler)
		r.HandleFunc("GET /records", s.recordsHandler)
		r.HandleFunc("GET /summary/latest", s.summaryHandler)
	})
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
	}
	RenderJSON(w, r, http.StatusOK, status)
}

// newsHandler runs an on-demand news search for one rostered company
func (s *Server) newsHandler(w http.ResponseWriter, r *http.Request) {
	company := r.URL.Query().Get("company")
	if company == "" {
		RenderError(w, r, errors.New("company parameter is required"), http.StatusBadRequest)
		return
	}

	window := domain.TimeWindow(r.URL.Query().Get("window"))
	switch window {
	case domain.WindowDay, domain.WindowWeek, domain.WindowMonth, domain.WindowYear, domain.WindowNone:
	default:
		RenderError(w, r, fmt.Errorf("invalid window %q", window), http.StatusBadRequest)
		return
	}

	maxResults := 5
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			RenderError(w, r, fmt.Errorf("invalid max %q", v), http.StatusBadRequest)
			return
		}
		if n > 20 {
			n = 20
		}
		maxResults = n
	}

	articles, err := s.news.CompanyNews(r.Context(), company, window, maxResults)
	if errors.Is(err, ErrUnknownEntity) {
		RenderError(w, r, fmt.Errorf("company %q not found", company), http.StatusNotFound)
		return
	}
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	RenderJSON(w, r, http.StatusOK, map[string]interface{}{
		"company":  company,
		"window":   window.Description(),
		"count":    len(articles),
		"articles": articles,
	})
}

// recordsHandler returns the records of the most recent run
func (s *Server) recordsHandler(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "weekly"
	}

	kind := domain.EntityKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = domain.KindClient
	}
	switch kind {
	case domain.KindClient, domain.KindCompetitor, domain.KindTopic:
	default:
		RenderError(w, r, fmt.Errorf("invalid kind %q", kind), http.StatusBadRequest)
		return
	}

	records, err := s.records.LatestRecords(r.Context(), mode, kind)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	RenderJSON(w, r, http.StatusOK, map[string]interface{}{
		"mode":    mode,
		"kind":    kind,
		"count":   len(records),
		"records": records,
	})
}

// summaryHandler returns the latest stored summary for a mode
func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "weekly"
	}

	summary, err := s.summaries.LatestSummary(r.Context(), mode)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	if summary == nil {
		RenderError(w, r, fmt.Errorf("no %s summary yet", mode), http.StatusNotFound)
		return
	}

	RenderJSON(w, r, http.StatusOK, summary)
}

// RenderJSON sends JSON response
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			lgr.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// RenderError sends error response as JSON
func RenderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	RenderJSON(w, r, code, map[string]string{"error": errMsg})
}
