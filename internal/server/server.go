// Package server serves the chart dashboard, the change API and metrics.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/TobiSchelling/chartpulse/internal/analyze"
	"github.com/TobiSchelling/chartpulse/internal/chart"
	"github.com/TobiSchelling/chartpulse/internal/database"
	"github.com/TobiSchelling/chartpulse/internal/diff"
	"github.com/TobiSchelling/chartpulse/internal/markdown"
	"github.com/TobiSchelling/chartpulse/internal/metrics"
	"github.com/TobiSchelling/chartpulse/internal/snapshot"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Server is the HTTP server for the chart dashboard.
type Server struct {
	db     *database.DB
	store  snapshot.Store
	engine *diff.Engine
	pages  map[string]*template.Template
	router chi.Router
	logger *zap.Logger
}

// New creates a new Server. db may be nil, in which case stored analyses
// are not shown.
func New(db *database.DB, store snapshot.Store, engine *diff.Engine, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	funcMap := template.FuncMap{
		"markdown":   renderMarkdown,
		"formatDate": database.FormatDateDisplay,
		"rank": func(p *int) string {
			if p == nil {
				return "-"
			}
			return fmt.Sprintf("#%d", *p)
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so the "content" blocks don't collide.
	pageNames := []string{"index.html", "day.html", "week.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, store: store, engine: engine, pages: pages, logger: logger}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", s.handleIndex)
	r.Get("/day/{date}", s.handleDay)
	r.Get("/week/{date}", s.handleWeek)
	r.Get("/api/dates", s.handleDates)
	r.Get("/api/changes/{date}", s.handleChanges)

	s.router = r
}

type dayEntry struct {
	Date        string
	HasAnalysis bool
	ChangeCount int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	dates, err := s.store.Dates(r.Context())
	if err != nil {
		s.serverError(w, "listing snapshot dates", err)
		return
	}

	stored := make(map[string]database.Analysis)
	var weekly []database.Analysis
	if s.db != nil {
		daily, err := s.db.GetAllAnalyses(r.Context(), "daily")
		if err != nil {
			s.serverError(w, "listing analyses", err)
			return
		}
		for _, a := range daily {
			stored[a.Date] = a
		}
		if weekly, err = s.db.GetAllAnalyses(r.Context(), "weekly"); err != nil {
			s.serverError(w, "listing weekly analyses", err)
			return
		}
	}

	days := make([]dayEntry, 0, len(dates))
	for _, d := range dates {
		a, ok := stored[d]
		days = append(days, dayEntry{Date: d, HasAnalysis: ok, ChangeCount: a.ChangeCount})
	}

	s.render(w, "index.html", map[string]any{
		"Days":   days,
		"Weekly": weekly,
	})
}

// changesFor compares date with the day before. An empty previous snapshot
// yields no changes.
func (s *Server) changesFor(ctx context.Context, date string) ([]chart.Record, []chart.Change, error) {
	today, err := s.store.Load(ctx, date)
	if err != nil {
		return nil, nil, err
	}
	previous, err := s.store.Load(ctx, database.PreviousDay(date))
	if err != nil {
		return nil, nil, err
	}
	if len(today) == 0 || len(previous) == 0 {
		return today, []chart.Change{}, nil
	}
	changes := s.engine.Detect(today, previous).Changes
	if changes == nil {
		changes = []chart.Change{}
	}
	return today, changes, nil
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !database.ValidDate(date) {
		http.NotFound(w, r)
		return
	}

	records, changes, err := s.changesFor(r.Context(), date)
	if err != nil {
		s.serverError(w, "computing changes", err)
		return
	}

	var analysisMD string
	if s.db != nil {
		stored, err := s.db.GetAnalysis(r.Context(), date, "daily")
		if err != nil {
			s.serverError(w, "loading analysis", err)
			return
		}
		if stored != nil {
			analysisMD = storedAnalysisMarkdown(stored)
		}
	}

	counts := make(map[string]int, 4)
	for t, n := range diff.CountByType(changes) {
		counts[string(t)] = n
	}

	s.render(w, "day.html", map[string]any{
		"Date":     date,
		"Records":  len(records),
		"Total":    len(changes),
		"Counts":   counts,
		"Top":      s.engine.TopMovers(changes),
		"Analysis": analysisMD,
		"Summary":  analyze.ChartSummary(records, date),
	})
}

func storedAnalysisMarkdown(a *database.Analysis) string {
	var parsed analyze.Analysis
	if err := json.Unmarshal([]byte(a.AnalysisJSON), &parsed); err != nil {
		return a.DigestMarkdown
	}
	return parsed.Markdown()
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !database.ValidDate(date) || s.db == nil {
		http.NotFound(w, r)
		return
	}
	stored, err := s.db.GetAnalysis(r.Context(), date, "weekly")
	if err != nil {
		s.serverError(w, "loading weekly analysis", err)
		return
	}
	if stored == nil {
		http.NotFound(w, r)
		return
	}
	var body struct {
		Summary string `json:"summary"`
	}
	summary := stored.DigestMarkdown
	if err := json.Unmarshal([]byte(stored.AnalysisJSON), &body); err == nil && body.Summary != "" {
		summary = body.Summary
	}
	s.render(w, "week.html", map[string]any{
		"Date":    date,
		"Summary": summary,
		"Changes": stored.ChangeCount,
	})
}

type changesResponse struct {
	Date     string         `json:"date"`
	Previous string         `json:"previous"`
	Count    int            `json:"count"`
	Changes  []chart.Change `json:"changes"`
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !database.ValidDate(date) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}
	_, changes, err := s.changesFor(r.Context(), date)
	if err != nil {
		s.logger.Error("computing changes", zap.String("date", date), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, changesResponse{
		Date:     date,
		Previous: database.PreviousDay(date),
		Count:    len(changes),
		Changes:  changes,
	})
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	dates, err := s.store.Dates(r.Context())
	if err != nil {
		s.logger.Error("listing dates", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": dates})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) serverError(w http.ResponseWriter, what string, err error) {
	s.logger.Error(what, zap.Error(err))
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.logger.Error("template not found", zap.String("template", name))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		s.logger.Error("rendering template", zap.String("template", name), zap.Error(err))
	}
}

func renderMarkdown(text string) template.HTML {
	return template.HTML(markdown.ToHTML(text)) //nolint: gosec
}

// Serve starts the HTTP server on the given port and shuts it down when ctx ends.
func Serve(ctx context.Context, s *Server, port int, logger *zap.Logger) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("url", "http://"+addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
