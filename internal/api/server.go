// Package api exposes the HTTP interface for the pipeline service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/agencykit/seo-pipeline/internal/config"
	"github.com/agencykit/seo-pipeline/internal/metrics"
	"github.com/agencykit/seo-pipeline/internal/ranking"
	"github.com/agencykit/seo-pipeline/internal/seo"
)

// CrawlRunner executes one crawl job to a terminal state.
type CrawlRunner interface {
	Run(ctx context.Context, jobID, siteID string) error
}

// RankingArchiver dispatches the archiver actions.
type RankingArchiver interface {
	Snapshot(ctx context.Context, siteID string) (ranking.Result, error)
	Import(ctx context.Context, siteID string, rows []ranking.ImportRow) (ranking.Result, error)
	Backfill(ctx context.Context, siteID string) (ranking.Result, error)
}

// Server wires HTTP handlers to the orchestrator and stores.
type Server struct {
	router   chi.Router
	jobs     seo.JobStore
	rankings seo.RankingStore
	runner   CrawlRunner
	archiver RankingArchiver
	idGen    seo.IDGenerator
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	jobs seo.JobStore,
	rankings seo.RankingStore,
	runner CrawlRunner,
	archiver RankingArchiver,
	idGen seo.IDGenerator,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		jobs:     jobs,
		rankings: rankings,
		runner:   runner,
		archiver: archiver,
		idGen:    idGen,
		cfg:      cfg,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware(idGen))
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(time.Duration(cfg.Server.TimeoutSeconds) * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/crawl", s.runCrawl)
		r.Get("/jobs/{job_id}", s.getJob)
		r.Get("/rankings", s.listRankings)
		r.Post("/rankings", s.archiveRankings)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type crawlRequest struct {
	JobID  string `json:"job_id"`
	SiteID string `json:"site_id"`
}

// runCrawl drives a job to completion before replying; progress can be
// polled through the job endpoint while this call is in flight.
func (s *Server) runCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.JobID == "" || req.SiteID == "" {
		s.writeError(w, http.StatusBadRequest, "job_id and site_id are required")
		return
	}

	if _, err := s.jobs.GetJob(r.Context(), req.JobID); errors.Is(err, seo.ErrNotFound) {
		createErr := s.jobs.CreateJob(r.Context(), seo.CrawlJob{ID: req.JobID, SiteID: req.SiteID})
		if createErr != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to create job")
			return
		}
	} else if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	if err := s.runner.Run(r.Context(), req.JobID, req.SiteID); err != nil {
		s.logger.Error("crawl run failed", zap.String("job_id", req.JobID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "crawl failed")
		return
	}

	job, err := s.jobs.GetJob(r.Context(), req.JobID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.GetJob(r.Context(), jobID)
	if errors.Is(err, seo.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) listRankings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	siteID := q.Get("site_id")
	if siteID == "" {
		s.writeError(w, http.StatusBadRequest, "site_id is required")
		return
	}

	query := seo.SnapshotQuery{
		SiteID:  siteID,
		Keyword: q.Get("keyword"),
		Limit:   s.cfg.Ranking.DefaultLimit,
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := parsePositiveInt(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		query.Limit = limit
	}
	for param, dst := range map[string]**time.Time{
		"start_date": &query.StartDate,
		"end_date":   &query.EndDate,
	} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		date, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, param+" must be formatted as YYYY-MM-DD")
			return
		}
		*dst = &date
	}

	rows, err := s.rankings.ListSnapshots(r.Context(), query)
	if err != nil {
		s.logger.Error("snapshot listing failed", zap.String("site_id", siteID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}

	payload := map[string]any{
		"snapshots": rows,
		"count":     len(rows),
	}
	if query.Keyword != "" && len(rows) > 1 {
		payload["trend"] = ranking.Trend(rows)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

type archiveRequest struct {
	SiteID string              `json:"site_id"`
	Action string              `json:"action"`
	Data   []ranking.ImportRow `json:"data,omitempty"`
}

func (s *Server) archiveRankings(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SiteID == "" {
		s.writeError(w, http.StatusBadRequest, "site_id is required")
		return
	}

	var (
		res    ranking.Result
		source string
		err    error
	)
	switch req.Action {
	case "snapshot":
		source = seo.SourceGSC
		res, err = s.archiver.Snapshot(r.Context(), req.SiteID)
	case "import":
		source = seo.SourceImport
		res, err = s.archiver.Import(r.Context(), req.SiteID, req.Data)
	case "backfill-gsc":
		source = seo.SourceGSCBackfill
		res, err = s.archiver.Backfill(r.Context(), req.SiteID)
	default:
		s.writeError(w, http.StatusBadRequest, "action must be one of snapshot, import, backfill-gsc")
		return
	}
	if err != nil {
		s.logger.Error("archiver action failed",
			zap.String("site_id", req.SiteID),
			zap.String("action", req.Action),
			zap.Error(err),
		)
		s.writeError(w, http.StatusInternalServerError, "archiver action failed")
		return
	}

	metrics.ObserveSnapshots(source, res.Archived)
	s.writeJSON(w, http.StatusOK, res)
}

func parsePositiveInt(raw string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, errors.New("not positive")
	}
	return v, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
