// Package api exposes the HTTP interface of the dashboard backend.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pagelift/pagelift/internal/config"
	"github.com/pagelift/pagelift/internal/pipeline"
	"github.com/pagelift/pagelift/internal/seo"
	"github.com/pagelift/pagelift/internal/wordpress"
)

const enqueueTimeout = 5 * time.Second

// Publisher is the CMS surface the publish proxy needs.
type Publisher interface {
	seo.PostPublisher
	CheckAuth(ctx context.Context) error
	ListPosts(ctx context.Context, perPage int) ([]wordpress.Post, error)
}

// Server wires HTTP handlers to the scan pipeline, the store and the
// publish proxy.
type Server struct {
	router     chi.Router
	store      seo.ScanStore
	dispatcher *pipeline.Dispatcher
	registry   *pipeline.Registry
	publisher  Publisher
	generator  seo.Generator
	idGen      seo.IDGenerator
	clock      seo.Clock
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes. publisher,
// generator and metrics may be nil; their endpoints then report 503.
func NewServer(
	store seo.ScanStore,
	dispatcher *pipeline.Dispatcher,
	registry *pipeline.Registry,
	publisher Publisher,
	generator seo.Generator,
	idGen seo.IDGenerator,
	clock seo.Clock,
	metrics *prometheus.Registry,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:      store,
		dispatcher: dispatcher,
		registry:   registry,
		publisher:  publisher,
		generator:  generator,
		idGen:      idGen,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(time.Duration(cfg.Server.TimeoutSeconds) * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/scans", func(r chi.Router) {
			r.Post("/", s.submitScan)
			r.Get("/", s.listScans)
			r.Route("/{scan_id}", func(r chi.Router) {
				r.Get("/", s.getScan)
				r.Get("/result", s.getScanResult)
				r.Get("/pages", s.listScanPages)
				r.Post("/cancel", s.cancelScan)
			})
		})
		r.Post("/publish", s.publishPost)
		r.Get("/wordpress/check", s.checkWordPress)
		r.Get("/wordpress/posts", s.listWordPressPosts)
		r.Post("/generate", s.generateDraft)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListScans(r.Context(), 1, 0); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) submitScan(w http.ResponseWriter, r *http.Request) {
	var req submitScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	params, err := s.toScanParameters(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	scanID, err := s.enqueueScan(r.Context(), params)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusRequestTimeout
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"scan_id": scanID})
}

func (s *Server) listScans(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultScanLimit, maxScanLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	scans, err := s.store.ListScans(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list scans failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list scans")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": toScanDTOs(scans)})
}

func (s *Server) getScan(w http.ResponseWriter, r *http.Request) {
	scan, ok := s.loadScan(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scan": toScanDTO(scan)})
}

func (s *Server) getScanResult(w http.ResponseWriter, r *http.Request) {
	scan, ok := s.loadScan(w, r)
	if !ok {
		return
	}
	pages, err := s.store.ListPages(r.Context(), scan.ID)
	if err != nil {
		s.logger.Error("list scan pages failed", zap.String("scan_id", scan.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch scan pages")
		return
	}
	writeJSON(w, http.StatusOK, scanResultDTO{Scan: toScanDTO(scan), Pages: toPageDTOs(pages)})
}

func (s *Server) listScanPages(w http.ResponseWriter, r *http.Request) {
	scan, ok := s.loadScan(w, r)
	if !ok {
		return
	}
	pages, err := s.store.ListPages(r.Context(), scan.ID)
	if err != nil {
		s.logger.Error("list scan pages failed", zap.String("scan_id", scan.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch scan pages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": toPageDTOs(pages)})
}

// cancelScan aborts a running scan via the registry, or marks a still-queued
// scan canceled directly. Finished scans report 409.
func (s *Server) cancelScan(w http.ResponseWriter, r *http.Request) {
	scan, ok := s.loadScan(w, r)
	if !ok {
		return
	}
	switch scan.Status {
	case seo.ScanStatusRunning:
		if s.registry == nil || !s.registry.Cancel(scan.ID) {
			writeError(w, http.StatusConflict, "scan is not cancelable")
			return
		}
	case seo.ScanStatusQueued:
		err := s.store.UpdateScanStatus(r.Context(), scan.ID, seo.ScanStatusCanceled, "canceled via API", scan.Counters)
		if err != nil {
			s.logger.Error("cancel queued scan failed", zap.String("scan_id", scan.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to cancel scan")
			return
		}
	default:
		writeError(w, http.StatusConflict, "scan already finished")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"scan_id": scan.ID,
		"status":  string(seo.ScanStatusCanceled),
	})
}

func (s *Server) publishPost(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "publishing is not configured")
		return
	}
	var req seo.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Title == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "title and content are required")
		return
	}
	result, err := s.publisher.CreatePost(r.Context(), req)
	if err != nil {
		s.logger.Warn("publish failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) checkWordPress(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "publishing is not configured")
		return
	}
	if err := s.publisher.CheckAuth(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listWordPressPosts(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "publishing is not configured")
		return
	}
	perPage := 0
	if raw := r.URL.Query().Get("per_page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid per_page")
			return
		}
		perPage = parsed
	}
	posts, err := s.publisher.ListPosts(r.Context(), perPage)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

func (s *Server) generateDraft(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		writeError(w, http.StatusServiceUnavailable, "generation is not configured")
		return
	}
	var req seo.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}
	draft, err := s.generator.Generate(r.Context(), req)
	if err != nil {
		s.logger.Warn("generation failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) loadScan(w http.ResponseWriter, r *http.Request) (seo.Scan, bool) {
	scanID := chi.URLParam(r, "scan_id")
	scan, err := s.store.GetScan(r.Context(), scanID)
	if err != nil {
		if errors.Is(err, seo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
		} else {
			s.logger.Error("get scan failed", zap.String("scan_id", scanID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load scan")
		}
		return seo.Scan{}, false
	}
	return scan, true
}

func (s *Server) enqueueScan(ctx context.Context, params seo.ScanParameters) (string, error) {
	scanID, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate scan id: %w", err)
	}
	scan := seo.Scan{
		ID:         scanID,
		Status:     seo.ScanStatusQueued,
		Submitted:  s.clock.Now(),
		Parameters: params,
	}
	if err := s.store.CreateScan(ctx, scan); err != nil {
		return "", fmt.Errorf("create scan: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	if err := s.dispatcher.Enqueue(queueCtx, pipeline.ScanJob{ScanID: scanID}); err != nil {
		return "", fmt.Errorf("enqueue scan: %w", err)
	}
	return scanID, nil
}

func (s *Server) toScanParameters(req submitScanRequest) (seo.ScanParameters, error) {
	siteURL := req.SiteURL
	if siteURL == "" {
		siteURL = s.cfg.Site.BaseURL
	}
	if siteURL == "" {
		return seo.ScanParameters{}, errors.New("site_url required")
	}
	params := seo.ScanParameters{
		SiteURL:        siteURL,
		SitemapURL:     req.SitemapURL,
		MaxURLs:        valueOrDefault(req.MaxURLs, s.cfg.Sitemap.MaxURLs),
		Concurrency:    valueOrDefault(req.Concurrency, s.cfg.Corpus.Concurrency),
		CollectContent: boolOrDefault(req.CollectContent, true),
		RespectRobots:  boolOrDefault(req.RespectRobots, s.cfg.Corpus.RespectRobots),
		Tags:           req.Tags,
	}
	params.RespectRobotsProvided = req.RespectRobots != nil
	if params.Tags == nil {
		params.Tags = map[string]string{}
	}
	return params, nil
}

type submitScanRequest struct {
	SiteURL        string            `json:"site_url"`
	SitemapURL     string            `json:"sitemap_url"`
	MaxURLs        *int              `json:"max_urls"`
	Concurrency    *int              `json:"concurrency"`
	CollectContent *bool             `json:"collect_content"`
	RespectRobots  *bool             `json:"respect_robots"`
	Tags           map[string]string `json:"tags"`
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func boolOrDefault(ptr *bool, def bool) bool {
	if ptr == nil {
		return def
	}
	return *ptr
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
