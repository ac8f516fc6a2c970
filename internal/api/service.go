package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"romgrab/internal/cache"
	"romgrab/internal/catalog"
	"romgrab/internal/config"
	"romgrab/internal/download"
	"romgrab/internal/history"
	"romgrab/internal/logging"
	"romgrab/internal/metrics"
	"romgrab/internal/mirror"
	"romgrab/internal/search"
)

// Deps are the collaborators a Service is built from. Cache and Ranker are
// optional.
type Deps struct {
	Config     *config.Config
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Catalog    catalog.Catalog
	Cache      *cache.Store
	Ledger     *history.Ledger
	Ranker     download.Ranker
	HTTPClient *http.Client
}

// Service exposes the public operations over one set of collaborators.
type Service struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	cache   *cache.Store
	ledger  *history.Ledger
	engine  *search.Engine
	manager *download.Manager
}

// New wires a Service from prebuilt collaborators.
func New(deps Deps) (*Service, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog client is required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("history ledger is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	ranker := deps.Ranker
	if ranker == nil {
		ranker = mirror.NewSelectorFromConfig(deps.Config, logger, deps.Metrics)
	}

	engine := search.NewEngine(deps.Catalog, deps.Cache, deps.Config, search.WithLogger(logger))
	opts := []download.Option{
		download.WithLogger(logger),
		download.WithMetrics(deps.Metrics),
		download.WithThumbnailCache(deps.Cache),
	}
	if deps.HTTPClient != nil {
		opts = append(opts, download.WithHTTPClient(deps.HTTPClient))
	}
	manager, err := download.NewManager(deps.Config, engine, ranker, deps.Ledger, opts...)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:     deps.Config,
		logger:  logger,
		metrics: deps.Metrics,
		cache:   deps.Cache,
		ledger:  deps.Ledger,
		engine:  engine,
		manager: manager,
	}, nil
}

// Open builds every collaborator from configuration. The caller owns the
// returned Service and must Close it.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	m := metrics.New()
	client, err := catalog.NewFromConfig(cfg, logger, m)
	if err != nil {
		return nil, fmt.Errorf("create catalog client: %w", err)
	}
	store, err := cache.Open(ctx, cfg, logger, m)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	ledger, err := history.OpenFromConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open history: %w", err)
	}

	svc, err := New(Deps{
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
		Catalog: client,
		Cache:   store,
		Ledger:  ledger,
	})
	if err != nil {
		_ = ledger.Close()
		_ = store.Close()
		return nil, err
	}
	return svc, nil
}

// Close flushes metrics and releases the cache and ledger.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if path := strings.TrimSpace(s.cfg.Metrics.TextfilePath); path != "" {
		if err := s.metrics.WriteTextfile(path); err != nil {
			errs = append(errs, err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if err := s.ledger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close history: %w", err))
	}
	return errors.Join(errs...)
}

// Config returns the configuration the Service was built with.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// NewSession starts an empty session. Sessions are not shared between
// callers.
func (s *Service) NewSession() *search.Session {
	return search.NewSession()
}

// SearchRequest describes one search.
type SearchRequest struct {
	Query    string
	Platform string
	Region   string
	Page     int
	PageSize int
}

// Search ranks one page and makes it the session's active result set.
func (s *Service) Search(ctx context.Context, sess *search.Session, req SearchRequest) (SearchResponse, error) {
	if sess == nil {
		return SearchResponse{}, fmt.Errorf("session is required")
	}
	rs, err := s.engine.Search(ctx, sess, search.Request{
		Query:    req.Query,
		Platform: req.Platform,
		Region:   req.Region,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return SearchResponse{}, err
	}
	return FromResultSet(sess.ID, rs), nil
}

// DownloadRequest describes one download.
type DownloadRequest struct {
	Ref         string
	Platform    string
	Region      string
	Destination string
	Force       bool
	// Boxart overrides download.include_boxart when set.
	Boxart   *bool
	Progress func(download.Progress)
}

func (s *Service) options(req DownloadRequest) download.Options {
	includeBoxart := s.cfg.Download.IncludeBoxart
	if req.Boxart != nil {
		includeBoxart = *req.Boxart
	}
	return download.Options{
		Platform:      req.Platform,
		Region:        req.Region,
		IncludeBoxart: includeBoxart,
		Destination:   req.Destination,
		Force:         req.Force,
		Progress:      req.Progress,
	}
}

// Download resolves req.Ref and runs the task to completion. When the task
// ran, its result is returned even if it failed.
func (s *Service) Download(ctx context.Context, sess *search.Session, req DownloadRequest) (*TaskResult, error) {
	ref, err := download.ParseRef(req.Ref)
	if err != nil {
		return nil, validationError(err)
	}
	task, err := s.manager.Download(ctx, sess, ref, s.options(req))
	return FromTask(task), err
}

// DownloadBatch runs several references with bounded concurrency. Per-item
// failures are reported in the items; the error is only for unparseable
// references.
func (s *Service) DownloadBatch(ctx context.Context, sess *search.Session, refs []string, req DownloadRequest) ([]BatchItem, error) {
	parsed, err := ParseRefs(refs)
	if err != nil {
		return nil, err
	}
	results := s.manager.DownloadBatch(ctx, sess, parsed, s.options(req))
	return FromBatch(results), nil
}

// DownloadBoxart fetches only the cover art for req.Ref.
func (s *Service) DownloadBoxart(ctx context.Context, sess *search.Session, req DownloadRequest) (*TaskResult, error) {
	ref, err := download.ParseRef(req.Ref)
	if err != nil {
		return nil, validationError(err)
	}
	task, err := s.manager.DownloadBoxart(ctx, sess, ref, s.options(req))
	return FromTask(task), err
}

// Entry looks up one catalog entry by slug.
func (s *Service) Entry(ctx context.Context, slug string) (Entry, error) {
	entry, err := s.engine.Entry(ctx, slug)
	if err != nil {
		return Entry{}, err
	}
	return FromEntry(*entry), nil
}

// Random returns an arbitrary catalog entry.
func (s *Service) Random(ctx context.Context) (Entry, error) {
	entry, err := s.engine.Random(ctx)
	if err != nil {
		return Entry{}, err
	}
	return FromEntry(*entry), nil
}

// Info returns the catalog status document.
func (s *Service) Info(ctx context.Context) (map[string]any, error) {
	info, err := s.engine.Info(ctx)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Platforms lists platform codes sorted by code.
func (s *Service) Platforms(ctx context.Context) ([]Platform, error) {
	platforms, err := s.engine.Platforms(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Platform, 0, len(platforms))
	for _, p := range platforms {
		out = append(out, Platform{Code: p.Code, Name: p.Name, Brand: p.Brand})
	}
	return out, nil
}

// Regions lists region codes sorted by code.
func (s *Service) Regions(ctx context.Context) ([]Region, error) {
	regions, err := s.engine.Regions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Region, 0, len(regions))
	for _, r := range regions {
		out = append(out, Region{Code: r.Code, Name: r.Name})
	}
	return out, nil
}
