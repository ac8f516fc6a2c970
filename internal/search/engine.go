package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"romgrab/internal/cache"
	"romgrab/internal/catalog"
	"romgrab/internal/config"
	"romgrab/internal/logging"
	"romgrab/internal/services"
)

// Engine answers catalog reads through the response cache and ranks search
// results.
type Engine struct {
	catalog          catalog.Catalog
	store            *cache.Store
	cfg              *config.Config
	scorer           Scorer
	now              func() time.Time
	logger           *slog.Logger
	defaultPageSize  int
	upstreamPageSize int
}

// Option configures an Engine.
type Option func(*Engine)

// WithScorer replaces the relevance policy.
func WithScorer(s Scorer) Option {
	return func(e *Engine) {
		if s != nil {
			e.scorer = s
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.NewComponentLogger(logger, "search")
	}
}

// NewEngine wires a catalog and cache store. A nil store disables caching.
func NewEngine(cat catalog.Catalog, store *cache.Store, cfg *config.Config, opts ...Option) *Engine {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	e := &Engine{
		catalog:          cat,
		store:            store,
		cfg:              cfg,
		scorer:           NewScorerFromConfig(cfg.Search),
		now:              time.Now,
		logger:           logging.NewComponentLogger(nil, "search"),
		defaultPageSize:  cfg.Search.MaxResultsPerPage,
		upstreamPageSize: cfg.Catalog.UpstreamPageSize,
	}
	if e.defaultPageSize <= 0 {
		e.defaultPageSize = config.MaxResultsPerPage
	}
	if e.upstreamPageSize <= 0 || e.upstreamPageSize > config.MaxResultsPerPage {
		e.upstreamPageSize = config.MaxResultsPerPage
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search ranks one page of results for req and installs the ranked set as
// the session's active result set. The page size is clamped to
// [1, config.MaxResultsPerPage] whatever the caller asks for.
func (e *Engine) Search(ctx context.Context, sess *Session, req Request) (*ResultSet, error) {
	req = req.normalized(e.defaultPageSize, config.MaxResultsPerPage)
	if req.Query == "" {
		return nil, services.Wrap(services.ErrValidation, "search", "search", "query must not be empty", nil)
	}
	if sess != nil {
		ctx = services.WithSessionID(ctx, sess.ID)
	}

	entries, total, err := e.collect(ctx, req)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		if !entry.OnPlatform(req.Platform) || !entry.HasRegion(req.Region) {
			continue
		}
		results = append(results, Result{Entry: entry, Score: e.scorer.Score(req.Query, entry)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	for i := range results {
		results[i].Index = i + 1
	}

	rs := &ResultSet{
		Query:      req.Query,
		Platform:   req.Platform,
		Region:     req.Region,
		Page:       req.Page,
		PageSize:   req.PageSize,
		Total:      total,
		TotalPages: (total + req.PageSize - 1) / req.PageSize,
		Results:    results,
		CreatedAt:  e.now(),
	}
	if sess != nil {
		sess.Replace(rs)
	}
	logging.WithContext(ctx, e.logger).Debug("search ranked",
		logging.String("query", req.Query),
		logging.Int("page", req.Page),
		logging.Int("results", len(results)),
		logging.Int("total", total),
	)
	return rs, nil
}

// collect returns the catalog-ordered entries for the requested page and the
// catalog's total result count. The requested window is assembled from as
// many upstream pages as it spans; the first page is fetched alone to learn
// the total, the rest concurrently.
func (e *Engine) collect(ctx context.Context, req Request) ([]catalog.RomEntry, int, error) {
	up := e.upstreamPageSize
	start := (req.Page - 1) * req.PageSize
	end := start + req.PageSize
	first := start/up + 1
	last := (end-1)/up + 1

	head, err := e.fetchPage(ctx, req, first, up)
	if err != nil {
		return nil, 0, err
	}
	if head.TotalPages > 0 && last > head.TotalPages {
		last = max(first, head.TotalPages)
	}

	pages := make([]*catalog.SearchPage, last-first+1)
	pages[0] = head
	if len(pages) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for upstream := first + 1; upstream <= last; upstream++ {
			slot := upstream - first
			g.Go(func() error {
				page, err := e.fetchPage(gctx, req, upstream, up)
				if err != nil {
					return err
				}
				pages[slot] = page
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, 0, err
		}
	}

	var combined []catalog.RomEntry
	for _, page := range pages {
		combined = append(combined, page.Results...)
	}
	offset := (first - 1) * up
	lo := min(start-offset, len(combined))
	hi := min(end-offset, len(combined))
	return combined[lo:hi], head.Total, nil
}

func (e *Engine) fetchPage(ctx context.Context, req Request, page, size int) (*catalog.SearchPage, error) {
	return cachedJSON(ctx, e, cache.NamespaceSearch, pageKey(req, page, size), func(ctx context.Context) (*catalog.SearchPage, error) {
		return e.catalog.Search(ctx, catalog.SearchRequest{
			Query:    req.Query,
			Platform: req.Platform,
			Region:   req.Region,
			Page:     page,
			PageSize: size,
		})
	})
}

// Entry returns the catalog entry for a slug.
func (e *Engine) Entry(ctx context.Context, slug string) (*catalog.RomEntry, error) {
	slug = strings.TrimSpace(slug)
	return cachedJSON(ctx, e, cache.NamespaceROMInfo, "slug:"+strings.ToLower(slug), func(ctx context.Context) (*catalog.RomEntry, error) {
		return e.catalog.Entry(ctx, slug)
	})
}

// EntriesByID returns every variant sharing a catalog identifier.
func (e *Engine) EntriesByID(ctx context.Context, romID string) ([]catalog.RomEntry, error) {
	romID = strings.TrimSpace(romID)
	return cachedJSON(ctx, e, cache.NamespaceROMInfo, "id:"+strings.ToLower(romID), func(ctx context.Context) ([]catalog.RomEntry, error) {
		return e.catalog.EntriesByID(ctx, romID)
	})
}

func (e *Engine) Platforms(ctx context.Context) ([]catalog.Platform, error) {
	return cachedJSON(ctx, e, cache.NamespacePlatforms, "all", e.catalog.Platforms)
}

func (e *Engine) Regions(ctx context.Context) ([]catalog.Region, error) {
	return cachedJSON(ctx, e, cache.NamespaceRegions, "all", e.catalog.Regions)
}

// Random is never cached.
func (e *Engine) Random(ctx context.Context) (*catalog.RomEntry, error) {
	return e.catalog.Random(ctx)
}

func (e *Engine) Info(ctx context.Context) (catalog.DatabaseInfo, error) {
	return e.catalog.Info(ctx)
}

// cachedJSON runs fetch through the cache, storing its JSON encoding. A
// payload that no longer decodes is treated like a miss.
func cachedJSON[T any](ctx context.Context, e *Engine, ns cache.Namespace, key string, fetch func(context.Context) (T, error)) (T, error) {
	if e.store == nil {
		return fetch(ctx)
	}
	data, err := e.store.GetOrFetch(ctx, ns, key, e.cfg.CacheTTL(string(ns)), func(ctx context.Context) ([]byte, error) {
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(value)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		e.logger.Debug("cached payload did not decode; refetching",
			logging.String("namespace", string(ns)),
			logging.Error(err),
		)
		return fetch(ctx)
	}
	return out, nil
}
