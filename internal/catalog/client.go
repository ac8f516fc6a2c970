package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"romgrab/internal/config"
	"romgrab/internal/logging"
	"romgrab/internal/metrics"
	"romgrab/internal/services"
)

// Catalog defines the catalog operations used by the search engine and the
// download manager.
type Catalog interface {
	Search(ctx context.Context, req SearchRequest) (*SearchPage, error)
	Entry(ctx context.Context, slug string) (*RomEntry, error)
	EntriesByID(ctx context.Context, romID string) ([]RomEntry, error)
	Random(ctx context.Context) (*RomEntry, error)
	Platforms(ctx context.Context) ([]Platform, error)
	Regions(ctx context.Context) ([]Region, error)
	Info(ctx context.Context) (DatabaseInfo, error)
}

// Client provides access to the catalog API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[struct{}]
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

var _ Catalog = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetry sets how many times a transient failure is retried and the base
// delay between attempts (scaled linearly by attempt number).
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max(maxRetries, 0)
		c.retryDelay = max(delay, 0)
	}
}

// WithRateLimit paces requests; rps <= 0 disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithBreaker opens the circuit after threshold consecutive failures and
// probes again after cooldown. A threshold of 0 disables the breaker.
func WithBreaker(threshold int, cooldown time.Duration) Option {
	return func(c *Client) {
		if threshold <= 0 {
			c.breaker = nil
			return
		}
		c.breaker = newBreaker(uint32(threshold), cooldown, c)
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "catalog")
	}
}

// WithMetrics attaches request counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a catalog client.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("catalog base url required")
	}
	client := &Client{
		baseURL:    baseURL,
		userAgent:  "romgrab/dev",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		maxRetries: 3,
		retryDelay: time.Second,
		logger:     logging.NewComponentLogger(nil, "catalog"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// NewFromConfig creates a client using the [catalog] settings.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("catalog: config is required")
	}
	return New(cfg.Catalog.BaseURL,
		WithLogger(logger),
		WithMetrics(m),
		WithHTTPClient(&http.Client{Timeout: cfg.CatalogTimeout()}),
		WithRetry(cfg.Catalog.MaxRetries, cfg.CatalogRetryDelay()),
		WithRateLimit(cfg.Catalog.RequestsPerSecond),
		WithBreaker(cfg.Catalog.BreakerFailureThreshold, cfg.BreakerCooldown()),
		WithUserAgent(cfg.Catalog.UserAgent),
	)
}

type envelope[T any] struct {
	Info map[string]any `json:"info"`
	Data T              `json:"data"`
}

type searchBody struct {
	SearchKey  string   `json:"search_key,omitempty"`
	Platforms  []string `json:"platforms,omitempty"`
	Regions    []string `json:"regions,omitempty"`
	RomID      string   `json:"rom_id,omitempty"`
	MaxResults int      `json:"max_results"`
	Page       int      `json:"page"`
}

// Search requests one catalog page.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchPage, error) {
	body := searchBody{
		SearchKey:  strings.TrimSpace(req.Query),
		RomID:      strings.TrimSpace(req.RomID),
		MaxResults: max(req.PageSize, 1),
		Page:       max(req.Page, 1),
	}
	if body.SearchKey == "" && body.RomID == "" {
		return nil, services.Wrap(services.ErrValidation, "catalog", "search", "query must not be empty", nil)
	}
	if p := strings.TrimSpace(req.Platform); p != "" {
		body.Platforms = []string{p}
	}
	if r := strings.TrimSpace(req.Region); r != "" {
		body.Regions = []string{r}
	}

	var payload envelope[SearchPage]
	if err := c.do(ctx, "search", http.MethodPost, "/search", body, &payload); err != nil {
		return nil, err
	}
	page := payload.Data
	if page.Page == 0 {
		page.Page = body.Page
	}
	if page.Results == nil {
		page.Results = []RomEntry{}
	}
	return &page, nil
}

// Entry fetches a single entry by slug.
func (c *Client) Entry(ctx context.Context, slug string) (*RomEntry, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, services.Wrap(services.ErrValidation, "catalog", "entry", "slug must not be empty", nil)
	}
	var payload envelope[struct {
		Entry *RomEntry `json:"entry"`
	}]
	if err := c.do(ctx, "entry", http.MethodPost, "/entry", map[string]string{"slug": slug}, &payload); err != nil {
		return nil, err
	}
	entry := payload.Data.Entry
	if entry == nil || entry.Slug == "" {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "entry", fmt.Sprintf("no entry with slug %q", slug), nil)
	}
	return entry, nil
}

// EntriesByID returns every entry carrying the catalog ROM identifier. The
// same identifier can appear once per platform variant.
func (c *Client) EntriesByID(ctx context.Context, romID string) ([]RomEntry, error) {
	romID = strings.TrimSpace(romID)
	if romID == "" {
		return nil, services.Wrap(services.ErrValidation, "catalog", "entry", "rom id must not be empty", nil)
	}
	page, err := c.Search(ctx, SearchRequest{RomID: romID, PageSize: 100, Page: 1})
	if err != nil {
		return nil, err
	}
	matches := make([]RomEntry, 0, len(page.Results))
	for _, entry := range page.Results {
		if strings.EqualFold(entry.ID, romID) {
			matches = append(matches, entry)
		}
	}
	if len(matches) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "entry", fmt.Sprintf("no entry with id %q", romID), nil)
	}
	return matches, nil
}

// Random returns an arbitrary catalog entry.
func (c *Client) Random(ctx context.Context) (*RomEntry, error) {
	var payload envelope[struct {
		Entry *RomEntry `json:"entry"`
	}]
	if err := c.do(ctx, "random", http.MethodGet, "/entry/random", nil, &payload); err != nil {
		return nil, err
	}
	if payload.Data.Entry == nil || payload.Data.Entry.Slug == "" {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "random", "catalog returned no entry", nil)
	}
	return payload.Data.Entry, nil
}

// Platforms lists platform codes sorted by code.
func (c *Client) Platforms(ctx context.Context) ([]Platform, error) {
	var payload envelope[struct {
		Platforms map[string]Platform `json:"platforms"`
	}]
	if err := c.do(ctx, "platforms", http.MethodGet, "/platforms", nil, &payload); err != nil {
		return nil, err
	}
	out := make([]Platform, 0, len(payload.Data.Platforms))
	for code, platform := range payload.Data.Platforms {
		platform.Code = code
		out = append(out, platform)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Regions lists region codes sorted by code.
func (c *Client) Regions(ctx context.Context) ([]Region, error) {
	var payload envelope[struct {
		Regions map[string]string `json:"regions"`
	}]
	if err := c.do(ctx, "regions", http.MethodGet, "/regions", nil, &payload); err != nil {
		return nil, err
	}
	out := make([]Region, 0, len(payload.Data.Regions))
	for code, name := range payload.Data.Regions {
		out = append(out, Region{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Info returns the catalog status document.
func (c *Client) Info(ctx context.Context) (DatabaseInfo, error) {
	var payload envelope[DatabaseInfo]
	if err := c.do(ctx, "info", http.MethodGet, "/info", nil, &payload); err != nil {
		return nil, err
	}
	if payload.Data == nil {
		return DatabaseInfo{}, nil
	}
	return payload.Data, nil
}

// do runs one logical request with pacing, breaker protection, and retries.
func (c *Client) do(ctx context.Context, endpoint, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return services.Wrap(services.ErrValidation, "catalog", endpoint, "encode request", err)
		}
		payload = encoded
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return classifyContext(ctx, endpoint, err)
		}

		start := time.Now()
		err := c.execute(func() error {
			return c.roundTrip(ctx, method, path, payload, out)
		})
		latency := time.Since(start)

		switch {
		case err == nil:
			c.metrics.CatalogRequest(endpoint, "success", latency)
			c.logger.Debug("catalog request complete",
				logging.String("endpoint", endpoint),
				logging.Duration("latency", latency),
				logging.Int("attempt", attempt+1),
			)
			return nil
		case errors.Is(err, services.ErrNotFound):
			c.metrics.CatalogRequest(endpoint, "not_found", latency)
			return services.Wrap(services.ErrNotFound, "catalog", endpoint, "", err)
		case ctx.Err() != nil:
			c.metrics.CatalogRequest(endpoint, "cancelled", latency)
			return classifyContext(ctx, endpoint, err)
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			c.metrics.CatalogRequest(endpoint, "rejected", latency)
			return services.Wrap(services.ErrUpstreamUnavailable, "catalog", endpoint, "circuit open", err)
		}

		c.metrics.CatalogRequest(endpoint, "failure", latency)
		if !IsRetriable(err) || attempt >= c.maxRetries {
			logging.WarnWithContext(c.logger, "catalog request failed", "catalog_request_failed",
				logging.String("endpoint", endpoint),
				logging.Int("attempts", attempt+1),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check network connectivity or catalog.base_url"),
				logging.String(logging.FieldImpact, "catalog data unavailable for this operation"),
			)
			return services.Wrap(services.ErrUpstreamUnavailable, "catalog", endpoint,
				fmt.Sprintf("failed after %d attempt(s)", attempt+1), err)
		}

		delay := c.retryDelay * time.Duration(attempt+1)
		c.logger.Info("retrying catalog request",
			logging.String("endpoint", endpoint),
			logging.Int("attempt", attempt+1),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := SleepWithContext(ctx, delay); err != nil {
			return classifyContext(ctx, endpoint, err)
		}
	}
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s returned 404", services.ErrNotFound, path)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Path: path, Body: strings.TrimSpace(string(snippet))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func classifyContext(ctx context.Context, endpoint string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return services.Wrap(services.ErrCancelled, "catalog", endpoint, "", err)
	}
	return services.Wrap(services.ErrUpstreamUnavailable, "catalog", endpoint, "deadline exceeded", err)
}

// StatusError reports an unexpected HTTP status from the catalog.
type StatusError struct {
	Code int
	Path string
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned %d", e.Path, e.Code)
	}
	return fmt.Sprintf("%s returned %d: %s", e.Path, e.Code, e.Body)
}
