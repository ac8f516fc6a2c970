package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"romgrab/internal/config"
	"romgrab/internal/logging"
	"romgrab/internal/metrics"
	"romgrab/internal/services"
)

// Status is the probe outcome for one host.
type Status string

const (
	StatusReachable   Status = "reachable"
	StatusUnreachable Status = "unreachable"
	StatusTimeout     Status = "timeout"
)

const maxConcurrentProbes = 8

// Candidate is one probed download URL.
type Candidate struct {
	URL      string
	Host     string
	Position int
	Status   Status
	// Latency is the time to the response headers.
	Latency time.Duration
	// Throughput is the probe transfer rate in bytes per second.
	Throughput    float64
	AcceptsRanges bool
	// Size is the full file size reported by the host, or -1 when unknown.
	Size int64
	Err  error
}

// Reachable reports whether the probe succeeded.
func (c Candidate) Reachable() bool { return c.Status == StatusReachable }

// Selector probes and orders candidate hosts.
type Selector struct {
	client     *http.Client
	timeout    time.Duration
	probeBytes int64
	userAgent  string
	logger     *slog.Logger
	metrics    *metrics.Metrics
	preferred  map[string]int
}

// Option configures a Selector.
type Option func(*Selector)

func WithHTTPClient(client *http.Client) Option {
	return func(s *Selector) {
		if client != nil {
			s.client = client
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Selector) {
		s.logger = logging.NewComponentLogger(logger, "mirror")
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Selector) {
		s.metrics = m
	}
}

// WithPreferredHosts promotes reachable hosts named in hosts, in the given
// order, ahead of faster unlisted ones. Entries match either the bare host
// name or host:port.
func WithPreferredHosts(hosts []string) Option {
	return func(s *Selector) {
		s.preferred = make(map[string]int, len(hosts))
		for _, h := range hosts {
			h = strings.ToLower(strings.TrimSpace(h))
			if _, ok := s.preferred[h]; h != "" && !ok {
				s.preferred[h] = len(s.preferred)
			}
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(s *Selector) {
		if ua = strings.TrimSpace(ua); ua != "" {
			s.userAgent = ua
		}
	}
}

// NewSelector creates a selector that fetches probeBytes from each host
// within timeout.
func NewSelector(timeout time.Duration, probeBytes int64, opts ...Option) *Selector {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if probeBytes <= 0 {
		probeBytes = 64 << 10
	}
	s := &Selector{
		client:     &http.Client{},
		timeout:    timeout,
		probeBytes: probeBytes,
		userAgent:  "romgrab",
		logger:     logging.NewComponentLogger(nil, "mirror"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSelectorFromConfig uses the [download] probe settings.
func NewSelectorFromConfig(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Selector {
	return NewSelector(cfg.ProbeTimeout(), cfg.Download.ProbeBytes,
		WithLogger(logger),
		WithMetrics(m),
		WithUserAgent(cfg.Catalog.UserAgent),
		WithPreferredHosts(cfg.Download.PreferredHosts),
	)
}

// Rank probes every host concurrently. Reachable hosts come first: preferred
// hosts in preference order, then the rest by throughput (ties keep input
// order). Unreachable and timed-out hosts follow
// in input order so callers can still try them last. The only error is
// cancellation of ctx.
func (s *Selector) Rank(ctx context.Context, hosts []string) ([]Candidate, error) {
	candidates := make([]Candidate, len(hosts))
	var g errgroup.Group
	g.SetLimit(maxConcurrentProbes)
	for i, host := range hosts {
		g.Go(func() error {
			candidates[i] = s.probe(ctx, i, host)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, services.Wrap(services.ErrCancelled, "mirror", "rank", "probing cancelled", err)
	}

	ranked := make([]Candidate, 0, len(candidates))
	var fallback []Candidate
	for _, c := range candidates {
		s.metrics.MirrorProbe(string(c.Status))
		if c.Reachable() {
			ranked = append(ranked, c)
		} else {
			fallback = append(fallback, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := s.preference(ranked[i].URL), s.preference(ranked[j].URL)
		if pi != pj {
			return pi < pj
		}
		return ranked[i].Throughput > ranked[j].Throughput
	})
	ranked = append(ranked, fallback...)

	s.logger.Debug("mirrors ranked",
		logging.Int("hosts", len(hosts)),
		logging.Int("reachable", len(ranked)-len(fallback)),
	)
	return ranked, nil
}

// preference is the host's index in the preferred list, or len(list) when it
// is not listed.
func (s *Selector) preference(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return len(s.preferred)
	}
	if i, ok := s.preferred[strings.ToLower(u.Host)]; ok {
		return i
	}
	if i, ok := s.preferred[strings.ToLower(u.Hostname())]; ok {
		return i
	}
	return len(s.preferred)
}

func (s *Selector) probe(ctx context.Context, position int, rawURL string) Candidate {
	c := Candidate{URL: rawURL, Host: hostOf(rawURL), Position: position, Size: -1}

	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		c.Status, c.Err = StatusUnreachable, err
		return c
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", s.probeBytes-1))
	req.Header.Set("User-Agent", s.userAgent)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return s.failed(ctx, c, err)
	}
	defer resp.Body.Close()
	c.Latency = time.Since(start)

	switch resp.StatusCode {
	case http.StatusPartialContent:
		c.AcceptsRanges = true
		c.Size = totalFromContentRange(resp.Header.Get("Content-Range"))
	case http.StatusOK:
		c.AcceptsRanges = strings.EqualFold(resp.Header.Get("Accept-Ranges"), "bytes")
		c.Size = resp.ContentLength
	case http.StatusRequestedRangeNotSatisfiable:
		// Empty files cannot satisfy any range.
		c.Status = StatusReachable
		c.AcceptsRanges = true
		c.Size = totalFromContentRange(resp.Header.Get("Content-Range"))
		return c
	default:
		c.Status = StatusUnreachable
		c.Err = fmt.Errorf("probe %s: http %d", c.Host, resp.StatusCode)
		return c
	}

	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, s.probeBytes))
	if err != nil {
		return s.failed(ctx, c, err)
	}
	elapsed := max(time.Since(start), time.Microsecond)
	c.Status = StatusReachable
	c.Throughput = float64(n) / elapsed.Seconds()
	return c
}

func (s *Selector) failed(parent context.Context, c Candidate, err error) Candidate {
	c.Err = err
	c.Status = StatusUnreachable
	if parent.Err() == nil && isTimeout(err) {
		c.Status = StatusTimeout
	}
	s.logger.Debug("mirror probe failed",
		logging.String("host", c.Host),
		logging.String("status", string(c.Status)),
		logging.Error(err),
	)
	return c
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

// totalFromContentRange parses "bytes 0-99/1234" and returns 1234, or -1.
func totalFromContentRange(value string) int64 {
	idx := strings.LastIndexByte(value, '/')
	if idx < 0 {
		return -1
	}
	total, err := strconv.ParseInt(strings.TrimSpace(value[idx+1:]), 10, 64)
	if err != nil {
		return -1
	}
	return total
}
