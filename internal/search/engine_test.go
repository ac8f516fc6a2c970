package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"romgrab/internal/cache"
	"romgrab/internal/catalog"
	"romgrab/internal/services"
	"romgrab/internal/testsupport"
)

type fakeCatalog struct {
	mu      sync.Mutex
	entries []catalog.RomEntry
	calls   map[string]int
	err     error
}

func newFakeCatalog(entries ...catalog.RomEntry) *fakeCatalog {
	return &fakeCatalog{entries: entries, calls: make(map[string]int)}
}

func (f *fakeCatalog) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.err
}

func (f *fakeCatalog) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeCatalog) Search(_ context.Context, req catalog.SearchRequest) (*catalog.SearchPage, error) {
	if err := f.record(fmt.Sprintf("search:%d", req.Page)); err != nil {
		return nil, err
	}
	var matched []catalog.RomEntry
	for _, entry := range f.entries {
		if entry.OnPlatform(req.Platform) && entry.HasRegion(req.Region) {
			matched = append(matched, entry)
		}
	}
	start := min((req.Page-1)*req.PageSize, len(matched))
	end := min(start+req.PageSize, len(matched))
	return &catalog.SearchPage{
		Results:    matched[start:end],
		Total:      len(matched),
		Page:       req.Page,
		TotalPages: (len(matched) + req.PageSize - 1) / req.PageSize,
	}, nil
}

func (f *fakeCatalog) Entry(_ context.Context, slug string) (*catalog.RomEntry, error) {
	if err := f.record("entry"); err != nil {
		return nil, err
	}
	for _, entry := range f.entries {
		if entry.Slug == slug {
			return &entry, nil
		}
	}
	return nil, services.Wrap(services.ErrNotFound, "fake", "entry", slug, nil)
}

func (f *fakeCatalog) EntriesByID(_ context.Context, id string) ([]catalog.RomEntry, error) {
	if err := f.record("id"); err != nil {
		return nil, err
	}
	var out []catalog.RomEntry
	for _, entry := range f.entries {
		if entry.ID == id {
			out = append(out, entry)
		}
	}
	if len(out) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "fake", "id", id, nil)
	}
	return out, nil
}

func (f *fakeCatalog) Random(context.Context) (*catalog.RomEntry, error) {
	if err := f.record("random"); err != nil {
		return nil, err
	}
	return &f.entries[0], nil
}

func (f *fakeCatalog) Platforms(context.Context) ([]catalog.Platform, error) {
	if err := f.record("platforms"); err != nil {
		return nil, err
	}
	return []catalog.Platform{{Code: "n64", Name: "Nintendo 64"}}, nil
}

func (f *fakeCatalog) Regions(context.Context) ([]catalog.Region, error) {
	if err := f.record("regions"); err != nil {
		return nil, err
	}
	return []catalog.Region{{Code: "us", Name: "USA"}}, nil
}

func (f *fakeCatalog) Info(context.Context) (catalog.DatabaseInfo, error) {
	return catalog.DatabaseInfo{"total_entries": len(f.entries)}, f.record("info")
}

func entry(slug, title, platform string, regions ...string) catalog.RomEntry {
	if len(regions) == 0 {
		regions = []string{"us"}
	}
	return catalog.RomEntry{ID: slug, Slug: slug, Title: title, Platform: platform, Regions: regions}
}

func newTestEngine(t *testing.T, cat catalog.Catalog, upstreamPageSize int) *Engine {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Catalog.UpstreamPageSize = upstreamPageSize
	backend, err := cache.NewFSBackend(afero.NewMemMapFs(), "/cache", 0, nil)
	if err != nil {
		t.Fatalf("NewFSBackend: %v", err)
	}
	return NewEngine(cat, cache.New(backend), cfg)
}

func marioCatalog() *fakeCatalog {
	return newFakeCatalog(
		entry("smw", "Super Mario World", "snes"),
		entry("mario-kart", "Mario Kart 64", "n64"),
		entry("mario", "Mario", "nes"),
		entry("paper", "Paper Mario (USA) (Rev 1) [b] [!]", "n64"),
		entry("sm64", "Super Mario 64", "n64", "us", "jp"),
	)
}

func TestSearchRespectsPageSizeAndDenseIndices(t *testing.T) {
	engine := newTestEngine(t, marioCatalog(), 50)
	sess := NewSession()

	rs, err := engine.Search(context.Background(), sess, Request{Query: "mario", PageSize: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if rs.Len() != 2 {
		t.Fatalf("results = %d, want 2", rs.Len())
	}
	for i, result := range rs.Results {
		if result.Index != i+1 {
			t.Fatalf("result %d has index %d", i, result.Index)
		}
		if i > 0 && result.Score > rs.Results[i-1].Score {
			t.Fatalf("scores increase at %d: %v > %v", i, result.Score, rs.Results[i-1].Score)
		}
	}
	if rs.Total != 5 || rs.TotalPages != 3 {
		t.Fatalf("total = %d pages = %d", rs.Total, rs.TotalPages)
	}
	if last, ok := sess.Last(); !ok || last != rs {
		t.Fatal("session should hold the latest result set")
	}
}

func TestSearchExactMatchRanksFirst(t *testing.T) {
	engine := newTestEngine(t, marioCatalog(), 50)
	rs, err := engine.Search(context.Background(), NewSession(), Request{Query: "MARIO", PageSize: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	top := rs.Results[0]
	if top.Entry.Slug != "mario" || top.Score != ExactMatchScore {
		t.Fatalf("top = %s (%v), want exact match", top.Entry.Slug, top.Score)
	}
	for _, result := range rs.Results[1:] {
		if result.Score >= ExactMatchScore || result.Score < 0 {
			t.Fatalf("fuzzy score out of range: %v", result.Score)
		}
	}
}

func TestSearchIsDeterministic(t *testing.T) {
	engine := newTestEngine(t, marioCatalog(), 50)
	first, err := engine.Search(context.Background(), nil, Request{Query: "mario 64", PageSize: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	second, err := engine.Search(context.Background(), nil, Request{Query: "mario 64", PageSize: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i := range first.Results {
		a, b := first.Results[i], second.Results[i]
		if a.Entry.Slug != b.Entry.Slug || a.Score != b.Score {
			t.Fatalf("result %d differs: %s/%v vs %s/%v", i, a.Entry.Slug, a.Score, b.Entry.Slug, b.Score)
		}
	}
}

func TestSearchTiesKeepCatalogOrder(t *testing.T) {
	cat := newFakeCatalog(
		entry("a", "Zelda", "snes"),
		entry("b", "Zelda", "n64"),
		entry("c", "Zelda", "gba"),
	)
	engine := newTestEngine(t, cat, 50)
	rs, err := engine.Search(context.Background(), nil, Request{Query: "zelda"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i, want := range []string{"a", "b", "c"} {
		if rs.Results[i].Entry.Slug != want {
			t.Fatalf("position %d = %s, want %s", i, rs.Results[i].Entry.Slug, want)
		}
	}
}

func TestSearchClampsPageSize(t *testing.T) {
	entries := make([]catalog.RomEntry, 150)
	for i := range entries {
		entries[i] = entry(fmt.Sprintf("game-%03d", i), fmt.Sprintf("Game %d", i), "n64")
	}
	engine := newTestEngine(t, newFakeCatalog(entries...), 30)
	rs, err := engine.Search(context.Background(), nil, Request{Query: "game", PageSize: 1000})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if rs.Len() != 100 || rs.PageSize != 100 {
		t.Fatalf("results = %d page size = %d, want 100", rs.Len(), rs.PageSize)
	}
}

func TestSearchSpansUpstreamPagesAndCachesThem(t *testing.T) {
	entries := make([]catalog.RomEntry, 25)
	for i := range entries {
		entries[i] = entry(fmt.Sprintf("g%02d", i), fmt.Sprintf("Game %02d", i), "n64")
	}
	cat := newFakeCatalog(entries...)
	engine := newTestEngine(t, cat, 10)

	rs, err := engine.Search(context.Background(), nil, Request{Query: "game", Page: 2, PageSize: 12})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if rs.Len() != 12 {
		t.Fatalf("results = %d, want 12", rs.Len())
	}
	seen := map[string]bool{}
	for _, r := range rs.Results {
		seen[r.Entry.Slug] = true
	}
	if !seen["g12"] || !seen["g23"] || seen["g11"] || seen["g24"] {
		t.Fatalf("unexpected window: %v", seen)
	}
	for _, page := range []string{"search:2", "search:3"} {
		if cat.count(page) != 1 {
			t.Fatalf("%s called %d times", page, cat.count(page))
		}
	}

	if _, err := engine.Search(context.Background(), nil, Request{Query: "GAME", Page: 2, PageSize: 12}); err != nil {
		t.Fatalf("second Search: %v", err)
	}
	if cat.count("search:2") != 1 || cat.count("search:3") != 1 {
		t.Fatal("repeat search should be served from cache")
	}
}

func TestSearchAppliesFilters(t *testing.T) {
	engine := newTestEngine(t, marioCatalog(), 50)
	rs, err := engine.Search(context.Background(), nil, Request{Query: "mario", Platform: "N64", Region: "jp"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if rs.Len() != 1 || rs.Results[0].Entry.Slug != "sm64" {
		t.Fatalf("unexpected results %+v", rs.Results)
	}
}

func TestSearchReplacesSessionAndPropagatesUpstreamErrors(t *testing.T) {
	cat := marioCatalog()
	engine := newTestEngine(t, cat, 50)
	sess := NewSession()
	if _, err := engine.Search(context.Background(), sess, Request{Query: "mario"}); err != nil {
		t.Fatalf("Search: %v", err)
	}

	cat.err = services.Wrap(services.ErrUpstreamUnavailable, "fake", "search", "down", nil)
	_, err := engine.Search(context.Background(), sess, Request{Query: "zelda"})
	if !errors.Is(err, services.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want upstream unavailable", err)
	}
	last, _ := sess.Last()
	if last.Query != "mario" {
		t.Fatalf("failed search must not replace the session, got %q", last.Query)
	}
}

func TestEngineCachesLookups(t *testing.T) {
	cat := marioCatalog()
	engine := newTestEngine(t, cat, 50)
	ctx := context.Background()

	for range 2 {
		if _, err := engine.Entry(ctx, "sm64"); err != nil {
			t.Fatalf("Entry: %v", err)
		}
		if _, err := engine.Platforms(ctx); err != nil {
			t.Fatalf("Platforms: %v", err)
		}
		if _, err := engine.Regions(ctx); err != nil {
			t.Fatalf("Regions: %v", err)
		}
		if _, err := engine.Random(ctx); err != nil {
			t.Fatalf("Random: %v", err)
		}
	}
	for op, want := range map[string]int{"entry": 1, "platforms": 1, "regions": 1, "random": 2} {
		if got := cat.count(op); got != want {
			t.Fatalf("%s calls = %d, want %d", op, got, want)
		}
	}
	if _, err := engine.Entry(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing entry err = %v", err)
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	engine := newTestEngine(t, marioCatalog(), 50)
	if _, err := engine.Search(context.Background(), nil, Request{Query: "  "}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}
