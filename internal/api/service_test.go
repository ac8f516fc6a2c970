package api_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/spf13/afero"

	"romgrab/internal/api"
	"romgrab/internal/cache"
	"romgrab/internal/catalog"
	"romgrab/internal/config"
	"romgrab/internal/history"
	"romgrab/internal/services"
	"romgrab/internal/testsupport"
)

type fixture struct {
	cfg     *config.Config
	catalog *testsupport.CatalogServer
	svc     *api.Service
}

func newFixture(t *testing.T, entries ...catalog.RomEntry) *fixture {
	t.Helper()

	server := testsupport.NewCatalogServer(t, entries...)
	cfg := testsupport.NewConfig(t, testsupport.WithCatalogURL(server.URL), testsupport.WithoutBoxart())
	client, err := catalog.NewFromConfig(cfg, nil, nil)
	if err != nil {
		t.Fatalf("catalog.NewFromConfig: %v", err)
	}
	backend, err := cache.NewFSBackend(afero.NewMemMapFs(), "/cache", 0, nil)
	if err != nil {
		t.Fatalf("NewFSBackend: %v", err)
	}
	ledger, err := history.OpenFromConfig(cfg)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	svc, err := api.New(api.Deps{
		Config:  cfg,
		Catalog: client,
		Cache:   cache.New(backend),
		Ledger:  ledger,
	})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return &fixture{cfg: cfg, catalog: server, svc: svc}
}

func TestSearchDownloadAndHistory(t *testing.T) {
	payload := testsupport.Payload(1200, 21)
	live := testsupport.NewMirrorServer(t, payload)
	entry := testsupport.Entry("super-metroid", "Super Metroid", "snes", 1200, testsupport.SHA256(payload),
		live.FileURL("super-metroid.zip"))
	f := newFixture(t, entry)
	ctx := context.Background()
	sess := f.svc.NewSession()

	resp, err := f.svc.Search(ctx, sess, api.SearchRequest{Query: "metroid"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.SessionID != sess.ID || len(resp.Results) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	got := resp.Results[0]
	if got.Index != 1 || got.Entry.Slug != "super-metroid" || got.Entry.SizeBytes != 1200 {
		t.Fatalf("unexpected result %+v", got)
	}

	task, err := f.svc.Download(ctx, sess, api.DownloadRequest{Ref: "#1"})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if task.State != "completed" || task.Boxart != nil {
		t.Fatalf("unexpected task %+v", task)
	}
	if task.Destination != filepath.Join(f.cfg.Paths.ROMDir, "snes", "super-metroid.zip") {
		t.Fatalf("destination = %q", task.Destination)
	}

	records, err := f.svc.QueryHistory(ctx, api.HistoryQuery{})
	if err != nil {
		t.Fatalf("QueryHistory: %v", err)
	}
	if len(records) != 1 || records[0].TaskID != task.ID || records[0].Outcome != "success" {
		t.Fatalf("unexpected history %+v", records)
	}
	failed, err := f.svc.QueryHistory(ctx, api.HistoryQuery{FailedOnly: true})
	if err != nil {
		t.Fatalf("QueryHistory failed-only: %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("expected no failures, got %d", len(failed))
	}

	var buf bytes.Buffer
	n, err := f.svc.ExportHistory(ctx, api.ExportRequest{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("ExportHistory: %v", err)
	}
	if n != 1 {
		t.Fatalf("exported %d rows, want 1", n)
	}
	var rows []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("export is not json: %v\n%s", err, buf.String())
	}
	if len(rows) != 1 || rows[0]["slug"] != "super-metroid" {
		t.Fatalf("unexpected export rows %v", rows)
	}
}

func TestDownloadReportsFailedTask(t *testing.T) {
	entry := testsupport.Entry("ghost", "Ghost", "gba", 100, "", testsupport.DeadURL(t))
	f := newFixture(t, entry)

	task, err := f.svc.Download(context.Background(), f.svc.NewSession(), api.DownloadRequest{Ref: "slug:ghost"})
	if !errors.Is(err, services.ErrMirrorExhausted) {
		t.Fatalf("err = %v, want ErrMirrorExhausted", err)
	}
	if task == nil || task.State != "failed" || task.ErrorKind != "mirror_exhausted" {
		t.Fatalf("unexpected task %+v", task)
	}
}

func TestDownloadRejectsInvalidRef(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Download(context.Background(), f.svc.NewSession(), api.DownloadRequest{Ref: "#0"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestDownloadBatchReportsPerItem(t *testing.T) {
	payload := testsupport.Payload(400, 22)
	live := testsupport.NewMirrorServer(t, payload)
	entry := testsupport.Entry("pong", "Pong", "gba", 400, "", live.FileURL("pong.zip"))
	f := newFixture(t, entry)

	items, err := f.svc.DownloadBatch(context.Background(), f.svc.NewSession(), []string{"slug:pong", "#1"}, api.DownloadRequest{})
	if err != nil {
		t.Fatalf("DownloadBatch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d", len(items))
	}
	if items[0].Task == nil || items[0].Task.State != "completed" {
		t.Fatalf("first item %+v", items[0])
	}
	if items[1].Task != nil || items[1].ErrorKind != "no_active_search" {
		t.Fatalf("second item %+v", items[1])
	}

	if _, err := f.svc.DownloadBatch(context.Background(), f.svc.NewSession(), []string{"ok", ""}, api.DownloadRequest{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation for an empty ref", err)
	}
}

func TestClearCache(t *testing.T) {
	entry := testsupport.Entry("pong", "Pong", "gba", 400, "", "http://unused.invalid/pong.zip")
	f := newFixture(t, entry)
	ctx := context.Background()

	if _, err := f.svc.Search(ctx, f.svc.NewSession(), api.SearchRequest{Query: "pong"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if _, err := f.svc.Platforms(ctx); err != nil {
		t.Fatalf("Platforms: %v", err)
	}

	resp, err := f.svc.ClearCache(ctx, "search-results")
	if err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	if resp.Namespace != "search-results" || resp.Removed != 1 {
		t.Fatalf("unexpected clear response %+v", resp)
	}
	all, err := f.svc.ClearCache(ctx, "")
	if err != nil {
		t.Fatalf("ClearCache all: %v", err)
	}
	if all.Namespace != "all" || all.Removed != 1 {
		t.Fatalf("unexpected clear-all response %+v", all)
	}
	if _, err := f.svc.ClearCache(ctx, "bogus"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCatalogListingsAreCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for range 3 {
		platforms, err := f.svc.Platforms(ctx)
		if err != nil {
			t.Fatalf("Platforms: %v", err)
		}
		if len(platforms) != 3 || platforms[0].Code != "gba" {
			t.Fatalf("unexpected platforms %+v", platforms)
		}
	}
	if calls := f.catalog.Calls("/platforms"); calls != 1 {
		t.Fatalf("platform calls = %d, want 1", calls)
	}

	regions, err := f.svc.Regions(ctx)
	if err != nil {
		t.Fatalf("Regions: %v", err)
	}
	if len(regions) != 3 || regions[0].Code != "eu" {
		t.Fatalf("unexpected regions %+v", regions)
	}
}

func TestRandomAndInfo(t *testing.T) {
	entry := testsupport.Entry("pong", "Pong", "gba", 400, "", "http://unused.invalid/pong.zip")
	f := newFixture(t, entry)
	ctx := context.Background()

	random, err := f.svc.Random(ctx)
	if err != nil {
		t.Fatalf("Random: %v", err)
	}
	if random.Slug != "pong" {
		t.Fatalf("random slug = %q", random.Slug)
	}
	info, err := f.svc.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info["total_entries"] != float64(1) {
		t.Fatalf("unexpected info %v", info)
	}
}

func TestQueryHistoryRejectsUnknownOutcome(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.QueryHistory(context.Background(), api.HistoryQuery{Outcome: "maybe"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestExportHistoryToFile(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "history.csv")

	n, err := f.svc.ExportHistory(context.Background(), api.ExportRequest{Format: "csv", Path: path})
	if err != nil {
		t.Fatalf("ExportHistory: %v", err)
	}
	if n != 0 {
		t.Fatalf("exported %d rows from an empty ledger", n)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), "id,") {
		t.Fatalf("csv export should start with a header, got %q", data)
	}
	if _, err := f.svc.ExportHistory(context.Background(), api.ExportRequest{Format: "xml", Path: path}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := api.New(api.Deps{}); err == nil {
		t.Fatal("expected error without config")
	}
	cfg := testsupport.NewConfig(t)
	if _, err := api.New(api.Deps{Config: cfg}); err == nil {
		t.Fatal("expected error without catalog")
	}
}
