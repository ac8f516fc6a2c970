package preflight

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"romgrab/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCatalog_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info" || r.Header.Get("User-Agent") != "romgrab-test" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckCatalog(context.Background(), srv.URL+"/", "romgrab-test")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckCatalog_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	result := CheckCatalog(context.Background(), srv.URL, "")
	if result.Passed {
		t.Fatal("expected failure when rate limited")
	}
	if result.Detail != "rate limited (429)" {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckCatalog_MissingURL(t *testing.T) {
	result := CheckCatalog(context.Background(), "  ", "")
	if result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestCheckRedis_Unreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	result := CheckRedis(context.Background(), addr, 0)
	if result.Passed {
		t.Fatal("expected failure for closed port")
	}
}

func TestRunAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ROMDir = filepath.Join(base, "roms")
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.HistoryDir = filepath.Join(base, "history")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Catalog.BaseURL = srv.URL

	results := RunAll(context.Background(), &cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if Passed(results) {
		t.Fatal("expected failure before directories exist")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	if err := os.MkdirAll(cfg.Paths.ROMDir, 0o755); err != nil {
		t.Fatal(err)
	}
	results = RunAll(context.Background(), &cfg)
	if !Passed(results) {
		t.Fatalf("expected all checks to pass: %+v", results)
	}

	cfg.Cache.Backend = "redis"
	cfg.Cache.RedisAddr = ""
	if got := len(RunAll(context.Background(), &cfg)); got != 5 {
		t.Fatalf("expected redis check, got %d results", got)
	}
}
