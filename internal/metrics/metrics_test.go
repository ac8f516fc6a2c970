package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAccumulate(t *testing.T) {
	m := New()
	m.CacheLookup("rom-info", "hit")
	m.CacheLookup("rom-info", "hit")
	m.CacheLookup("rom-info", "miss")
	m.CatalogRequest("search", "success", 20*time.Millisecond)
	m.MirrorProbe("timeout")
	m.Download("rom", "success", 3, 1024)

	if got := testutil.ToFloat64(m.cacheLookups.WithLabelValues("rom-info", "hit")); got != 2 {
		t.Fatalf("cache hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.catalogRequests.WithLabelValues("search", "success")); got != 1 {
		t.Fatalf("catalog requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.mirrorProbes.WithLabelValues("timeout")); got != 1 {
		t.Fatalf("probes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.downloadAttempts); got != 3 {
		t.Fatalf("attempts = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.downloadBytes); got != 1024 {
		t.Fatalf("bytes = %v, want 1024", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.CacheLookup("x", "hit")
	m.CatalogRequest("x", "failure", time.Second)
	m.MirrorProbe("reachable")
	m.Download("rom", "failure", 1, 0)
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Fatalf("nil WriteTextfile: %v", err)
	}
	if m.Registry() != nil {
		t.Fatal("expected nil registry")
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Download("boxart", "failure", 2, 0)
	path := filepath.Join(t.TempDir(), "romgrab.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `romgrab_downloads_total{kind="boxart",outcome="failure"} 1`) {
		t.Fatalf("missing download counter in %s", data)
	}
}
