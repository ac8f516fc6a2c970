package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"romgrab/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	base := []Option{WithRetry(2, time.Millisecond), WithHTTPClient(server.Client())}
	client, err := New(server.URL, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestSearchSendsRequestAndDecodesPage(t *testing.T) {
	var captured searchBody
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Fatalf("unexpected content type %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_, _ = io.WriteString(w, `{"info":{},"data":{"results":[
			{"slug":"super-mario-64-us","rom_id":"NUS-NSME","title":"Super Mario 64","platform":"n64","regions":["us"],
			 "links":[{"name":"Super Mario 64","type":"Game","format":"z64","url":"https://mirror.example/sm64.z64","filename":"Super Mario 64 (USA).z64","host":"Mirror","size":8388608,"size_str":"8 MB"},
			          {"name":"Manual","type":"Document","url":"https://mirror.example/manual.pdf"}]}],
			"current_results":1,"total_results":1,"current_page":2,"total_pages":3}}`)
	})

	page, err := client.Search(context.Background(), SearchRequest{Query: " mario ", Platform: "n64", Region: "us", Page: 2, PageSize: 25})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if captured.SearchKey != "mario" || captured.MaxResults != 25 || captured.Page != 2 {
		t.Fatalf("unexpected request body %+v", captured)
	}
	if len(captured.Platforms) != 1 || captured.Platforms[0] != "n64" || captured.Regions[0] != "us" {
		t.Fatalf("unexpected filters %+v", captured)
	}
	if page.Total != 1 || page.Page != 2 || page.TotalPages != 3 || len(page.Results) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	entry := page.Results[0]
	if entry.ID != "NUS-NSME" || entry.Size() != 8388608 || entry.Format() != "z64" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if urls := entry.HostURLs(); len(urls) != 1 || urls[0] != "https://mirror.example/sm64.z64" {
		t.Fatalf("expected only the game link, got %v", urls)
	}
	if entry.FileName() != "Super Mario 64 (USA).z64" {
		t.Fatalf("unexpected file name %q", entry.FileName())
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := client.Search(context.Background(), SearchRequest{Query: "   "})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEntryNotFound(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"404", func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) }},
		{"empty entry", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"info":{},"data":{"entry":{}}}`)
		}},
		{"null entry", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"info":{},"data":{"entry":null}}`)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			_, err := client.Entry(context.Background(), "does-not-exist")
			if !errors.Is(err, services.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	}
}

func TestRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"entry":{"slug":"tetris","title":"Tetris","platform":"gb"}}}`)
	})

	entry, err := client.Entry(context.Background(), "tetris")
	if err != nil {
		t.Fatalf("Entry returned error: %v", err)
	}
	if entry.Title != "Tetris" || calls.Load() != 3 {
		t.Fatalf("unexpected result %+v after %d calls", entry, calls.Load())
	}
}

func TestExhaustedRetriesReportUpstreamUnavailable(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := client.Platforms(context.Background())
	if !errors.Is(err, services.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 1 attempt + 2 retries, got %d", calls.Load())
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})
	_, err := client.Regions(context.Background())
	if !errors.Is(err, services.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, WithRetry(0, 0), WithBreaker(2, time.Minute))

	for i := 0; i < 2; i++ {
		if _, err := client.Info(context.Background()); !errors.Is(err, services.ErrUpstreamUnavailable) {
			t.Fatalf("call %d: expected upstream unavailable, got %v", i, err)
		}
	}
	_, err := client.Info(context.Background())
	if !errors.Is(err, services.ErrUpstreamUnavailable) || !strings.Contains(err.Error(), "circuit open") {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected breaker to short-circuit third call, server saw %d", calls.Load())
	}
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}, WithBreaker(1, time.Minute))
	for i := 0; i < 3; i++ {
		if _, err := client.Entry(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("call %d: expected not found, got %v", i, err)
		}
	}
}

func TestCancelledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithRetry(5, time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Random(ctx)
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancelled, got %v", err)
	}
}

func TestPlatformsRegionsAndEntriesByID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/platforms":
			_, _ = io.WriteString(w, `{"data":{"platforms":{"snes":{"brand":"Nintendo","name":"Super Nintendo"},"gba":{"brand":"Nintendo","name":"Game Boy Advance"}}}}`)
		case "/regions":
			_, _ = io.WriteString(w, `{"data":{"regions":{"us":"USA","eu":"Europe"}}}`)
		case "/search":
			_, _ = io.WriteString(w, `{"data":{"results":[
				{"slug":"a","rom_id":"X1","title":"A","platform":"snes"},
				{"slug":"b","rom_id":"X2","title":"B","platform":"snes"},
				{"slug":"c","rom_id":"x1","title":"C","platform":"gba"}],"total_results":3,"current_page":1,"total_pages":1}}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	platforms, err := client.Platforms(ctx)
	if err != nil {
		t.Fatalf("Platforms: %v", err)
	}
	if len(platforms) != 2 || platforms[0].Code != "gba" || platforms[1].Name != "Super Nintendo" {
		t.Fatalf("unexpected platforms %+v", platforms)
	}
	regions, err := client.Regions(ctx)
	if err != nil {
		t.Fatalf("Regions: %v", err)
	}
	if len(regions) != 2 || regions[0].Code != "eu" || regions[1].Name != "USA" {
		t.Fatalf("unexpected regions %+v", regions)
	}
	matches, err := client.EntriesByID(ctx, "X1")
	if err != nil {
		t.Fatalf("EntriesByID: %v", err)
	}
	if len(matches) != 2 || matches[0].Slug != "a" || matches[1].Slug != "c" {
		t.Fatalf("unexpected matches %+v", matches)
	}
	if _, err := client.EntriesByID(ctx, "nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&StatusError{Code: 503}, true},
		{&StatusError{Code: 429}, true},
		{&StatusError{Code: 403}, false},
		{context.DeadlineExceeded, true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("decode response: invalid character"), false},
	}
	for _, tt := range tests {
		if got := IsRetriable(tt.err); got != tt.want {
			t.Errorf("IsRetriable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
