package testsupport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"romgrab/internal/catalog"
)

// CatalogServer is an in-process catalog API serving a fixed entry list.
type CatalogServer struct {
	*httptest.Server

	mu        sync.Mutex
	entries   []catalog.RomEntry
	platforms map[string]catalog.Platform
	regions   map[string]string
	calls     map[string]int
	failWith  int
}

// NewCatalogServer starts a catalog server and registers cleanup.
func NewCatalogServer(t testing.TB, entries ...catalog.RomEntry) *CatalogServer {
	t.Helper()

	s := &CatalogServer{
		entries: entries,
		platforms: map[string]catalog.Platform{
			"n64":  {Name: "Nintendo 64", Brand: "Nintendo"},
			"snes": {Name: "Super Nintendo", Brand: "Nintendo"},
			"gba":  {Name: "Game Boy Advance", Brand: "Nintendo"},
		},
		regions: map[string]string{"us": "USA", "eu": "Europe", "jp": "Japan"},
		calls:   make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /entry", s.handleEntry)
	mux.HandleFunc("GET /entry/random", s.handleRandom)
	mux.HandleFunc("GET /platforms", s.handlePlatforms)
	mux.HandleFunc("GET /regions", s.handleRegions)
	mux.HandleFunc("GET /info", s.handleInfo)
	s.Server = httptest.NewServer(s.count(mux))
	t.Cleanup(s.Close)
	return s
}

// Calls reports how many requests hit path.
func (s *CatalogServer) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// FailWith makes every subsequent request answer with status; 0 restores
// normal service.
func (s *CatalogServer) FailWith(status int) {
	s.mu.Lock()
	s.failWith = status
	s.mu.Unlock()
}

func (s *CatalogServer) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		status := s.failWith
		s.mu.Unlock()
		if status != 0 {
			http.Error(w, "unavailable", status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *CatalogServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SearchKey  string   `json:"search_key"`
		Platforms  []string `json:"platforms"`
		Regions    []string `json:"regions"`
		RomID      string   `json:"rom_id"`
		MaxResults int      `json:"max_results"`
		Page       int      `json:"page"`
	}
	data, _ := io.ReadAll(r.Body)
	if err := json.Unmarshal(data, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var matched []catalog.RomEntry
	for _, entry := range s.entries {
		if body.RomID != "" && !strings.EqualFold(entry.ID, body.RomID) {
			continue
		}
		if body.SearchKey != "" && !containsWords(entry.Title, body.SearchKey) {
			continue
		}
		if len(body.Platforms) > 0 && !entry.OnPlatform(body.Platforms[0]) {
			continue
		}
		if len(body.Regions) > 0 && !entry.HasRegion(body.Regions[0]) {
			continue
		}
		matched = append(matched, entry)
	}

	size := max(body.MaxResults, 1)
	page := max(body.Page, 1)
	start := min((page-1)*size, len(matched))
	end := min(start+size, len(matched))
	writeData(w, map[string]any{
		"results":         matched[start:end],
		"current_results": end - start,
		"total_results":   len(matched),
		"current_page":    page,
		"total_pages":     (len(matched) + size - 1) / size,
	})
}

func (s *CatalogServer) handleEntry(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Slug string `json:"slug"`
	}
	data, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(data, &body)
	for _, entry := range s.entries {
		if entry.Slug == body.Slug {
			writeData(w, map[string]any{"entry": entry})
			return
		}
	}
	writeData(w, map[string]any{"entry": map[string]any{}})
}

func (s *CatalogServer) handleRandom(w http.ResponseWriter, _ *http.Request) {
	if len(s.entries) == 0 {
		writeData(w, map[string]any{"entry": map[string]any{}})
		return
	}
	writeData(w, map[string]any{"entry": s.entries[0]})
}

func (s *CatalogServer) handlePlatforms(w http.ResponseWriter, _ *http.Request) {
	writeData(w, map[string]any{"platforms": s.platforms})
}

func (s *CatalogServer) handleRegions(w http.ResponseWriter, _ *http.Request) {
	writeData(w, map[string]any{"regions": s.regions})
}

func (s *CatalogServer) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeData(w, map[string]any{"total_entries": len(s.entries)})
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"info": map[string]any{}, "data": data})
}

func containsWords(title, query string) bool {
	title = strings.ToLower(title)
	for _, word := range strings.Fields(strings.ToLower(query)) {
		if !strings.Contains(title, word) {
			return false
		}
	}
	return true
}

// Entry builds a catalog entry with one game link per URL.
func Entry(slug, title, platform string, size int64, sha string, urls ...string) catalog.RomEntry {
	links := make([]catalog.Link, 0, len(urls))
	for _, u := range urls {
		links = append(links, catalog.Link{
			Name:     title,
			Type:     catalog.LinkTypeGame,
			Format:   "zip",
			URL:      u,
			Filename: slug + ".zip",
			Size:     size,
			SHA256:   sha,
		})
	}
	return catalog.RomEntry{
		ID:       strings.ToUpper(slug),
		Slug:     slug,
		Title:    title,
		Platform: platform,
		Regions:  []string{"us"},
		Links:    links,
	}
}
