package catalog

import (
	"net/url"
	"path"
	"strings"

	"romgrab/internal/textutil"
)

// LinkTypeGame marks a downloadable game file; other link types (manuals,
// patches) are ignored.
const LinkTypeGame = "Game"

// Link is one downloadable copy of an entry hosted on a mirror.
type Link struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Format   string `json:"format"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Host     string `json:"host"`
	Size     int64  `json:"size"`
	SizeText string `json:"size_str"`
	SHA256   string `json:"sha256,omitempty"`
}

// RomEntry is a catalog record. Entries are treated as immutable once decoded.
type RomEntry struct {
	ID        string   `json:"rom_id"`
	Slug      string   `json:"slug"`
	Title     string   `json:"title"`
	Platform  string   `json:"platform"`
	Regions   []string `json:"regions"`
	Links     []Link   `json:"links"`
	BoxartURL string   `json:"boxart_url"`
}

// GameLinks returns the downloadable game links in catalog order.
func (e RomEntry) GameLinks() []Link {
	links := make([]Link, 0, len(e.Links))
	for _, link := range e.Links {
		if strings.TrimSpace(link.URL) == "" {
			continue
		}
		if link.Type != "" && !strings.EqualFold(link.Type, LinkTypeGame) {
			continue
		}
		links = append(links, link)
	}
	return links
}

// Primary returns the first game link; its size, format, and hash describe
// the expected file for every mirror.
func (e RomEntry) Primary() (Link, bool) {
	links := e.GameLinks()
	if len(links) == 0 {
		return Link{}, false
	}
	return links[0], true
}

// HostURLs lists distinct download URLs in catalog order.
func (e RomEntry) HostURLs() []string {
	links := e.GameLinks()
	urls := make([]string, 0, len(links))
	seen := make(map[string]struct{}, len(links))
	for _, link := range links {
		u := strings.TrimSpace(link.URL)
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}

// Size is the expected byte size of the game file, or 0 when unknown.
func (e RomEntry) Size() int64 {
	link, _ := e.Primary()
	return link.Size
}

// SHA256 is the expected hex digest, or "" when the catalog provides none.
func (e RomEntry) SHA256() string {
	link, _ := e.Primary()
	return strings.ToLower(strings.TrimSpace(link.SHA256))
}

// Format is the file format reported by the catalog (zip, 7z, iso, ...).
func (e RomEntry) Format() string {
	link, _ := e.Primary()
	return strings.TrimSpace(link.Format)
}

// FileName is the local file name for the game file. It prefers the
// mirror-provided name, then the URL basename, then the slug.
func (e RomEntry) FileName() string {
	link, _ := e.Primary()
	candidates := []string{link.Filename}
	if u, err := url.Parse(link.URL); err == nil && strings.Trim(u.Path, "/") != "" {
		candidates = append(candidates, path.Base(u.Path))
	}
	for _, candidate := range candidates {
		if name := textutil.SafeFileName(candidate); name != "" {
			return name
		}
	}
	name := textutil.PathToken(firstNonEmpty(e.Slug, e.Title, e.ID))
	if format := e.Format(); format != "" {
		name += "." + strings.TrimPrefix(strings.ToLower(format), ".")
	}
	return name
}

// HasRegion reports whether the entry lists the region code.
func (e RomEntry) HasRegion(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return true
	}
	for _, region := range e.Regions {
		if strings.EqualFold(region, code) {
			return true
		}
	}
	return false
}

// OnPlatform reports whether the entry belongs to the platform code.
func (e RomEntry) OnPlatform(code string) bool {
	code = strings.TrimSpace(code)
	return code == "" || strings.EqualFold(e.Platform, code)
}

// RegionLabel joins region codes for display and ledgers.
func (e RomEntry) RegionLabel() string {
	return strings.Join(e.Regions, ",")
}

// SearchRequest is a single catalog page request.
type SearchRequest struct {
	Query    string
	Platform string
	Region   string
	RomID    string
	Page     int
	PageSize int
}

// SearchPage is one page of catalog results in catalog order.
type SearchPage struct {
	Results    []RomEntry `json:"results"`
	Total      int        `json:"total_results"`
	Page       int        `json:"current_page"`
	TotalPages int        `json:"total_pages"`
}

// Platform describes a platform code known to the catalog.
type Platform struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Brand string `json:"brand"`
}

// Region describes a region code known to the catalog.
type Region struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// DatabaseInfo is the free-form catalog status document.
type DatabaseInfo map[string]any

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
