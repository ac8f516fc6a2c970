package search

import (
	"fmt"
	"strings"
	"time"

	"romgrab/internal/catalog"
)

// Request describes one search invocation.
type Request struct {
	Query    string
	Platform string
	Region   string
	Page     int
	PageSize int
}

func (r Request) normalized(defaultPageSize, ceiling int) Request {
	r.Query = strings.TrimSpace(r.Query)
	r.Platform = strings.ToLower(strings.TrimSpace(r.Platform))
	r.Region = strings.ToLower(strings.TrimSpace(r.Region))
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize <= 0 {
		r.PageSize = defaultPageSize
	}
	r.PageSize = min(max(r.PageSize, 1), ceiling)
	return r
}

// pageKey identifies one upstream catalog page in the search-results cache.
func pageKey(r Request, upstreamPage, upstreamSize int) string {
	return fmt.Sprintf("%s|%s|%s|%d|%d",
		strings.ToLower(r.Query), r.Platform, r.Region, upstreamPage, upstreamSize)
}

// Result is one ranked entry. Index is the 1-based session handle.
type Result struct {
	Index int              `json:"index"`
	Entry catalog.RomEntry `json:"entry"`
	Score float64          `json:"score"`
}

// ResultSet is the ranked output of one search.
type ResultSet struct {
	Query      string    `json:"query"`
	Platform   string    `json:"platform,omitempty"`
	Region     string    `json:"region,omitempty"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	Total      int       `json:"total"`
	TotalPages int       `json:"total_pages"`
	Results    []Result  `json:"results"`
	CreatedAt  time.Time `json:"created_at"`
}

// Len returns the number of ranked results.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Results)
}

// At returns the result with the given 1-based index.
func (rs *ResultSet) At(index int) (Result, bool) {
	if rs == nil || index < 1 || index > len(rs.Results) {
		return Result{}, false
	}
	return rs.Results[index-1], true
}
