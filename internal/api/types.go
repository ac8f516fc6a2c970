package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Entry describes a catalog entry in a transport-friendly format.
type Entry struct {
	ID        string   `json:"id"`
	Slug      string   `json:"slug"`
	Title     string   `json:"title"`
	Platform  string   `json:"platform"`
	Regions   []string `json:"regions"`
	Format    string   `json:"format,omitempty"`
	SizeBytes int64    `json:"sizeBytes"`
	SHA256    string   `json:"sha256,omitempty"`
	FileName  string   `json:"fileName"`
	Mirrors   []string `json:"mirrors"`
	BoxartURL string   `json:"boxartUrl,omitempty"`
}

// SearchResult is one ranked entry with its session index.
type SearchResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
	Entry Entry   `json:"entry"`
}

// SearchResponse wraps one ranked page.
type SearchResponse struct {
	SessionID  string         `json:"sessionId"`
	Query      string         `json:"query"`
	Platform   string         `json:"platform,omitempty"`
	Region     string         `json:"region,omitempty"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	Total      int            `json:"total"`
	TotalPages int            `json:"totalPages"`
	Results    []SearchResult `json:"results"`
	CreatedAt  string         `json:"createdAt,omitempty"`
}

// TaskResult is the terminal state of one download task.
type TaskResult struct {
	ID            string      `json:"id"`
	Kind          string      `json:"kind"`
	Slug          string      `json:"slug"`
	Title         string      `json:"title"`
	Platform      string      `json:"platform"`
	Destination   string      `json:"destination"`
	State         string      `json:"state"`
	States        []string    `json:"states"`
	Attempts      int         `json:"attempts"`
	ProbeFailures int         `json:"probeFailures"`
	Mirror        string      `json:"mirror,omitempty"`
	MirrorsTried  []string    `json:"mirrorsTried,omitempty"`
	SizeBytes     int64       `json:"sizeBytes"`
	SHA256        string      `json:"sha256,omitempty"`
	Skipped       bool        `json:"skipped"`
	ErrorKind     string      `json:"errorKind,omitempty"`
	ErrorMessage  string      `json:"errorMessage,omitempty"`
	StartedAt     string      `json:"startedAt,omitempty"`
	EndedAt       string      `json:"endedAt,omitempty"`
	ElapsedMillis int64       `json:"elapsedMs"`
	Boxart        *TaskResult `json:"boxart,omitempty"`
}

// BatchItem pairs one requested reference with its outcome.
type BatchItem struct {
	Ref          string      `json:"ref"`
	Task         *TaskResult `json:"task,omitempty"`
	ErrorKind    string      `json:"errorKind,omitempty"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
}

// HistoryRecord describes one ledger row.
type HistoryRecord struct {
	ID            int64  `json:"id"`
	TaskID        string `json:"taskId"`
	Kind          string `json:"kind"`
	RomID         string `json:"romId"`
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	Platform      string `json:"platform"`
	Region        string `json:"region"`
	StartedAt     string `json:"startedAt"`
	ElapsedMillis int64  `json:"elapsedMs"`
	Destination   string `json:"destination"`
	Outcome       string `json:"outcome"`
	Attempts      int    `json:"attempts"`
	Mirror        string `json:"mirror,omitempty"`
	SizeBytes     int64  `json:"sizeBytes"`
	SHA256        string `json:"sha256,omitempty"`
	ErrorKind     string `json:"errorKind,omitempty"`
	ErrorSummary  string `json:"errorSummary,omitempty"`
}

// Platform describes a platform code.
type Platform struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Brand string `json:"brand,omitempty"`
}

// Region describes a region code.
type Region struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// CacheClearResponse reports how many records were removed.
type CacheClearResponse struct {
	Namespace string `json:"namespace"`
	Removed   int    `json:"removed"`
}
