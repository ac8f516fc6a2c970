package history

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the terminal result of a download task.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeCancelled Outcome = "cancelled"
)

// ParseOutcome accepts the outcome names case-insensitively.
func ParseOutcome(value string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(value))); o {
	case OutcomeSuccess, OutcomeFailure, OutcomeCancelled:
		return o, nil
	default:
		return "", fmt.Errorf("unknown outcome %q", value)
	}
}

// Record is one ledger row. Records are immutable once appended.
type Record struct {
	ID           int64         `json:"id" yaml:"id"`
	TaskID       string        `json:"task_id" yaml:"task_id"`
	Kind         string        `json:"kind" yaml:"kind"`
	RomID        string        `json:"rom_id" yaml:"rom_id"`
	Slug         string        `json:"slug" yaml:"slug"`
	Title        string        `json:"title" yaml:"title"`
	Platform     string        `json:"platform" yaml:"platform"`
	Region       string        `json:"region" yaml:"region"`
	StartedAt    time.Time     `json:"started_at" yaml:"started_at"`
	Elapsed      time.Duration `json:"-" yaml:"-"`
	Destination  string        `json:"destination" yaml:"destination"`
	Outcome      Outcome       `json:"outcome" yaml:"outcome"`
	Attempts     int           `json:"attempts" yaml:"attempts"`
	Mirror       string        `json:"mirror,omitempty" yaml:"mirror,omitempty"`
	SizeBytes    int64         `json:"size_bytes" yaml:"size_bytes"`
	SHA256       string        `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	ErrorKind    string        `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	ErrorSummary string        `json:"error_summary,omitempty" yaml:"error_summary,omitempty"`
}

// Failed reports whether the record describes a failed or cancelled task.
func (r Record) Failed() bool {
	return r.Outcome != OutcomeSuccess
}

// Filter narrows a query. Zero values match everything.
type Filter struct {
	FailedOnly bool
	Outcome    Outcome
	Kind       string
	Limit      int
}
