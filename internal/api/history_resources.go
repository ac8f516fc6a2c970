package api

import (
	"context"
	"io"
	"strings"

	"romgrab/internal/history"
)

// HistoryQuery narrows a history listing. Zero values match everything.
type HistoryQuery struct {
	FailedOnly bool
	Outcome    string
	Kind       string
	Limit      int
}

func (q HistoryQuery) filter() (history.Filter, error) {
	f := history.Filter{
		FailedOnly: q.FailedOnly,
		Kind:       strings.ToLower(strings.TrimSpace(q.Kind)),
		Limit:      q.Limit,
	}
	if strings.TrimSpace(q.Outcome) != "" {
		outcome, err := history.ParseOutcome(q.Outcome)
		if err != nil {
			return history.Filter{}, validationError(err)
		}
		f.Outcome = outcome
	}
	return f, nil
}

// QueryHistory lists ledger rows most recent first.
func (s *Service) QueryHistory(ctx context.Context, q HistoryQuery) ([]HistoryRecord, error) {
	filter, err := q.filter()
	if err != nil {
		return nil, err
	}
	out := []HistoryRecord{}
	for rec, err := range s.ledger.Query(ctx, filter) {
		if err != nil {
			return nil, err
		}
		out = append(out, FromHistoryRecord(rec))
	}
	return out, nil
}

// ExportRequest describes a history export. Path wins over Writer when both
// are set.
type ExportRequest struct {
	Format string
	Path   string
	Writer io.Writer
	Query  HistoryQuery
}

// ExportHistory writes ledger rows in the requested format and reports how
// many were written.
func (s *Service) ExportHistory(ctx context.Context, req ExportRequest) (int, error) {
	format, err := history.ParseFormat(req.Format)
	if err != nil {
		return 0, validationError(err)
	}
	filter, err := req.Query.filter()
	if err != nil {
		return 0, err
	}
	if path := strings.TrimSpace(req.Path); path != "" {
		return s.ledger.ExportFile(ctx, path, format, filter)
	}
	if req.Writer == nil {
		return 0, validationError(errNoExportTarget)
	}
	return s.ledger.Export(ctx, req.Writer, format, filter)
}
