package history

import (
	"context"
	"fmt"
	"iter"
	"strings"
)

func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.FailedOnly {
		clauses = append(clauses, "outcome <> ?")
		args = append(args, string(OutcomeSuccess))
	}
	if f.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, string(f.Outcome))
	}
	if kind := strings.TrimSpace(f.Kind); kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, kind)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Query streams matching records, most recent first. Rows are read as the
// caller iterates; breaking out of the loop releases the cursor. A read
// error is yielded once and ends the sequence.
func (l *Ledger) Query(ctx context.Context, filter Filter) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		where, args := filter.where()
		query := "SELECT " + columns + " FROM history" + where + " ORDER BY id DESC"
		if filter.Limit > 0 {
			query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		}
		rows, err := l.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(Record{}, fmt.Errorf("query history: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				yield(Record{}, fmt.Errorf("scan history: %w", err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Record{}, fmt.Errorf("iterate history: %w", err))
		}
	}
}

// Collect drains Query into a slice.
func (l *Ledger) Collect(ctx context.Context, filter Filter) ([]Record, error) {
	var out []Record
	for rec, err := range l.Query(ctx, filter) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
