package api

import (
	"time"

	"romgrab/internal/catalog"
	"romgrab/internal/download"
	"romgrab/internal/history"
	"romgrab/internal/search"
	"romgrab/internal/services"
)

// errorMessageLimit bounds error text carried in DTOs.
const errorMessageLimit = 500

// FromEntry converts a catalog entry to its API representation.
func FromEntry(entry catalog.RomEntry) Entry {
	regions := entry.Regions
	if regions == nil {
		regions = []string{}
	}
	return Entry{
		ID:        entry.ID,
		Slug:      entry.Slug,
		Title:     entry.Title,
		Platform:  entry.Platform,
		Regions:   regions,
		Format:    entry.Format(),
		SizeBytes: entry.Size(),
		SHA256:    entry.SHA256(),
		FileName:  entry.FileName(),
		Mirrors:   entry.HostURLs(),
		BoxartURL: entry.BoxartURL,
	}
}

// FromResultSet converts a ranked result set. A nil set converts to an empty
// response.
func FromResultSet(sessionID string, rs *search.ResultSet) SearchResponse {
	if rs == nil {
		return SearchResponse{SessionID: sessionID, Results: []SearchResult{}}
	}
	out := SearchResponse{
		SessionID:  sessionID,
		Query:      rs.Query,
		Platform:   rs.Platform,
		Region:     rs.Region,
		Page:       rs.Page,
		PageSize:   rs.PageSize,
		Total:      rs.Total,
		TotalPages: rs.TotalPages,
		Results:    make([]SearchResult, 0, len(rs.Results)),
		CreatedAt:  formatTime(rs.CreatedAt),
	}
	for _, r := range rs.Results {
		out.Results = append(out.Results, SearchResult{
			Index: r.Index,
			Score: r.Score,
			Entry: FromEntry(r.Entry),
		})
	}
	return out
}

// FromTask converts a terminal task, including its boxart companion.
func FromTask(task *download.Task) *TaskResult {
	if task == nil {
		return nil
	}
	states := make([]string, 0, len(task.States))
	for _, s := range task.States {
		states = append(states, string(s))
	}
	dto := &TaskResult{
		ID:            task.ID,
		Kind:          string(task.Kind),
		Slug:          task.Entry.Slug,
		Title:         task.Entry.Title,
		Platform:      task.Entry.Platform,
		Destination:   task.Destination,
		State:         string(task.State),
		States:        states,
		Attempts:      task.Attempts,
		ProbeFailures: task.ProbeFailures,
		Mirror:        task.Mirror,
		MirrorsTried:  task.MirrorsTried,
		SizeBytes:     task.Bytes,
		SHA256:        task.SHA256,
		Skipped:       task.Skipped,
		StartedAt:     formatTime(task.StartedAt),
		EndedAt:       formatTime(task.EndedAt),
		Boxart:        FromTask(task.Boxart),
	}
	if !task.EndedAt.IsZero() {
		dto.ElapsedMillis = task.Elapsed().Milliseconds()
	}
	if task.Err != nil {
		dto.ErrorKind = services.Kind(task.Err)
		dto.ErrorMessage = services.Summary(task.Err, errorMessageLimit)
	}
	return dto
}

// FromBatch converts batch results in input order.
func FromBatch(results []download.BatchResult) []BatchItem {
	out := make([]BatchItem, 0, len(results))
	for _, r := range results {
		item := BatchItem{Ref: r.Ref.String(), Task: FromTask(r.Task)}
		if r.Err != nil {
			item.ErrorKind = services.Kind(r.Err)
			item.ErrorMessage = services.Summary(r.Err, errorMessageLimit)
		}
		out = append(out, item)
	}
	return out
}

// FromHistoryRecord converts a ledger row.
func FromHistoryRecord(rec history.Record) HistoryRecord {
	return HistoryRecord{
		ID:            rec.ID,
		TaskID:        rec.TaskID,
		Kind:          rec.Kind,
		RomID:         rec.RomID,
		Slug:          rec.Slug,
		Title:         rec.Title,
		Platform:      rec.Platform,
		Region:        rec.Region,
		StartedAt:     formatTime(rec.StartedAt),
		ElapsedMillis: rec.Elapsed.Milliseconds(),
		Destination:   rec.Destination,
		Outcome:       string(rec.Outcome),
		Attempts:      rec.Attempts,
		Mirror:        rec.Mirror,
		SizeBytes:     rec.SizeBytes,
		SHA256:        rec.SHA256,
		ErrorKind:     rec.ErrorKind,
		ErrorSummary:  rec.ErrorSummary,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
