package api

import (
	"errors"
	"testing"
	"time"

	"romgrab/internal/catalog"
	"romgrab/internal/download"
	"romgrab/internal/history"
	"romgrab/internal/search"
	"romgrab/internal/services"
)

func TestFromEntryUsesPrimaryLink(t *testing.T) {
	entry := catalog.RomEntry{
		ID:    "SMW",
		Slug:  "super-mario-world",
		Title: "Super Mario World",
		Links: []catalog.Link{
			{Type: "Manual", URL: "http://m/manual.pdf", Size: 5},
			{Type: "Game", URL: "http://a/smw.zip", Format: "zip", Size: 512, SHA256: "ABC", Filename: "smw.zip"},
			{Type: "Game", URL: "http://b/smw.zip", Size: 512},
		},
	}
	dto := FromEntry(entry)
	if dto.SizeBytes != 512 || dto.SHA256 != "abc" || dto.Format != "zip" || dto.FileName != "smw.zip" {
		t.Fatalf("unexpected primary link fields %+v", dto)
	}
	if len(dto.Mirrors) != 2 {
		t.Fatalf("mirrors = %v, want the two game links", dto.Mirrors)
	}
	if dto.Regions == nil {
		t.Fatal("regions should encode as an empty list")
	}
}

func TestFromResultSetNil(t *testing.T) {
	resp := FromResultSet("s1", nil)
	if resp.SessionID != "s1" || resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestFromResultSetKeepsOrder(t *testing.T) {
	rs := &search.ResultSet{
		Query: "zelda",
		Results: []search.Result{
			{Index: 1, Score: 1, Entry: catalog.RomEntry{Slug: "zelda"}},
			{Index: 2, Score: 0.5, Entry: catalog.RomEntry{Slug: "zelda-2"}},
		},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	resp := FromResultSet("s1", rs)
	if len(resp.Results) != 2 || resp.Results[1].Entry.Slug != "zelda-2" || resp.Results[1].Index != 2 {
		t.Fatalf("unexpected results %+v", resp.Results)
	}
	if resp.CreatedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("createdAt = %q", resp.CreatedAt)
	}
}

func TestFromTask(t *testing.T) {
	if FromTask(nil) != nil {
		t.Fatal("nil task should convert to nil")
	}
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	task := &download.Task{
		ID:        "t1",
		Kind:      download.KindROM,
		Entry:     catalog.RomEntry{Slug: "zelda", Title: "Zelda", Platform: "nes"},
		State:     download.StateFailed,
		States:    []download.State{download.StatePending, download.StateProbing, download.StateFailed},
		Attempts:  2,
		Err:       services.Wrap(services.ErrMirrorExhausted, "download", "transfer", "2 attempts failed", errors.New("http 503")),
		StartedAt: start,
		EndedAt:   start.Add(2 * time.Second),
		Boxart:    &download.Task{ID: "t2", Kind: download.KindBoxart, State: download.StateCompleted},
	}
	dto := FromTask(task)
	if dto.State != "failed" || len(dto.States) != 3 || dto.ElapsedMillis != 2000 {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if dto.ErrorKind != "mirror_exhausted" || dto.ErrorMessage == "" {
		t.Fatalf("error fields = %q / %q", dto.ErrorKind, dto.ErrorMessage)
	}
	if dto.Boxart == nil || dto.Boxart.Kind != "boxart" {
		t.Fatalf("boxart = %+v", dto.Boxart)
	}
}

func TestFromBatchCarriesErrors(t *testing.T) {
	items := FromBatch([]download.BatchResult{
		{Ref: download.IndexRef(3), Err: services.Wrap(services.ErrNoActiveSearch, "search", "lookup", "no search", nil)},
	})
	if len(items) != 1 || items[0].Ref != "#3" || items[0].ErrorKind != "no_active_search" || items[0].Task != nil {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestFromHistoryRecord(t *testing.T) {
	rec := history.Record{
		ID:        9,
		Outcome:   history.OutcomeCancelled,
		Elapsed:   1500 * time.Millisecond,
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	dto := FromHistoryRecord(rec)
	if dto.ID != 9 || dto.Outcome != "cancelled" || dto.ElapsedMillis != 1500 || dto.StartedAt == "" {
		t.Fatalf("unexpected dto %+v", dto)
	}
}
