package main

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"romgrab/internal/api"
)

const maxTitleWidth = 48

func formatSize(bytes int64) string {
	if bytes <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(bytes))
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 3, 64)
}

func formatStarted(value string) string {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(value string, width int) string {
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width-1]) + "…"
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func printSearch(w io.Writer, resp api.SearchResponse) {
	if len(resp.Results) == 0 {
		fmt.Fprintf(w, "No results for %q\n", resp.Query)
		return
	}
	rows := make([][]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		rows = append(rows, []string{
			strconv.Itoa(r.Index),
			truncate(r.Entry.Title, maxTitleWidth),
			r.Entry.Platform,
			orDash(strings.Join(r.Entry.Regions, ",")),
			formatSize(r.Entry.SizeBytes),
			formatScore(r.Score),
			r.Entry.Slug,
		})
	}
	headers := []string{"#", "Title", "Platform", "Regions", "Size", "Score", "Slug"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft}
	fmt.Fprintln(w, renderTable(w, headers, rows, aligns))
	fmt.Fprintf(w, "Page %d of %d (%d results)\n", resp.Page, max(resp.TotalPages, 1), resp.Total)
}

func printEntry(w io.Writer, e api.Entry) {
	fmt.Fprintf(w, "Title:    %s\n", e.Title)
	fmt.Fprintf(w, "Slug:     %s\n", e.Slug)
	fmt.Fprintf(w, "ID:       %s\n", orDash(e.ID))
	fmt.Fprintf(w, "Platform: %s\n", e.Platform)
	fmt.Fprintf(w, "Regions:  %s\n", orDash(strings.Join(e.Regions, ", ")))
	fmt.Fprintf(w, "File:     %s (%s, %s)\n", e.FileName, orDash(e.Format), formatSize(e.SizeBytes))
	if e.SHA256 != "" {
		fmt.Fprintf(w, "SHA-256:  %s\n", e.SHA256)
	}
	fmt.Fprintf(w, "Boxart:   %s\n", yesNo(e.BoxartURL != ""))
	for i, m := range e.Mirrors {
		fmt.Fprintf(w, "Mirror %d: %s\n", i+1, hostOf(m))
	}
}

func printTask(w io.Writer, task *api.TaskResult) {
	if task == nil {
		return
	}
	label := task.Title
	if task.Kind == "boxart" {
		label += " (boxart)"
	}
	switch {
	case task.Skipped:
		fmt.Fprintf(w, "✓ %s already present at %s\n", label, task.Destination)
	case task.State == "completed":
		fmt.Fprintf(w, "✓ %s -> %s (%s, %d attempt(s), %s)\n",
			label, task.Destination, formatSize(task.SizeBytes), task.Attempts, hostOf(task.Mirror))
	case task.State == "cancelled":
		fmt.Fprintf(w, "⚠ %s cancelled\n", label)
	default:
		fmt.Fprintf(w, "✗ %s failed after %d attempt(s): %s\n", label, task.Attempts, task.ErrorMessage)
	}
	printTask(w, task.Boxart)
}

func printHistory(w io.Writer, records []api.HistoryRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No downloads recorded")
		return
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			formatStarted(r.StartedAt),
			r.Kind,
			truncate(r.Title, maxTitleWidth),
			r.Platform,
			r.Outcome,
			strconv.Itoa(r.Attempts),
			formatSize(r.SizeBytes),
			orDash(r.ErrorKind),
		})
	}
	headers := []string{"ID", "Started", "Kind", "Title", "Platform", "Outcome", "Attempts", "Size", "Error"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft}
	fmt.Fprintln(w, renderTable(w, headers, rows, aligns))
}
