package history

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v2"

	"romgrab/internal/fileutil"
)

// Format is an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts format names case-insensitively; "yml" is an alias.
func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case FormatCSV, FormatTSV, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (csv, tsv, json, yaml)", value)
	}
}

var exportHeader = []string{
	"id", "task_id", "kind", "rom_id", "slug", "title", "platform", "region", "started_at",
	"elapsed_ms", "destination", "outcome", "attempts", "mirror", "size_bytes", "sha256",
	"error_kind", "error_summary",
}

func exportRow(r Record) []string {
	return []string{
		strconv.FormatInt(r.ID, 10), r.TaskID, r.Kind, r.RomID, r.Slug, r.Title, r.Platform, r.Region,
		r.StartedAt.UTC().Format(time.RFC3339), strconv.FormatInt(r.Elapsed.Milliseconds(), 10),
		r.Destination, string(r.Outcome), strconv.Itoa(r.Attempts), r.Mirror,
		strconv.FormatInt(r.SizeBytes, 10), r.SHA256, r.ErrorKind, r.ErrorSummary,
	}
}

// exportRecord flattens Elapsed to milliseconds for the structured formats.
type exportRecord struct {
	Record    `yaml:",inline"`
	ElapsedMS int64 `json:"elapsed_ms" yaml:"elapsed_ms"`
}

// Export writes the records matching filter to w and reports how many were
// written.
func (l *Ledger) Export(ctx context.Context, w io.Writer, format Format, filter Filter) (int, error) {
	switch format {
	case FormatCSV, FormatTSV:
		cw := csv.NewWriter(w)
		if format == FormatTSV {
			cw.Comma = '\t'
		}
		if err := cw.Write(exportHeader); err != nil {
			return 0, err
		}
		n := 0
		for rec, err := range l.Query(ctx, filter) {
			if err != nil {
				return n, err
			}
			if err := cw.Write(exportRow(rec)); err != nil {
				return n, err
			}
			n++
		}
		cw.Flush()
		return n, cw.Error()
	case FormatJSON, FormatYAML:
		records, err := l.Collect(ctx, filter)
		if err != nil {
			return 0, err
		}
		out := make([]exportRecord, 0, len(records))
		for _, rec := range records {
			out = append(out, exportRecord{Record: rec, ElapsedMS: rec.Elapsed.Milliseconds()})
		}
		var data []byte
		if format == FormatJSON {
			data, err = json.MarshalIndent(out, "", "  ")
			data = append(data, '\n')
		} else {
			data, err = yaml.Marshal(out)
		}
		if err != nil {
			return 0, fmt.Errorf("encode %s export: %w", format, err)
		}
		if _, err := w.Write(data); err != nil {
			return 0, err
		}
		return len(out), nil
	default:
		return 0, fmt.Errorf("unsupported export format %q", format)
	}
}

// ExportFile writes the export to path atomically.
func (l *Ledger) ExportFile(ctx context.Context, path string, format Format, filter Filter) (int, error) {
	var buf bytes.Buffer
	n, err := l.Export(ctx, &buf, format, filter)
	if err != nil {
		return 0, err
	}
	if err := fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("write export: %w", err)
	}
	return n, nil
}
