package logs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func TestLastReturnsTrailingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "romgrab.log")
	writeLines(t, path, "one", "two", "three", "four")

	lines, offset, err := Last(path, 2)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if strings.Join(lines, ",") != "three,four" {
		t.Fatalf("unexpected lines %v", lines)
	}
	info, _ := os.Stat(path)
	if offset != info.Size() {
		t.Fatalf("offset = %d, want %d", offset, info.Size())
	}

	all, _, err := Last(path, 10)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected every line, got %v", all)
	}
}

func TestLastSpansChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "romgrab.log")
	padding := strings.Repeat("x", 1000)
	var lines []string
	for i := range 100 {
		lines = append(lines, fmt.Sprintf("%03d %s", i, padding))
	}
	writeLines(t, path, lines...)

	got, _, err := Last(path, 50)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(got) != 50 {
		t.Fatalf("got %d lines, want 50", len(got))
	}
	if !strings.HasPrefix(got[0], "050 ") || !strings.HasPrefix(got[49], "099 ") {
		t.Fatalf("unexpected window %q .. %q", got[0][:3], got[49][:3])
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := Last(filepath.Join(t.TempDir(), "missing.log"), 5)
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("unexpected result %v %d %v", lines, offset, err)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "romgrab.log")
	writeLines(t, path, "before")
	_, offset, err := Last(path, 0)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, path, offset, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	writeLines(t, path, "after-1", "after-2")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(got, ",") != "after-1,after-2" {
		t.Fatalf("unexpected lines %v", got)
	}
}
