package main

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"romgrab/internal/download"
)

// progressReporter draws one byte progress bar per task. The download
// manager may call it from several goroutines.
type progressReporter struct {
	w    io.Writer
	mu   sync.Mutex
	bars map[string]*progressbar.ProgressBar
}

func newProgressReporter(w io.Writer) *progressReporter {
	return &progressReporter{w: w, bars: make(map[string]*progressbar.ProgressBar)}
}

func (r *progressReporter) update(p download.Progress) {
	r.mu.Lock()
	bar, ok := r.bars[p.TaskID]
	if !ok {
		total := p.Total
		if total <= 0 {
			total = -1
		}
		bar = progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(r.w),
			progressbar.OptionSetDescription(p.Slug),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		r.bars[p.TaskID] = bar
	}
	r.mu.Unlock()
	_ = bar.Set64(p.Bytes)
}

// finish clears every bar so result lines print cleanly.
func (r *progressReporter) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, bar := range r.bars {
		_ = bar.Finish()
		delete(r.bars, id)
	}
}
