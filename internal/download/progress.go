package download

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"romgrab/internal/logging"
)

// Progress is a byte-level progress snapshot for one task.
type Progress struct {
	TaskID string
	Kind   Kind
	Slug   string
	Stage  State
	Bytes  int64
	// Total is the expected size, or 0 when unknown.
	Total int64
}

// progressTracker counts bytes written by every range of the current
// attempt, forwards snapshots to the caller's hook, and logs sampled
// progress.
type progressTracker struct {
	task   *Task
	hook   func(Progress)
	logger *slog.Logger

	bytes atomic.Int64
	total atomic.Int64

	mu      sync.Mutex
	sampler *logging.ProgressSampler
}

func newProgressTracker(task *Task, hook func(Progress), logger *slog.Logger) *progressTracker {
	return &progressTracker{
		task:    task,
		hook:    hook,
		logger:  logger,
		sampler: logging.NewProgressSampler(10),
	}
}

func (p *progressTracker) reset() {
	p.bytes.Store(0)
	p.mu.Lock()
	p.sampler.Reset()
	p.mu.Unlock()
}

func (p *progressTracker) setTotal(total int64) {
	p.total.Store(max(total, 0))
}

// Write counts p without retaining it.
func (p *progressTracker) Write(b []byte) (int, error) {
	done := p.bytes.Add(int64(len(b)))
	total := p.total.Load()
	if p.hook != nil {
		p.hook(Progress{
			TaskID: p.task.ID,
			Kind:   p.task.Kind,
			Slug:   p.task.Entry.Slug,
			Stage:  StateTransferring,
			Bytes:  done,
			Total:  total,
		})
	}
	p.mu.Lock()
	emit := p.sampler.ShouldLogBytes(done, total, string(StateTransferring))
	p.mu.Unlock()
	if emit {
		p.logger.Debug("transfer progress",
			logging.String(logging.FieldStage, string(StateTransferring)),
			logging.Int64("bytes", done),
			logging.Int64("total", total),
		)
	}
	return len(b), nil
}
