package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"romgrab/internal/cache"
	"romgrab/internal/catalog"
	"romgrab/internal/config"
	"romgrab/internal/fileutil"
	"romgrab/internal/history"
	"romgrab/internal/logging"
	"romgrab/internal/metrics"
	"romgrab/internal/mirror"
	"romgrab/internal/search"
	"romgrab/internal/services"
	"romgrab/internal/textutil"
)

const (
	lockRetryDelay    = 100 * time.Millisecond
	errorSummaryLimit = 300
)

// Ranker orders candidate mirrors. *mirror.Selector satisfies it.
type Ranker interface {
	Rank(ctx context.Context, hosts []string) ([]mirror.Candidate, error)
}

// Ledger records terminal tasks. *history.Ledger satisfies it.
type Ledger interface {
	Append(ctx context.Context, rec history.Record) (int64, error)
	LastSuccess(ctx context.Context, destination string) (history.Record, bool, error)
}

// Options tunes a single download request.
type Options struct {
	// Platform and Region filter ambiguous references.
	Platform string
	Region   string
	// IncludeBoxart starts a companion boxart task.
	IncludeBoxart bool
	// Destination overrides the configured ROM root.
	Destination string
	// Force re-downloads even when a verified copy exists.
	Force bool
	// Progress, when set, receives byte progress. It may be called from
	// several goroutines at once.
	Progress func(Progress)
}

// Manager runs download tasks.
type Manager struct {
	cfg     *config.Config
	lookup  Lookup
	ranker  Ranker
	ledger  Ledger
	thumbs  *cache.Store
	client  *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

// Option configures a Manager.
type Option func(*Manager)

func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) {
		if client != nil {
			m.client = client
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logging.NewComponentLogger(logger, "download")
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithThumbnailCache routes boxart bytes through the thumbnails namespace.
func WithThumbnailCache(store *cache.Store) Option {
	return func(m *Manager) {
		m.thumbs = store
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager wires the collaborators a download needs.
func NewManager(cfg *config.Config, lookup Lookup, ranker Ranker, ledger Ledger, opts ...Option) (*Manager, error) {
	if cfg == nil || lookup == nil || ranker == nil || ledger == nil {
		return nil, errors.New("download manager requires config, lookup, ranker, and ledger")
	}
	m := &Manager{
		cfg:    cfg,
		lookup: lookup,
		ranker: ranker,
		ledger: ledger,
		client: &http.Client{},
		logger: logging.NewComponentLogger(nil, "download"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Download resolves ref against the catalog and session, then runs the task
// to a terminal state. Resolution failures return a nil task. Otherwise the
// terminal task is always returned; the error is the task's failure or a
// ledger write failure.
func (m *Manager) Download(ctx context.Context, sess *search.Session, ref Ref, opts Options) (*Task, error) {
	if sess != nil {
		ctx = services.WithSessionID(ctx, sess.ID)
	}
	entry, err := Resolve(ctx, m.lookup, sess, ref, opts)
	if err != nil {
		return nil, err
	}
	return m.Run(ctx, entry, opts)
}

// Run downloads a resolved entry, plus its boxart when requested. The boxart
// task runs alongside the ROM task and never changes its outcome.
func (m *Manager) Run(ctx context.Context, entry catalog.RomEntry, opts Options) (*Task, error) {
	var (
		wg        sync.WaitGroup
		boxart    *Task
		boxartErr error
	)
	if opts.IncludeBoxart && strings.TrimSpace(entry.BoxartURL) != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			boxart, boxartErr = m.runBoxart(ctx, entry, opts)
		}()
	}

	task, err := m.runROM(ctx, entry, opts)
	wg.Wait()
	task.Boxart = boxart
	// A boxart failure is recorded on its own task; only a lost ledger
	// write surfaces here.
	return task, withLedgerErr(err, boxartErr)
}

// DownloadBoxart fetches only the boxart for ref.
func (m *Manager) DownloadBoxart(ctx context.Context, sess *search.Session, ref Ref, opts Options) (*Task, error) {
	if sess != nil {
		ctx = services.WithSessionID(ctx, sess.ID)
	}
	entry, err := Resolve(ctx, m.lookup, sess, ref, opts)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(entry.BoxartURL) == "" {
		return nil, services.Wrap(services.ErrNotFound, "download", "boxart",
			fmt.Sprintf("%s has no boxart", entry.Slug), nil)
	}
	task, ledgerErr := m.runBoxart(ctx, entry, opts)
	return task, withLedgerErr(task.Err, ledgerErr)
}

// BatchResult pairs a reference with its outcome.
type BatchResult struct {
	Ref  Ref
	Task *Task
	Err  error
}

// DownloadBatch runs several downloads with at most max_concurrent_downloads
// in flight. Results are returned in input order.
func (m *Manager) DownloadBatch(ctx context.Context, sess *search.Session, refs []Ref, opts Options) []BatchResult {
	results := make([]BatchResult, len(refs))
	sem := semaphore.NewWeighted(int64(max(m.cfg.Download.MaxConcurrentDownloads, 1)))
	var wg sync.WaitGroup
	for i, ref := range refs {
		results[i].Ref = ref
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i].Err = services.Wrap(services.ErrCancelled, "download", "batch", "batch cancelled", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			results[i].Task, results[i].Err = m.Download(ctx, sess, ref, opts)
		}()
	}
	wg.Wait()
	return results
}

func (m *Manager) runROM(ctx context.Context, entry catalog.RomEntry, opts Options) (*Task, error) {
	dest := m.romPath(entry, opts)
	task := newTask(m.newID(), KindROM, entry, dest, m.now())
	ctx = services.WithTaskID(ctx, task.ID)
	logger := logging.WithContext(ctx, m.logger).With(
		logging.String("slug", entry.Slug),
		logging.String("destination", dest),
	)

	unlock, err := m.lock(ctx, dest)
	if err != nil {
		m.fail(task, err)
		return task, withLedgerErr(task.Err, m.finish(ctx, logger, task))
	}
	defer unlock()

	if !opts.Force && m.alreadyPresent(ctx, logger, task) {
		task.Skipped = true
		_ = task.transition(StateCompleted)
		logger.Info("download skipped; verified copy already present")
		return task, withLedgerErr(nil, m.finish(ctx, logger, task))
	}

	m.transfer(ctx, logger, task, opts)
	return task, withLedgerErr(task.Err, m.finish(ctx, logger, task))
}

// alreadyPresent reports whether the destination holds a previously verified
// copy. A ledger success with a matching on-disk size is enough; without one,
// a file matching the catalog hash also counts. No network is used.
func (m *Manager) alreadyPresent(ctx context.Context, logger *slog.Logger, task *Task) bool {
	info, err := os.Stat(task.Destination)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	rec, ok, err := m.ledger.LastSuccess(ctx, task.Destination)
	if err != nil {
		logger.Debug("ledger lookup failed; downloading again", logging.Error(err))
		return false
	}
	if ok && rec.SizeBytes == info.Size() {
		task.Bytes, task.SHA256 = rec.SizeBytes, rec.SHA256
		return true
	}
	expected := task.Entry.SHA256()
	if task.Kind != KindROM || expected == "" {
		return false
	}
	size, sum, err := fileutil.HashFile(task.Destination)
	if err != nil || !strings.EqualFold(sum, expected) {
		return false
	}
	task.Bytes, task.SHA256 = size, sum
	return true
}

func (m *Manager) romPath(entry catalog.RomEntry, opts Options) string {
	return filepath.Join(m.root(opts), platformDir(entry), entry.FileName())
}

func (m *Manager) root(opts Options) string {
	if dest := strings.TrimSpace(opts.Destination); dest != "" {
		if expanded, err := config.ExpandPath(dest); err == nil {
			return expanded
		}
		return dest
	}
	return m.cfg.Paths.ROMDir
}

func platformDir(entry catalog.RomEntry) string {
	return textutil.PathToken(entry.Platform)
}

// lock takes an exclusive advisory lock for dest so two processes never
// write the same file.
func (m *Manager) lock(ctx context.Context, dest string) (func(), error) {
	dir := m.cfg.LockDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "download", "lock", "create lock dir", err)
	}
	sum := sha256.Sum256([]byte(dest))
	lock := flock.New(filepath.Join(dir, hex.EncodeToString(sum[:8])+".lock"))
	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrCancelled, "download", "lock", "cancelled waiting for lock", ctx.Err())
		}
		return nil, services.Wrap(services.ErrTransient, "download", "lock", "acquire destination lock", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrTransient, "download", "lock", "destination is locked", nil)
	}
	return func() { _ = lock.Unlock() }, nil
}

// fail moves a non-terminal task to failed or cancelled based on err.
func (m *Manager) fail(task *Task, err error) {
	if task.State.Terminal() {
		return
	}
	task.Err = err
	if services.Cancelled(err) {
		_ = task.transition(StateCancelled)
		return
	}
	_ = task.transition(StateFailed)
}

// finish stamps the end time and records the task. It returns only a ledger
// failure.
func (m *Manager) finish(ctx context.Context, logger *slog.Logger, task *Task) error {
	task.EndedAt = m.now()

	outcome := history.OutcomeSuccess
	switch task.State {
	case StateFailed:
		outcome = history.OutcomeFailure
	case StateCancelled:
		outcome = history.OutcomeCancelled
	}
	rec := history.Record{
		TaskID:      task.ID,
		Kind:        string(task.Kind),
		RomID:       task.Entry.ID,
		Slug:        task.Entry.Slug,
		Title:       task.Entry.Title,
		Platform:    task.Entry.Platform,
		Region:      task.Entry.RegionLabel(),
		StartedAt:   task.StartedAt,
		Elapsed:     task.Elapsed(),
		Destination: task.Destination,
		Outcome:     outcome,
		Attempts:    task.Attempts,
		Mirror:      task.Mirror,
		SizeBytes:   task.Bytes,
		SHA256:      task.SHA256,
	}
	if task.Err != nil {
		rec.ErrorKind = services.Kind(task.Err)
		rec.ErrorSummary = services.Summary(task.Err, errorSummaryLimit)
	}

	// The ledger write must not be lost to the caller's cancellation.
	appendCtx := context.WithoutCancel(ctx)
	if _, err := m.ledger.Append(appendCtx, rec); err != nil {
		logging.ErrorWithContext(logger, "history append failed", "history_append_failed",
			logging.String(logging.FieldTaskID, task.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check history_dir permissions and free space"),
		)
		return fmt.Errorf("record history: %w", err)
	}

	m.metrics.Download(string(task.Kind), string(outcome), task.Attempts, task.Bytes)
	switch task.State {
	case StateCompleted:
		logger.Info("download completed",
			logging.String("kind", string(task.Kind)),
			logging.Int("attempts", task.Attempts),
			logging.Int64("bytes", task.Bytes),
			logging.String("mirror", task.Mirror),
			logging.Bool("skipped", task.Skipped),
			logging.Duration("elapsed", task.Elapsed()),
		)
	case StateCancelled:
		logger.Info("download cancelled", logging.String("kind", string(task.Kind)))
	default:
		logging.WarnWithContext(logger, "download failed", "download_failed",
			logging.String("kind", string(task.Kind)),
			logging.Int("attempts", task.Attempts),
			logging.Error(task.Err),
			logging.String(logging.FieldImpact, "file was not placed"),
		)
	}
	return nil
}

func withLedgerErr(taskErr, ledgerErr error) error {
	if ledgerErr == nil {
		return taskErr
	}
	return errors.Join(taskErr, ledgerErr)
}
