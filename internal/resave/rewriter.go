package resave

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/leafsii/kv-resave/pkg/kv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBatchSize is the COUNT hint passed to each scan step
const DefaultBatchSize = 100

// Store is everything a run needs from the key-value store. Get and the
// setters take logical keys; Scan works on storage keys.
type Store interface {
	KeyScanner
	// Get returns nil without error when the key is absent
	Get(ctx context.Context, key string) (any, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetKeepTTL(ctx context.Context, key, value string) error
}

// Recorder receives per-batch measurements
type Recorder interface {
	RecordBatch(ctx context.Context, b BatchStats)
}

// BatchStats describes one scan-process-pace iteration
type BatchStats struct {
	DryRun    bool
	Keys      int
	Rewritten int
	Skipped   int
	Elapsed   time.Duration
	Sleep     time.Duration
}

// Request describes a single run
type Request struct {
	// Pattern is matched inside the key namespace; empty means "*"
	Pattern string
	// Cursor to start from; 0 starts a fresh cycle
	Cursor Cursor
	Policy RewritePolicy
	DryRun bool
}

// Config holds the tunables of a Rewriter
type Config struct {
	// KeyPrefix is stripped from scanned keys to get logical keys
	KeyPrefix string
	// BatchSize is the scan COUNT hint
	BatchSize int
	// Pacer controls the pause between batches; nil uses DefaultPacer
	Pacer Pacer
	// MaxKeysPerSecond caps per-key reads and writes; 0 disables the cap
	MaxKeysPerSecond float64
}

// Rewriter drives a single-worker scan, rewrite and pace loop. A Rewriter
// runs at most one Request at a time.
type Rewriter struct {
	store    Store
	scanner  *Scanner
	cfg      Config
	logger   *zap.SugaredLogger
	progress io.Writer
	recorder Recorder
	limiter  *rate.Limiter

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	running atomic.Bool
}

// Option configures a Rewriter
type Option func(*Rewriter)

// WithLogger sets the structured logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(r *Rewriter) { r.logger = logger }
}

// WithProgress sets where the single-line progress indicator is written
func WithProgress(w io.Writer) Option {
	return func(r *Rewriter) { r.progress = w }
}

// WithRecorder sets the batch metrics sink
func WithRecorder(rec Recorder) Option {
	return func(r *Rewriter) { r.recorder = rec }
}

// WithClock replaces time.Now for batch measurements
func WithClock(now func() time.Time) Option {
	return func(r *Rewriter) { r.now = now }
}

// WithSleeper replaces the pause between batches. The function must return
// ctx.Err() if ctx is cancelled while waiting.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Rewriter) { r.sleep = sleep }
}

// NewRewriter creates a Rewriter over store
func NewRewriter(store Store, cfg Config, opts ...Option) (*Rewriter, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Pacer == nil {
		cfg.Pacer = DefaultPacer()
	}
	if p, ok := cfg.Pacer.(AdditivePacer); ok {
		if err := p.Validate(); err != nil {
			return nil, ErrInvalidInput.Wrap(err, "invalid pacing")
		}
	}
	if cfg.MaxKeysPerSecond < 0 {
		return nil, ErrInvalidInput.New("max keys per second must not be negative, got %v", cfg.MaxKeysPerSecond)
	}

	r := &Rewriter{
		store:    store,
		scanner:  NewScanner(store),
		cfg:      cfg,
		logger:   zap.NewNop().Sugar(),
		progress: io.Discard,
		recorder: nopRecorder{},
		now:      time.Now,
		sleep:    sleepContext,
	}
	if cfg.MaxKeysPerSecond > 0 {
		burst := int(cfg.MaxKeysPerSecond)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.MaxKeysPerSecond), burst)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run walks the keyspace from req.Cursor until the store returns cursor 0.
//
// The returned Summary is never nil. On a scan failure or cancellation the
// error carries the cursor to resume from (see ResumeCursor) and
// Summary.Cursor holds the same value. Keys already rewritten before that
// cursor's batch was interrupted may be visited again on resume.
func (r *Rewriter) Run(ctx context.Context, req Request) (*Summary, error) {
	summary := &Summary{
		RunID:       uuid.NewString(),
		DryRun:      req.DryRun,
		Policy:      req.Policy,
		StartCursor: req.Cursor,
		Cursor:      req.Cursor,
	}

	pattern := req.Pattern
	if pattern == "" {
		pattern = "*"
	}
	if err := kv.ValidatePattern(pattern); err != nil {
		return summary, ErrInvalidInput.Wrap(err, "pattern %q", pattern)
	}

	if !r.running.CompareAndSwap(false, true) {
		return summary, ErrAlreadyRunning.New("a run is already in progress")
	}
	defer r.running.Store(false)

	log := r.logger.With(
		"run_id", summary.RunID,
		"pattern", pattern,
		"dry_run", req.DryRun,
		"policy", req.Policy.String(),
	)
	log.Infow("Re-save started", "cursor", req.Cursor, "batch_size", r.cfg.BatchSize)

	started := r.now()
	defer func() { summary.Duration = r.now().Sub(started) }()

	err := r.loop(ctx, pattern, req, summary, log)
	fmt.Fprintln(r.progress)

	if err != nil {
		log.Warnw("Re-save stopped",
			"cursor", summary.Cursor,
			"scanned", summary.Scanned,
			"rewritten", summary.Rewritten,
			"skipped", summary.Skipped,
			"error", err,
		)
		return summary, err
	}

	summary.Completed = true
	log.Infow("Re-save complete",
		"iterations", summary.Iterations,
		"scanned", summary.Scanned,
		"rewritten", summary.Rewritten,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

// loop runs batches until the cursor wraps to 0. The first batch always
// runs, so a start cursor of 0 is never mistaken for the end.
func (r *Rewriter) loop(ctx context.Context, pattern string, req Request, summary *Summary, log *zap.SugaredLogger) error {
	cursor := req.Cursor
	pause := r.cfg.Pacer.Initial()

	for {
		if err := ctx.Err(); err != nil {
			return interrupted(err, cursor)
		}

		start := r.now()
		batch, err := r.scanner.Scan(ctx, pattern, cursor, r.cfg.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return interrupted(ctx.Err(), cursor)
			}
			return scanFailed(err, cursor)
		}
		summary.Iterations++

		stats, err := r.processBatch(ctx, batch.Keys, req, summary, log)
		if err != nil {
			// The batch is incomplete; resuming must scan it again.
			return interrupted(err, cursor)
		}

		cursor = batch.Cursor
		summary.Cursor = cursor

		stats.Elapsed = r.now().Sub(start)
		pause = r.cfg.Pacer.Adjust(pause, stats.Elapsed)
		stats.Sleep = pause
		summary.LastSleep = pause
		r.recorder.RecordBatch(ctx, stats)

		fmt.Fprintf(r.progress, "\rProgress: %d items. Current cursor: %d", summary.Scanned, cursor)
		log.Debugw("Batch processed",
			"keys", stats.Keys,
			"cursor", cursor,
			"elapsed", stats.Elapsed,
			"sleep", pause,
		)

		if batch.Done() {
			return nil
		}

		// batch and its keys are dropped here; nothing from this
		// iteration is retained while the worker sleeps.
		if err := r.sleep(ctx, pause); err != nil {
			return interrupted(err, cursor)
		}
	}
}

// processBatch handles the keys of one scan step. It stops between keys
// when ctx is cancelled and rolls the batch's counters back so the summary
// only reflects fully processed batches.
func (r *Rewriter) processBatch(ctx context.Context, keys []string, req Request, summary *Summary, log *zap.SugaredLogger) (BatchStats, error) {
	stats := BatchStats{DryRun: req.DryRun, Keys: len(keys)}
	before := *summary
	samples := len(summary.Samples)

	rollback := func() {
		summary.Scanned = before.Scanned
		summary.Rewritten = before.Rewritten
		summary.Skipped = before.Skipped
		summary.Failed = before.Failed
		summary.Samples = summary.Samples[:samples]
	}

	summary.Scanned += len(keys)

	for _, storageKey := range keys {
		if err := ctx.Err(); err != nil {
			rollback()
			return stats, err
		}

		key := StripPrefix(storageKey, r.cfg.KeyPrefix)

		if req.DryRun {
			summary.addSample(key)
			summary.Skipped++
			stats.Skipped++
			continue
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				rollback()
				return stats, err
			}
		}

		// A key's read and write always run to completion together.
		if r.rewriteKey(context.WithoutCancel(ctx), key, req.Policy, summary, log) {
			stats.Rewritten++
		} else {
			stats.Skipped++
		}
	}

	return stats, nil
}

// rewriteKey reads key and writes it back under policy. Failures are logged
// and counted as skips.
func (r *Rewriter) rewriteKey(ctx context.Context, key string, policy RewritePolicy, summary *Summary, log *zap.SugaredLogger) bool {
	skip := func(failed bool, msg string, err error) bool {
		summary.Skipped++
		if failed {
			summary.Failed++
			log.Warnw(msg, "key", key, "error", err)
		} else {
			log.Debugw(msg, "key", key)
		}
		return false
	}

	value, err := r.store.Get(ctx, key)
	if err != nil {
		return skip(true, "Read failed, skipping key", err)
	}

	text, ok, err := NormalizeValue(value)
	if err != nil {
		return skip(true, "Value cannot be serialized, skipping key", err)
	}
	if !ok {
		return skip(false, "Empty or missing value, skipping key", nil)
	}

	if policy.PreservesTTL() {
		err = r.store.SetKeepTTL(ctx, key, text)
	} else {
		err = r.store.Set(ctx, key, text, policy.TTL())
	}
	if err != nil {
		return skip(true, "Write failed, skipping key", err)
	}

	summary.Rewritten++
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordBatch(context.Context, BatchStats) {}
