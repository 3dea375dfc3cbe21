package main

import (
	"context"
	"fmt"
	"io"

	"github.com/joomcode/errorx"
	"go.uber.org/zap"

	"github.com/leafsii/kv-resave/internal/config"
	"github.com/leafsii/kv-resave/internal/metrics"
	"github.com/leafsii/kv-resave/internal/resave"
	"github.com/leafsii/kv-resave/internal/storage"
	"github.com/leafsii/kv-resave/pkg/kv"
)

func resaveKeyspace(
	ctx context.Context,
	cfg *config.Config,
	opts options,
	store kv.Store,
	m *metrics.Metrics,
	stdout, stderr io.Writer,
	logger *zap.SugaredLogger,
) int {
	client := storage.NewClient(store,
		storage.WithPrefix(cfg.Store.KeyPrefix),
		storage.WithScanChunkSize(cfg.Store.ScanChunkSize),
		storage.WithLogger(logger),
		storage.WithDebug(cfg.Store.Debug),
	)

	rewriterOpts := []resave.Option{
		resave.WithLogger(logger),
		resave.WithProgress(stdout),
	}
	if m != nil {
		rewriterOpts = append(rewriterOpts, resave.WithRecorder(m))
	}

	rewriter, err := resave.NewRewriter(client, cfg.Rewriter(), rewriterOpts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	summary, err := rewriter.Run(ctx, resave.Request{
		Pattern: opts.pattern,
		Cursor:  opts.cursor,
		Policy:  opts.policy,
		DryRun:  opts.dryRun,
	})

	code := exitCode(err)
	if m != nil {
		m.RecordRun(context.WithoutCancel(ctx), outcome(err), opts.dryRun)
	}

	if code == exitUsage {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return code
	}

	if reportErr := summary.WriteReport(stdout); reportErr != nil {
		logger.Warnw("Failed to write report", "error", reportErr)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}

	if cfg.Store.Debug {
		logStorageStats(context.WithoutCancel(ctx), client, logger)
	}

	return code
}

func logStorageStats(ctx context.Context, client *storage.Client, logger *zap.SugaredLogger) {
	access := client.AccessStats()
	logger.Debugw("Storage access stats",
		"reads", access.Reads,
		"writes", access.Writes,
		"deletes", access.Deletes,
	)

	backend, err := client.Stats(ctx)
	if err != nil {
		logger.Warnw("Failed to read backend stats", "error", err)
		return
	}
	logger.Debugw("Storage backend stats", "stats", backend)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errorx.IsOfType(err, resave.ErrInvalidInput):
		return exitUsage
	default:
		return exitFailure
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "complete"
	case errorx.IsOfType(err, resave.ErrInterrupted):
		return "interrupted"
	default:
		return "failed"
	}
}
