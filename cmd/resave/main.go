package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/leafsii/kv-resave/internal/config"
	"github.com/leafsii/kv-resave/internal/log"
	"github.com/leafsii/kv-resave/internal/metrics"
	"github.com/leafsii/kv-resave/pkg/kv"
	_ "github.com/leafsii/kv-resave/pkg/kv/memory"
	_ "github.com/leafsii/kv-resave/pkg/kv/redis"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return exitUsage
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)
		return exitFailure
	}
	defer logger.Sync()

	store, err := kv.NewStoreFromConfig(cfg.KV(logger))
	if err != nil {
		logger.Errorw("Failed to open store", "backend", cfg.Store.Backend, "error", err)
		fmt.Fprintf(stderr, "Failed to open store: %v\n", err)
		return exitFailure
	}
	defer store.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Addr != "" {
		var stopMetrics func()
		m, stopMetrics, err = startMetrics(ctx, cfg.Metrics.Addr, logger)
		if err != nil {
			logger.Errorw("Failed to set up metrics", "error", err)
			return exitFailure
		}
		defer stopMetrics()
	}

	return resaveKeyspace(ctx, cfg, opts, store, m, stdout, stderr, logger)
}

// startMetrics serves /metrics until the returned stop function is called
func startMetrics(ctx context.Context, addr string, logger *zap.SugaredLogger) (*metrics.Metrics, func(), error) {
	m, handler, err := metrics.Setup("kv-resave")
	if err != nil {
		return nil, nil, err
	}

	serverCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := metrics.Serve(serverCtx, addr, metrics.Routes(handler), logger); err != nil {
			logger.Errorw("Metrics server error", "error", err)
		}
	}()

	stop := func() {
		cancel()
		<-done
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Warnw("Metrics shutdown failed", "error", err)
		}
	}
	return m, stop, nil
}
