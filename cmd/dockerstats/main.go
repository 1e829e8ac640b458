// Command dockerstats prints derived CPU, memory and network stats of Docker
// containers.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/rusenback/docker-stats/internal/docker"
	"github.com/rusenback/docker-stats/internal/metrics"
	"github.com/rusenback/docker-stats/internal/storage"
)

func main() {
	opts := newOptions()
	opts.bindFlags(pflag.CommandLine)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [CONTAINER...]\n\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if err := opts.validate(pflag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(opts.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, pflag.Args(), os.Stdout, logger); err != nil {
		logger.Errorw("dockerstats failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options, args []string, out io.Writer, logger *zap.SugaredLogger) error {
	var store *storage.Storage
	if opts.dbPath != "" {
		path, err := opts.resolveDBPath()
		if err != nil {
			return err
		}
		store, err = storage.NewStorage(path, storage.WithLogger(logger))
		if err != nil {
			return err
		}
		defer store.Close()
	}

	if opts.history != "" {
		timeRange, err := storage.ParseTimeRange(opts.history)
		if err != nil {
			return err
		}
		a := newApp(opts, nil, out, logger)
		a.store = store
		return a.history(args[0], timeRange)
	}

	client, err := docker.NewClient(ctx, opts.docker, docker.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("make sure Docker is running and reachable: %w", err)
	}
	defer client.Close()

	a := newApp(opts, client, out, logger)
	a.store = store

	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		a.recorder = metrics.NewRecorder(reg)
		stopMetrics := serveMetrics(opts.metricsAddr, reg, logger)
		defer stopMetrics()
	}

	return a.run(ctx, args)
}

func (a *app) run(ctx context.Context, args []string) error {
	targets, err := a.resolveTargets(ctx, args)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		a.logger.Infow("No running containers")
		return nil
	}

	if a.opts.follow {
		return a.follow(ctx, targets)
	}
	return a.once(ctx, targets)
}

// serveMetrics serves /metrics in the background and returns a func that
// shuts the server down
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.SugaredLogger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infow("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("Metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
