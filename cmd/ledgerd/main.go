// Command ledgerd ingests bank messages into the ledger, rebuilds recurring
// series on a schedule and serves Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/FACorreiaa/echo-ledger/internal/connector"
	"github.com/FACorreiaa/echo-ledger/internal/domain/export"
	"github.com/FACorreiaa/echo-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/echo-ledger/pkg/config"
)

func main() {
	var (
		ingestPath = flag.String("ingest", "", "JSONL file of messages to sync")
		rebuild    = flag.Bool("rebuild", false, "rebuild recurring series once and exit")
		exportPath = flag.String("export", "", "write the ledger to this file and exit")
		format     = flag.String("format", string(ledger.FormatCSV), "export format: csv or xlsx")
		serve      = flag.Bool("serve", false, "run the rebuild scheduler and metrics server until interrupted")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))
	slog.SetDefault(logger)

	if err := run(*ingestPath, *rebuild, *exportPath, ledger.Format(*format), *serve, logger); err != nil {
		logger.Error("ledgerd failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ingestPath string, rebuild bool, exportPath string, format ledger.Format, serve bool, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	deps, err := InitDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	if ingestPath != "" {
		res, err := deps.Ingest.SyncFrom(ctx, connector.NewJSONLFile(ingestPath), cfg.Extraction.SyncBatchSize)
		if err != nil {
			return fmt.Errorf("failed to sync %s: %w", ingestPath, err)
		}
		logger.Info("ingest finished",
			slog.Int("new", res.NewCount),
			slog.Int("duplicates", res.DuplicateCount),
			slog.Int("failed", res.FailedCount),
			slog.Int("errors", len(res.Errors)),
		)
	}

	if rebuild {
		if _, err := deps.Recurring.Rebuild(ctx, time.Now()); err != nil {
			return fmt.Errorf("failed to rebuild series: %w", err)
		}
	}

	if exportPath != "" {
		if err := writeExport(ctx, deps.Ledger, exportPath, format); err != nil {
			return err
		}
	}

	if serve {
		return serveUntilDone(ctx, deps)
	}
	return nil
}

func writeExport(ctx context.Context, l *ledger.Service, path string, format ledger.Format) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, export.FileName(time.Now(), string(format)))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if err := l.Export(ctx, f, format); err != nil {
		return fmt.Errorf("failed to export ledger: %w", err)
	}
	slog.Info("ledger exported", slog.String("path", path), slog.String("format", string(format)))
	return nil
}

func serveUntilDone(ctx context.Context, deps *Dependencies) error {
	if err := deps.Scheduler.Start(); err != nil {
		return err
	}
	defer func() { <-deps.Scheduler.Stop().Done() }()

	var srv *http.Server
	if deps.Config.Observability.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", deps.Metrics.Handler())
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", deps.Config.Observability.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			deps.Logger.Info("metrics server listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				deps.Logger.Error("metrics server failed", slog.Any("error", err))
			}
		}()
	}

	<-ctx.Done()
	deps.Logger.Info("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop metrics server: %w", err)
		}
	}
	return nil
}

func logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return level
}
