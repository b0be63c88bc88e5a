package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/echo-ledger/internal/domain/categorization"
	"github.com/FACorreiaa/echo-ledger/internal/domain/extraction"
	"github.com/FACorreiaa/echo-ledger/internal/domain/extraction/model"
	"github.com/FACorreiaa/echo-ledger/internal/domain/extraction/pattern"
	"github.com/FACorreiaa/echo-ledger/internal/domain/ingest"
	"github.com/FACorreiaa/echo-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/echo-ledger/internal/domain/recurring"
	"github.com/FACorreiaa/echo-ledger/internal/domain/search"
	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/echo-ledger/internal/events"
	"github.com/FACorreiaa/echo-ledger/internal/llm/gemini"
	"github.com/FACorreiaa/echo-ledger/pkg/config"
	"github.com/FACorreiaa/echo-ledger/pkg/cron"
	"github.com/FACorreiaa/echo-ledger/pkg/db"
	"github.com/FACorreiaa/echo-ledger/pkg/metrics"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	DB      *db.DB
	Logger  *slog.Logger
	Metrics *metrics.Collector
	Bus     *events.Bus

	// Repositories
	TransactionRepo transaction.Repository
	AssociationRepo categorization.AssociationStore
	SeriesRepo      recurring.Repository

	// Services
	Learner     *categorization.Learner
	Coordinator *extraction.Coordinator
	Ingest      *ingest.Service
	Recurring   *recurring.Service
	Ledger      *ledger.Service
	Index       *search.Index
	Scheduler   *cron.Scheduler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(true),
		Bus:     events.NewBus(logger),
	}

	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initServices(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase(ctx context.Context) error {
	database, err := db.New(ctx, db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        2,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.DB = database

	if err := d.DB.RunMigrations(ctx); err != nil {
		d.DB.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (d *Dependencies) initRepositories() {
	d.TransactionRepo = transaction.NewPostgresRepository(d.DB.Pool)
	d.AssociationRepo = categorization.NewPostgresStore(d.DB.Pool)
	d.SeriesRepo = recurring.NewPostgresRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initServices(ctx context.Context) error {
	cfg := d.Config

	d.Learner = categorization.NewLearner(d.AssociationRepo, d.Logger)

	strategies := []extraction.Strategy{pattern.New()}
	if cfg.Gemini.APIKey != "" && cfg.Gemini.Model != "" {
		client, err := gemini.New(ctx, cfg.Gemini.APIKey,
			gemini.WithTimeout(cfg.Gemini.Timeout),
			gemini.WithLogger(d.Logger),
		)
		if err != nil {
			return fmt.Errorf("failed to init gemini client: %w", err)
		}
		fallback, err := model.New(client, cfg.Gemini.Model,
			model.WithEmailTwoStepThreshold(cfg.Extraction.EmailTwoStepThreshold),
			model.WithLogger(d.Logger),
		)
		if err != nil {
			return fmt.Errorf("failed to init model extractor: %w", err)
		}
		strategies = append(strategies, fallback)
	}

	d.Coordinator = extraction.NewCoordinator(d.TransactionRepo, strategies,
		extraction.WithConfidenceFloor(cfg.Extraction.ConfidenceFloor),
		extraction.WithFallbackEnabled(cfg.Extraction.FallbackEnabled),
		extraction.WithReparseDelay(cfg.Extraction.ReparseDelay),
		extraction.WithHomeCurrency(cfg.Extraction.HomeCurrency),
		extraction.WithSuggester(d.Learner),
		extraction.WithObserver(d.Metrics),
		extraction.WithEmitter(d.Bus),
		extraction.WithLogger(d.Logger),
	)

	d.Ingest = ingest.NewService(d.Coordinator, d.TransactionRepo,
		ingest.WithGate(ingest.NewGate(cfg.Dedup.WindowDays, cfg.Dedup.MerchantSimilarity)),
		ingest.WithWorkers(cfg.Extraction.SyncWorkers),
		ingest.WithEmitter(d.Bus),
		ingest.WithObserver(d.Metrics),
		ingest.WithLogger(d.Logger),
	)

	d.Recurring = recurring.NewService(d.TransactionRepo, d.SeriesRepo,
		recurring.WithPredictor(recurring.NewPredictor(cfg.Recurring.UpcomingDays)),
		recurring.WithEmitter(d.Bus),
		recurring.WithObserver(d.Metrics),
		recurring.WithLogger(d.Logger),
	)

	index, err := search.NewIndex(cfg.Search.IndexPath)
	if err != nil {
		return fmt.Errorf("failed to open search index: %w", err)
	}
	d.Index = index

	d.Ledger = ledger.NewService(d.TransactionRepo, d.Learner, d.Index, d.Logger)
	if err := d.Ledger.Reindex(ctx); err != nil {
		return fmt.Errorf("failed to build search index: %w", err)
	}
	d.Bus.Subscribe(d.Ledger.HandleEvent, events.KindTransactionIngested, events.KindTransactionReparsed)

	d.Scheduler = cron.NewScheduler(d.Recurring, cfg.Recurring.RebuildSchedule, d.Logger)

	d.Logger.Info("services initialized",
		slog.Int("strategies", len(strategies)),
		slog.Bool("fallback_enabled", cfg.Extraction.FallbackEnabled),
	)
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Index != nil {
		if err := d.Index.Close(); err != nil {
			d.Logger.Warn("failed to close search index", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
