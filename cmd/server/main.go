package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/alphavantage"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/api"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/config"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/database"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/events"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/events/kafka"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/finnhub"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/logging"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/pricecache"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/pricesource"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/repository"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/scheduler"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/service"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/yahoo"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger("info").Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.NewLogger(cfg.Logging.Level)
	log := logger.Component("server")

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	log.Info().Str("path", cfg.Database.Path).Msg("connected to database")

	migrator, err := database.NewMigrator(db, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create migrator")
	}
	version, err := migrator.Up(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}
	log.Info().Int64("db_version", version).Msg("database schema up to date")

	// Create repositories
	transactionRepo := repository.NewTransactionRepository(db)
	priceRepo := repository.NewPriceCacheRepository(db)
	overrideRepo := repository.NewManualPriceRepository(db)
	jobRepo := repository.NewBatchJobRepository(db)

	// Price sources, in priority order
	sources := newSourceChain(cfg.Sources, logger)

	cache := pricecache.New(priceRepo, pricecache.WithInitialReliability(cfg.Resolver.InitialReliability))
	resolver := service.NewPriceResolver(cache, sources, cfg.Resolver, logger)

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.Events.KafkaBrokers) > 0 {
		publisher = kafka.NewPublisher(cfg.Events.KafkaBrokers, cfg.Events.Topic)
		log.Info().Strs("brokers", cfg.Events.KafkaBrokers).Str("topic", cfg.Events.Topic).Msg("job events enabled")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	// Create services
	reconciler := service.NewBatchReconciler(resolver, jobRepo, transactionRepo, priceRepo, publisher, cfg.Batch, logger)
	cleanupService := service.NewCleanupService(jobRepo, priceRepo, cfg.Schedule, logger)
	systemService := service.NewSystemService(db, migrator, sources, cache, map[string]bool{
		"scheduler": cfg.Schedule.Enabled,
		"events":    len(cfg.Events.KafkaBrokers) > 0,
	})

	svc := api.Services{
		System:       systemService,
		Transactions: service.NewTransactionService(transactionRepo),
		Valuation:    service.NewValuationService(transactionRepo, overrideRepo, resolver, logger),
		ManualPrices: service.NewManualPriceService(overrideRepo, logger),
		Resolver:     resolver,
		Reconciler:   reconciler,
		Cleanup:      cleanupService,
	}

	var sched *scheduler.Scheduler
	if cfg.Schedule.Enabled {
		sched, err = scheduler.New(cfg.Schedule, reconciler, cleanupService, logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create scheduler")
		}
		sched.Start()
		svc.Jobs = sched
	}

	// Create router
	router := api.NewRouter(svc, cfg, logger)

	// Create HTTP server. Reconcile requests run synchronously, so the write
	// timeout leaves room for a full job.
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Batch.JobTimeout + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("version", service.AppVersion).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(ctx); err != nil {
			log.Error().Err(err).Msg("scheduler did not stop in time")
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server exited")
}

// newSourceChain builds the quote provider chain. Yahoo needs no key and is always
// first; the keyed providers join only when their key is configured.
func newSourceChain(cfg config.SourcesConfig, logger *logging.Logger) *pricesource.Chain {
	members := []pricesource.Member{
		{Source: yahoo.NewFinanceClient(), Limit: rate.Limit(cfg.YahooPerSecond), Burst: 1},
	}
	if cfg.AlphaVantageKey != "" {
		members = append(members, pricesource.Member{
			Source: alphavantage.NewClient(cfg.AlphaVantageKey),
			Limit:  rate.Limit(cfg.AlphaVantagePerMin / 60),
			Burst:  1,
		})
	}
	if cfg.FinnhubKey != "" {
		members = append(members, pricesource.Member{
			Source: finnhub.NewClient(cfg.FinnhubKey),
			Limit:  rate.Limit(cfg.FinnhubPerMin / 60),
			Burst:  1,
		})
	}

	return pricesource.NewChain(members,
		pricesource.WithFailureThreshold(cfg.FailureThreshold),
		pricesource.WithCooloff(cfg.FailureCooloff),
		pricesource.WithLogger(logger.Component("price_sources")),
	)
}
