package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/quotedesk/quotedesk/internal/app"
	"github.com/quotedesk/quotedesk/internal/catalog"
	"github.com/quotedesk/quotedesk/internal/observability"
	"github.com/quotedesk/quotedesk/internal/platform/cache"
	"github.com/quotedesk/quotedesk/internal/platform/db"
	"github.com/quotedesk/quotedesk/internal/quotations"
	"github.com/quotedesk/quotedesk/internal/shared"
	"github.com/quotedesk/quotedesk/internal/storage"
	"github.com/quotedesk/quotedesk/jobs"
	"github.com/quotedesk/quotedesk/report"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "jobs":
			os.Exit(runJobsCommand(os.Args[2:]))
		case "migrate":
			os.Exit(runMigrate())
		}
	}
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions("quotedesk-api"))
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	pdfClient := report.NewClient(cfg.GotenbergURL, cfg.PDFTimeout)
	tag, err := language.Parse(cfg.PDFLocale)
	if err != nil {
		logger.Warn("unknown pdf locale, using default", slog.String("locale", cfg.PDFLocale), slog.Any("error", err))
		tag = language.LatinAmericanSpanish
	}
	renderer, err := report.NewQuotationRenderer(pdfClient, tag)
	if err != nil {
		logger.Error("init quotation renderer", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := cfg.RedisOptions().AsynqOpt()
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	readiness := map[string]app.ReadinessCheck{
		"postgres": pool.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
		"gotenberg": pdfClient.Ping,
	}

	var archive quotations.Archiver
	archiveCfg := cfg.ArchiveConfig()
	if archiveCfg.Enabled() {
		minioArchive, err := storage.NewMinIOArchive(archiveCfg)
		if err != nil {
			logger.Error("init document archive", slog.Any("error", err))
			os.Exit(1)
		}
		if err := minioArchive.EnsureBucket(ctx); err != nil {
			logger.Warn("document archive bucket", slog.Any("error", err))
		}
		archive = minioArchive
		readiness["archive"] = minioArchive.Ping
	}

	runner := db.NewTxRunner(pool, cfg.TxMaxAttempts)
	lookup := catalog.NewLookup(catalog.NewRepository(pool), logger)
	service := quotations.NewService(quotations.Deps{
		Repo:     quotations.NewRepository(runner, shared.NewAuditLogger()),
		Builder:  quotations.NewLineBuilder(lookup),
		Locker:   shared.NewLocker(redisClient, cfg.QuoteLockTTL),
		Renderer: renderer,
		Archive:  archive,
		Retries:  jobsClient,
		Metrics:  metrics,
		Logger:   logger,
	})

	quotationHandler := quotations.NewHandler(logger, service).
		WithIdempotency(shared.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL))

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		QuotationHandler: quotationHandler,
		ReportHandler:    report.NewHandler(pdfClient, logger),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
		Readiness:        readiness,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
