// Command server runs the wellbeing check-in platform: domain verification,
// license registry, weekly check-ins and reports, support routing, and the
// weekly dispatch scheduler in one binary.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	checkinhandler "clearshift/internal/checkin/handler"
	checkinservice "clearshift/internal/checkin/service"
	questionstore "clearshift/internal/checkin/store/question"
	responsestore "clearshift/internal/checkin/store/response"
	companyhandler "clearshift/internal/company/handler"
	companyservice "clearshift/internal/company/service"
	companystore "clearshift/internal/company/store"
	dispatchhandler "clearshift/internal/dispatch/handler"
	dispatchmetrics "clearshift/internal/dispatch/metrics"
	dispatchservice "clearshift/internal/dispatch/service"
	dispatchstore "clearshift/internal/dispatch/store"
	httprouter "clearshift/internal/http"
	licensehandler "clearshift/internal/license/handler"
	licenseservice "clearshift/internal/license/service"
	licensestore "clearshift/internal/license/store"
	"clearshift/internal/notify"
	"clearshift/internal/platform/config"
	"clearshift/internal/platform/httpserver"
	"clearshift/internal/platform/logger"
	"clearshift/internal/platform/middleware"
	"clearshift/internal/platform/otel"
	"clearshift/internal/platform/postgres"
	platformredis "clearshift/internal/platform/redis"
	"clearshift/internal/report"
	reportcache "clearshift/internal/report/cache"
	reporthandler "clearshift/internal/report/handler"
	supporthandler "clearshift/internal/support/handler"
	supportservice "clearshift/internal/support/service"
	supportstore "clearshift/internal/support/store"
	verificationhandler "clearshift/internal/verification/handler"
	verificationmetrics "clearshift/internal/verification/metrics"
	"clearshift/internal/verification/resolver"
	verificationservice "clearshift/internal/verification/service"
	verificationstore "clearshift/internal/verification/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := otel.Init(ctx, "clearshift", cfg.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error("tracer shutdown failed", "error", err)
			}
		}()
	}

	db, err := postgres.Open(cfg.PostgresURL)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
		log.Info("postgres connected")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	var (
		verStore      verificationservice.Store = verificationstore.NewInMemory()
		licStore      licenseservice.Store      = licensestore.NewInMemory()
		questionStore checkinservice.QuestionStore
		respStore     interface {
			checkinservice.ResponseStore
			report.ResponseReader
		}
		receiptStore dispatchservice.ReceiptStore = dispatchstore.NewInMemory()
		suppStore    supportservice.Store         = supportstore.NewInMemory()
		userStore    companyservice.Store         = companystore.NewInMemory()
	)
	questionStore = questionstore.NewInMemory()
	respStore = responsestore.NewInMemory()
	if db != nil {
		verStore = verificationstore.NewPostgres(db)
		licStore = licensestore.NewPostgres(db)
		questionStore = questionstore.NewPostgres(db)
		respStore = responsestore.NewPostgres(db)
		receiptStore = dispatchstore.NewPostgres(db)
		suppStore = supportstore.NewPostgres(db)
		userStore = companystore.NewPostgres(db)
	}

	// Outbound email. Without an API key the queue logs and drops, which
	// keeps local runs working end to end.
	var notifier notify.Notifier
	if cfg.Notify.SendGridAPIKey != "" {
		notifier = notify.NewSendGridNotifier(cfg.Notify.SendGridAPIKey, cfg.Notify.FromAddress)
	}
	queue := notify.NewQueue(cfg.Notify.QueueSize, log)
	worker := notify.NewWorker(queue, notifier, log)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("notify worker stopped", "error", err)
		}
	}()

	verificationSvc := verificationservice.New(
		verStore,
		resolver.NewPinned(cfg.Verification.Resolvers, cfg.Verification.LookupTimeout),
		verificationservice.Config{
			HostPrefix:        cfg.Verification.HostPrefix,
			DefaultTTLSeconds: cfg.Verification.DefaultTTLSeconds,
			Window:            cfg.Verification.Window,
		},
		verificationservice.WithLogger(log),
		verificationservice.WithMetrics(verificationmetrics.New()),
	)

	// The license registry counts seats against the company roster; the
	// roster in turn gates creation on the registry. Wiring the registry
	// to the store keeps the construction order acyclic.
	licenseSvc := licenseservice.New(licStore, verificationSvc, userStore,
		licenseservice.WithLogger(log),
		licenseservice.WithNotifier(queue))
	companySvc := companyservice.New(userStore, verificationSvc, licenseSvc,
		companyservice.WithLogger(log),
		companyservice.WithNotifier(queue))

	checkinSvc := checkinservice.New(questionStore, respStore, licenseSvc,
		checkinservice.WithLogger(log),
		checkinservice.WithNotifier(queue))

	reportOpts := []report.Option{report.WithLogger(log)}
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		reportOpts = append(reportOpts,
			report.WithCache(reportcache.NewRedisCache(redisClient.Client, cfg.SummaryCacheTTL, log)))
		log.Info("redis summary cache enabled")
	}
	reportSvc := report.New(respStore, reportOpts...)

	dispatchSvc := dispatchservice.New(receiptStore, licenseSvc, licenseSvc, reportSvc, queue,
		dispatchservice.Config{MaxParallel: cfg.Dispatch.MaxParallel},
		dispatchservice.WithLogger(log),
		dispatchservice.WithMetrics(dispatchmetrics.New()))
	if cfg.Dispatch.Enabled {
		scheduler := dispatchservice.NewScheduler(dispatchSvc, dispatchservice.SchedulerConfig{
			Day:       cfg.Dispatch.WindowDay,
			StartHour: cfg.Dispatch.WindowStartHour,
			EndHour:   cfg.Dispatch.WindowEndHour,
			Interval:  cfg.Dispatch.Interval,
		}, dispatchservice.WithSchedulerLogger(log))
		go scheduler.Run(ctx)
	}

	supportSvc := supportservice.New(suppStore, licenseSvc, queue,
		supportservice.Config{FallbackEmail: cfg.Notify.SupportFallbackEmail},
		supportservice.WithLogger(log))

	router := httprouter.NewRouter(httprouter.Handlers{
		Verification: verificationhandler.New(verificationSvc, log),
		License:      licensehandler.New(licenseSvc, log),
		Dispatch:     dispatchhandler.New(dispatchSvc, log),
		Checkin:      checkinhandler.New(checkinSvc, log),
		Report:       reporthandler.New(reportSvc, log),
		Support:      supporthandler.New(supportSvc, log),
		Company:      companyhandler.New(companySvc, log),
	}, httprouter.Deps{
		Logger:         log,
		AdminValidator: middleware.NewAdminValidator(cfg.JWTSigningKey),
		Verifier:       verificationSvc,
		Licenses:       licenseSvc,
	})

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
