package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appfees "github.com/schoolfees/backend/internal/application/fees"
	"github.com/schoolfees/backend/internal/application/reminder"
	appstudent "github.com/schoolfees/backend/internal/application/student"
	"github.com/schoolfees/backend/internal/domain/fees"
	"github.com/schoolfees/backend/internal/infrastructure/auth"
	"github.com/schoolfees/backend/internal/infrastructure/cache"
	"github.com/schoolfees/backend/internal/infrastructure/config"
	"github.com/schoolfees/backend/internal/infrastructure/email"
	"github.com/schoolfees/backend/internal/infrastructure/event"
	"github.com/schoolfees/backend/internal/infrastructure/logger"
	"github.com/schoolfees/backend/internal/infrastructure/persistence"
	"github.com/schoolfees/backend/internal/infrastructure/scheduler"
	"github.com/schoolfees/backend/internal/infrastructure/telemetry"
	"github.com/schoolfees/backend/internal/interfaces/http/handler"
	"github.com/schoolfees/backend/internal/interfaces/http/middleware"
	"github.com/schoolfees/backend/internal/interfaces/http/router"
)

const version = "1.0.0"

// paymentEventClaimTTL bounds how long a handled InstallmentPaid event stays claimed
const paymentEventClaimTTL = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	providers, err := telemetry.Setup(rootCtx, cfg.Telemetry, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	// Tee console output into the OTel logs pipeline once the provider exists
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	log, err := logger.New(logCfg, telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		LoggerProvider: providers.Logs,
		Level:          level,
	}))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting fees backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("telemetry", cfg.Telemetry.Enabled),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfigFrom(cfg.Telemetry, cfg.Database.Driver), log).
		RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Database tracing not registered", zap.Error(err))
	}
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, providers.Meter, cfg.Telemetry.DBSlowQueryThresh, log)
	if err != nil {
		log.Warn("Database metrics not registered", zap.Error(err))
	}

	// Repositories
	studentRepo := persistence.NewGormStudentRepository(db.DB)
	ledgerRepo := persistence.NewGormFeeLedgerRepository(db.DB)
	notificationRepo := persistence.NewGormNotificationRepository(db.DB)

	claims, err := cache.NewClaimStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create claim store", zap.Error(err))
	}
	defer func() {
		if err := claims.Close(); err != nil {
			log.Warn("Error closing claim store", zap.Error(err))
		}
	}()

	settings, err := reminder.SettingsFrom(cfg.Reminder)
	if err != nil {
		log.Fatal("Invalid reminder configuration", zap.Error(err))
	}

	sender, err := email.NewSender(cfg.Email, cfg.App.Name, log)
	if err != nil {
		log.Fatal("Failed to create email sender", zap.Error(err))
	}

	metrics, err := telemetry.NewReminderMetrics(providers.Meter.Meter("fees.reminders"))
	if err != nil {
		log.Fatal("Failed to register reminder metrics", zap.Error(err))
	}

	// One lock table shared by payments and reminders
	locks := appfees.NewLedgerLocks()

	dedup := reminder.NewDeduplicator(notificationRepo, claims, nil, settings, log)
	dispatcher := reminder.NewDispatcher(ledgerRepo, studentRepo, notificationRepo, sender, dedup, settings, log,
		reminder.WithMetrics(metrics),
		reminder.WithLedgerLocks(locks),
	)
	scanner := reminder.NewScanner(ledgerRepo, studentRepo, dispatcher, dedup, settings, log,
		reminder.WithMetrics(metrics),
		reminder.WithLedgerLocks(locks),
	)

	// Payment confirmations run synchronously on the publishing goroutine
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(
		event.NewIdempotentHandler(reminder.NewPaymentConfirmationHandler(dispatcher, log), claims, paymentEventClaimTTL, log),
		fees.EventTypeInstallmentPaid,
	)
	if err := eventBus.Start(rootCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := eventBus.Stop(stopCtx); err != nil {
			log.Warn("Error stopping event bus", zap.Error(err))
		}
	}()

	ledgerService := appfees.NewLedgerService(ledgerRepo, studentRepo, locks, log,
		appfees.WithLocation(settings.Location),
		appfees.WithLateFeePerDay(settings.LateFeePerDay),
		appfees.WithEventPublisher(eventBus),
		appfees.WithPaymentMetrics(metrics),
	)
	studentService := appstudent.NewService(studentRepo, log)
	jwtService := auth.NewJWTService(cfg.JWT)

	// Reminder scheduler; the API still serves synchronous passes when disabled
	var reminderJobs handler.ReminderJobs
	if cfg.Scheduler.Enabled {
		executor := scheduler.NewTaskExecutor().
			Register(scheduler.JobTypeDailySweep, func(ctx context.Context) error {
				_, err := scanner.RunDailySweep(ctx)
				return err
			}).
			Register(scheduler.JobTypeHourlyScan, func(ctx context.Context) error {
				_, err := scanner.ScanDueInstallments(ctx)
				return err
			})
		jobScheduler := scheduler.NewScheduler(scheduler.SchedulerConfigFrom(cfg.Scheduler), executor, log)
		if err := jobScheduler.Start(rootCtx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := jobScheduler.Stop(stopCtx); err != nil {
				log.Warn("Error stopping scheduler", zap.Error(err))
			}
		}()

		triggerCfg, err := scheduler.CronTriggerConfigFrom(cfg.Scheduler, settings.Location)
		if err != nil {
			log.Fatal("Invalid scheduler configuration", zap.Error(err))
		}
		trigger := scheduler.NewCronTrigger(triggerCfg, jobScheduler, log)
		if err := trigger.Start(rootCtx); err != nil {
			log.Fatal("Failed to start cron trigger", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := trigger.Stop(stopCtx); err != nil {
				log.Warn("Error stopping cron trigger", zap.Error(err))
			}
		}()
		reminderJobs = trigger
	} else {
		log.Info("Reminder scheduler disabled")
	}

	// Handlers
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, db)
	handlers := router.Handlers{
		Students:      handler.NewStudentHandler(studentService),
		Ledgers:       handler.NewLedgerHandler(ledgerService),
		Notifications: handler.NewNotificationHandler(dispatcher),
		Reminders:     handler.NewReminderHandler(scanner, dispatcher, reminderJobs),
		System:        systemHandler,
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	middleware.SetupValidator()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	secureCfg := middleware.DefaultSecurityConfig()
	secureCfg.HSTSEnabled = cfg.App.Env == "production"

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: providers.Meter,
			Enabled:       cfg.Telemetry.Enabled,
		}),
		logger.GinMiddleware(log),
		middleware.SecureWithConfig(secureCfg),
		middleware.CORSWithConfig(corsCfg),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Timeout(cfg.HTTP.RequestTimeout),
	)

	engine.GET("/health", systemHandler.Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(
		middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
			Validator: jwtService,
			Logger:    log,
		}),
		middleware.TracingAttributeInjector(),
	)
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		go limiter.Run(rootCtx)
		r.Use(middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}
	for _, group := range router.FeeRoutes(handlers) {
		r.Register(group)
	}
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	stop()

	if dbMetrics != nil {
		if err := dbMetrics.Stop(); err != nil {
			log.Warn("Error stopping database metrics", zap.Error(err))
		}
	}
	if err := providers.Shutdown(ctx); err != nil {
		log.Warn("Error shutting down telemetry", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
