package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/kursadbilgin/newsletter-engine/internal/config"
	"github.com/kursadbilgin/newsletter-engine/internal/handler"
	"github.com/kursadbilgin/newsletter-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/newsletter-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/newsletter-engine/internal/infra/redis"
	"github.com/kursadbilgin/newsletter-engine/internal/observability"
	"github.com/kursadbilgin/newsletter-engine/internal/provider"
	"github.com/kursadbilgin/newsletter-engine/internal/quota"
	"github.com/kursadbilgin/newsletter-engine/internal/ratelimit"
	"github.com/kursadbilgin/newsletter-engine/internal/render"
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
	"github.com/kursadbilgin/newsletter-engine/internal/service"
	"github.com/kursadbilgin/newsletter-engine/internal/transport"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 20 * time.Second

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	metrics := observability.NewMetrics()

	postRepo := repository.NewGormPostRepo(db)
	subscriberRepo := repository.NewGormSubscriberRepo(db)
	campaignRepo := repository.NewGormCampaignRepo(db)
	recipientRepo := repository.NewGormRecipientRepo(db)
	settingsRepo := repository.NewGormSettingsRepo(db)
	auditRepo := repository.NewGormAuditRepo(db)

	oracle, err := quota.NewOracle(quota.NewSettingsLimitSource(settingsRepo), recipientRepo, cfg.NewsletterDailyLimit)
	if err != nil {
		logger.Fatal("quota oracle initialization failed", zap.Error(err))
	}

	limiter, err := newRateLimiter(cfg, rdb)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	emailProvider, err := newEmailProvider(cfg)
	if err != nil {
		logger.Fatal("email provider initialization failed", zap.Error(err))
	}

	renderer, err := render.NewRenderer(cfg.SiteURL)
	if err != nil {
		logger.Fatal("renderer initialization failed", zap.Error(err))
	}

	lock, err := infraredis.NewDispatchLock(rdb, cfg.DispatchLockTTL())
	if err != nil {
		logger.Fatal("dispatch lock initialization failed", zap.Error(err))
	}

	initiator, err := service.NewCampaignInitiator(postRepo, subscriberRepo, campaignRepo, recipientRepo, auditRepo, logger)
	if err != nil {
		logger.Fatal("campaign initiator initialization failed", zap.Error(err))
	}
	initiator.SetMetrics(metrics)

	dispatcher, err := service.NewBatchDispatcher(service.DispatcherDeps{
		Quota:       oracle,
		Campaigns:   campaignRepo,
		Recipients:  recipientRepo,
		Posts:       postRepo,
		Subscribers: subscriberRepo,
		Audit:       auditRepo,
		Renderer:    renderer,
		Provider:    emailProvider,
		RateLimiter: limiter,
		Lock:        lock,
		From:        cfg.NewsletterFrom,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("batch dispatcher initialization failed", zap.Error(err))
	}
	dispatcher.SetMetrics(metrics)

	maintenance, err := service.NewMaintenance(settingsRepo, auditRepo, cfg.AuditRetentionDays, logger)
	if err != nil {
		logger.Fatal("maintenance initialization failed", zap.Error(err))
	}

	job, err := service.NewNewsletterJob(dispatcher, maintenance)
	if err != nil {
		logger.Fatal("newsletter job initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:      "newsletter-engine",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, handler.PostgresCheck(sqlDB), handler.RedisCheck(rdb))
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterCronRoutes(app, job, cfg.CronSecret); err != nil {
		logger.Fatal("cron routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterAdminRoutes(app, cfg.AdminAPIToken, handler.AdminDeps{
		Initiator: initiator,
		Queries:   service.NewCampaignQueries(campaignRepo, recipientRepo),
		Quota:     oracle,
		Settings:  service.NewSettingsService(settingsRepo),
		Logger:    logger,
	}); err != nil {
		logger.Fatal("admin routes registration failed", zap.Error(err))
	}

	if interval := cfg.DispatchInterval(); interval > 0 {
		scheduler, err := service.NewScheduler(job, interval, logger)
		if err != nil {
			logger.Fatal("scheduler initialization failed", zap.Error(err))
		}
		go func() {
			_ = scheduler.Start(ctx)
		}()
		logger.Info("in-process newsletter scheduler enabled", zap.Duration("interval", interval))
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()

	logger.Info("newsletter-engine api started",
		zap.Int("port", cfg.APIPort),
		zap.String("emailTransport", cfg.EmailTransport),
		zap.String("rateLimiter", cfg.SendRateLimiter),
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
	logger.Info("newsletter-engine api stopped")
}

func newRateLimiter(cfg *config.Config, rdb *goredis.Client) (ratelimit.RateLimiter, error) {
	if cfg.SendRateLimiter == config.RateLimiterLocal {
		return ratelimit.NewLocalLimiter(cfg.SendRateLimitPerSec), nil
	}
	return infraredis.NewRedisRateLimiter(rdb, cfg.SendRateLimitPerSec)
}

func newEmailProvider(cfg *config.Config) (provider.EmailProvider, error) {
	if cfg.EmailTransport == config.EmailTransportSMTP {
		return provider.NewSMTPProvider(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	}
	return provider.NewHTTPEmailProvider(cfg.EmailAPIURL, cfg.EmailAPIKey)
}
