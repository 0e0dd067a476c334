/**
 * @description
 * Entry point for the collections service.
 */
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/transfa/collections-service/internal/api"
	"github.com/transfa/collections-service/internal/app"
	"github.com/transfa/collections-service/internal/config"
	"github.com/transfa/collections-service/internal/domain"
	"github.com/transfa/collections-service/internal/logger"
	"github.com/transfa/collections-service/internal/store"
	"github.com/transfa/collections-service/pkg/notifier"
	"github.com/transfa/collections-service/pkg/paymentdoc"
	"github.com/transfa/collections-service/pkg/rabbitmq"
	"github.com/transfa/collections-service/pkg/statscache"
)

func main() {
	// A missing .env file is fine; the environment is the source of truth.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var (
		st     store.Store
		pinger api.Pinger
	)
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		zl.Warn("DATABASE_URL not set; using in-memory store")
		st = store.NewMemoryStore()
	} else {
		pgConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			zl.Fatal("unable to parse database URL", zap.Error(err))
		}
		pgConfig.MaxConns = 20
		pgConfig.MinConns = 2
		pgConfig.MaxConnLifetime = 30 * time.Minute
		pgConfig.MaxConnIdleTime = 5 * time.Minute
		pgConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

		dbpool, err := pgxpool.NewWithConfig(ctx, pgConfig)
		if err != nil {
			zl.Fatal("unable to connect to database", zap.Error(err))
		}
		defer dbpool.Close()

		pgStore := store.NewPostgresStore(dbpool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			zl.Fatal("failed to apply database schema", zap.Error(err))
		}
		zl.Info("database connection established")
		st, pinger = pgStore, pgStore
	}

	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{Logger: zl}
	if cfg.RabbitMQURL != "" {
		if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err == nil {
			publisher = producer
			defer producer.Close()
			zl.Info("rabbitmq connected")
		} else {
			zl.Warn("failed to connect to RabbitMQ, using fallback publisher", zap.Error(err))
		}
	}

	var docs app.DocumentProvider
	if cfg.PaymentGatewayURL != "" {
		docs = paymentdoc.NewGatewayClient(cfg.PaymentGatewayURL, cfg.PaymentGatewayAPIKey)
	} else {
		docs = paymentdoc.NewLocalProvider(cfg.PaymentDocsDir, cfg.PaymentLinkBaseURL)
	}

	var emailSender notifier.Sender
	if cfg.SMTPHost != "" {
		emailSender = notifier.NewEmailSender(notifier.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	} else {
		zl.Warn("SMTP_HOST not set; email notifications disabled")
	}
	dispatcher := notifier.NewDispatcher(notifier.NewSystemSender(publisher), emailSender, zl)

	opts := []app.Option{
		app.WithLocation(cfg.Location()),
		app.WithEscalationThreshold(cfg.EscalationThresholdDays),
		app.WithAutoEscalation(cfg.AutoEscalate),
		app.WithDefaultChannel(domain.Channel(cfg.NotifyChannel)),
		app.WithNotifyTimeout(cfg.NotifyTimeout),
	}

	if cfg.RedisURL != "" {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			zl.Warn("redis url parse failed; statistics cache disabled", zap.Error(parseErr))
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
			pingErr := redisClient.Ping(pingCtx).Err()
			cancelPing()
			if pingErr != nil {
				zl.Warn("redis ping failed; statistics cache disabled", zap.Error(pingErr))
				redisClient.Close()
			} else {
				defer redisClient.Close()
				opts = append(opts, app.WithStatisticsCache(statscache.NewRedisCache(redisClient, "collections", cfg.StatsCacheTTL)))
				zl.Info("redis connected")
			}
		}
	}

	service := app.NewService(st, docs, dispatcher, publisher, zl, opts...)

	scheduler := app.NewScheduler(service, zl, cfg.SweepSchedule)
	if err := scheduler.Start(); err != nil {
		zl.Fatal("failed to start escalation scheduler", zap.Error(err))
	}

	handler := api.NewHandler(service, pinger, zl)
	router := api.NewRouter(handler, cfg.JWTSecret, cfg.InternalAPIKey, zl)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		zl.Info("starting server", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-sigCh
	zl.Info("shutdown signal received, gracefully shutting down")

	<-scheduler.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown failed", zap.Error(err))
	}

	zl.Info("server stopped")
}
