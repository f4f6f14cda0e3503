package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/club-payments/internal/config"
	"github.com/iliyamo/club-payments/internal/failover"
	"github.com/iliyamo/club-payments/internal/handler"
	"github.com/iliyamo/club-payments/internal/logging"
	"github.com/iliyamo/club-payments/internal/queue"
	"github.com/iliyamo/club-payments/internal/router"
	"github.com/iliyamo/club-payments/internal/service"
	"github.com/iliyamo/club-payments/internal/storage"
)

func main() {
	boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if err := config.LoadDotEnv(); err != nil {
		boot.Fatal().Err(err).Msg("config")
	}
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("config")
	}
	log, closeLog, err := logging.New(logging.Options{Env: cfg.Env, Level: cfg.LogLevel, Path: cfg.LogFile})
	if err != nil {
		boot.Fatal().Err(err).Msg("open log file")
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		opts   []failover.Option
		events handler.PaymentEvents
	)
	if cfg.EventsEnabled {
		pub := service.NewEventPublisher(cfg.RabbitURL, log)
		opts = append(opts, failover.WithNotifier(pub))
		events = pub

		consumer := &queue.Consumer{URL: cfg.RabbitURL, LogPath: filepath.Join("logs", "storage.log"), Log: log}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("storage consumer stopped")
			}
		}()
	}

	store := storage.Open(cfg.Storage, log, opts...)
	defer store.Close()

	rdb := config.NewRedisClient(ctx, log)
	if rdb != nil {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	router.RegisterRoutes(e)
	router.RegisterPayments(e, router.Deps{
		Payments:  handler.NewPaymentHandler(store, events, log),
		Status:    store,
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
		Log:       log,
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Str("payments_file", cfg.Storage.PaymentsFile).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("stopped")
}
