package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/config"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/db"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/handler"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/notify"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/report"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/settlement"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/storage/memory"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/sweeper"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/wallet"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg.App)

	log.Info().Str("store", cfg.App.StoreDriver).Msg("Settlement service starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runner settlement.TxRunner
	var reports report.Reader
	switch cfg.App.StoreDriver {
	case config.DriverMemory:
		store := memory.New()
		runner, reports = store, store.Reports()
		log.Warn().Msg("Using in-memory store; state is lost on exit")
	default:
		if err := db.Migrate(cfg.Postgres); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		pg, err := db.New(ctx, cfg.Postgres)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pg.Close()
		sqlxDB := pg.SQLX()
		defer sqlxDB.Close()
		runner, reports = settlement.NewPostgresRunner(pg), report.NewReader(sqlxDB)
	}

	notifiers := notify.Multi{notify.LogNotifier{}}
	if len(cfg.Messaging.KafkaBrokers) > 0 {
		kafkaNotifier := notify.NewKafkaNotifier(notify.NewKafkaWriter(cfg.Messaging.KafkaBrokers, cfg.Messaging.KafkaNotifyTopic))
		defer func() {
			if err := kafkaNotifier.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close kafka writer")
			}
		}()
		notifiers = append(notifiers, kafkaNotifier)
		log.Info().Strs("brokers", cfg.Messaging.KafkaBrokers).Str("topic", cfg.Messaging.KafkaNotifyTopic).Msg("Kafka notifications enabled")
	}

	svc := settlement.NewService(runner, notifiers, settlement.Config{
		Wallet: wallet.Config{
			SellerShare:       cfg.Settlement.SellerShare,
			MinimumWithdraw:   cfg.Settlement.MinimumWithdraw,
			RecordPlatformFee: cfg.Settlement.RecordPlatformFee,
		},
		AllowRefundWithoutReturn: cfg.Settlement.AllowRefundWithoutReturn,
		ReturnReviewByAdmin:      cfg.Settlement.ReturnReviewByAdmin,
		AutoApproveAfter:         cfg.Settlement.AutoApproveAfter,
		AutoCancelAfter:          cfg.Settlement.AutoCancelAfter,
	})

	var lease sweeper.Lease = sweeper.LocalLease{}
	if cfg.Messaging.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Messaging.RedisAddr})
		defer rdb.Close()
		lease = sweeper.NewRedisLease(rdb, "settlement:sweep-lease")
		log.Info().Str("addr", cfg.Messaging.RedisAddr).Msg("Redis sweep lease enabled")
	}
	sweep := sweeper.New(svc, cfg.Settlement.SweepInterval, lease)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	handler.NewHandler(svc, reports).RegisterRoutes(router)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sweep.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Settlement service stopped with error")
		return
	}
	log.Info().Msg("Settlement service stopped gracefully")
}

func setupLogger(app config.AppConfig) {
	level, err := zerolog.ParseLevel(app.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if app.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", "settlement-service").Logger()
}
