package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/bank-ledger-engine/internal/config"
	"github.com/sheikh-saqib/bank-ledger-engine/internal/events"
	"github.com/sheikh-saqib/bank-ledger-engine/internal/events/kafka"
	"github.com/sheikh-saqib/bank-ledger-engine/internal/handler/rest"
	"github.com/sheikh-saqib/bank-ledger-engine/internal/ledger"
	"github.com/sheikh-saqib/bank-ledger-engine/internal/storage"
	"github.com/sheikh-saqib/bank-ledger-engine/internal/storage/memory"
	"github.com/sheikh-saqib/bank-ledger-engine/internal/storage/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on system env vars")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	store, cleanup, err := newStore(cfg, logger)
	if err != nil {
		logger.Fatal("init store", zap.Error(err))
	}
	defer cleanup()

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
		logger.Info("kafka publisher enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic_override", cfg.KafkaTopic))
	}

	limits, err := cfg.Limits()
	if err != nil {
		logger.Fatal("parse limits", zap.Error(err))
	}

	svc := ledger.NewService(store,
		ledger.WithLimits(limits),
		ledger.WithRetryPolicy(cfg.TransferRetries, cfg.TransferBackoff),
		ledger.WithPublisher(publisher),
		ledger.WithLogger(logger),
	)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: rest.NewHandler(svc, logger).Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.HTTPAddr))
		errCh <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// newStore opens the Postgres store when DATABASE_URL is set, otherwise the
// in-memory store.
func newStore(cfg config.Config, logger *zap.Logger) (storage.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("using in-memory store")
		return memory.NewStore(memory.WithLockWait(cfg.LockTimeout)), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	store := postgres.NewStore(db, postgres.WithLockTimeout(cfg.LockTimeout))
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	logger.Info("using postgres store")
	return store, func() { db.Close() }, nil
}
