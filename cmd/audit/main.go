package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ariefcatur/go-voice-storefront/internal/audit"
	"github.com/ariefcatur/go-voice-storefront/internal/config"
	kafkax "github.com/ariefcatur/go-voice-storefront/internal/kafka"
	"github.com/ariefcatur/go-voice-storefront/internal/logx"
	"github.com/ariefcatur/go-voice-storefront/internal/orders"
	"github.com/ariefcatur/go-voice-storefront/internal/postgres"
	"github.com/ariefcatur/go-voice-storefront/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logx.New(cfg.ServiceName+"-audit", cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect failed", logx.Err(err))
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.Migrate(db); err != nil {
		log.Error("migrate failed", logx.Err(err))
		os.Exit(1)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &audit.Service{
		Repo:  &audit.PostgresRepo{DB: db},
		Redis: rdb,
		Log:   log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AuditGroup, orders.Topics, cfg.AuditWorkers, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("audit consumer started",
			slog.String("group", cfg.AuditGroup),
			slog.String("topics", strings.Join(orders.Topics, ",")),
			slog.Int("workers", cfg.AuditWorkers))
		if err := cons.Start(ctx, svc.HandleOrderEvent); err != nil {
			log.Error("consumer exit", logx.Err(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	cancel()
	<-done
}
