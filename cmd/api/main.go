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

	"github.com/ariefcatur/go-voice-storefront/internal/account"
	"github.com/ariefcatur/go-voice-storefront/internal/catalog"
	"github.com/ariefcatur/go-voice-storefront/internal/config"
	"github.com/ariefcatur/go-voice-storefront/internal/httpx"
	kafkax "github.com/ariefcatur/go-voice-storefront/internal/kafka"
	"github.com/ariefcatur/go-voice-storefront/internal/logx"
	"github.com/ariefcatur/go-voice-storefront/internal/mongodb"
	"github.com/ariefcatur/go-voice-storefront/internal/orders"
	"github.com/ariefcatur/go-voice-storefront/internal/postgres"
	"github.com/ariefcatur/go-voice-storefront/internal/redisx"
	"github.com/ariefcatur/go-voice-storefront/internal/token"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.ServiceName, cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Account store
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("store connect failed", slog.String("driver", cfg.StoreDriver), logx.Err(err))
		os.Exit(1)
	}
	defer closeStore()

	svc := &orders.Service{
		Store:   store,
		Catalog: catalog.Default(),
		Name:    cfg.ServiceName,
		Log:     log,
	}

	// Redis: account cache + checkout idempotency. Optional.
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, running without cache", logx.Err(err))
	} else {
		svc.Store = account.NewCachedStore(store, rdb, log)
		svc.Idem = orders.RedisIdempotency{Redis: rdb}
	}
	pingCancel()

	// Kafka producer for order events
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
		prod.Start(ctx)
		svc.Events = orders.KafkaPublisher{Producer: prod}
	}

	router := httpx.NewRouter()
	th := &httpx.TokenHandler{Issuer: token.NewIssuer(cfg), Log: log}
	th.Register(router)
	auth := &httpx.Authenticator{Secret: []byte(cfg.AuthJWTSecret), Log: log}
	sh := &httpx.StoreHandler{Orders: svc, Catalog: svc.Catalog, Log: log, Timeout: 5 * time.Second}
	sh.Register(router, auth.Middleware)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen failed", logx.Err(err))
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
	cancel()
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (account.Store, func(), error) {
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return &account.PostgresStore{DB: pool}, pool.Close, nil
	case "memory":
		log.Warn("using in-memory account store; data is lost on exit")
		return account.NewMemoryStore(), func() {}, nil
	default:
		db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		return account.NewMongoStore(db), func() { _ = db.Client().Disconnect(context.Background()) }, nil
	}
}
