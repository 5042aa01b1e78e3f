package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"atrium.org/internal/audit"
	"atrium.org/internal/auth"
	"atrium.org/internal/config"
	"atrium.org/internal/httpapi"
	"atrium.org/internal/kv"
	"atrium.org/internal/obs"
	"atrium.org/internal/rbac"
	"atrium.org/internal/session"
	"atrium.org/internal/store/pg"
	"atrium.org/internal/tenant"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := obs.InitLogger(cfg.Logger.Level, cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Postgres: the tenant guard is threaded through every repository.
	guard := tenant.NewGuard(pg.PolicyRegistry(), tenant.WithLogger(logger))
	store, err := pg.Open(cfg.Database.DSN, guard)
	if err != nil {
		logger.Fatal("open postgres", zap.Error(err))
	}
	defer func() { _ = store.Close() }()
	store.DB().SetMaxOpenConns(cfg.Database.MaxOpenConns)
	store.DB().SetMaxIdleConns(cfg.Database.MaxIdleConns)
	store.DB().SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	// Key-value store: Redis when configured, in-process otherwise.
	var kvStore kv.Store
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := kv.OpenRedis(ctx, kv.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		cancel()
		if err != nil {
			logger.Fatal("open redis", zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		kvStore = rdb
	} else {
		logger.Warn("redis not configured, sessions and caches are in-process only")
		kvStore = kv.NewMemory()
	}

	// Sessions.
	minter := session.NewMinter([]byte(cfg.Session.Secret))
	sessions := session.NewStore(kvStore, minter, cfg.Session.Lifetime, logger)

	// Authorization.
	cache := rbac.NewCache(kvStore, cfg.Session.Lifetime, logger)
	aggregator := rbac.NewAggregator(store, store,
		rbac.WithCache(cache),
		rbac.WithLogger(logger),
		rbac.WithObserver(obs.ObserveAuthorization))
	rbacService := rbac.NewService(store, cache, logger)

	// Authentication.
	gateway := auth.NewGateway(auth.NewStoreVerifier(store), sessions,
		auth.WithAuditSink(audit.NewLog(logger)),
		auth.WithLogger(logger),
		auth.WithLoginObserver(obs.ObserveLogin))

	api := httpapi.New(httpapi.Config{
		Version:    version,
		Ready:      httpapi.ReadyProbe{DB: store.DB()},
		Gateway:    gateway,
		Sessions:   sessions,
		Authorizer: aggregator,
		Admin:      rbacService,
		Users:      store,
		Audit:      audit.NewLog(logger),
		Logger:     logger,
	})

	handler := api.Handler()
	handler = httpapi.MaxBodyBytes(handler, 1<<20)
	handler = httpapi.RateLimit(handler, cfg.Rate.Burst, cfg.Rate.RPS)
	handler = httpapi.CORS(handler)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.Logging(logger, handler)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting atrium-api",
		zap.String("version", version),
		zap.String("addr", srv.Addr),
		zap.String("env", cfg.Env))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	logger.Info("stopped")
}
