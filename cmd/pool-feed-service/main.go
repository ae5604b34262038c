package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	lrepo "github.com/radieske/parimutuel-ledger/internal/ledger-service/repo"
	httpapi "github.com/radieske/parimutuel-ledger/internal/pool-feed/http"
	"github.com/radieske/parimutuel-ledger/internal/pool-feed/ws"
	"github.com/radieske/parimutuel-ledger/internal/pool-projector/cache"
	sharedcache "github.com/radieske/parimutuel-ledger/internal/shared/cache"
	"github.com/radieske/parimutuel-ledger/internal/shared/config"
	"github.com/radieske/parimutuel-ledger/internal/shared/db"
	"github.com/radieske/parimutuel-ledger/internal/shared/logger"
	"github.com/radieske/parimutuel-ledger/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load("pool-feed-service")
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres (somente leitura, fallback do cache)
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	// Redis: cache de snapshots + pub/sub
	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	snapshots := cache.NewRedisCache(redisClient, time.Minute)

	// WebSocket: hub + assinante do canal de broadcast
	hub := ws.NewHub(log, func(r *http.Request) bool { return true }, snapshots.GetCurrent)
	ws.StartRedisSubscriber(ctx, log, redisClient, cfg.RedisPubSubChannel, hub)

	api := &httpapi.API{
		Log:    log,
		Cache:  snapshots,
		Events: lrepo.NewPostgres(pg),
		WS:     hub.HandleWS,
	}
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort, // ex: 8080
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// healthz: valida dependências críticas
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})

	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shCtx)
	_ = metricsSrv.Shutdown(shCtx)
	log.Info("pool-feed-service stopped")
}
