package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	gateway "github.com/radieske/parimutuel-ledger/internal/api-gateway"
	"github.com/radieske/parimutuel-ledger/internal/shared/config"
	"github.com/radieske/parimutuel-ledger/internal/shared/logger"
	"github.com/radieske/parimutuel-ledger/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load("api-gateway")
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// /api/ledger/* -> ledger-service, /api/wallet/* -> wallet-service, /api/pool/* -> pool-feed-service
	h, err := gateway.NewHandler([]gateway.Route{
		{Prefix: "/api/ledger", Target: cfg.LedgerURL},
		{Prefix: "/api/wallet", Target: cfg.WalletURL},
		{Prefix: "/api/pool", Target: cfg.PoolFeedURL},
	})
	if err != nil {
		log.Fatal("gateway routes", zap.Error(err))
	}

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("api-gateway listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("gateway failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	_ = metricsSrv.Shutdown(shCtx)
}
