package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	lhttp "github.com/radieske/parimutuel-ledger/internal/ledger-service/http"
	"github.com/radieske/parimutuel-ledger/internal/ledger-service/producer"
	"github.com/radieske/parimutuel-ledger/internal/ledger-service/repo"
	"github.com/radieske/parimutuel-ledger/internal/ledger-service/service"
	"github.com/radieske/parimutuel-ledger/internal/ledger-service/wallet"
	"github.com/radieske/parimutuel-ledger/internal/shared/config"
	"github.com/radieske/parimutuel-ledger/internal/shared/db"
	"github.com/radieske/parimutuel-ledger/internal/shared/kafka"
	"github.com/radieske/parimutuel-ledger/internal/shared/logger"
	"github.com/radieske/parimutuel-ledger/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load("ledger-service")
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	// Postgres + migrations
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	if cfg.RunMigrations {
		version, err := db.Migrate(pg)
		if err != nil {
			log.Fatal("migrations", zap.Error(err))
		}
		log.Info("migrations applied", zap.Uint("version", version))
	}

	// Kafka writer (topic ledger_events, key = eventId)
	writer := kafka.NewWriter(cfg.Brokers(), cfg.TopicLedgerEvents)
	defer writer.Close()

	// deps
	svc := service.New(log,
		repo.NewPostgres(pg),
		wallet.New(cfg.WalletURL),
		producer.NewKafkaPublisher(writer),
		service.WithMetrics(service.NewMetrics(prometheus.DefaultRegisterer)),
	)

	// HTTP público
	api := lhttp.NewServer(log, svc)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort, // ex: 8083
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// metrics/health
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shCtx)
	_ = metricsSrv.Shutdown(shCtx)
	log.Info("ledger-service stopped")
}
