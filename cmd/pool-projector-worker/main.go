package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-ledger/internal/pool-projector/cache"
	"github.com/radieske/parimutuel-ledger/internal/pool-projector/consumer"
	"github.com/radieske/parimutuel-ledger/internal/pool-projector/pubsub"
	sharedcache "github.com/radieske/parimutuel-ledger/internal/shared/cache"
	"github.com/radieske/parimutuel-ledger/internal/shared/config"
	"github.com/radieske/parimutuel-ledger/internal/shared/kafka"
	"github.com/radieske/parimutuel-ledger/internal/shared/logger"
	"github.com/radieske/parimutuel-ledger/internal/shared/metrics"
)

// snapshots expiram se o evento ficar parado; o pool-feed recarrega do banco
const snapshotTTL = 10 * time.Minute

func main() {
	cfg, err := config.Load("pool-projector-worker")
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Consumer group pool-projector; DLQ para mensagens inválidas
	reader := kafka.NewReader(cfg.Brokers(), cfg.TopicLedgerEvents, "pool-projector")
	defer reader.Close()
	dlq := kafka.NewWriter(cfg.Brokers(), cfg.TopicLedgerEventsDLQ)
	defer dlq.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "pool_proc_messages_consumed_total", Help: "mensagens consumidas"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "pool_proc_cache_sets_total", Help: "snapshots gravados no cache"})
	broadcast := prometheus.NewCounter(prometheus.CounterOpts{Name: "pool_proc_broadcasts_total", Help: "snapshots publicados no pub/sub"})
	dead := prometheus.NewCounter(prometheus.CounterOpts{Name: "pool_proc_dlq_total", Help: "mensagens enviadas para a DLQ"})
	stale := prometheus.NewCounter(prometheus.CounterOpts{Name: "pool_proc_stale_snapshots_total", Help: "snapshots mais antigos que o cache, descartados"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pool_proc_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, cached, broadcast, dead, stale, errorsBy)

	proc := &consumer.Processor{
		Log:     log,
		Reader:  reader,
		Cache:   cache.NewRedisCache(redisClient, snapshotTTL),
		Pub:     pubsub.NewRedisBroadcaster(redisClient),
		DLQ:     dlq,
		Channel: cfg.RedisPubSubChannel,

		OnConsumed:  consumed.Inc,
		OnCached:    cached.Inc,
		OnBroadcast: broadcast.Inc,
		OnDLQ:       dead.Inc,
		OnStale:     stale.Inc,
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, map[string]metrics.HealthFunc{
		"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})
	defer metricsSrv.Close()

	log.Info("pool-projector started", zap.String("topic", cfg.TopicLedgerEvents))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("pool-projector stopped")
}
