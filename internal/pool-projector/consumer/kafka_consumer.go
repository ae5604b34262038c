package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-ledger/internal/pool-projector/pubsub"
	"github.com/radieske/parimutuel-ledger/pkg/contracts/events"
)

// Reader é satisfeito por *kafka.Reader (consumer group, commit manual)
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Writer é satisfeito por *kafka.Writer; usado para a DLQ
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// SnapshotStore guarda o snapshot atual de cada evento. applied=false quando
// o cache já tem uma versão igual ou mais nova.
type SnapshotStore interface {
	SetCurrent(ctx context.Context, s events.PoolSnapshot) (applied bool, err error)
}

// Broadcaster publica o snapshot para o pool-feed (Redis Pub/Sub)
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Processor consome o tópico ledger_events, projeta o snapshot no cache e
// faz broadcast. Mensagens inválidas vão para a DLQ. O offset só é
// commitado depois do processamento (at-least-once).
type Processor struct {
	Log     *zap.Logger
	Reader  Reader
	Cache   SnapshotStore
	Pub     Broadcaster
	DLQ     Writer // opcional
	Channel string

	OnConsumed  func()       // métricas (counter++)
	OnCached    func()       // métricas
	OnBroadcast func()       // métricas
	OnDLQ       func()       // métricas
	OnStale     func()       // métricas
	OnError     func(string) // métricas por fase
}

// Run inicia o loop principal de consumo até o contexto ser cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		// repete a mesma mensagem até conseguir: pular quebraria a ordem por evento
		backoff := 200 * time.Millisecond
		for {
			err := p.Handle(ctx, m)
			if err == nil {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
		}

		if err := p.Reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			p.Log.Warn("kafka commit failed", zap.Error(err), zap.Int64("offset", m.Offset))
			p.fail("commit")
		}
	}
}

// Handle processa uma mensagem. Erro significa que ela não deve ser commitada.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) error {
	var ev events.LedgerEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.Snapshot.EventID == "" {
		p.Log.Warn("invalid ledger event", zap.Error(err), zap.ByteString("key", m.Key), zap.Int64("offset", m.Offset))
		p.fail("decode")
		return p.deadLetter(ctx, m)
	}

	// Atualiza o snapshot atual; sem cache não há broadcast
	applied, err := p.Cache.SetCurrent(ctx, ev.Snapshot)
	if err != nil {
		p.Log.Warn("redis set failed", zap.String("eventId", ev.EventID), zap.Error(err))
		p.fail("cache")
		return err
	}
	if !applied {
		// publicado fora de ordem ou reentregue: o cache já está à frente
		p.Log.Debug("stale snapshot skipped",
			zap.String("eventId", ev.EventID),
			zap.Uint64("version", ev.Snapshot.Version))
		if p.OnStale != nil {
			p.OnStale()
		}
		return nil
	}
	if p.OnCached != nil {
		p.OnCached()
	}

	b, _ := json.Marshal(pubsub.WSUpdate{Type: ev.Type, EventID: ev.EventID, Payload: ev.Snapshot})
	bctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := p.Pub.Publish(bctx, p.Channel, b); err != nil {
		// o snapshot já está no cache; clientes recebem no próximo update
		p.Log.Warn("ws broadcast publish failed", zap.String("eventId", ev.EventID), zap.Error(err))
		p.fail("broadcast")
	} else if p.OnBroadcast != nil {
		p.OnBroadcast()
	}

	p.Log.Debug("pool projected",
		zap.String("type", ev.Type),
		zap.String("eventId", ev.EventID),
		zap.Uint64("version", ev.Snapshot.Version),
		zap.Uint64("totalPool", ev.Snapshot.TotalPool))
	return nil
}

// deadLetter copia a mensagem para a DLQ; sem DLQ ela é descartada
func (p *Processor) deadLetter(ctx context.Context, m kafka.Message) error {
	if p.DLQ == nil {
		return nil
	}
	err := p.DLQ.WriteMessages(ctx, kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: append(m.Headers,
			kafka.Header{Key: "x-original-topic", Value: []byte(m.Topic)},
		),
	})
	if err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		p.fail("dlq")
		return err
	}
	if p.OnDLQ != nil {
		p.OnDLQ()
	}
	return nil
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
