package producer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/parimutuel-ledger/pkg/contracts/events"
)

type captureWriter struct{ msgs []kafka.Message }

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestPublishKeysByEvent(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaPublisher(w)

	err := p.Publish(context.Background(), events.LedgerEvent{
		Type:    events.TypeBetPlaced,
		EventID: "ev-1",
		BetID:   "b-1",
		Amount:  100,
		Snapshot: events.PoolSnapshot{
			EventID:      "ev-1",
			TotalPool:    100,
			EntrantPools: []uint64{100, 0},
		},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "ev-1", string(w.msgs[0].Key))

	var got events.LedgerEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, events.TypeBetPlaced, got.Type)
	assert.Equal(t, uint64(100), got.Snapshot.TotalPool)
	assert.NotZero(t, got.TsUnixMs)
}
