package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-ledger/internal/pool-projector/pubsub"
	"github.com/radieske/parimutuel-ledger/internal/shared/testutil"
	"github.com/radieske/parimutuel-ledger/pkg/contracts/events"
)

func allowAll(*http.Request) bool { return true }

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readMsg[T any](t *testing.T, conn *websocket.Conn) T {
	t.Helper()
	var v T
	require.NoError(t, conn.ReadJSON(&v))
	return v
}

func TestHubSubscribeAndBroadcast(t *testing.T) {
	hub := NewHub(zap.NewNop(), allowAll, nil)
	conn := dial(t, hub)

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "ping"}))
	assert.Equal(t, "pong", readMsg[ServerMsg](t, conn).Type)

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", EventID: "ev1"}))
	ack := readMsg[ServerMsg](t, conn)
	assert.Equal(t, "subscribed", ack.Type)
	assert.Equal(t, 1, hub.Subscribers("ev1"))

	// evento sem inscritos não chega
	hub.Broadcast(PoolUpdate{Type: events.TypeBetPlaced, EventID: "ev2"})
	hub.Broadcast(PoolUpdate{Type: events.TypeBetPlaced, EventID: "ev1", Payload: events.PoolSnapshot{EventID: "ev1", Version: 2, TotalPool: 9}})
	upd := readMsg[PoolUpdate](t, conn)
	assert.Equal(t, "ev1", upd.EventID)
	assert.Equal(t, uint64(9), upd.Payload.TotalPool)

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "unsubscribe", EventID: "ev1"}))
	assert.Equal(t, "unsubscribed", readMsg[ServerMsg](t, conn).Type)
	assert.Equal(t, 0, hub.Subscribers("ev1"))

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe"}))
	assert.Equal(t, "error", readMsg[ServerMsg](t, conn).Type)
}

func TestHubSendsCurrentSnapshotOnSubscribe(t *testing.T) {
	snapshot := func(_ context.Context, id string) (events.PoolSnapshot, bool, error) {
		return events.PoolSnapshot{EventID: id, Status: "LIVE", TotalPool: 77}, true, nil
	}
	conn := dial(t, NewHub(zap.NewNop(), allowAll, snapshot))

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", EventID: "ev1"}))
	assert.Equal(t, "subscribed", readMsg[ServerMsg](t, conn).Type)
	upd := readMsg[PoolUpdate](t, conn)
	assert.Equal(t, "SNAPSHOT", upd.Type)
	assert.Equal(t, uint64(77), upd.Payload.TotalPool)
}

func TestHubSkipsOlderVersions(t *testing.T) {
	snapshot := func(_ context.Context, id string) (events.PoolSnapshot, bool, error) {
		return events.PoolSnapshot{EventID: id, Version: 5, TotalPool: 50}, true, nil
	}
	hub := NewHub(zap.NewNop(), allowAll, snapshot)
	conn := dial(t, hub)

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", EventID: "ev1"}))
	readMsg[ServerMsg](t, conn)
	assert.Equal(t, uint64(5), readMsg[PoolUpdate](t, conn).Payload.Version)

	update := func(version, total uint64) PoolUpdate {
		return PoolUpdate{Type: events.TypeBetPlaced, EventID: "ev1",
			Payload: events.PoolSnapshot{EventID: "ev1", Version: version, TotalPool: total}}
	}
	// versões 4 e 5 já foram cobertas pelo snapshot inicial
	hub.Broadcast(update(4, 40))
	hub.Broadcast(update(5, 50))
	hub.Broadcast(update(7, 70))
	hub.Broadcast(update(6, 60))
	hub.Broadcast(update(8, 80))

	assert.Equal(t, uint64(70), readMsg[PoolUpdate](t, conn).Payload.TotalPool)
	assert.Equal(t, uint64(80), readMsg[PoolUpdate](t, conn).Payload.TotalPool)
}

func TestHubDropsClosedConnections(t *testing.T) {
	hub := NewHub(zap.NewNop(), allowAll, nil)
	conn := dial(t, hub)

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", EventID: "ev1"}))
	readMsg[ServerMsg](t, conn)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.Subscribers("ev1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRedisSubscriberForwardsProjectorUpdates(t *testing.T) {
	rdb := testutil.SetupRedis(t)
	hub := NewHub(zap.NewNop(), allowAll, nil)
	conn := dial(t, hub)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	StartRedisSubscriber(ctx, zap.NewNop(), rdb, "pool_updates_test", hub)

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", EventID: "ev1"}))
	readMsg[ServerMsg](t, conn)

	b, err := json.Marshal(pubsub.WSUpdate{Type: events.TypeWinnerDeclared, EventID: "ev1", Payload: events.PoolSnapshot{EventID: "ev1", Status: "FINISHED"}})
	require.NoError(t, err)

	// a inscrição no Redis é assíncrona
	require.Eventually(t, func() bool {
		n, err := rdb.PubSubNumSub(ctx, "pool_updates_test").Result()
		return err == nil && n["pool_updates_test"] > 0
	}, 5*time.Second, 50*time.Millisecond)
	require.NoError(t, pubsub.NewRedisBroadcaster(rdb).Publish(ctx, "pool_updates_test", b))

	upd := readMsg[PoolUpdate](t, conn)
	assert.Equal(t, events.TypeWinnerDeclared, upd.Type)
	assert.Equal(t, "FINISHED", upd.Payload.Status)
}
