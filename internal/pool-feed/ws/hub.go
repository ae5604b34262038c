package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-ledger/pkg/contracts/events"
)

const writeWait = 5 * time.Second

// SnapshotFunc devolve o snapshot atual de um evento, enviado logo após o subscribe
type SnapshotFunc func(ctx context.Context, eventID string) (events.PoolSnapshot, bool, error)

// client serializa as escritas numa conexão (gorilla não aceita writers concorrentes)
// e guarda a última versão de snapshot enviada por evento.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
	seen map[string]uint64
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, seen: make(map[string]uint64)}
}

func (c *client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// writeUpdate envia o snapshot só se ele for mais novo que o último enviado
// para o evento. Versão 0 (sem versionamento) sempre passa.
func (c *client) writeUpdate(eventID string, version uint64, b []byte) (sent bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version != 0 && version <= c.seen[eventID] {
		return false, nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return false, err
	}
	if version != 0 {
		c.seen[eventID] = version
	}
	return true, nil
}

func (c *client) forget(eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, eventID)
}

// Hub gerencia conexões WebSocket e assinaturas de pools por evento
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	snapshot SnapshotFunc

	mu sync.RWMutex
	// eventID -> set of clients
	subs map[string]map[*client]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS).
// snapshot pode ser nil.
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool, snapshot SnapshotFunc) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		snapshot: snapshot,
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
// Cada cliente pode se inscrever em múltiplos eventIDs
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := newClient(conn)
	defer func() {
		h.drop(c)
		conn.Close()
	}()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if msg.EventID == "" {
				_ = c.write(ServerMsg{Type: "error", Error: "eventId required"})
				continue
			}
			h.subscribe(c, msg.EventID)
			_ = c.write(ServerMsg{Type: "subscribed", EventID: msg.EventID})
			h.sendCurrent(r.Context(), c, msg.EventID)
		case "unsubscribe":
			h.unsubscribe(c, msg.EventID)
			c.forget(msg.EventID)
			_ = c.write(ServerMsg{Type: "unsubscribed", EventID: msg.EventID})
		case "ping":
			_ = c.write(ServerMsg{Type: "pong"})
		default:
			_ = c.write(ServerMsg{Type: "error", Error: "unknown type"})
		}
	}
}

func (h *Hub) subscribe(c *client, eventID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[eventID]; !ok {
		h.subs[eventID] = make(map[*client]struct{})
	}
	h.subs[eventID][c] = struct{}{}
}

func (h *Hub) unsubscribe(c *client, eventID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[eventID]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, eventID)
		}
	}
}

// drop remove a conexão de todas as assinaturas ao desconectar
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
}

func (h *Hub) sendCurrent(ctx context.Context, c *client, eventID string) {
	if h.snapshot == nil {
		return
	}
	snap, ok, err := h.snapshot(ctx, eventID)
	if err != nil {
		h.log.Warn("ws initial snapshot failed", zap.String("eventId", eventID), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	b, err := json.Marshal(PoolUpdate{Type: "SNAPSHOT", EventID: eventID, Payload: snap})
	if err != nil {
		return
	}
	_, _ = c.writeUpdate(eventID, snap.Version, b)
}

// Subscribers devolve quantas conexões estão inscritas no evento
func (h *Hub) Subscribers(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[eventID])
}

// Broadcast envia a atualização para todos os clientes inscritos no eventID correspondente.
// Clientes que já receberam uma versão igual ou mais nova não recebem de novo.
func (h *Hub) Broadcast(update PoolUpdate) {
	h.mu.RLock()
	conns := make([]*client, 0, len(h.subs[update.EventID]))
	for c := range h.subs[update.EventID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	b, err := json.Marshal(update)
	if err != nil {
		return
	}
	for _, c := range conns {
		if _, err := c.writeUpdate(update.EventID, update.Payload.Version, b); err != nil {
			h.log.Debug("ws write failed", zap.String("eventId", update.EventID), zap.Error(err))
		}
	}
}
