package ws

import "github.com/radieske/parimutuel-ledger/pkg/contracts/events"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// EventID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type    string `json:"type"`    // subscribe | unsubscribe | ping
	EventID string `json:"eventId"` // requerido em subscribe/unsubscribe
}

// ServerMsg é a resposta do hub a um comando do cliente
type ServerMsg struct {
	Type    string `json:"type"` // subscribed | unsubscribed | pong | error
	EventID string `json:"eventId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PoolUpdate é enviada aos clientes inscritos num evento; mesmo formato do
// payload publicado pelo pool-projector no Redis
type PoolUpdate struct {
	Type    string              `json:"type"`
	EventID string              `json:"eventId"`
	Payload events.PoolSnapshot `json:"payload"`
}
