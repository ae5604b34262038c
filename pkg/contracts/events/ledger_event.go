package events

import "time"

// Tipos de evento publicados no tópico "ledger_events"
const (
	TypeEventCreated   = "EVENT_CREATED"
	TypeBettingLocked  = "BETTING_LOCKED"
	TypeBetPlaced      = "BET_PLACED"
	TypeWinnerDeclared = "WINNER_DECLARED"
	TypePayoutClaimed  = "PAYOUT_CLAIMED"
)

// PoolSnapshot é o estado público de um evento após uma operação.
// Version é monotônica por evento: consumidores descartam snapshots mais antigos
// do que o último aplicado, já que a ordem de publicação não é garantida.
type PoolSnapshot struct {
	EventID      string    `json:"event_id"`
	Version      uint64    `json:"version"`
	Title        string    `json:"title"`
	StreamRef    string    `json:"stream_ref,omitempty"`
	Entrants     []string  `json:"entrants"`
	Status       string    `json:"status"` // "UPCOMING" | "LIVE" | "FINISHED"
	WinnerIndex  *int      `json:"winner_index,omitempty"`
	TotalPool    uint64    `json:"total_pool"`
	EntrantPools []uint64  `json:"entrant_pools"`
	VaultBalance uint64    `json:"vault_balance"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LedgerEvent é publicado após o commit de cada operação do ledger.
// Key da mensagem = EventID, garantindo ordem por evento na partição.
type LedgerEvent struct {
	Type     string       `json:"type"`
	EventID  string       `json:"event_id"`
	BetID    string       `json:"bet_id,omitempty"`
	UserID   string       `json:"user_id,omitempty"`
	Amount   uint64       `json:"amount,omitempty"`
	Payout   uint64       `json:"payout,omitempty"`
	Snapshot PoolSnapshot `json:"snapshot"`
	TsUnixMs int64        `json:"ts_unix_ms"`
}
