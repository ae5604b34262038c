package dto

import (
	"time"

	"github.com/radieske/parimutuel-ledger/pkg/contracts/events"
)

// EventResponse é o snapshot público do evento, incluindo o saldo do cofre
type EventResponse struct {
	events.PoolSnapshot
	Operator  string    `json:"operator"`
	CreatedAt time.Time `json:"created_at"`
}

type BetResponse struct {
	BetID        string     `json:"bet_id"`
	EventID      string     `json:"event_id"`
	Bettor       string     `json:"bettor"`
	EntrantIndex int        `json:"entrant_index"`
	Amount       uint64     `json:"amount"`
	Claimed      bool       `json:"claimed"`
	Payout       uint64     `json:"payout,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`
}

type ClaimResponse struct {
	BetID  string `json:"bet_id"`
	Payout uint64 `json:"payout"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
