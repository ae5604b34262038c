package ledger

import "time"

// Bet é uma aposta individual. Imutável exceto por Claimed (false -> true uma única vez).
type Bet struct {
	ID        string
	Bettor    string
	EventID   string
	Entrant   uint8
	Amount    uint64
	Claimed   bool
	Payout    uint64
	CreatedAt time.Time
	ClaimedAt *time.Time
}
