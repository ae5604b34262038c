package service

import (
	"context"

	"github.com/radieske/parimutuel-ledger/internal/ledger"
	"github.com/radieske/parimutuel-ledger/pkg/contracts/events"
)

// Store é a primitiva de persistência. WithTx executa fn numa transação:
// se fn retornar erro nada é gravado.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetEvent(ctx context.Context, id string) (*ledger.Event, *ledger.Vault, error)
	GetBet(ctx context.Context, id string) (*ledger.Bet, error)
}

// Tx expõe leituras com lock exclusivo (por evento, cofre e aposta) e escritas.
// As entidades devolvidas são cópias; mudanças só persistem via Save/Create.
type Tx interface {
	CreateEvent(ctx context.Context, e *ledger.Event, v *ledger.Vault) error
	EventForUpdate(ctx context.Context, id string) (*ledger.Event, error)
	SaveEvent(ctx context.Context, e *ledger.Event) error

	VaultForUpdate(ctx context.Context, eventID string) (*ledger.Vault, error)
	SaveVault(ctx context.Context, v *ledger.Vault) error

	CreateBet(ctx context.Context, b *ledger.Bet) error
	BetForUpdate(ctx context.Context, id string) (*ledger.Bet, error)
	SaveBet(ctx context.Context, b *ledger.Bet) error
}

// Funds é a primitiva de transferência de valor (wallet-service).
// Reserve/Commit/Refund seguem o fluxo de reserva keyed por externalRef;
// Credit é idempotente por externalRef.
type Funds interface {
	Reserve(ctx context.Context, userID string, amount uint64, externalRef string) error
	Commit(ctx context.Context, userID, externalRef string) error
	Refund(ctx context.Context, userID, externalRef string) error
	Credit(ctx context.Context, userID string, amount uint64, externalRef string) error
}

// Publisher publica eventos do ledger após o commit.
type Publisher interface {
	Publish(ctx context.Context, e events.LedgerEvent) error
}
