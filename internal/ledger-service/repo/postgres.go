package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"github.com/radieske/parimutuel-ledger/internal/ledger"
	"github.com/radieske/parimutuel-ledger/internal/ledger-service/service"
)

// Postgres implementa o Store do ledger em banco Postgres.
// Valores uint64 são gravados como NUMERIC(20,0); BIGINT não comporta o range inteiro.
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório do ledger
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var _ service.Store = (*Postgres)(nil)

// queryer é satisfeito por *sql.DB e *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// WithTx abre uma transação, executa fn e faz commit; qualquer erro faz rollback.
func (p *Postgres) WithTx(ctx context.Context, fn func(ctx context.Context, tx service.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &pgTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetEvent lê evento e cofre sem lock
func (p *Postgres) GetEvent(ctx context.Context, id string) (*ledger.Event, *ledger.Vault, error) {
	e, err := scanEvent(p.db.QueryRowContext(ctx, selectEvent+` WHERE id=$1`, id))
	if err != nil {
		return nil, nil, err
	}
	v, err := scanVault(p.db.QueryRowContext(ctx, selectVault+` WHERE event_id=$1`, id))
	if err != nil {
		return nil, nil, err
	}
	return e, v, nil
}

// GetBet lê uma aposta sem lock
func (p *Postgres) GetBet(ctx context.Context, id string) (*ledger.Bet, error) {
	return scanBet(p.db.QueryRowContext(ctx, selectBet+` WHERE id=$1`, id))
}

type pgTx struct{ q queryer }

const (
	selectEvent = `SELECT id, operator_id, title, stream_ref, entrants, status, winner_index,
		total_pool, entrant_pools::text[], version, created_at, updated_at FROM events`
	selectVault = `SELECT event_id, balance, released FROM vaults`
	selectBet   = `SELECT id, event_id, bettor_id, entrant_index, amount, claimed, payout,
		created_at, claimed_at FROM bets`
)

func (t *pgTx) CreateEvent(ctx context.Context, e *ledger.Event, v *ledger.Vault) error {
	if _, err := t.q.ExecContext(ctx, `
		INSERT INTO events (id, operator_id, title, stream_ref, entrants, status, winner_index,
			total_pool, entrant_pools, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8::numeric,$9::numeric[],$10,$11,$12)`,
		e.ID, e.Operator, e.Title, e.StreamRef, pq.StringArray(e.Entrants), string(e.Status),
		winnerParam(e.Winner), u64(e.TotalPool), u64Array(e.EntrantPools), int64(e.Version), e.CreatedAt, e.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if _, err := t.q.ExecContext(ctx,
		`INSERT INTO vaults (event_id, balance, released) VALUES ($1,$2::numeric,$3::numeric)`,
		v.EventID, u64(v.Balance), u64(v.Released),
	); err != nil {
		return fmt.Errorf("insert vault: %w", err)
	}
	return nil
}

// EventForUpdate trava a linha do evento (lock pessimista) até o fim da transação
func (t *pgTx) EventForUpdate(ctx context.Context, id string) (*ledger.Event, error) {
	return scanEvent(t.q.QueryRowContext(ctx, selectEvent+` WHERE id=$1 FOR UPDATE`, id))
}

func (t *pgTx) SaveEvent(ctx context.Context, e *ledger.Event) error {
	_, err := t.q.ExecContext(ctx, `
		UPDATE events SET status=$2, winner_index=$3, total_pool=$4::numeric,
			entrant_pools=$5::numeric[], version=$6, updated_at=$7
		WHERE id=$1`,
		e.ID, string(e.Status), winnerParam(e.Winner), u64(e.TotalPool), u64Array(e.EntrantPools),
		int64(e.Version), e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

func (t *pgTx) VaultForUpdate(ctx context.Context, eventID string) (*ledger.Vault, error) {
	return scanVault(t.q.QueryRowContext(ctx, selectVault+` WHERE event_id=$1 FOR UPDATE`, eventID))
}

func (t *pgTx) SaveVault(ctx context.Context, v *ledger.Vault) error {
	_, err := t.q.ExecContext(ctx,
		`UPDATE vaults SET balance=$2::numeric, released=$3::numeric WHERE event_id=$1`,
		v.EventID, u64(v.Balance), u64(v.Released))
	if err != nil {
		return fmt.Errorf("update vault: %w", err)
	}
	return nil
}

func (t *pgTx) CreateBet(ctx context.Context, b *ledger.Bet) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO bets (id, event_id, bettor_id, entrant_index, amount, claimed, payout, created_at)
		VALUES ($1,$2,$3,$4,$5::numeric,$6,$7::numeric,$8)`,
		b.ID, b.EventID, b.Bettor, int16(b.Entrant), u64(b.Amount), b.Claimed, u64(b.Payout), b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert bet: %w", err)
	}
	return nil
}

func (t *pgTx) BetForUpdate(ctx context.Context, id string) (*ledger.Bet, error) {
	return scanBet(t.q.QueryRowContext(ctx, selectBet+` WHERE id=$1 FOR UPDATE`, id))
}

// SaveBet grava apenas os campos mutáveis da aposta
func (t *pgTx) SaveBet(ctx context.Context, b *ledger.Bet) error {
	_, err := t.q.ExecContext(ctx,
		`UPDATE bets SET claimed=$2, payout=$3::numeric, claimed_at=$4 WHERE id=$1`,
		b.ID, b.Claimed, u64(b.Payout), b.ClaimedAt)
	if err != nil {
		return fmt.Errorf("update bet: %w", err)
	}
	return nil
}

func scanEvent(row *sql.Row) (*ledger.Event, error) {
	var (
		e       ledger.Event
		status  string
		winner  sql.NullInt16
		pools   pq.StringArray
		names   pq.StringArray
		version int64
	)
	err := row.Scan(&e.ID, &e.Operator, &e.Title, &e.StreamRef, &names, &status, &winner,
		&e.TotalPool, &pools, &version, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}

	e.Entrants = []string(names)
	e.Version = uint64(version)
	e.Status = ledger.Status(status)
	e.Winner = ledger.NoWinner()
	if winner.Valid {
		e.Winner = ledger.WinnerAt(uint8(winner.Int16))
	}
	e.EntrantPools = make([]uint64, len(pools))
	for i, s := range pools {
		if e.EntrantPools[i], err = strconv.ParseUint(s, 10, 64); err != nil {
			return nil, fmt.Errorf("parse entrant pool %d: %w", i, err)
		}
	}
	return &e, nil
}

func scanVault(row *sql.Row) (*ledger.Vault, error) {
	var v ledger.Vault
	err := row.Scan(&v.EventID, &v.Balance, &v.Released)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan vault: %w", err)
	}
	return &v, nil
}

func scanBet(row *sql.Row) (*ledger.Bet, error) {
	var (
		b         ledger.Bet
		entrant   int16
		claimedAt sql.NullTime
	)
	err := row.Scan(&b.ID, &b.EventID, &b.Bettor, &entrant, &b.Amount, &b.Claimed, &b.Payout,
		&b.CreatedAt, &claimedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan bet: %w", err)
	}
	b.Entrant = uint8(entrant)
	if claimedAt.Valid {
		at := claimedAt.Time
		b.ClaimedAt = &at
	}
	return &b, nil
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func u64Array(vs []uint64) pq.StringArray {
	out := make(pq.StringArray, len(vs))
	for i, v := range vs {
		out[i] = u64(v)
	}
	return out
}

func winnerParam(w ledger.Winner) sql.NullInt16 {
	idx, ok := w.Index()
	return sql.NullInt16{Int16: int16(idx), Valid: ok}
}
