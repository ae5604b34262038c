package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Postgres implementa operações de carteira em banco
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
)

// Status das reservas
const (
	StatusPending   = "PENDING"
	StatusCommitted = "COMMITTED"
	StatusRefunded  = "REFUNDED"
)

// withTx executa fn numa transação; erro em fn faz rollback
func (p *Postgres) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// lockWallet cria a carteira se não existir e trava a linha (lock pessimista)
func lockWallet(ctx context.Context, tx *sql.Tx, userID string) (walletID string, balance int64, err error) {
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallets(id, user_id, balance_cents, version) VALUES($1,$2,0,1) ON CONFLICT (user_id) DO NOTHING`,
		uuid.NewString(), userID); err != nil {
		return "", 0, fmt.Errorf("create wallet: %w", err)
	}
	err = tx.QueryRowContext(ctx,
		`SELECT id, balance_cents FROM wallets WHERE user_id=$1 FOR UPDATE`, userID).Scan(&walletID, &balance)
	if err != nil {
		return "", 0, fmt.Errorf("lock wallet: %w", err)
	}
	return walletID, balance, nil
}

// GetOrCreateWallet retorna o walletId e saldo de um usuário, criando a carteira se não existir
func (p *Postgres) GetOrCreateWallet(ctx context.Context, userID string) (walletID string, balance int64, err error) {
	err = p.withTx(ctx, func(tx *sql.Tx) error {
		walletID, balance, err = lockWallet(ctx, tx, userID)
		return err
	})
	return walletID, balance, err
}

// Deposit incrementa o saldo; com externalRef o depósito é aplicado uma única vez
func (p *Postgres) Deposit(ctx context.Context, userID string, amount int64, externalRef string) (walletID string, newBalance int64, err error) {
	ref := sql.NullString{String: externalRef, Valid: externalRef != ""}
	err = p.withTx(ctx, func(tx *sql.Tx) error {
		walletID, newBalance, err = p.credit(ctx, tx, userID, amount, ref, "deposit")
		return err
	})
	return walletID, newBalance, err
}

// Credit credita um payout, idempotente por externalRef
func (p *Postgres) Credit(ctx context.Context, userID string, amount int64, externalRef string) (newBalance int64, err error) {
	ref := sql.NullString{String: externalRef, Valid: true}
	err = p.withTx(ctx, func(tx *sql.Tx) error {
		_, newBalance, err = p.credit(ctx, tx, userID, amount, ref, "payout")
		return err
	})
	return newBalance, err
}

func (p *Postgres) credit(ctx context.Context, tx *sql.Tx, userID string, amount int64, ref sql.NullString, kind string) (string, int64, error) {
	walletID, balance, err := lockWallet(ctx, tx, userID)
	if err != nil {
		return "", 0, err
	}

	if ref.Valid {
		// Idempotência: crédito com o mesmo external_ref já aplicado
		var id int64
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM wallet_ledger WHERE wallet_id=$1 AND operation_type='CREDIT' AND external_ref=$2`,
			walletID, ref.String).Scan(&id)
		if err == nil {
			return walletID, balance, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", 0, fmt.Errorf("check credit ref: %w", err)
		}
	}

	if err = tx.QueryRowContext(ctx,
		`UPDATE wallets SET balance_cents = balance_cents + $1, version = version + 1 WHERE id=$2 RETURNING balance_cents`,
		amount, walletID).Scan(&balance); err != nil {
		return "", 0, fmt.Errorf("credit wallet: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cents, description, external_ref) VALUES($1,'CREDIT',$2,$3,$4)`,
		walletID, amount, kind+":"+ref.String, ref); err != nil {
		return "", 0, fmt.Errorf("insert ledger: %w", err)
	}
	return walletID, balance, nil
}

// Reserve cria uma reserva PENDING e debita saldo (bloqueio)
// Garante idempotência por (wallet_id, external_ref)
func (p *Postgres) Reserve(ctx context.Context, userID string, amount int64, externalRef string) (reservationID string, err error) {
	err = p.withTx(ctx, func(tx *sql.Tx) error {
		var walletID string
		var balance int64
		err := tx.QueryRowContext(ctx,
			`SELECT id, balance_cents FROM wallets WHERE user_id=$1 FOR UPDATE`, userID).Scan(&walletID, &balance)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}

		// reserva repetida devolve a original, mesmo que o saldo já tenha sido consumido
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM wallet_reservations WHERE wallet_id=$1 AND external_ref=$2`, walletID, externalRef).Scan(&reservationID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check reservation: %w", err)
		}

		if balance < amount {
			return ErrInsufficientFunds
		}

		if _, err = tx.ExecContext(ctx,
			`UPDATE wallets SET balance_cents = balance_cents - $1, version = version + 1 WHERE id=$2`, amount, walletID); err != nil {
			return fmt.Errorf("debit wallet: %w", err)
		}

		reservationID = uuid.NewString()
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO wallet_reservations(id, wallet_id, external_ref, amount_cents, status) VALUES($1,$2,$3,$4,'PENDING')`,
			reservationID, walletID, externalRef, amount); err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}

		if _, err = tx.ExecContext(ctx,
			`INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cents, description, external_ref) VALUES($1,'RESERVE',$2,$3,$4)`,
			walletID, amount, "reserve:"+externalRef, externalRef); err != nil {
			return fmt.Errorf("insert ledger: %w", err)
		}
		return nil
	})
	return reservationID, err
}

// Commit efetiva uma reserva, marcando como COMMITTED e registrando débito no ledger
// Idempotente: se já estiver committed, não faz nada
func (p *Postgres) Commit(ctx context.Context, userID, externalRef string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		res, err := lockReservation(ctx, tx, userID, externalRef)
		if err != nil {
			return err
		}
		if res.status != StatusPending {
			return nil
		}

		if _, err = tx.ExecContext(ctx, `UPDATE wallet_reservations SET status='COMMITTED' WHERE id=$1`, res.id); err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cents, description, external_ref) VALUES($1,'DEBIT',$2,$3,$4)`,
			res.walletID, res.amount, "commit:"+externalRef, externalRef); err != nil {
			return fmt.Errorf("insert ledger: %w", err)
		}
		return nil
	})
}

// Refund desfaz uma reserva PENDING, devolvendo saldo e registrando no ledger
// Idempotente: se já estiver REFUNDED, não faz nada
func (p *Postgres) Refund(ctx context.Context, userID, externalRef string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		res, err := lockReservation(ctx, tx, userID, externalRef)
		if err != nil {
			return err
		}
		if res.status != StatusPending {
			return nil
		}

		// Devolve saldo
		if _, err = tx.ExecContext(ctx,
			`UPDATE wallets SET balance_cents = balance_cents + $1, version = version + 1 WHERE id=$2`, res.amount, res.walletID); err != nil {
			return fmt.Errorf("refund wallet: %w", err)
		}
		if _, err = tx.ExecContext(ctx, `UPDATE wallet_reservations SET status='REFUNDED' WHERE id=$1`, res.id); err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cents, description, external_ref) VALUES($1,'REFUND',$2,$3,$4)`,
			res.walletID, res.amount, "refund:"+externalRef, externalRef); err != nil {
			return fmt.Errorf("insert ledger: %w", err)
		}
		return nil
	})
}

type reservation struct {
	id, walletID, status string
	amount               int64
}

func lockReservation(ctx context.Context, tx *sql.Tx, userID, externalRef string) (reservation, error) {
	var r reservation
	err := tx.QueryRowContext(ctx, `
		SELECT wr.id, wr.wallet_id, wr.amount_cents, wr.status
		FROM wallet_reservations wr
		JOIN wallets w ON w.id = wr.wallet_id
		WHERE w.user_id=$1 AND wr.external_ref=$2
		FOR UPDATE OF wr`, userID, externalRef).Scan(&r.id, &r.walletID, &r.amount, &r.status)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, fmt.Errorf("lock reservation: %w", err)
	}
	return r, nil
}
