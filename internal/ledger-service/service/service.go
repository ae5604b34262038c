package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-ledger/internal/ledger"
	"github.com/radieske/parimutuel-ledger/pkg/contracts/events"
)

// ErrFundsTransfer indica falha na primitiva de transferência de valor.
var ErrFundsTransfer = errors.New("funds transfer failed")

// Service orquestra as operações do ledger: cada uma roda numa única transação
// do Store e só publica eventos depois do commit.
type Service struct {
	log     *zap.Logger
	store   Store
	funds   Funds
	publ    Publisher
	metrics *Metrics

	now   func() time.Time
	newID func() string
}

// Option customiza o Service.
type Option func(*Service)

// WithMetrics liga os contadores prometheus.
func WithMetrics(m *Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithClock troca o relógio (testes).
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithIDGenerator troca o gerador de IDs (testes).
func WithIDGenerator(gen func() string) Option { return func(s *Service) { s.newID = gen } }

// New instancia o serviço do ledger. publ pode ser nil.
func New(log *zap.Logger, store Store, funds Funds, publ Publisher, opts ...Option) *Service {
	s := &Service{
		log:   log,
		store: store,
		funds: funds,
		publ:  publ,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateEvent registra um evento e o seu cofre, atomicamente.
func (s *Service) CreateEvent(ctx context.Context, operator, title, streamRef string, entrants []string) (*ledger.Event, error) {
	e, v, err := ledger.NewEvent(s.newID(), operator, title, streamRef, entrants, s.now())
	if err == nil {
		err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
			return tx.CreateEvent(ctx, e, v)
		})
	}
	s.metrics.observe("create_event", err)
	if err != nil {
		s.log.Warn("create event failed", zap.String("operator", operator), zap.Error(err))
		return nil, err
	}

	s.log.Info("event created", zap.String("eventId", e.ID), zap.Int("entrants", len(e.Entrants)))
	s.publish(ctx, events.LedgerEvent{Type: events.TypeEventCreated, EventID: e.ID, UserID: operator}, e, v)
	return e, nil
}

// LockBetting passa o evento de UPCOMING para LIVE. Devolve o evento e o cofre
// lidos na mesma transação.
func (s *Service) LockBetting(ctx context.Context, eventID, caller string) (*ledger.Event, *ledger.Vault, error) {
	return s.transition(ctx, "lock_betting", events.TypeBettingLocked, eventID, caller, func(e *ledger.Event) error {
		return e.LockBetting(caller, s.now())
	})
}

// DeclareWinner finaliza o evento com o competidor vencedor.
func (s *Service) DeclareWinner(ctx context.Context, eventID, caller string, winnerIndex int) (*ledger.Event, *ledger.Vault, error) {
	return s.transition(ctx, "declare_winner", events.TypeWinnerDeclared, eventID, caller, func(e *ledger.Event) error {
		return e.DeclareWinner(caller, winnerIndex, s.now())
	})
}

// transition aplica uma mudança de status do operador sob lock do evento.
func (s *Service) transition(ctx context.Context, op, evType, eventID, caller string, apply func(*ledger.Event) error) (*ledger.Event, *ledger.Vault, error) {
	var (
		updated *ledger.Event
		vault   *ledger.Vault
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		e, err := tx.EventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if err := apply(e); err != nil {
			return err
		}
		if err := tx.SaveEvent(ctx, e); err != nil {
			return err
		}
		// leitura do cofre só para o snapshot
		v, err := tx.VaultForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		updated, vault = e, v
		return nil
	})
	s.metrics.observe(op, err)
	if err != nil {
		s.log.Warn(op+" failed", zap.String("eventId", eventID), zap.String("caller", caller), zap.Error(err))
		return nil, nil, err
	}

	s.log.Info(op, zap.String("eventId", eventID), zap.String("status", string(updated.Status)), zap.Uint64("version", updated.Version))
	s.publish(ctx, events.LedgerEvent{Type: evType, EventID: eventID, UserID: caller}, updated, vault)
	return updated, vault, nil
}

// PlaceBet aceita uma aposta: reserva o valor na carteira do apostador, deposita
// no cofre e atualiza os pools numa única transação. Se a transação falhar
// depois da reserva, a reserva é estornada; se tiver sucesso, é efetivada.
func (s *Service) PlaceBet(ctx context.Context, eventID, bettor string, entrantIndex int, amount uint64) (*ledger.Bet, error) {
	betID := s.newID()
	reserved := false

	var (
		bet   *ledger.Bet
		event *ledger.Event
		vault *ledger.Vault
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		e, err := tx.EventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		v, err := tx.VaultForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		b, err := e.PlaceBet(betID, bettor, entrantIndex, amount, v, s.now())
		if err != nil {
			return err
		}

		// 1) Reserva saldo (external_ref = betID)
		if err := s.funds.Reserve(ctx, bettor, amount, betID); err != nil {
			return fmt.Errorf("%w: reserve: %v", ErrFundsTransfer, err)
		}
		reserved = true

		// 2) Persiste aposta, pools e cofre
		if err := tx.CreateBet(ctx, b); err != nil {
			return err
		}
		if err := tx.SaveEvent(ctx, e); err != nil {
			return err
		}
		if err := tx.SaveVault(ctx, v); err != nil {
			return err
		}
		bet, event, vault = b, e, v
		return nil
	})

	if err != nil {
		if reserved {
			s.compensate(ctx, bettor, betID)
		}
		s.metrics.observe("place_bet", err)
		s.log.Warn("place bet failed",
			zap.String("eventId", eventID),
			zap.String("bettor", bettor),
			zap.Int("entrant", entrantIndex),
			zap.Uint64("amount", amount),
			zap.Error(err))
		return nil, err
	}

	// 3) Efetiva a reserva; o ledger já está gravado, então uma falha aqui só é logada
	if cerr := s.funds.Commit(ctx, bettor, betID); cerr != nil {
		s.log.Error("wallet commit failed", zap.String("betId", betID), zap.Error(cerr))
	}

	s.metrics.observe("place_bet", nil)
	s.metrics.addWagered(amount)
	s.log.Info("bet placed", zap.String("betId", betID), zap.String("eventId", eventID), zap.Uint64("amount", amount))
	s.publish(ctx, events.LedgerEvent{
		Type:    events.TypeBetPlaced,
		EventID: eventID,
		BetID:   betID,
		UserID:  bettor,
		Amount:  amount,
	}, event, vault)
	return bet, nil
}

// compensate estorna uma reserva cuja transação não foi gravada.
func (s *Service) compensate(ctx context.Context, bettor, betID string) {
	s.metrics.incCompensated()
	// usa um contexto próprio: o do request pode já ter sido cancelado
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.funds.Refund(cctx, bettor, betID); err != nil {
		// TODO: enviar para uma fila de compensação em vez de só logar
		s.log.Error("wallet refund failed", zap.String("betId", betID), zap.String("bettor", bettor), zap.Error(err))
	}
}

// settleAttempts limita as novas tentativas de gravar um claim já creditado.
const settleAttempts = 3

// claimResult é o estado gravado por um claim bem-sucedido.
type claimResult struct {
	payout uint64
	bet    *ledger.Bet
	event  *ledger.Event
	vault  *ledger.Vault
}

// Claim paga uma aposta vencedora. O crédito na carteira roda dentro da
// transação com external_ref "payout:<betID>", idempotente no wallet-service.
// Se a transação falhar depois do crédito (commit perdido), o claim é refeito
// com o mesmo ref até o ledger alcançar a carteira.
func (s *Service) Claim(ctx context.Context, betID, caller string) (uint64, error) {
	res, credited, err := s.claimTx(ctx, betID, caller)
	if err != nil && credited {
		res, err = s.settleCredited(ctx, betID, caller, err)
	}
	s.metrics.observe("claim", err)
	if err != nil {
		s.log.Warn("claim failed", zap.String("betId", betID), zap.String("caller", caller), zap.Error(err))
		return 0, err
	}

	s.metrics.addPaidOut(res.payout)
	s.log.Info("payout claimed", zap.String("betId", betID), zap.String("eventId", res.bet.EventID), zap.Uint64("payout", res.payout))
	s.publish(ctx, events.LedgerEvent{
		Type:    events.TypePayoutClaimed,
		EventID: res.bet.EventID,
		BetID:   res.bet.ID,
		UserID:  res.bet.Bettor,
		Amount:  res.bet.Amount,
		Payout:  res.payout,
	}, res.event, res.vault)
	return res.payout, nil
}

// claimTx roda o claim numa transação. credited indica que a carteira já
// recebeu o crédito, mesmo que a transação tenha falhado depois.
func (s *Service) claimTx(ctx context.Context, betID, caller string) (res claimResult, credited bool, err error) {
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.BetForUpdate(ctx, betID)
		if err != nil {
			return err
		}
		if caller != b.Bettor {
			return ledger.ErrUnauthorized
		}
		e, err := tx.EventForUpdate(ctx, b.EventID)
		if err != nil {
			return err
		}
		v, err := tx.VaultForUpdate(ctx, b.EventID)
		if err != nil {
			return err
		}

		p, err := ledger.Claim(e, b, v, caller, s.now())
		if err != nil {
			return err
		}
		if err := tx.SaveVault(ctx, v); err != nil {
			return err
		}
		if err := tx.SaveBet(ctx, b); err != nil {
			return err
		}
		if err := tx.SaveEvent(ctx, e); err != nil {
			return err
		}
		if p > 0 {
			if err := s.funds.Credit(ctx, b.Bettor, p, "payout:"+b.ID); err != nil {
				return fmt.Errorf("%w: credit: %v", ErrFundsTransfer, err)
			}
			credited = true
		}
		res = claimResult{payout: p, bet: b, event: e, vault: v}
		return nil
	})
	return res, credited, err
}

// settleCredited refaz um claim cuja carteira já foi creditada mas cuja
// transação não foi gravada. O crédito repetido é deduplicado pelo ref.
func (s *Service) settleCredited(ctx context.Context, betID, caller string, cause error) (claimResult, error) {
	s.metrics.incUnsettled()
	s.log.Error("claim credited but not recorded, retrying",
		zap.String("betId", betID), zap.Error(cause))

	// o request pode já ter sido cancelado; a carteira já pagou
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	backoff := 100 * time.Millisecond
	for attempt := 1; attempt <= settleAttempts; attempt++ {
		res, _, err := s.claimTx(cctx, betID, caller)
		if err == nil {
			s.log.Info("claim reconciled", zap.String("betId", betID), zap.Int("attempt", attempt))
			return res, nil
		}
		// erro de domínio (ex.: ALREADY_CLAIMED) é terminal; falha de infra é repetida
		if ledger.Code(err) != "INTERNAL" {
			return res, err
		}
		cause = err
		select {
		case <-cctx.Done():
			return res, cause
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	s.log.Error("claim left unsettled: wallet paid, ledger not updated",
		zap.String("betId", betID), zap.String("bettor", caller), zap.Error(cause))
	return claimResult{}, cause
}

// GetEvent devolve o evento e o seu cofre.
func (s *Service) GetEvent(ctx context.Context, id string) (*ledger.Event, *ledger.Vault, error) {
	return s.store.GetEvent(ctx, id)
}

// GetBet devolve uma aposta.
func (s *Service) GetBet(ctx context.Context, id string) (*ledger.Bet, error) {
	return s.store.GetBet(ctx, id)
}

// publish envia o evento com o snapshot do pool; falhas são só logadas.
func (s *Service) publish(ctx context.Context, ev events.LedgerEvent, e *ledger.Event, v *ledger.Vault) {
	if s.publ == nil {
		return
	}
	ev.Snapshot = Snapshot(e, v)
	if err := s.publ.Publish(ctx, ev); err != nil {
		s.log.Warn("publish ledger event failed", zap.String("type", ev.Type), zap.String("eventId", ev.EventID), zap.Error(err))
	}
}

// Snapshot converte evento + cofre no contrato público.
func Snapshot(e *ledger.Event, v *ledger.Vault) events.PoolSnapshot {
	snap := events.PoolSnapshot{
		EventID:      e.ID,
		Version:      e.Version,
		Title:        e.Title,
		StreamRef:    e.StreamRef,
		Entrants:     append([]string(nil), e.Entrants...),
		Status:       string(e.Status),
		TotalPool:    e.TotalPool,
		EntrantPools: append([]uint64(nil), e.EntrantPools...),
		UpdatedAt:    e.UpdatedAt,
	}
	if idx, ok := e.Winner.Index(); ok {
		i := int(idx)
		snap.WinnerIndex = &i
	}
	if v != nil {
		snap.VaultBalance = v.Balance
	}
	return snap
}
