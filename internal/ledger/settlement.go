package ledger

import (
	"math/bits"
	"time"
)

// Payout calcula floor(amount * total / winnerPool) com produto intermediário de 128 bits.
func Payout(amount, total, winnerPool uint64) (uint64, error) {
	if winnerPool == 0 {
		return 0, ErrMathError
	}
	hi, lo := bits.Mul64(amount, total)
	// Div64 exige hi < divisor; caso contrário o quociente não cabe em 64 bits
	if hi >= winnerPool {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, winnerPool)
	return q, nil
}

// Claim liquida uma aposta vencedora: retira o payout do cofre, marca a aposta
// e avança a versão do evento (o saldo do cofre faz parte do snapshot).
// A ordem das checagens segue a taxonomia de erros; nada é alterado em caso de falha.
func Claim(e *Event, b *Bet, v *Vault, caller string, now time.Time) (uint64, error) {
	if caller != b.Bettor {
		return 0, ErrUnauthorized
	}
	if e.Status != StatusFinished {
		return 0, ErrEventNotFinished
	}
	if b.Claimed {
		return 0, ErrAlreadyClaimed
	}
	winner, ok := e.Winner.Index()
	if !ok {
		return 0, ErrWinnerNotSet
	}
	if b.Entrant != winner {
		return 0, ErrNotWinner
	}
	if b.EventID != e.ID || v == nil || v.EventID != e.ID || int(winner) >= len(e.EntrantPools) {
		return 0, ErrInvalidState
	}

	payout, err := Payout(b.Amount, e.TotalPool, e.EntrantPools[winner])
	if err != nil {
		return 0, err
	}
	if err := v.Withdraw(payout); err != nil {
		return 0, err
	}

	b.Claimed = true
	b.Payout = payout
	b.ClaimedAt = &now
	e.touch(now)
	return payout, nil
}
