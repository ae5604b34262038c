package ledger

import (
	"math/bits"
	"time"
)

// MaxEntrants é o limite de competidores: o índice é um uint8.
const MaxEntrants = 256

// Status do ciclo de vida do evento: UPCOMING -> LIVE -> FINISHED (ou UPCOMING -> FINISHED)
type Status string

const (
	StatusUpcoming Status = "UPCOMING"
	StatusLive     Status = "LIVE"
	StatusFinished Status = "FINISHED"
)

// AcceptsBets indica se o status ainda aceita apostas.
func (s Status) AcceptsBets() bool { return s == StatusUpcoming || s == StatusLive }

// Winner é Unset ou Index(i). O zero value é Unset.
type Winner struct {
	index uint8
	set   bool
}

// NoWinner devolve o estado Unset.
func NoWinner() Winner { return Winner{} }

// WinnerAt devolve Index(i).
func WinnerAt(i uint8) Winner { return Winner{index: i, set: true} }

// Index devolve o índice vencedor e se ele foi definido.
func (w Winner) Index() (uint8, bool) { return w.index, w.set }

// Event é o agregado de um evento: metadados, status e pools.
// Invariante: TotalPool == soma(EntrantPools).
// Version cresce a cada mutação do agregado (evento ou cofre) e ordena os snapshots publicados.
type Event struct {
	ID           string
	Operator     string
	Title        string
	StreamRef    string
	Entrants     []string
	Status       Status
	Winner       Winner
	TotalPool    uint64
	EntrantPools []uint64
	Version      uint64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewEvent cria o evento em UPCOMING, com pools zerados, e o seu cofre vazio.
func NewEvent(id, operator, title, streamRef string, entrants []string, now time.Time) (*Event, *Vault, error) {
	if len(entrants) == 0 {
		return nil, nil, ErrNoEntrants
	}
	if len(entrants) > MaxEntrants {
		return nil, nil, ErrTooManyEntrants
	}
	names := make([]string, len(entrants))
	copy(names, entrants)

	e := &Event{
		ID:           id,
		Operator:     operator,
		Title:        title,
		StreamRef:    streamRef,
		Entrants:     names,
		Status:       StatusUpcoming,
		Winner:       NoWinner(),
		EntrantPools: make([]uint64, len(names)),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return e, NewVault(id), nil
}

// entrant valida o índice contra a lista de competidores.
func (e *Event) entrant(i int) (uint8, error) {
	if i < 0 || i >= len(e.Entrants) {
		return 0, ErrInvalidEntrant
	}
	return uint8(i), nil
}

// LockBetting fecha a fase UPCOMING (transição única para LIVE).
func (e *Event) LockBetting(caller string, now time.Time) error {
	if caller != e.Operator {
		return ErrUnauthorized
	}
	if e.Status != StatusUpcoming {
		return ErrInvalidState
	}
	e.Status = StatusLive
	e.touch(now)
	return nil
}

// DeclareWinner finaliza o evento. Aceito a partir de UPCOMING ou LIVE;
// FINISHED é terminal e uma segunda chamada falha com ErrInvalidState.
func (e *Event) DeclareWinner(caller string, index int, now time.Time) error {
	if caller != e.Operator {
		return ErrUnauthorized
	}
	idx, err := e.entrant(index)
	if err != nil {
		return err
	}
	if !e.Status.AcceptsBets() {
		return ErrInvalidState
	}
	e.Status = StatusFinished
	e.Winner = WinnerAt(idx)
	e.touch(now)
	return nil
}

// PlaceBet registra uma aposta: deposita no cofre e soma nos pools.
// Todas as checagens (inclusive overflow) rodam antes de qualquer mutação.
func (e *Event) PlaceBet(betID, bettor string, index int, amount uint64, v *Vault, now time.Time) (*Bet, error) {
	idx, err := e.entrant(index)
	if err != nil {
		return nil, err
	}
	if !e.Status.AcceptsBets() {
		return nil, ErrEventClosed
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if v == nil || v.EventID != e.ID {
		return nil, ErrInvalidState
	}

	total, carry := bits.Add64(e.TotalPool, amount, 0)
	if carry != 0 {
		return nil, ErrOverflow
	}
	side, carry := bits.Add64(e.EntrantPools[idx], amount, 0)
	if carry != 0 {
		return nil, ErrOverflow
	}
	if err := v.Deposit(amount); err != nil {
		return nil, err
	}

	e.TotalPool = total
	e.EntrantPools[idx] = side
	e.touch(now)

	return &Bet{
		ID:        betID,
		Bettor:    bettor,
		EventID:   e.ID,
		Entrant:   idx,
		Amount:    amount,
		CreatedAt: now,
	}, nil
}

func (e *Event) touch(now time.Time) {
	e.Version++
	e.UpdatedAt = now
}

// Clone devolve uma cópia profunda do evento.
func (e *Event) Clone() *Event {
	c := *e
	c.Entrants = append([]string(nil), e.Entrants...)
	c.EntrantPools = append([]uint64(nil), e.EntrantPools...)
	return &c
}
