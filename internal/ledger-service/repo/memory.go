package repo

import (
	"context"
	"sync"

	"github.com/radieske/parimutuel-ledger/internal/ledger"
	"github.com/radieske/parimutuel-ledger/internal/ledger-service/service"
)

// Memory implementa o Store em memória. Cada evento, cofre e aposta tem o seu
// próprio lock, mantido até o fim da transação, então operações em eventos
// diferentes não disputam entre si.
type Memory struct {
	mu     sync.RWMutex
	events map[string]*ledger.Event
	vaults map[string]*ledger.Vault
	bets   map[string]*ledger.Bet

	locksMu sync.Mutex
	locks   map[string]*keyLock
}

// keyLock é removido do mapa quando ninguém mais o segura nem espera por ele.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewMemory cria um store vazio.
func NewMemory() *Memory {
	return &Memory{
		events: make(map[string]*ledger.Event),
		vaults: make(map[string]*ledger.Vault),
		bets:   make(map[string]*ledger.Bet),
		locks:  make(map[string]*keyLock),
	}
}

var _ service.Store = (*Memory)(nil)

func (m *Memory) lock(key string) *keyLock {
	m.locksMu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{}
		m.locks[key] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return l
}

func (m *Memory) unlock(key string, l *keyLock) {
	l.mu.Unlock()

	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// WithTx executa fn e só aplica as escritas se fn retornar nil.
func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context, tx service.Tx) error) error {
	tx := &memTx{
		m:      m,
		held:   make(map[string]*keyLock),
		events: make(map[string]*ledger.Event),
		vaults: make(map[string]*ledger.Vault),
		bets:   make(map[string]*ledger.Bet),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range tx.events {
		m.events[id] = e
	}
	for id, v := range tx.vaults {
		m.vaults[id] = v
	}
	for id, b := range tx.bets {
		m.bets[id] = b
	}
	return nil
}

// GetEvent devolve cópias do evento e do cofre.
func (m *Memory) GetEvent(_ context.Context, id string) (*ledger.Event, *ledger.Vault, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return nil, nil, ledger.ErrNotFound
	}
	v := *m.vaults[id]
	return e.Clone(), &v, nil
}

// GetBet devolve uma cópia da aposta.
func (m *Memory) GetBet(_ context.Context, id string) (*ledger.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bets[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return cloneBet(b), nil
}

type memTx struct {
	m    *Memory
	held map[string]*keyLock

	// escritas pendentes até o commit
	events map[string]*ledger.Event
	vaults map[string]*ledger.Vault
	bets   map[string]*ledger.Bet
}

func (t *memTx) acquire(key string) {
	if _, ok := t.held[key]; ok {
		return
	}
	t.held[key] = t.m.lock(key)
}

func (t *memTx) release() {
	for key, l := range t.held {
		t.m.unlock(key, l)
	}
}

func (t *memTx) CreateEvent(_ context.Context, e *ledger.Event, v *ledger.Vault) error {
	t.acquire("event:" + e.ID)
	t.acquire("vault:" + e.ID)
	t.events[e.ID] = e.Clone()
	vc := *v
	t.vaults[e.ID] = &vc
	return nil
}

func (t *memTx) EventForUpdate(_ context.Context, id string) (*ledger.Event, error) {
	t.acquire("event:" + id)
	if e, ok := t.events[id]; ok {
		return e.Clone(), nil
	}
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	e, ok := t.m.events[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return e.Clone(), nil
}

func (t *memTx) SaveEvent(_ context.Context, e *ledger.Event) error {
	t.events[e.ID] = e.Clone()
	return nil
}

func (t *memTx) VaultForUpdate(_ context.Context, eventID string) (*ledger.Vault, error) {
	t.acquire("vault:" + eventID)
	if v, ok := t.vaults[eventID]; ok {
		vc := *v
		return &vc, nil
	}
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	v, ok := t.m.vaults[eventID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	vc := *v
	return &vc, nil
}

func (t *memTx) SaveVault(_ context.Context, v *ledger.Vault) error {
	vc := *v
	t.vaults[v.EventID] = &vc
	return nil
}

func (t *memTx) CreateBet(_ context.Context, b *ledger.Bet) error {
	t.acquire("bet:" + b.ID)
	t.bets[b.ID] = cloneBet(b)
	return nil
}

func (t *memTx) BetForUpdate(_ context.Context, id string) (*ledger.Bet, error) {
	t.acquire("bet:" + id)
	if b, ok := t.bets[id]; ok {
		return cloneBet(b), nil
	}
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	b, ok := t.m.bets[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return cloneBet(b), nil
}

func (t *memTx) SaveBet(_ context.Context, b *ledger.Bet) error {
	t.bets[b.ID] = cloneBet(b)
	return nil
}

func cloneBet(b *ledger.Bet) *ledger.Bet {
	c := *b
	if b.ClaimedAt != nil {
		at := *b.ClaimedAt
		c.ClaimedAt = &at
	}
	return &c
}
