package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/parimutuel-ledger/internal/shared/testutil"
)

func TestWalletSaga(t *testing.T) {
	p := NewPostgres(testutil.SetupPostgres(t))
	ctx := context.Background()

	_, bal, err := p.Deposit(ctx, "alice", 100, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal)

	// depósito repetido com a mesma ref não soma de novo
	_, bal, err = p.Deposit(ctx, "alice", 100, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal)

	id1, err := p.Reserve(ctx, "alice", 70, "bet-1")
	require.NoError(t, err)
	id2, err := p.Reserve(ctx, "alice", 70, "bet-1")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	_, err = p.Reserve(ctx, "alice", 70, "bet-2")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	require.NoError(t, p.Commit(ctx, "alice", "bet-1"))
	require.NoError(t, p.Refund(ctx, "alice", "bet-1")) // já COMMITTED: no-op

	_, bal, err = p.GetOrCreateWallet(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(30), bal)

	_, err = p.Reserve(ctx, "alice", 20, "bet-3")
	require.NoError(t, err)
	require.NoError(t, p.Refund(ctx, "alice", "bet-3"))
	_, bal, err = p.GetOrCreateWallet(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(30), bal)

	assert.ErrorIs(t, p.Commit(ctx, "alice", "nope"), ErrNotFound)
	_, err = p.Reserve(ctx, "ghost", 1, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreditIdempotent(t *testing.T) {
	p := NewPostgres(testutil.SetupPostgres(t))
	ctx := context.Background()

	bal, err := p.Credit(ctx, "bob", 400, "payout:b1")
	require.NoError(t, err)
	assert.Equal(t, int64(400), bal)

	bal, err = p.Credit(ctx, "bob", 400, "payout:b1")
	require.NoError(t, err)
	assert.Equal(t, int64(400), bal)

	bal, err = p.Credit(ctx, "bob", 5, "payout:b2")
	require.NoError(t, err)
	assert.Equal(t, int64(405), bal)
}
