package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-ledger/internal/wallet-service/dto"
	"github.com/radieske/parimutuel-ledger/internal/wallet-service/repo"
)

// memRepo é um Repo mínimo em memória para os handlers
type memRepo struct {
	balances map[string]int64
	reserved map[string]int64
	credits  map[string]bool
}

func newMemRepo() *memRepo {
	return &memRepo{balances: map[string]int64{}, reserved: map[string]int64{}, credits: map[string]bool{}}
}

func (m *memRepo) GetOrCreateWallet(_ context.Context, userID string) (string, int64, error) {
	return "w-" + userID, m.balances[userID], nil
}

func (m *memRepo) Deposit(_ context.Context, userID string, amount int64, _ string) (string, int64, error) {
	m.balances[userID] += amount
	return "w-" + userID, m.balances[userID], nil
}

func (m *memRepo) Reserve(_ context.Context, userID string, amount int64, ref string) (string, error) {
	if _, ok := m.balances[userID]; !ok {
		return "", repo.ErrNotFound
	}
	if m.balances[userID] < amount {
		return "", repo.ErrInsufficientFunds
	}
	m.balances[userID] -= amount
	m.reserved[ref] = amount
	return "res-" + ref, nil
}

func (m *memRepo) Commit(_ context.Context, _, ref string) error {
	if _, ok := m.reserved[ref]; !ok {
		return repo.ErrNotFound
	}
	delete(m.reserved, ref)
	return nil
}

func (m *memRepo) Refund(_ context.Context, userID, ref string) error {
	amount, ok := m.reserved[ref]
	if !ok {
		return repo.ErrNotFound
	}
	delete(m.reserved, ref)
	m.balances[userID] += amount
	return nil
}

func (m *memRepo) Credit(_ context.Context, userID string, amount int64, ref string) (int64, error) {
	if !m.credits[ref] {
		m.credits[ref] = true
		m.balances[userID] += amount
	}
	return m.balances[userID], nil
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func TestReserveCommitRefund(t *testing.T) {
	h := NewServer(zap.NewNop(), newMemRepo()).Router()

	rec := post(t, h, "/wallet/deposit", `{"userId":"alice","amount_cents":100}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = post(t, h, "/wallet/reserve", `{"userId":"alice","amount_cents":60,"external_ref":"b1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res dto.ReservationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "PENDING", res.Status)

	rec = post(t, h, "/wallet/reserve", `{"userId":"alice","amount_cents":60,"external_ref":"b2"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = post(t, h, "/wallet/commit", `{"userId":"alice","external_ref":"b1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"COMMITTED"}`, rec.Body.String())

	rec = post(t, h, "/wallet/refund", `{"userId":"alice","external_ref":"b1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = post(t, h, "/wallet/reserve", `{"userId":"ghost","amount_cents":1,"external_ref":"b3"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreditIsIdempotent(t *testing.T) {
	h := NewServer(zap.NewNop(), newMemRepo()).Router()

	for i := 0; i < 2; i++ {
		rec := post(t, h, "/wallet/credit", `{"userId":"alice","amount_cents":400,"external_ref":"payout:b1"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var w dto.WalletResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&w))
		assert.Equal(t, int64(400), w.BalanceCents)
	}
}

func TestValidation(t *testing.T) {
	h := NewServer(zap.NewNop(), newMemRepo()).Router()

	assert.Equal(t, http.StatusBadRequest, post(t, h, "/wallet/deposit", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h, "/wallet/deposit", `{"userId":"a","amount_cents":0}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h, "/wallet/reserve", `{"userId":"a","amount_cents":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h, "/wallet/credit", `{"userId":"a","amount_cents":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h, "/wallet/commit", `{"userId":"a"}`).Code)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wallet", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wallet/reserve", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
