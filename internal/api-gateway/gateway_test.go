package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoBackend(t *testing.T, name string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, name+" "+r.URL.Path+" "+r.Header.Get("X-User-ID"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGatewayRoutes(t *testing.T) {
	ledger := echoBackend(t, "ledger")
	wallet := echoBackend(t, "wallet")
	h, err := NewHandler([]Route{
		{Prefix: "/api/ledger", Target: ledger.URL},
		{Prefix: "/api/wallet/", Target: wallet.URL},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/ledger/v1/events/ev1/bets", nil)
	req.Header.Set("X-User-ID", "alice")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ledger /v1/events/ev1/bets alice", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/wallet/wallet", nil))
	assert.Equal(t, "wallet /wallet ", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/unknown/x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGatewayPreflight(t *testing.T) {
	h, err := NewHandler(nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/ledger/v1/events", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-User-ID")
}

func TestGatewayRejectsBadTarget(t *testing.T) {
	_, err := NewHandler([]Route{{Prefix: "/api/x", Target: "not a url"}})
	assert.Error(t, err)
}
