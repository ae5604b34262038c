package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	walletdto "github.com/radieske/parimutuel-ledger/internal/ledger-service/wallet/dto"
)

// ErrAmountTooLarge: a carteira trabalha com int64; valores acima não são transferíveis.
var ErrAmountTooLarge = errors.New("amount exceeds wallet range")

// Client implementa a primitiva de transferência de valor via HTTP no wallet-service
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(base, "/"),
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

// Reserve bloqueia amount na carteira do usuário (external_ref = betID)
func (c *Client) Reserve(ctx context.Context, userID string, amount uint64, externalRef string) error {
	cents, err := toCents(amount)
	if err != nil {
		return err
	}
	var out walletdto.ReserveResponse
	return c.post(ctx, "/wallet/reserve", walletdto.ReserveRequest{UserID: userID, AmountCents: cents, ExternalRef: externalRef}, &out)
}

// Commit efetiva a reserva
func (c *Client) Commit(ctx context.Context, userID, externalRef string) error {
	return c.post(ctx, "/wallet/commit", walletdto.RefRequest{UserID: userID, ExternalRef: externalRef}, nil)
}

// Refund devolve a reserva ao usuário
func (c *Client) Refund(ctx context.Context, userID, externalRef string) error {
	return c.post(ctx, "/wallet/refund", walletdto.RefRequest{UserID: userID, ExternalRef: externalRef}, nil)
}

// Credit credita o payout; repetir com o mesmo externalRef não credita de novo
func (c *Client) Credit(ctx context.Context, userID string, amount uint64, externalRef string) error {
	cents, err := toCents(amount)
	if err != nil {
		return err
	}
	return c.post(ctx, "/wallet/credit", walletdto.CreditRequest{UserID: userID, AmountCents: cents, ExternalRef: externalRef}, nil)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("wallet %s http %d: %s", path, res.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func toCents(amount uint64) (int64, error) {
	if amount > math.MaxInt64 {
		return 0, ErrAmountTooLarge
	}
	return int64(amount), nil
}
