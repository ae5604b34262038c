package dto

// ReserveRequest representa o payload para reservar saldo no wallet-service.
type ReserveRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref"`
}

// RefRequest é o payload de commit e refund de uma reserva.
type RefRequest struct {
	UserID      string `json:"userId"`
	ExternalRef string `json:"external_ref"`
}

// CreditRequest credita saldo (payout), idempotente por ExternalRef.
type CreditRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref"`
}
