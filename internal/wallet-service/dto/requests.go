package dto

type DepositRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref,omitempty"` // opcional; com ref o depósito é idempotente
}

type ReserveRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref"` // ex: betId
}

// RefRequest identifica uma reserva para commit ou refund
type RefRequest struct {
	UserID      string `json:"userId"`
	ExternalRef string `json:"external_ref"`
}

// CreditRequest credita um payout; ExternalRef obrigatório (ex: payout:<betId>)
type CreditRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref"`
}
