package ledger

import "errors"

// Erros do ledger. Todos são terminais para a operação: nenhum efeito parcial é gravado.
var (
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidState           = errors.New("invalid state")
	ErrInvalidEntrant         = errors.New("invalid entrant")
	ErrEventClosed            = errors.New("event closed for betting")
	ErrEventNotFinished       = errors.New("event not finished")
	ErrWinnerNotSet           = errors.New("winner not set")
	ErrAlreadyClaimed         = errors.New("bet already claimed")
	ErrNotWinner              = errors.New("bet did not win")
	ErrOverflow               = errors.New("arithmetic overflow")
	ErrMathError              = errors.New("undefined arithmetic")
	ErrInsufficientVaultFunds = errors.New("insufficient vault funds")

	ErrNoEntrants      = errors.New("event needs at least one entrant")
	ErrTooManyEntrants = errors.New("too many entrants")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrNotFound        = errors.New("not found")
)

// Code devolve um código estável para o erro, usado na API e nas métricas.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ErrInvalidEntrant):
		return "INVALID_ENTRANT"
	case errors.Is(err, ErrEventClosed):
		return "EVENT_CLOSED"
	case errors.Is(err, ErrEventNotFinished):
		return "EVENT_NOT_FINISHED"
	case errors.Is(err, ErrWinnerNotSet):
		return "WINNER_NOT_SET"
	case errors.Is(err, ErrAlreadyClaimed):
		return "ALREADY_CLAIMED"
	case errors.Is(err, ErrNotWinner):
		return "NOT_WINNER"
	case errors.Is(err, ErrOverflow):
		return "OVERFLOW"
	case errors.Is(err, ErrMathError):
		return "MATH_ERROR"
	case errors.Is(err, ErrInsufficientVaultFunds):
		return "INSUFFICIENT_VAULT_FUNDS"
	case errors.Is(err, ErrNoEntrants), errors.Is(err, ErrTooManyEntrants), errors.Is(err, ErrInvalidAmount):
		return "INVALID_ARGUMENT"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}
