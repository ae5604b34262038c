package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-ledger/internal/ledger"
	"github.com/radieske/parimutuel-ledger/internal/ledger-service/dto"
	"github.com/radieske/parimutuel-ledger/internal/ledger-service/service"
)

// CallerHeader carrega a identidade já autenticada pelo gateway
const CallerHeader = "X-User-ID"

// Ledger define as operações usadas pelo handler HTTP
type Ledger interface {
	CreateEvent(ctx context.Context, operator, title, streamRef string, entrants []string) (*ledger.Event, error)
	LockBetting(ctx context.Context, eventID, caller string) (*ledger.Event, *ledger.Vault, error)
	DeclareWinner(ctx context.Context, eventID, caller string, winnerIndex int) (*ledger.Event, *ledger.Vault, error)
	PlaceBet(ctx context.Context, eventID, bettor string, entrantIndex int, amount uint64) (*ledger.Bet, error)
	Claim(ctx context.Context, betID, caller string) (uint64, error)
	GetEvent(ctx context.Context, id string) (*ledger.Event, *ledger.Vault, error)
	GetBet(ctx context.Context, id string) (*ledger.Bet, error)
}

// Server expõe o ledger via HTTP
type Server struct {
	log    *zap.Logger
	ledger Ledger
}

func NewServer(log *zap.Logger, l Ledger) *Server { return &Server{log: log, ledger: l} }

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/v1/events/{id}", s.getEvent)
	r.Get("/v1/bets/{id}", s.getBet)

	r.Group(func(r chi.Router) {
		r.Use(requireCaller)
		r.Post("/v1/events", s.createEvent)               // operador = caller
		r.Post("/v1/events/{id}/lock", s.lockBetting)     // operador
		r.Post("/v1/events/{id}/winner", s.declareWinner) // operador
		r.Post("/v1/events/{id}/bets", s.placeBet)        // apostador
		r.Post("/v1/bets/{id}/claim", s.claim)            // dono da aposta
	})
	return r
}

// requireCaller rejeita requests sem identidade
func requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(CallerHeader) == "" {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "UNAUTHENTICATED", Message: CallerHeader + " required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func caller(r *http.Request) string { return r.Header.Get(CallerHeader) }

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "bad json")
		return
	}
	if req.Title == "" {
		badRequest(w, "title required")
		return
	}
	e, err := s.ledger.CreateEvent(r.Context(), caller(r), req.Title, req.StreamRef, req.Entrants)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, eventResponse(e, ledger.NewVault(e.ID)))
}

func (s *Server) lockBetting(w http.ResponseWriter, r *http.Request) {
	e, v, err := s.ledger.LockBetting(r.Context(), chi.URLParam(r, "id"), caller(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventResponse(e, v))
}

func (s *Server) declareWinner(w http.ResponseWriter, r *http.Request) {
	var req dto.DeclareWinnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "bad json")
		return
	}
	if req.WinnerIndex == nil {
		badRequest(w, "winner_index required")
		return
	}
	e, v, err := s.ledger.DeclareWinner(r.Context(), chi.URLParam(r, "id"), caller(r), *req.WinnerIndex)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventResponse(e, v))
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "bad json")
		return
	}
	if req.EntrantIndex == nil {
		badRequest(w, "entrant_index required")
		return
	}
	b, err := s.ledger.PlaceBet(r.Context(), chi.URLParam(r, "id"), caller(r), *req.EntrantIndex, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, betResponse(b))
}

func (s *Server) claim(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	payout, err := s.ledger.Claim(r.Context(), id, caller(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ClaimResponse{BetID: id, Payout: payout})
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	e, v, err := s.ledger.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventResponse(e, v))
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	b, err := s.ledger.GetBet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, betResponse(b))
}

// writeError mapeia a taxonomia do ledger para status HTTP
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidEntrant),
		errors.Is(err, ledger.ErrNoEntrants),
		errors.Is(err, ledger.ErrTooManyEntrants),
		errors.Is(err, ledger.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrInvalidState),
		errors.Is(err, ledger.ErrEventClosed),
		errors.Is(err, ledger.ErrEventNotFinished),
		errors.Is(err, ledger.ErrWinnerNotSet),
		errors.Is(err, ledger.ErrAlreadyClaimed),
		errors.Is(err, ledger.ErrNotWinner):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrOverflow),
		errors.Is(err, ledger.ErrMathError),
		errors.Is(err, ledger.ErrInsufficientVaultFunds):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrFundsTransfer):
		writeJSON(w, http.StatusPaymentRequired, dto.ErrorResponse{Error: "FUNDS_TRANSFER_FAILED", Message: err.Error()})
		return
	}
	if status == http.StatusInternalServerError {
		s.log.Error("ledger request failed", zap.Error(err))
		writeJSON(w, status, dto.ErrorResponse{Error: ledger.Code(err)})
		return
	}
	writeJSON(w, status, dto.ErrorResponse{Error: ledger.Code(err), Message: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "BAD_REQUEST", Message: msg})
}

func eventResponse(e *ledger.Event, v *ledger.Vault) dto.EventResponse {
	return dto.EventResponse{
		PoolSnapshot: service.Snapshot(e, v),
		Operator:     e.Operator,
		CreatedAt:    e.CreatedAt,
	}
}

func betResponse(b *ledger.Bet) dto.BetResponse {
	return dto.BetResponse{
		BetID:        b.ID,
		EventID:      b.EventID,
		Bettor:       b.Bettor,
		EntrantIndex: int(b.Entrant),
		Amount:       b.Amount,
		Claimed:      b.Claimed,
		Payout:       b.Payout,
		CreatedAt:    b.CreatedAt,
		ClaimedAt:    b.ClaimedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
