package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-ledger/internal/ledger"
	"github.com/radieske/parimutuel-ledger/internal/ledger-service/service"
	"github.com/radieske/parimutuel-ledger/pkg/contracts/events"
)

// SnapshotCache é o cache de snapshots escrito pelo pool-projector
type SnapshotCache interface {
	GetCurrent(ctx context.Context, eventID string) (events.PoolSnapshot, bool, error)
	SetIfAbsent(ctx context.Context, s events.PoolSnapshot) error
}

// EventReader lê o estado do ledger direto do banco (fallback)
type EventReader interface {
	GetEvent(ctx context.Context, id string) (*ledger.Event, *ledger.Vault, error)
}

// API expõe o snapshot de pool de um evento
// Utiliza o cache Redis e, em caso de miss, o banco do ledger
type API struct {
	Log    *zap.Logger
	Cache  SnapshotCache
	Events EventReader
	WS     http.HandlerFunc // opcional: /ws
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/events/{id}/pool", a.getPool) // Snapshot do pool de um evento
	if a.WS != nil {
		r.Get("/ws", a.WS) // Atualizações em tempo real
	}
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// getPool retorna o snapshot do evento, preferencialmente do cache
func (a *API) getPool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, ok, err := a.Cache.GetCurrent(r.Context(), id)
	if err != nil {
		a.Log.Warn("pool cache read failed", zap.String("eventId", id), zap.Error(err))
	}
	if ok {
		writeJSON(w, http.StatusOK, snap)
		return
	}

	e, v, err := a.Events.GetEvent(r.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		a.Log.Error("pool db read failed", zap.String("eventId", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	snap = service.Snapshot(e, v)
	if err := a.Cache.SetIfAbsent(r.Context(), snap); err != nil {
		a.Log.Warn("pool cache fill failed", zap.String("eventId", id), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, snap)
}
