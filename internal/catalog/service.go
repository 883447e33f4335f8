// Package catalog serves the read-only strategy listings.
package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/growguru/invest-api/internal/httpx"
	"github.com/growguru/invest-api/internal/model"
	"github.com/growguru/invest-api/internal/store"
)

// Service handles GET /estrategias and GET /estrategias/{id}/ativos.
// Both endpoints are public.
type Service struct {
	store store.Store
}

// NewService creates a catalog service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// ListStrategies handles GET /estrategias: all strategies with their
// constituent counts.
func (s *Service) ListStrategies(w http.ResponseWriter, r *http.Request) {
	strategies, err := s.store.ListStrategies(r.Context())
	if err != nil {
		slog.Error("strategy list failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Erro ao carregar estratégias")
		return
	}
	if strategies == nil {
		strategies = []model.Strategy{}
	}
	httpx.WriteJSON(w, http.StatusOK, strategies)
}

// ListStrategyAssets handles GET /estrategias/{estrategiaID}/ativos: one
// strategy's constituents ordered by rank.
func (s *Service) ListStrategyAssets(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "estrategiaID"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "id de estratégia inválido")
		return
	}

	assets, err := s.store.ListStrategyAssets(r.Context(), id)
	if err != nil {
		slog.Error("strategy assets failed", "estrategia_id", id, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Erro ao carregar ativos da estratégia")
		return
	}
	if assets == nil {
		assets = []model.StrategyAsset{}
	}
	httpx.WriteJSON(w, http.StatusOK, assets)
}
