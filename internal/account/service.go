// Package account serves the authenticated user's profile and transaction
// ledger.
package account

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/growguru/invest-api/internal/auth"
	"github.com/growguru/invest-api/internal/httpx"
	"github.com/growguru/invest-api/internal/metrics"
	"github.com/growguru/invest-api/internal/model"
	"github.com/growguru/invest-api/internal/store"
)

// Service handles GET /usuarios, GET /transacoes, and POST /transacoes.
type Service struct {
	store store.Store
}

// NewService creates an account service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

func (s *Service) currentUser(w http.ResponseWriter, r *http.Request) *model.User {
	authID, ok := auth.AuthIDFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "token de acesso ausente")
		return nil
	}
	u, err := s.store.GetUserByAuthID(r.Context(), authID)
	if errors.Is(err, store.ErrUserNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "Usuário não encontrado")
		return nil
	}
	if err != nil {
		slog.Error("user lookup failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Erro interno")
		return nil
	}
	return u
}

// GetProfile handles GET /usuarios: the logged-in user's id, name, email,
// and cash balance.
func (s *Service) GetProfile(w http.ResponseWriter, r *http.Request) {
	u := s.currentUser(w, r)
	if u == nil {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

// ListTransactions handles GET /transacoes, newest first.
func (s *Service) ListTransactions(w http.ResponseWriter, r *http.Request) {
	u := s.currentUser(w, r)
	if u == nil {
		return
	}

	entries, err := s.store.ListTransactions(r.Context(), u.ID)
	if err != nil {
		slog.Error("transaction list failed", "user_id", u.ID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Erro interno")
		return
	}
	if entries == nil {
		entries = []model.Transaction{}
	}
	httpx.WriteJSON(w, http.StatusOK, entries)
}

// CreateTransactionRequest is the JSON body for POST /transacoes: a manual
// ledger entry (deposit, withdrawal, correction). The signed amount is
// caller-supplied and applied to the balance as-is.
type CreateTransactionRequest struct {
	Amount      decimal.Decimal `json:"valor"`
	Type        string          `json:"tipo"`
	Description string          `json:"descricao"`
}

// CreateTransaction handles POST /transacoes. The entry and the balance
// change commit together.
func (s *Service) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := httpx.ReadJSON(r, &req, 1<<20); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}
	if req.Type == "" || req.Amount.IsZero() {
		httpx.WriteError(w, http.StatusBadRequest, "tipo e valor são obrigatórios")
		return
	}

	u := s.currentUser(w, r)
	if u == nil {
		return
	}

	desc := req.Description
	if desc == "" {
		desc = "Operação financeira"
	}

	entry := &model.Transaction{
		UserID:      u.ID,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: desc,
		Timestamp:   time.Now().UTC(),
	}
	if _, err := s.store.RecordAdjustment(r.Context(), entry); err != nil {
		slog.Error("manual transaction failed", "user_id", u.ID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Erro ao processar transação")
		return
	}

	metrics.TradesTotal.WithLabelValues(model.TransactionManual).Inc()
	slog.Info("manual transaction recorded",
		"user_id", u.ID,
		"tipo", req.Type,
		"valor", req.Amount.String(),
	)

	httpx.WriteJSON(w, http.StatusOK, entry)
}
