package portfolio

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/growguru/invest-api/internal/auth"
	"github.com/growguru/invest-api/internal/httpx"
	"github.com/growguru/invest-api/internal/metrics"
	"github.com/growguru/invest-api/internal/model"
	"github.com/growguru/invest-api/internal/store"
	"github.com/growguru/invest-api/internal/valuation"
)

// Service handles the portfolio endpoints: buying and selling assets and
// querying the valued portfolio. Business arithmetic lives in the
// valuation package; atomicity lives behind the Store interface.
type Service struct {
	store       store.Store
	creditFloor decimal.Decimal
	wsHub       *WSHub // optional hub for post-commit broadcasts
}

// NewService creates a portfolio service. creditFloor is the most negative
// balance a purchase may leave behind (e.g. -1000). Pass nil for hub if
// WebSocket broadcasting is not needed.
func NewService(st store.Store, creditFloor decimal.Decimal, hub *WSHub) *Service {
	return &Service{
		store:       st,
		creditFloor: creditFloor,
		wsHub:       hub,
	}
}

// currentUser resolves the authenticated identity to the internal user
// row, writing the error response itself when resolution fails.
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

// --- Buy ---

// BuyRequest is the JSON body for POST /carteira.
type BuyRequest struct {
	AssetCode  string          `json:"codigo_ativo"`
	Quantity   decimal.Decimal `json:"quantidade"`
	UnitPrice  decimal.Decimal `json:"valor_compra"`
	StrategyID *int64          `json:"estrategia_id"`
}

type positionData struct {
	model.Position
	NewBalance decimal.Decimal `json:"novo_saldo"`
}

type mutationResponse struct {
	Message string       `json:"message"`
	Data    positionData `json:"data"`
}

// Buy handles POST /carteira.
func (s *Service) Buy(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	if err := httpx.ReadJSON(r, &req, 1<<20); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}
	if req.AssetCode == "" || req.StrategyID == nil {
		httpx.WriteError(w, http.StatusBadRequest, "Dados inválidos: código do ativo, quantidade, valor_compra ou estrategia_id ausentes")
		return
	}
	if !req.Quantity.IsPositive() {
		httpx.WriteError(w, http.StatusBadRequest, "Quantidade inválida")
		return
	}
	if !req.UnitPrice.IsPositive() {
		httpx.WriteError(w, http.StatusBadRequest, "Valor de compra inválido")
		return
	}

	u := s.currentUser(w, r)
	if u == nil {
		return
	}

	res, err := s.store.ExecutePurchase(r.Context(), store.PurchaseParams{
		UserID:      u.ID,
		AssetCode:   req.AssetCode,
		StrategyID:  *req.StrategyID,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		CreditFloor: s.creditFloor,
		Description: fmt.Sprintf("Compra de %s cotas de %s", req.Quantity.String(), req.AssetCode),
	})
	if errors.Is(err, store.ErrCreditLimitExceeded) {
		metrics.TradeRejections.WithLabelValues("limite_credito").Inc()
		httpx.WriteError(w, http.StatusBadRequest,
			fmt.Sprintf("Limite de crédito excedido. Seu limite é de R$ %s", s.creditFloor.Abs().StringFixed(2)))
		return
	}
	if errors.Is(err, store.ErrUserNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "Usuário não encontrado")
		return
	}
	if err != nil {
		slog.Error("purchase failed", "user_id", u.ID, "ativo", req.AssetCode, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Erro ao processar compra")
		return
	}

	metrics.TradesTotal.WithLabelValues(model.TransactionPurchase).Inc()
	slog.Info("purchase executed",
		"user_id", u.ID,
		"ativo", req.AssetCode,
		"estrategia_id", *req.StrategyID,
		"quantidade", req.Quantity.String(),
		"valor_unitario", req.UnitPrice.String(),
		"novo_saldo", res.NewBalance.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSEvent{
			Type:       model.TransactionPurchase,
			UserID:     u.ID,
			AssetCode:  req.AssetCode,
			StrategyID: *req.StrategyID,
			Quantity:   req.Quantity.String(),
			UnitPrice:  req.UnitPrice.String(),
			NewBalance: res.NewBalance.String(),
		})
	}

	httpx.WriteJSON(w, http.StatusOK, mutationResponse{
		Message: "Compra registrada com sucesso",
		Data:    positionData{Position: res.Position, NewBalance: res.NewBalance},
	})
}

// --- Sell ---

// SellRequest is the JSON body for POST /vender. SalePrice is optional;
// when absent the position's average cost is used.
type SellRequest struct {
	AssetCode  string           `json:"codigo_ativo"`
	Quantity   decimal.Decimal  `json:"quantidade"`
	StrategyID *int64           `json:"estrategia_id"`
	SalePrice  *decimal.Decimal `json:"preco_venda"`
}

type saleData struct {
	Position   *model.Position `json:"posicao,omitempty"`
	SalePrice  decimal.Decimal `json:"preco_venda"`
	Proceeds   decimal.Decimal `json:"valor_total"`
	NewBalance decimal.Decimal `json:"novo_saldo"`
}

type saleResponse struct {
	Message string   `json:"message"`
	Data    saleData `json:"data"`
}

// Sell handles POST /vender.
func (s *Service) Sell(w http.ResponseWriter, r *http.Request) {
	var req SellRequest
	if err := httpx.ReadJSON(r, &req, 1<<20); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}
	if req.AssetCode == "" || req.StrategyID == nil {
		httpx.WriteError(w, http.StatusBadRequest, "Dados inválidos")
		return
	}
	if !req.Quantity.IsPositive() {
		httpx.WriteError(w, http.StatusBadRequest, "Quantidade inválida")
		return
	}
	if req.SalePrice != nil && !req.SalePrice.IsPositive() {
		httpx.WriteError(w, http.StatusBadRequest, "Preço de venda inválido")
		return
	}

	u := s.currentUser(w, r)
	if u == nil {
		return
	}

	res, err := s.store.ExecuteSale(r.Context(), store.SaleParams{
		UserID:      u.ID,
		AssetCode:   req.AssetCode,
		StrategyID:  *req.StrategyID,
		Quantity:    req.Quantity,
		SalePrice:   req.SalePrice,
		Description: fmt.Sprintf("Venda de %s cotas de %s", req.Quantity.String(), req.AssetCode),
	})
	switch {
	case errors.Is(err, store.ErrPositionNotFound):
		httpx.WriteError(w, http.StatusNotFound, "Registro de investimento não encontrado")
		return
	case errors.Is(err, store.ErrInsufficientQuantity):
		metrics.TradeRejections.WithLabelValues("quantidade_insuficiente").Inc()
		httpx.WriteError(w, http.StatusBadRequest, "Quantidade insuficiente para venda")
		return
	case errors.Is(err, store.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, "Usuário não encontrado")
		return
	case err != nil:
		slog.Error("sale failed", "user_id", u.ID, "ativo", req.AssetCode, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Erro ao processar venda")
		return
	}

	metrics.TradesTotal.WithLabelValues(model.TransactionSale).Inc()
	slog.Info("sale executed",
		"user_id", u.ID,
		"ativo", req.AssetCode,
		"estrategia_id", *req.StrategyID,
		"quantidade", req.Quantity.String(),
		"preco_venda", res.SalePrice.String(),
		"novo_saldo", res.NewBalance.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSEvent{
			Type:       model.TransactionSale,
			UserID:     u.ID,
			AssetCode:  req.AssetCode,
			StrategyID: *req.StrategyID,
			Quantity:   req.Quantity.String(),
			UnitPrice:  res.SalePrice.String(),
			NewBalance: res.NewBalance.String(),
		})
	}

	httpx.WriteJSON(w, http.StatusOK, saleResponse{
		Message: "Venda realizada com sucesso",
		Data: saleData{
			Position:   res.Position,
			SalePrice:  res.SalePrice,
			Proceeds:   res.Proceeds,
			NewBalance: res.NewBalance,
		},
	})
}

// --- Portfolio queries ---

// GetPortfolio handles GET /carteira: positions grouped by strategy with
// invested totals and percentage weightings. An empty portfolio yields [].
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	u := s.currentUser(w, r)
	if u == nil {
		return
	}

	details, err := s.store.ListPositions(r.Context(), u.ID)
	if err != nil {
		slog.Error("portfolio load failed", "user_id", u.ID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Erro ao carregar carteira")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, valuation.GroupByStrategy(details))
}

type totalInvestedResponse struct {
	TotalInvested decimal.Decimal `json:"total_investido"`
}

// GetTotalInvested handles GET /total-investido.
func (s *Service) GetTotalInvested(w http.ResponseWriter, r *http.Request) {
	u := s.currentUser(w, r)
	if u == nil {
		return
	}

	details, err := s.store.ListPositions(r.Context(), u.ID)
	if err != nil {
		slog.Error("total invested failed", "user_id", u.ID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Erro ao calcular total investido")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, totalInvestedResponse{TotalInvested: valuation.TotalInvested(details)})
}
