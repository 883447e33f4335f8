// Package model defines the core domain types shared across the invest API.
// All monetary values use shopspring/decimal — never float64 for money.
// JSON tags follow the wire format consumed by the frontend (Portuguese
// field names, matching the database schema).
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types recorded in the ledger.
const (
	TransactionPurchase = "compra"
	TransactionSale     = "venda"
	TransactionManual   = "manual"
)

// User is the application's internal user record. AuthID links it to the
// authentication identity embedded in session tokens; it is never exposed
// on the wire alongside the profile.
type User struct {
	ID           int64           `json:"id"`
	AuthID       string          `json:"-"`
	Name         string          `json:"nome"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Balance      decimal.Decimal `json:"saldo"`
	CreatedAt    time.Time       `json:"-"`
}

// Position tracks a user's holding of one asset within one strategy.
// At most one live row exists per (user, asset, strategy); the row is
// deleted when quantity reaches zero.
type Position struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"usuario_id"`
	AssetCode   string          `json:"codigo_ativo"`
	StrategyID  int64           `json:"estrategia_id"`
	Quantity    decimal.Decimal `json:"quantidade"`
	AvgCost     decimal.Decimal `json:"valor_compra"` // weighted-average unit cost
	PurchasedAt time.Time       `json:"data_compra"`
}

// Transaction is an immutable record of a cash-balance-affecting event.
// Once created, these are never modified or deleted.
// Amount is signed: negative for purchases, positive for sales.
type Transaction struct {
	ID          int64            `json:"id"`
	UserID      int64            `json:"usuario_id"`
	Type        string           `json:"tipo"`
	Amount      decimal.Decimal  `json:"valor"`
	Description string           `json:"descricao"`
	Timestamp   time.Time        `json:"data"`
	AssetCode   string           `json:"codigo_ativo,omitempty"`
	Quantity    *decimal.Decimal `json:"quantidade,omitempty"` // negative on sales (holdings outflow)
	UnitPrice   *decimal.Decimal `json:"valor_unitario,omitempty"`
	Total       *decimal.Decimal `json:"valor_total,omitempty"`
}

// Strategy is a named grouping of ranked assets. Read-only from the
// application's perspective; managed by the external catalog.
type Strategy struct {
	ID          int64  `json:"id"`
	Name        string `json:"nome"`
	Description string `json:"descricao,omitempty"`
	TotalAssets int    `json:"total_ativos"`
}

// StrategyAsset is one ranked constituent of a strategy, joined with the
// asset's catalog data when listed.
type StrategyAsset struct {
	ID         int64           `json:"id"`
	StrategyID int64           `json:"estrategia_id"`
	AssetCode  string          `json:"codigo_ativo"`
	Rank       int             `json:"posicao"`
	Return     decimal.Decimal `json:"rentabilidade"` // trailing return, percent
	Asset      *Asset          `json:"ativos,omitempty"`
}

// Asset is a tradeable instrument with its current market price.
// Prices come from the external feed and are assumed fresh.
type Asset struct {
	Code         string          `json:"codigo"`
	Name         string          `json:"nome"`
	Kind         string          `json:"tipo"`
	CurrentPrice decimal.Decimal `json:"preco_atual"`
}

// PositionDetail is a position joined with its strategy name and the
// asset's current market price, as needed by portfolio valuation.
type PositionDetail struct {
	Position
	StrategyName string          `json:"estrategia_nome"`
	CurrentPrice decimal.Decimal `json:"preco_atual"`
}

// PortfolioAsset is one holding inside a strategy group of the valued
// portfolio.
type PortfolioAsset struct {
	Code         string          `json:"codigo"`
	Quantity     decimal.Decimal `json:"quantidade"`
	AvgCost      decimal.Decimal `json:"valor_medio"`
	CurrentPrice decimal.Decimal `json:"preco_atual"`
	Total        decimal.Decimal `json:"valor_total"` // quantity * avg cost
}

// StrategyGroup is the per-strategy aggregation returned by GET /carteira:
// invested total, constituent holdings, and percentage of the whole
// portfolio (two decimal places).
type StrategyGroup struct {
	ID            int64            `json:"id"`
	Name          string           `json:"nome"`
	TotalInvested decimal.Decimal  `json:"total_investido"`
	Assets        []PortfolioAsset `json:"ativos"`
	Percentage    decimal.Decimal  `json:"porcentagem"`
}
