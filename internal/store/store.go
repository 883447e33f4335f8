// Package store defines the persistence interface for the invest API.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
//
// Buy, sell, and manual ledger entries are single atomic operations at this
// boundary: however many underlying statements an implementation needs, the
// position, the balance, and the ledger either all reflect the event or none
// do.
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/growguru/invest-api/internal/model"
)

// Sentinel errors mapped to the HTTP error taxonomy by the handlers.
var (
	// ErrUserNotFound is returned when no user row matches the lookup.
	ErrUserNotFound = errors.New("store: user not found")

	// ErrEmailTaken is returned when signup collides with an existing email.
	ErrEmailTaken = errors.New("store: email already registered")

	// ErrCreditLimitExceeded is returned when a purchase would push the
	// balance below the credit floor. No writes are performed.
	ErrCreditLimitExceeded = errors.New("store: credit limit exceeded")

	// ErrPositionNotFound is returned when a sale targets a (user, asset,
	// strategy) triple with no position rows.
	ErrPositionNotFound = errors.New("store: position not found")

	// ErrInsufficientQuantity is returned when a sale asks for more units
	// than the position holds. No writes are performed.
	ErrInsufficientQuantity = errors.New("store: insufficient quantity for sale")
)

// PurchaseParams describes one asset purchase.
type PurchaseParams struct {
	UserID      int64
	AssetCode   string
	StrategyID  int64
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	CreditFloor decimal.Decimal // most negative balance allowed
	Description string
}

// PurchaseResult reports the state written by an executed purchase.
type PurchaseResult struct {
	Position    model.Position
	NewBalance  decimal.Decimal
	Transaction model.Transaction
}

// SaleParams describes one asset sale. SalePrice nil means "sell at the
// position's average cost".
type SaleParams struct {
	UserID      int64
	AssetCode   string
	StrategyID  int64
	Quantity    decimal.Decimal
	SalePrice   *decimal.Decimal
	Description string
}

// SaleResult reports the state written by an executed sale. Position is nil
// when the full quantity was sold and the row deleted.
type SaleResult struct {
	Position    *model.Position
	NewBalance  decimal.Decimal
	SalePrice   decimal.Decimal
	Proceeds    decimal.Decimal
	Transaction model.Transaction
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Users ---

	// CreateUser persists a new user profile. Returns ErrEmailTaken on a
	// duplicate email.
	CreateUser(ctx context.Context, u *model.User) error

	// GetUserByAuthID resolves the internal user row for an authenticated
	// identity. Returns ErrUserNotFound when no profile exists.
	GetUserByAuthID(ctx context.Context, authID string) (*model.User, error)

	// GetUserByEmail retrieves a user for credential verification.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// --- Portfolio mutations (atomic) ---

	// ExecutePurchase applies a buy: credit-floor check, position upsert
	// with weighted-average cost, balance debit, and ledger append.
	ExecutePurchase(ctx context.Context, p PurchaseParams) (*PurchaseResult, error)

	// ExecuteSale applies a sell: availability check across any duplicate
	// rows, balance credit, position update or delete, duplicate collapse,
	// and ledger append.
	ExecuteSale(ctx context.Context, p SaleParams) (*SaleResult, error)

	// ListPositions returns the user's positions joined with strategy
	// names and current asset prices, ordered by asset code.
	ListPositions(ctx context.Context, userID int64) ([]model.PositionDetail, error)

	// --- Ledger ---

	// RecordAdjustment appends a manual ledger entry and applies its
	// signed amount to the balance in the same atomic operation.
	RecordAdjustment(ctx context.Context, t *model.Transaction) (*model.Transaction, error)

	// ListTransactions returns the user's ledger, newest first.
	ListTransactions(ctx context.Context, userID int64) ([]model.Transaction, error)

	// --- Catalog (managed externally; writes exist for the price feed
	// and seeding) ---

	// ListStrategies returns all strategies with constituent counts,
	// ordered by name descending.
	ListStrategies(ctx context.Context) ([]model.Strategy, error)

	// ListStrategyAssets returns one strategy's ranked constituents with
	// asset data, ordered by rank ascending.
	ListStrategyAssets(ctx context.Context, strategyID int64) ([]model.StrategyAsset, error)

	// CreateStrategy persists a strategy definition.
	CreateStrategy(ctx context.Context, s *model.Strategy) error

	// AddStrategyAsset appends a ranked constituent to a strategy.
	AddStrategyAsset(ctx context.Context, sa *model.StrategyAsset) error

	// UpsertAsset creates or refreshes an asset and its market price.
	UpsertAsset(ctx context.Context, a *model.Asset) error
}
