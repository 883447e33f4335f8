package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/growguru/invest-api/internal/model"
	"github.com/growguru/invest-api/internal/valuation"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence). A single
// mutex serializes mutations, which also makes the multi-step buy/sell
// operations atomic.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[int64]*model.User
	positions  map[int64]*model.Position
	ledger     []model.Transaction
	strategies map[int64]*model.Strategy
	rankings   []model.StrategyAsset
	assets     map[string]*model.Asset

	nextUserID        int64
	nextPositionID    int64
	nextTransactionID int64
	nextStrategyID    int64
	nextRankingID     int64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[int64]*model.User),
		positions:  make(map[int64]*model.Position),
		strategies: make(map[int64]*model.Strategy),
		assets:     make(map[string]*model.Asset),
	}
}

// --- Users ---

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}

	s.nextUserID++
	u.ID = s.nextUserID
	copy := *u
	s.users[u.ID] = &copy
	return nil
}

func (s *MemoryStore) GetUserByAuthID(_ context.Context, authID string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.AuthID == authID {
			copy := *u
			return &copy, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, ErrUserNotFound
}

// --- Portfolio mutations ---

func (s *MemoryStore) ExecutePurchase(_ context.Context, p PurchaseParams) (*PurchaseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[p.UserID]
	if !ok {
		return nil, ErrUserNotFound
	}

	totalCost := p.Quantity.Mul(p.UnitPrice)
	if valuation.BelowCreditFloor(u.Balance, totalCost, p.CreditFloor) {
		return nil, ErrCreditLimitExceeded
	}

	now := time.Now().UTC()
	pos := s.findPosition(p.UserID, p.AssetCode, p.StrategyID)
	if pos == nil {
		s.nextPositionID++
		pos = &model.Position{
			ID:          s.nextPositionID,
			UserID:      p.UserID,
			AssetCode:   p.AssetCode,
			StrategyID:  p.StrategyID,
			Quantity:    p.Quantity,
			AvgCost:     p.UnitPrice,
			PurchasedAt: now,
		}
		s.positions[pos.ID] = pos
	} else {
		pos.AvgCost = valuation.WeightedAverageCost(pos.Quantity, pos.AvgCost, p.Quantity, p.UnitPrice)
		pos.Quantity = pos.Quantity.Add(p.Quantity)
		pos.PurchasedAt = now
	}

	u.Balance = valuation.ProjectedBalance(u.Balance, totalCost)

	entry := model.Transaction{
		UserID:      p.UserID,
		Type:        model.TransactionPurchase,
		Amount:      totalCost.Neg(),
		Description: p.Description,
		Timestamp:   now,
		AssetCode:   p.AssetCode,
		Quantity:    &p.Quantity,
		UnitPrice:   &p.UnitPrice,
		Total:       &totalCost,
	}
	s.appendTransaction(&entry)

	return &PurchaseResult{
		Position:    *pos,
		NewBalance:  u.Balance,
		Transaction: entry,
	}, nil
}

func (s *MemoryStore) ExecuteSale(_ context.Context, p SaleParams) (*SaleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[p.UserID]
	if !ok {
		return nil, ErrUserNotFound
	}

	var matches []*model.Position
	for _, pos := range s.positions {
		if pos.UserID == p.UserID && pos.AssetCode == p.AssetCode && pos.StrategyID == p.StrategyID {
			matches = append(matches, pos)
		}
	}
	if len(matches) == 0 {
		return nil, ErrPositionNotFound
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	available := decimal.Zero
	for _, pos := range matches {
		available = available.Add(pos.Quantity)
	}
	if p.Quantity.GreaterThan(available) {
		return nil, ErrInsufficientQuantity
	}

	canonical := matches[0]
	salePrice := canonical.AvgCost
	if p.SalePrice != nil && p.SalePrice.IsPositive() {
		salePrice = *p.SalePrice
	}

	proceeds := p.Quantity.Mul(salePrice)
	u.Balance = u.Balance.Add(proceeds)
	now := time.Now().UTC()

	remaining := available.Sub(p.Quantity)
	var resultPos *model.Position
	if remaining.IsPositive() {
		canonical.Quantity = remaining
		canonical.PurchasedAt = now
		copy := *canonical
		resultPos = &copy
	} else {
		delete(s.positions, canonical.ID)
	}
	for _, pos := range matches[1:] {
		delete(s.positions, pos.ID)
	}

	soldQty := p.Quantity.Neg()
	entry := model.Transaction{
		UserID:      p.UserID,
		Type:        model.TransactionSale,
		Amount:      proceeds,
		Description: p.Description,
		Timestamp:   now,
		AssetCode:   p.AssetCode,
		Quantity:    &soldQty,
		UnitPrice:   &salePrice,
		Total:       &proceeds,
	}
	s.appendTransaction(&entry)

	return &SaleResult{
		Position:    resultPos,
		NewBalance:  u.Balance,
		SalePrice:   salePrice,
		Proceeds:    proceeds,
		Transaction: entry,
	}, nil
}

func (s *MemoryStore) ListPositions(_ context.Context, userID int64) ([]model.PositionDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var details []model.PositionDetail
	for _, pos := range s.positions {
		if pos.UserID != userID {
			continue
		}
		d := model.PositionDetail{Position: *pos}
		if st, ok := s.strategies[pos.StrategyID]; ok {
			d.StrategyName = st.Name
		}
		if a, ok := s.assets[pos.AssetCode]; ok {
			d.CurrentPrice = a.CurrentPrice
		}
		details = append(details, d)
	}
	sort.Slice(details, func(i, j int) bool { return details[i].AssetCode < details[j].AssetCode })
	return details, nil
}

// --- Ledger ---

func (s *MemoryStore) RecordAdjustment(_ context.Context, t *model.Transaction) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[t.UserID]
	if !ok {
		return nil, ErrUserNotFound
	}

	u.Balance = u.Balance.Add(t.Amount)
	s.appendTransaction(t)
	return t, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, userID int64) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Transaction
	for _, e := range s.ledger {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	// Newest first; ledger IDs are monotonic.
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

// --- Catalog ---

func (s *MemoryStore) ListStrategies(_ context.Context) ([]model.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int64]int)
	for _, ra := range s.rankings {
		counts[ra.StrategyID]++
	}

	strategies := make([]model.Strategy, 0, len(s.strategies))
	for _, st := range s.strategies {
		copy := *st
		copy.TotalAssets = counts[st.ID]
		strategies = append(strategies, copy)
	}
	sort.Slice(strategies, func(i, j int) bool { return strategies[i].Name > strategies[j].Name })
	return strategies, nil
}

func (s *MemoryStore) ListStrategyAssets(_ context.Context, strategyID int64) ([]model.StrategyAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var assets []model.StrategyAsset
	for _, ra := range s.rankings {
		if ra.StrategyID != strategyID {
			continue
		}
		sa := ra
		if a, ok := s.assets[ra.AssetCode]; ok {
			copy := *a
			sa.Asset = &copy
		}
		assets = append(assets, sa)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Rank < assets[j].Rank })
	return assets, nil
}

func (s *MemoryStore) CreateStrategy(_ context.Context, st *model.Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextStrategyID++
	st.ID = s.nextStrategyID
	copy := *st
	s.strategies[st.ID] = &copy
	return nil
}

func (s *MemoryStore) AddStrategyAsset(_ context.Context, sa *model.StrategyAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRankingID++
	sa.ID = s.nextRankingID
	s.rankings = append(s.rankings, *sa)
	return nil
}

func (s *MemoryStore) UpsertAsset(_ context.Context, a *model.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *a
	s.assets[a.Code] = &copy
	return nil
}

// --- helpers (callers hold the write lock) ---

func (s *MemoryStore) findPosition(userID int64, assetCode string, strategyID int64) *model.Position {
	for _, pos := range s.positions {
		if pos.UserID == userID && pos.AssetCode == assetCode && pos.StrategyID == strategyID {
			return pos
		}
	}
	return nil
}

func (s *MemoryStore) appendTransaction(t *model.Transaction) {
	s.nextTransactionID++
	t.ID = s.nextTransactionID
	s.ledger = append(s.ledger, *t)
}

// SeedPosition inserts a position row directly, bypassing purchase
// bookkeeping. Test helper; also the only way to fabricate the historical
// duplicate rows the sale path collapses.
func (s *MemoryStore) SeedPosition(p model.Position) model.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPositionID++
	p.ID = s.nextPositionID
	copy := p
	s.positions[p.ID] = &copy
	return p
}
