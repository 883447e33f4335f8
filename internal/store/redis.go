package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/growguru/invest-api/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary. Cached data: the
// strategy catalog (changes rarely), user profiles, and position lists.
// The ledger is never cached.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Users ---

func (s *CachedStore) CreateUser(ctx context.Context, u *model.User) error {
	return s.primary.CreateUser(ctx, u)
}

func (s *CachedStore) GetUserByAuthID(ctx context.Context, authID string) (*model.User, error) {
	data, err := s.rdb.Get(ctx, userKey(authID)).Bytes()
	if err == nil {
		var u model.User
		if json.Unmarshal(data, &u) == nil {
			return &u, nil
		}
	}

	u, err := s.primary.GetUserByAuthID(ctx, authID)
	if err != nil {
		return nil, err
	}
	s.cacheUser(ctx, u)
	return u, nil
}

func (s *CachedStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	// Credential lookups always hit the primary.
	return s.primary.GetUserByEmail(ctx, email)
}

// --- Portfolio mutations (write to primary, invalidate) ---

func (s *CachedStore) ExecutePurchase(ctx context.Context, p PurchaseParams) (*PurchaseResult, error) {
	res, err := s.primary.ExecutePurchase(ctx, p)
	if err != nil {
		return nil, err
	}
	s.invalidateUser(ctx, p.UserID)
	return res, nil
}

func (s *CachedStore) ExecuteSale(ctx context.Context, p SaleParams) (*SaleResult, error) {
	res, err := s.primary.ExecuteSale(ctx, p)
	if err != nil {
		return nil, err
	}
	s.invalidateUser(ctx, p.UserID)
	return res, nil
}

func (s *CachedStore) ListPositions(ctx context.Context, userID int64) ([]model.PositionDetail, error) {
	data, err := s.rdb.Get(ctx, positionsKey(userID)).Bytes()
	if err == nil {
		var details []model.PositionDetail
		if json.Unmarshal(data, &details) == nil {
			return details, nil
		}
	}

	details, err := s.primary.ListPositions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(details); err == nil {
		s.rdb.Set(ctx, positionsKey(userID), data, s.ttl)
	}
	return details, nil
}

// --- Ledger (not cached) ---

func (s *CachedStore) RecordAdjustment(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	res, err := s.primary.RecordAdjustment(ctx, t)
	if err != nil {
		return nil, err
	}
	s.invalidateUser(ctx, t.UserID)
	return res, nil
}

func (s *CachedStore) ListTransactions(ctx context.Context, userID int64) ([]model.Transaction, error) {
	return s.primary.ListTransactions(ctx, userID)
}

// --- Catalog ---

func (s *CachedStore) ListStrategies(ctx context.Context) ([]model.Strategy, error) {
	data, err := s.rdb.Get(ctx, strategiesKey()).Bytes()
	if err == nil {
		var strategies []model.Strategy
		if json.Unmarshal(data, &strategies) == nil {
			return strategies, nil
		}
	}

	strategies, err := s.primary.ListStrategies(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(strategies); err == nil {
		s.rdb.Set(ctx, strategiesKey(), data, s.ttl)
	}
	return strategies, nil
}

func (s *CachedStore) ListStrategyAssets(ctx context.Context, strategyID int64) ([]model.StrategyAsset, error) {
	data, err := s.rdb.Get(ctx, strategyAssetsKey(strategyID)).Bytes()
	if err == nil {
		var assets []model.StrategyAsset
		if json.Unmarshal(data, &assets) == nil {
			return assets, nil
		}
	}

	assets, err := s.primary.ListStrategyAssets(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(assets); err == nil {
		s.rdb.Set(ctx, strategyAssetsKey(strategyID), data, s.ttl)
	}
	return assets, nil
}

func (s *CachedStore) CreateStrategy(ctx context.Context, st *model.Strategy) error {
	if err := s.primary.CreateStrategy(ctx, st); err != nil {
		return err
	}
	s.rdb.Del(ctx, strategiesKey())
	return nil
}

func (s *CachedStore) AddStrategyAsset(ctx context.Context, sa *model.StrategyAsset) error {
	if err := s.primary.AddStrategyAsset(ctx, sa); err != nil {
		return err
	}
	s.rdb.Del(ctx, strategiesKey(), strategyAssetsKey(sa.StrategyID))
	return nil
}

func (s *CachedStore) UpsertAsset(ctx context.Context, a *model.Asset) error {
	if err := s.primary.UpsertAsset(ctx, a); err != nil {
		return err
	}
	// Prices changed; ranked lists embed them. Drop the whole catalog keyspace
	// lazily by TTL rather than tracking which strategies reference the asset.
	return nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheUser(ctx context.Context, u *model.User) {
	if data, err := json.Marshal(u); err == nil {
		s.rdb.Set(ctx, userKey(u.AuthID), data, s.ttl)
		// Index by internal id so balance mutations can invalidate the
		// profile without knowing the auth identity.
		s.rdb.Set(ctx, userIndexKey(u.ID), u.AuthID, s.ttl)
	}
}

// invalidateUser drops cached state derived from a user's balance or
// positions after a mutation.
func (s *CachedStore) invalidateUser(ctx context.Context, userID int64) {
	s.rdb.Del(ctx, positionsKey(userID))
	if authID, err := s.rdb.Get(ctx, userIndexKey(userID)).Result(); err == nil {
		s.rdb.Del(ctx, userKey(authID))
	}
}

func userKey(authID string) string              { return fmt.Sprintf("user:%s", authID) }
func userIndexKey(userID int64) string          { return fmt.Sprintf("userid:%d", userID) }
func positionsKey(userID int64) string          { return fmt.Sprintf("positions:%d", userID) }
func strategiesKey() string                     { return "strategies" }
func strategyAssetsKey(strategyID int64) string { return fmt.Sprintf("strategy:%d:ativos", strategyID) }
