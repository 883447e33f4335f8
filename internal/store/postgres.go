package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/growguru/invest-api/internal/model"
	"github.com/growguru/invest-api/internal/valuation"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
// Multi-step mutations run inside one transaction with the user row locked,
// so concurrent buys and sells against the same account serialize instead
// of losing updates.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO usuarios (auth_id, nome, email, senha_hash, saldo, criado_em)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6)
		 RETURNING id`,
		u.AuthID, u.Name, u.Email, u.PasswordHash, u.Balance.String(), u.CreatedAt,
	).Scan(&u.ID)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (s *PostgresStore) GetUserByAuthID(ctx context.Context, authID string) (*model.User, error) {
	return s.getUser(ctx, `WHERE auth_id = $1`, authID)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, `WHERE email = $1`, email)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	var saldo string

	err := s.pool.QueryRow(ctx,
		`SELECT id, auth_id, nome, email, senha_hash, saldo::TEXT, criado_em
		 FROM usuarios `+where, arg).
		Scan(&u.ID, &u.AuthID, &u.Name, &u.Email, &u.PasswordHash, &saldo, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	u.Balance, _ = decimal.NewFromString(saldo)
	return &u, nil
}

// lockUserBalance reads the user's balance inside tx with the row locked
// until commit.
func lockUserBalance(ctx context.Context, tx pgx.Tx, userID int64) (decimal.Decimal, error) {
	var saldo string
	err := tx.QueryRow(ctx,
		`SELECT saldo::TEXT FROM usuarios WHERE id = $1 FOR UPDATE`, userID).Scan(&saldo)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrUserNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	balance, _ := decimal.NewFromString(saldo)
	return balance, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t *model.Transaction) error {
	var qty, unit, total any
	if t.Quantity != nil {
		qty = t.Quantity.String()
	}
	if t.UnitPrice != nil {
		unit = t.UnitPrice.String()
	}
	if t.Total != nil {
		total = t.Total.String()
	}
	var code any
	if t.AssetCode != "" {
		code = t.AssetCode
	}

	return tx.QueryRow(ctx,
		`INSERT INTO transacoes (usuario_id, tipo, valor, descricao, data, codigo_ativo, quantidade, valor_unitario, valor_total)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC)
		 RETURNING id`,
		t.UserID, t.Type, t.Amount.String(), t.Description, t.Timestamp,
		code, qty, unit, total,
	).Scan(&t.ID)
}

// --- Portfolio mutations ---

func (s *PostgresStore) ExecutePurchase(ctx context.Context, p PurchaseParams) (*PurchaseResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin purchase: %w", err)
	}
	defer tx.Rollback(ctx)

	balance, err := lockUserBalance(ctx, tx, p.UserID)
	if err != nil {
		return nil, err
	}

	totalCost := p.Quantity.Mul(p.UnitPrice)
	if valuation.BelowCreditFloor(balance, totalCost, p.CreditFloor) {
		return nil, ErrCreditLimitExceeded
	}
	newBalance := valuation.ProjectedBalance(balance, totalCost)

	now := time.Now().UTC()
	pos := model.Position{
		UserID:      p.UserID,
		AssetCode:   p.AssetCode,
		StrategyID:  p.StrategyID,
		PurchasedAt: now,
	}

	var posID int64
	var oldQtyS, oldAvgS string
	err = tx.QueryRow(ctx,
		`SELECT id, quantidade::TEXT, valor_compra::TEXT
		 FROM carteira_investimentos
		 WHERE usuario_id = $1 AND codigo_ativo = $2 AND estrategia_id = $3
		 FOR UPDATE`,
		p.UserID, p.AssetCode, p.StrategyID).Scan(&posID, &oldQtyS, &oldAvgS)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// First buy of this (user, asset, strategy) triple.
		pos.Quantity = p.Quantity
		pos.AvgCost = p.UnitPrice
		err = tx.QueryRow(ctx,
			`INSERT INTO carteira_investimentos (usuario_id, codigo_ativo, estrategia_id, quantidade, valor_compra, data_compra)
			 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6)
			 RETURNING id`,
			p.UserID, p.AssetCode, p.StrategyID,
			pos.Quantity.String(), pos.AvgCost.String(), now,
		).Scan(&pos.ID)
		if err != nil {
			return nil, fmt.Errorf("insert position: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("lookup position: %w", err)
	default:
		oldQty, _ := decimal.NewFromString(oldQtyS)
		oldAvg, _ := decimal.NewFromString(oldAvgS)

		pos.ID = posID
		pos.Quantity = oldQty.Add(p.Quantity)
		pos.AvgCost = valuation.WeightedAverageCost(oldQty, oldAvg, p.Quantity, p.UnitPrice)
		if _, err := tx.Exec(ctx,
			`UPDATE carteira_investimentos
			 SET quantidade = $2::NUMERIC, valor_compra = $3::NUMERIC, data_compra = $4
			 WHERE id = $1`,
			pos.ID, pos.Quantity.String(), pos.AvgCost.String(), now,
		); err != nil {
			return nil, fmt.Errorf("update position: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE usuarios SET saldo = $2::NUMERIC WHERE id = $1`,
		p.UserID, newBalance.String(),
	); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

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
	if err := insertTransaction(ctx, tx, &entry); err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit purchase: %w", err)
	}

	return &PurchaseResult{
		Position:    pos,
		NewBalance:  newBalance,
		Transaction: entry,
	}, nil
}

func (s *PostgresStore) ExecuteSale(ctx context.Context, p SaleParams) (*SaleResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin sale: %w", err)
	}
	defer tx.Rollback(ctx)

	balance, err := lockUserBalance(ctx, tx, p.UserID)
	if err != nil {
		return nil, err
	}

	// The schema enforces uniqueness on (usuario_id, codigo_ativo,
	// estrategia_id); summing across rows is kept as a defensive migration
	// step for historical duplicates.
	rows, err := tx.Query(ctx,
		`SELECT id, quantidade::TEXT, valor_compra::TEXT
		 FROM carteira_investimentos
		 WHERE usuario_id = $1 AND codigo_ativo = $2 AND estrategia_id = $3
		 ORDER BY id
		 FOR UPDATE`,
		p.UserID, p.AssetCode, p.StrategyID)
	if err != nil {
		return nil, fmt.Errorf("lookup positions: %w", err)
	}

	type posRow struct {
		id      int64
		qty     decimal.Decimal
		avgCost decimal.Decimal
	}
	var matches []posRow
	for rows.Next() {
		var r posRow
		var qtyS, avgS string
		if err := rows.Scan(&r.id, &qtyS, &avgS); err != nil {
			rows.Close()
			return nil, err
		}
		r.qty, _ = decimal.NewFromString(qtyS)
		r.avgCost, _ = decimal.NewFromString(avgS)
		matches = append(matches, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return nil, ErrPositionNotFound
	}

	available := decimal.Zero
	for _, r := range matches {
		available = available.Add(r.qty)
	}
	if p.Quantity.GreaterThan(available) {
		return nil, ErrInsufficientQuantity
	}

	canonical := matches[0] // lowest id
	salePrice := canonical.avgCost
	if p.SalePrice != nil && p.SalePrice.IsPositive() {
		salePrice = *p.SalePrice
	}

	proceeds := p.Quantity.Mul(salePrice)
	newBalance := balance.Add(proceeds)
	now := time.Now().UTC()

	if _, err := tx.Exec(ctx,
		`UPDATE usuarios SET saldo = $2::NUMERIC WHERE id = $1`,
		p.UserID, newBalance.String(),
	); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	remaining := available.Sub(p.Quantity)
	var resultPos *model.Position

	if remaining.IsPositive() {
		if _, err := tx.Exec(ctx,
			`UPDATE carteira_investimentos SET quantidade = $2::NUMERIC, data_compra = $3 WHERE id = $1`,
			canonical.id, remaining.String(), now,
		); err != nil {
			return nil, fmt.Errorf("update position: %w", err)
		}
		resultPos = &model.Position{
			ID:          canonical.id,
			UserID:      p.UserID,
			AssetCode:   p.AssetCode,
			StrategyID:  p.StrategyID,
			Quantity:    remaining,
			AvgCost:     canonical.avgCost,
			PurchasedAt: now,
		}
	} else {
		if _, err := tx.Exec(ctx,
			`DELETE FROM carteira_investimentos WHERE id = $1`, canonical.id,
		); err != nil {
			return nil, fmt.Errorf("delete position: %w", err)
		}
	}

	// Collapse duplicates to at most one row.
	if len(matches) > 1 {
		ids := make([]int64, 0, len(matches)-1)
		for _, r := range matches[1:] {
			ids = append(ids, r.id)
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM carteira_investimentos WHERE id = ANY($1)`, ids,
		); err != nil {
			return nil, fmt.Errorf("collapse duplicates: %w", err)
		}
	}

	soldQty := p.Quantity.Neg() // sign convention: outflow of holdings
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
	if err := insertTransaction(ctx, tx, &entry); err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit sale: %w", err)
	}

	return &SaleResult{
		Position:    resultPos,
		NewBalance:  newBalance,
		SalePrice:   salePrice,
		Proceeds:    proceeds,
		Transaction: entry,
	}, nil
}

func (s *PostgresStore) ListPositions(ctx context.Context, userID int64) ([]model.PositionDetail, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ci.id, ci.usuario_id, ci.codigo_ativo, ci.estrategia_id,
		        ci.quantidade::TEXT, ci.valor_compra::TEXT, ci.data_compra,
		        e.nome, COALESCE(a.preco_atual, 0)::TEXT
		 FROM carteira_investimentos ci
		 JOIN estrategias e ON e.id = ci.estrategia_id
		 LEFT JOIN ativos a ON a.codigo = ci.codigo_ativo
		 WHERE ci.usuario_id = $1
		 ORDER BY ci.codigo_ativo`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []model.PositionDetail
	for rows.Next() {
		var d model.PositionDetail
		var qtyS, avgS, priceS string
		if err := rows.Scan(&d.ID, &d.UserID, &d.AssetCode, &d.StrategyID,
			&qtyS, &avgS, &d.PurchasedAt,
			&d.StrategyName, &priceS); err != nil {
			return nil, err
		}
		d.Quantity, _ = decimal.NewFromString(qtyS)
		d.AvgCost, _ = decimal.NewFromString(avgS)
		d.CurrentPrice, _ = decimal.NewFromString(priceS)
		details = append(details, d)
	}
	return details, rows.Err()
}

// --- Ledger ---

func (s *PostgresStore) RecordAdjustment(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin adjustment: %w", err)
	}
	defer tx.Rollback(ctx)

	balance, err := lockUserBalance(ctx, tx, t.UserID)
	if err != nil {
		return nil, err
	}

	newBalance := balance.Add(t.Amount)
	if _, err := tx.Exec(ctx,
		`UPDATE usuarios SET saldo = $2::NUMERIC WHERE id = $1`,
		t.UserID, newBalance.String(),
	); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	if err := insertTransaction(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit adjustment: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, userID int64) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, usuario_id, tipo, valor::TEXT, descricao, data,
		        COALESCE(codigo_ativo, ''), quantidade::TEXT, valor_unitario::TEXT, valor_total::TEXT
		 FROM transacoes
		 WHERE usuario_id = $1
		 ORDER BY data DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var valorS string
		var qtyS, unitS, totalS *string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &valorS, &t.Description, &t.Timestamp,
			&t.AssetCode, &qtyS, &unitS, &totalS); err != nil {
			return nil, err
		}
		t.Amount, _ = decimal.NewFromString(valorS)
		t.Quantity = parseOptionalDecimal(qtyS)
		t.UnitPrice = parseOptionalDecimal(unitS)
		t.Total = parseOptionalDecimal(totalS)
		entries = append(entries, t)
	}
	return entries, rows.Err()
}

func parseOptionalDecimal(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil
	}
	return &d
}

// --- Catalog ---

func (s *PostgresStore) ListStrategies(ctx context.Context) ([]model.Strategy, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT e.id, e.nome, COALESCE(e.descricao, ''), COUNT(ra.id)
		 FROM estrategias e
		 LEFT JOIN ranking_ativos ra ON ra.estrategia_id = e.id
		 GROUP BY e.id, e.nome, e.descricao
		 ORDER BY e.nome DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var strategies []model.Strategy
	for rows.Next() {
		var st model.Strategy
		if err := rows.Scan(&st.ID, &st.Name, &st.Description, &st.TotalAssets); err != nil {
			return nil, err
		}
		strategies = append(strategies, st)
	}
	return strategies, rows.Err()
}

func (s *PostgresStore) ListStrategyAssets(ctx context.Context, strategyID int64) ([]model.StrategyAsset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ra.id, ra.estrategia_id, ra.codigo_ativo, ra.posicao, ra.rentabilidade::TEXT,
		        a.codigo, a.nome, a.tipo, a.preco_atual::TEXT
		 FROM ranking_ativos ra
		 JOIN ativos a ON a.codigo = ra.codigo_ativo
		 WHERE ra.estrategia_id = $1
		 ORDER BY ra.posicao`, strategyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []model.StrategyAsset
	for rows.Next() {
		var sa model.StrategyAsset
		var a model.Asset
		var retS, priceS string
		if err := rows.Scan(&sa.ID, &sa.StrategyID, &sa.AssetCode, &sa.Rank, &retS,
			&a.Code, &a.Name, &a.Kind, &priceS); err != nil {
			return nil, err
		}
		sa.Return, _ = decimal.NewFromString(retS)
		a.CurrentPrice, _ = decimal.NewFromString(priceS)
		sa.Asset = &a
		assets = append(assets, sa)
	}
	return assets, rows.Err()
}

func (s *PostgresStore) CreateStrategy(ctx context.Context, st *model.Strategy) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO estrategias (nome, descricao) VALUES ($1, $2) RETURNING id`,
		st.Name, st.Description,
	).Scan(&st.ID)
}

func (s *PostgresStore) AddStrategyAsset(ctx context.Context, sa *model.StrategyAsset) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO ranking_ativos (estrategia_id, codigo_ativo, posicao, rentabilidade)
		 VALUES ($1, $2, $3, $4::NUMERIC)
		 RETURNING id`,
		sa.StrategyID, sa.AssetCode, sa.Rank, sa.Return.String(),
	).Scan(&sa.ID)
}

func (s *PostgresStore) UpsertAsset(ctx context.Context, a *model.Asset) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ativos (codigo, nome, tipo, preco_atual)
		 VALUES ($1, $2, $3, $4::NUMERIC)
		 ON CONFLICT (codigo) DO UPDATE
		 SET nome = EXCLUDED.nome, tipo = EXCLUDED.tipo, preco_atual = EXCLUDED.preco_atual`,
		a.Code, a.Name, a.Kind, a.CurrentPrice.String(),
	)
	return err
}
