// Package valuation implements the pure portfolio arithmetic: weighted-average
// cost basis, credit-floor projection, and per-strategy grouping with
// percentage weightings. No I/O — every function is deterministic over its
// inputs so the store implementations and handlers share one source of truth.
package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/growguru/invest-api/internal/model"
)

var hundred = decimal.NewFromInt(100)

// WeightedAverageCost recomputes the cost basis after buying qty units at
// unitPrice on top of an existing position of oldQty units at oldAvg:
//
//	(oldQty*oldAvg + qty*unitPrice) / (oldQty + qty)
//
// The combined quantity must be positive.
func WeightedAverageCost(oldQty, oldAvg, qty, unitPrice decimal.Decimal) decimal.Decimal {
	newQty := oldQty.Add(qty)
	if newQty.Sign() <= 0 {
		return decimal.Zero
	}
	total := oldQty.Mul(oldAvg).Add(qty.Mul(unitPrice))
	return total.Div(newQty)
}

// ProjectedBalance returns the balance after spending totalCost.
func ProjectedBalance(balance, totalCost decimal.Decimal) decimal.Decimal {
	return balance.Sub(totalCost)
}

// BelowCreditFloor reports whether spending totalCost from balance would
// push the account past the credit floor (the most negative balance
// allowed, e.g. -1000).
func BelowCreditFloor(balance, totalCost, floor decimal.Decimal) bool {
	return ProjectedBalance(balance, totalCost).LessThan(floor)
}

// TotalInvested sums quantity * average cost over all positions.
func TotalInvested(details []model.PositionDetail) decimal.Decimal {
	total := decimal.Zero
	for _, d := range details {
		total = total.Add(d.Quantity.Mul(d.AvgCost))
	}
	return total
}

// GroupByStrategy aggregates positions into per-strategy groups with
// invested totals and percentage-of-portfolio weightings (two decimal
// places). Groups appear in order of first occurrence in the input, so
// callers control ordering through the query. An empty input yields an
// empty (non-nil) slice.
func GroupByStrategy(details []model.PositionDetail) []model.StrategyGroup {
	groups := []model.StrategyGroup{}
	index := make(map[int64]int)

	for _, d := range details {
		i, ok := index[d.StrategyID]
		if !ok {
			i = len(groups)
			index[d.StrategyID] = i
			groups = append(groups, model.StrategyGroup{
				ID:            d.StrategyID,
				Name:          d.StrategyName,
				TotalInvested: decimal.Zero,
				Assets:        []model.PortfolioAsset{},
			})
		}

		invested := d.Quantity.Mul(d.AvgCost)
		groups[i].Assets = append(groups[i].Assets, model.PortfolioAsset{
			Code:         d.AssetCode,
			Quantity:     d.Quantity,
			AvgCost:      d.AvgCost,
			CurrentPrice: d.CurrentPrice,
			Total:        invested,
		})
		groups[i].TotalInvested = groups[i].TotalInvested.Add(invested)
	}

	grandTotal := decimal.Zero
	for _, g := range groups {
		grandTotal = grandTotal.Add(g.TotalInvested)
	}

	for i := range groups {
		if grandTotal.IsPositive() {
			groups[i].Percentage = groups[i].TotalInvested.Div(grandTotal).Mul(hundred).Round(2)
		} else {
			groups[i].Percentage = decimal.Zero
		}
	}

	return groups
}
