package valuation_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/growguru/invest-api/internal/model"
	"github.com/growguru/invest-api/internal/valuation"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestWeightedAverageCost(t *testing.T) {
	tests := []struct {
		name      string
		oldQty    decimal.Decimal
		oldAvg    decimal.Decimal
		qty       decimal.Decimal
		unitPrice decimal.Decimal
		want      decimal.Decimal
	}{
		{"first purchase", decimal.Zero, decimal.Zero, d(10), d(50), d(50)},
		{"same price", d(10), d(50), d(10), d(50), d(50)},
		{"higher price averages up", d(10), d(50), d(10), d(100), d(75)},
		{"lower price averages down", d(10), d(100), d(30), d(60), d(70)},
		{"fractional quantities", d(2.5), d(40), d(2.5), d(60), d(50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := valuation.WeightedAverageCost(tt.oldQty, tt.oldAvg, tt.qty, tt.unitPrice)
			if !got.Equal(tt.want) {
				t.Errorf("WeightedAverageCost() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBelowCreditFloor(t *testing.T) {
	floor := d(-1000)

	tests := []struct {
		name      string
		balance   decimal.Decimal
		totalCost decimal.Decimal
		want      bool
	}{
		{"covered by balance", d(500), d(500), false},
		{"dips into credit", d(0), d(1000), false},
		{"lands exactly on the floor", d(-500), d(500), false},
		{"one cent past the floor", d(0), d(1000.01), true},
		{"far past the floor", d(0), d(2000), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := valuation.BelowCreditFloor(tt.balance, tt.totalCost, floor); got != tt.want {
				t.Errorf("BelowCreditFloor(%s, %s) = %v, want %v", tt.balance, tt.totalCost, got, tt.want)
			}
		})
	}
}

func TestProjectedBalance(t *testing.T) {
	got := valuation.ProjectedBalance(d(500), d(500))
	if !got.IsZero() {
		t.Errorf("ProjectedBalance(500, 500) = %s, want 0", got)
	}
}

func detail(strategyID int64, strategyName, code string, qty, avg float64) model.PositionDetail {
	return model.PositionDetail{
		Position: model.Position{
			StrategyID: strategyID,
			AssetCode:  code,
			Quantity:   d(qty),
			AvgCost:    d(avg),
		},
		StrategyName: strategyName,
	}
}

func TestTotalInvested(t *testing.T) {
	details := []model.PositionDetail{
		detail(1, "Dividendos", "ITUB4", 10, 30),
		detail(1, "Dividendos", "TAEE11", 4, 25),
		detail(2, "Valor", "VALE3", 2, 50),
	}

	got := valuation.TotalInvested(details)
	if !got.Equal(d(500)) {
		t.Errorf("TotalInvested() = %s, want 500", got)
	}

	if !valuation.TotalInvested(nil).IsZero() {
		t.Error("TotalInvested(nil) should be zero")
	}
}

func TestGroupByStrategy(t *testing.T) {
	details := []model.PositionDetail{
		detail(1, "Dividendos", "ITUB4", 10, 30), // 300
		detail(2, "Valor", "VALE3", 2, 50),       // 100
		detail(1, "Dividendos", "TAEE11", 4, 25), // 100
	}

	groups := valuation.GroupByStrategy(details)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	// First-occurrence order: Dividendos then Valor.
	if groups[0].Name != "Dividendos" || groups[1].Name != "Valor" {
		t.Errorf("unexpected group order: %s, %s", groups[0].Name, groups[1].Name)
	}
	if !groups[0].TotalInvested.Equal(d(400)) {
		t.Errorf("Dividendos total = %s, want 400", groups[0].TotalInvested)
	}
	if !groups[1].TotalInvested.Equal(d(100)) {
		t.Errorf("Valor total = %s, want 100", groups[1].TotalInvested)
	}
	if len(groups[0].Assets) != 2 || len(groups[1].Assets) != 1 {
		t.Errorf("unexpected asset counts: %d, %d", len(groups[0].Assets), len(groups[1].Assets))
	}

	if !groups[0].Percentage.Equal(d(80)) {
		t.Errorf("Dividendos percentage = %s, want 80", groups[0].Percentage)
	}
	if !groups[1].Percentage.Equal(d(20)) {
		t.Errorf("Valor percentage = %s, want 20", groups[1].Percentage)
	}
}

func TestGroupByStrategy_RoundsPercentages(t *testing.T) {
	// Three equal thirds: 33.33 each after rounding.
	details := []model.PositionDetail{
		detail(1, "A", "AAA1", 1, 100),
		detail(2, "B", "BBB2", 1, 100),
		detail(3, "C", "CCC3", 1, 100),
	}

	groups := valuation.GroupByStrategy(details)
	for _, g := range groups {
		if !g.Percentage.Equal(d(33.33)) {
			t.Errorf("group %s percentage = %s, want 33.33", g.Name, g.Percentage)
		}
		if g.Percentage.Exponent() < -2 {
			t.Errorf("group %s percentage has more than two decimal places: %s", g.Name, g.Percentage)
		}
	}
}

func TestGroupByStrategy_Empty(t *testing.T) {
	groups := valuation.GroupByStrategy(nil)
	if groups == nil {
		t.Fatal("expected empty non-nil slice")
	}
	if len(groups) != 0 {
		t.Fatalf("expected 0 groups, got %d", len(groups))
	}
}
