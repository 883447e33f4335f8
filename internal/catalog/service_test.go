package catalog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/growguru/invest-api/internal/catalog"
	"github.com/growguru/invest-api/internal/model"
	"github.com/growguru/invest-api/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newTestEnv(t *testing.T) (*store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	svc := catalog.NewService(ms)

	r := chi.NewRouter()
	r.Get("/estrategias", svc.ListStrategies)
	r.Get("/estrategias/{estrategiaID}/ativos", svc.ListStrategyAssets)
	return ms, r
}

func seedCatalog(t *testing.T, ms *store.MemoryStore) (dividendos, valor model.Strategy) {
	t.Helper()
	ctx := context.Background()

	for _, a := range []model.Asset{
		{Code: "ITUB4", Name: "Itaú Unibanco PN", Kind: "acao", CurrentPrice: d(33.87)},
		{Code: "TAEE11", Name: "Taesa UNT", Kind: "acao", CurrentPrice: d(34.95)},
		{Code: "VALE3", Name: "Vale ON", Kind: "acao", CurrentPrice: d(61.15)},
	} {
		if err := ms.UpsertAsset(ctx, &a); err != nil {
			t.Fatalf("failed to seed asset: %v", err)
		}
	}

	dividendos = model.Strategy{Name: "Dividendos"}
	if err := ms.CreateStrategy(ctx, &dividendos); err != nil {
		t.Fatalf("failed to seed strategy: %v", err)
	}
	valor = model.Strategy{Name: "Valor"}
	if err := ms.CreateStrategy(ctx, &valor); err != nil {
		t.Fatalf("failed to seed strategy: %v", err)
	}

	for _, ra := range []model.StrategyAsset{
		{StrategyID: dividendos.ID, AssetCode: "TAEE11", Rank: 2, Return: d(11.8)},
		{StrategyID: dividendos.ID, AssetCode: "ITUB4", Rank: 1, Return: d(14.2)},
		{StrategyID: valor.ID, AssetCode: "VALE3", Rank: 1, Return: d(7.6)},
	} {
		if err := ms.AddStrategyAsset(ctx, &ra); err != nil {
			t.Fatalf("failed to seed ranking: %v", err)
		}
	}
	return dividendos, valor
}

func doGet(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListStrategies(t *testing.T) {
	ms, router := newTestEnv(t)
	seedCatalog(t, ms)

	w := doGet(t, router, "/estrategias")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var strategies []model.Strategy
	if err := json.Unmarshal(w.Body.Bytes(), &strategies); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(strategies) != 2 {
		t.Fatalf("expected 2 strategies, got %d", len(strategies))
	}
	// Name descending.
	if strategies[0].Name != "Valor" || strategies[1].Name != "Dividendos" {
		t.Errorf("unexpected order: %s, %s", strategies[0].Name, strategies[1].Name)
	}
	if strategies[0].TotalAssets != 1 {
		t.Errorf("Valor total_ativos = %d, want 1", strategies[0].TotalAssets)
	}
	if strategies[1].TotalAssets != 2 {
		t.Errorf("Dividendos total_ativos = %d, want 2", strategies[1].TotalAssets)
	}
}

func TestListStrategies_Empty(t *testing.T) {
	_, router := newTestEnv(t)

	w := doGet(t, router, "/estrategias")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body := bytes.TrimSpace(w.Body.Bytes()); string(body) != "[]" {
		t.Errorf("expected empty array body, got %s", body)
	}
}

func TestListStrategyAssets(t *testing.T) {
	ms, router := newTestEnv(t)
	dividendos, _ := seedCatalog(t, ms)

	w := doGet(t, router, "/estrategias/1/ativos")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var assets []model.StrategyAsset
	if err := json.Unmarshal(w.Body.Bytes(), &assets); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(assets))
	}
	// Ordered by rank, with the joined catalog data attached.
	if assets[0].AssetCode != "ITUB4" || assets[1].AssetCode != "TAEE11" {
		t.Errorf("unexpected order: %s, %s", assets[0].AssetCode, assets[1].AssetCode)
	}
	if assets[0].StrategyID != dividendos.ID {
		t.Errorf("estrategia_id = %d, want %d", assets[0].StrategyID, dividendos.ID)
	}
	if assets[0].Asset == nil || assets[0].Asset.Name != "Itaú Unibanco PN" {
		t.Error("expected joined asset data on ranking entry")
	}
}

func TestListStrategyAssets_UnknownStrategy(t *testing.T) {
	ms, router := newTestEnv(t)
	seedCatalog(t, ms)

	w := doGet(t, router, "/estrategias/99/ativos")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body := bytes.TrimSpace(w.Body.Bytes()); string(body) != "[]" {
		t.Errorf("expected empty array body, got %s", body)
	}
}

func TestListStrategyAssets_InvalidID(t *testing.T) {
	_, router := newTestEnv(t)

	w := doGet(t, router, "/estrategias/abc/ativos")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}
