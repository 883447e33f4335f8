// Seeds the catalog tables (ativos, estrategias, ranking_ativos) with
// sample data for local development. The server treats the catalog as
// externally managed; this stands in for the real feed.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/growguru/invest-api/internal/model"
	"github.com/growguru/invest-api/internal/store"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer pool.Close()

	st := store.NewPostgresStore(pool)

	assets := []model.Asset{
		{Code: "PETR4", Name: "Petrobras PN", Kind: "acao", CurrentPrice: d(38.42)},
		{Code: "VALE3", Name: "Vale ON", Kind: "acao", CurrentPrice: d(61.15)},
		{Code: "ITUB4", Name: "Itaú Unibanco PN", Kind: "acao", CurrentPrice: d(33.87)},
		{Code: "BBAS3", Name: "Banco do Brasil ON", Kind: "acao", CurrentPrice: d(27.60)},
		{Code: "WEGE3", Name: "WEG ON", Kind: "acao", CurrentPrice: d(52.31)},
		{Code: "TAEE11", Name: "Taesa UNT", Kind: "acao", CurrentPrice: d(34.95)},
		{Code: "MXRF11", Name: "Maxi Renda FII", Kind: "fii", CurrentPrice: d(10.42)},
		{Code: "HGLG11", Name: "CSHG Logística FII", Kind: "fii", CurrentPrice: d(158.90)},
		{Code: "KNRI11", Name: "Kinea Renda Imobiliária FII", Kind: "fii", CurrentPrice: d(142.10)},
	}
	for i := range assets {
		if err := st.UpsertAsset(ctx, &assets[i]); err != nil {
			log.Fatalf("seed asset %s: %v", assets[i].Code, err)
		}
	}
	fmt.Printf("seeded %d assets\n", len(assets))

	strategies := []struct {
		strategy model.Strategy
		ranking  []model.StrategyAsset
	}{
		{
			strategy: model.Strategy{Name: "Dividendos", Description: "Empresas com histórico consistente de proventos"},
			ranking: []model.StrategyAsset{
				{AssetCode: "TAEE11", Rank: 1, Return: d(14.2)},
				{AssetCode: "BBAS3", Rank: 2, Return: d(11.8)},
				{AssetCode: "ITUB4", Rank: 3, Return: d(9.4)},
				{AssetCode: "PETR4", Rank: 4, Return: d(8.1)},
			},
		},
		{
			strategy: model.Strategy{Name: "Valor", Description: "Ações negociadas abaixo do valor intrínseco estimado"},
			ranking: []model.StrategyAsset{
				{AssetCode: "VALE3", Rank: 1, Return: d(7.6)},
				{AssetCode: "PETR4", Rank: 2, Return: d(6.9)},
				{AssetCode: "WEGE3", Rank: 3, Return: d(5.2)},
			},
		},
		{
			strategy: model.Strategy{Name: "Fundos Imobiliários", Description: "FIIs de tijolo e papel com renda mensal"},
			ranking: []model.StrategyAsset{
				{AssetCode: "HGLG11", Rank: 1, Return: d(12.5)},
				{AssetCode: "KNRI11", Rank: 2, Return: d(10.9)},
				{AssetCode: "MXRF11", Rank: 3, Return: d(10.1)},
			},
		},
	}

	for _, entry := range strategies {
		s := entry.strategy
		if err := st.CreateStrategy(ctx, &s); err != nil {
			log.Fatalf("seed strategy %s: %v", s.Name, err)
		}
		for _, ra := range entry.ranking {
			ra.StrategyID = s.ID
			if err := st.AddStrategyAsset(ctx, &ra); err != nil {
				log.Fatalf("seed ranking %s/%s: %v", s.Name, ra.AssetCode, err)
			}
		}
		fmt.Printf("seeded strategy %q with %d assets\n", s.Name, len(entry.ranking))
	}
}
