package stock

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// defaultStocks is the bootstrap stock list inserted into an empty store so
// a fresh deployment has something to push on connect.
var defaultStocks = []Summary{
	{Code: "005930", NameKorean: "삼성전자", NameEnglish: "SamsungElectronics", Price: 71200, PreviousClose: 70900, TradeAmount: 0},
	{Code: "000660", NameKorean: "SK하이닉스", NameEnglish: "SKHynix", Price: 128500, PreviousClose: 127000, TradeAmount: 0},
	{Code: "035420", NameKorean: "NAVER", NameEnglish: "NAVER", Price: 228000, PreviousClose: 230500, TradeAmount: 0},
	{Code: "035720", NameKorean: "카카오", NameEnglish: "Kakao", Price: 56700, PreviousClose: 57100, TradeAmount: 0},
	{Code: "005380", NameKorean: "현대차", NameEnglish: "HyundaiMotor", Price: 184500, PreviousClose: 183000, TradeAmount: 0},
	{Code: "051910", NameKorean: "LG화학", NameEnglish: "LGChem", Price: 498000, PreviousClose: 501000, TradeAmount: 0},
}

// EnsureSeed inserts the default stock list when the stocks collection is
// empty. Idempotent across restarts.
func EnsureSeed(ctx context.Context, store *Store) error {
	coll := store.DB().Collection("stocks")

	n, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("count stocks: %w", err)
	}
	if n > 0 {
		return nil
	}

	docs := make([]any, len(defaultStocks))
	for i, s := range defaultStocks {
		docs[i] = s
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("seed stocks: %w", err)
	}

	log.Printf("seeded %d stocks", len(defaultStocks))
	return nil
}
