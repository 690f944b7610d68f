package stock

import (
	"context"
	"time"
)

// Summary is one row of the stock list pushed to a client on connect.
type Summary struct {
	Code          string `json:"code"          bson:"code"          msgpack:"code"`
	NameKorean    string `json:"nameKorean"    bson:"name_korean"   msgpack:"nameKorean"`
	NameEnglish   string `json:"nameEnglish"   bson:"name_english"  msgpack:"nameEnglish"`
	Price         int64  `json:"price"         bson:"price"         msgpack:"price"`
	PreviousClose int64  `json:"previousClose" bson:"previous_close" msgpack:"previousClose"`
	TradeAmount   int64  `json:"tradeAmount"   bson:"trade_amount"  msgpack:"tradeAmount"`
}

// Conclusion is one executed trade for a stock, newest first in replies.
type Conclusion struct {
	Code      string    `json:"code"      bson:"code"       msgpack:"code"`
	Price     int64     `json:"price"     bson:"price"      msgpack:"price"`
	Amount    int64     `json:"amount"    bson:"amount"     msgpack:"amount"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at" msgpack:"createdAt"`
}

// Service is the read surface of the stock store the hub depends on.
// The order/auth services own writes; this process only reads.
type Service interface {
	// CurrentSnapshot returns the full stock list for the connect push.
	CurrentSnapshot(ctx context.Context) ([]Summary, error)
	// RecentTrades returns the latest conclusions for one stock code.
	RecentTrades(ctx context.Context, stockCode string) ([]Conclusion, error)
}
