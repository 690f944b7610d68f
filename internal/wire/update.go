package wire

// Update is the full per-stock record fanned out when a trade executes.
// Clients watching the stock get the whole record (updateTarget); everyone
// else gets only the Match digest (updateStock).
type Update struct {
	Code      string `json:"code" msgpack:"code"`
	Price     int64  `json:"price" msgpack:"price"`
	Amount    int64  `json:"amount" msgpack:"amount"`
	CreatedAt int64  `json:"createdAt" msgpack:"createdAt"`
	Match     Match  `json:"match" msgpack:"match"`
}

// Match is the reduced digest of an Update, enough to refresh a price row
// in the stock list without the full order detail.
type Match struct {
	Code          string `json:"code" msgpack:"code"`
	Price         int64  `json:"price" msgpack:"price"`
	PreviousClose int64  `json:"previousClose" msgpack:"previousClose"`
	TradeAmount   int64  `json:"tradeAmount" msgpack:"tradeAmount"`
}
