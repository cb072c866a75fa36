package engine

// Event payloads published to subscribers. For a single order they are
// observed in causal order: priceUpdate* followed by one terminal
// orderUpdate (with tradeExecuted before the filled update). No ordering
// is promised across orders.

type PriceUpdate struct {
	OrderID   string  `json:"orderId"`
	Asset     string  `json:"asset"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

type OrderUpdate struct {
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

type Trade struct {
	OrderID   string  `json:"orderId"`
	Mode      string  `json:"mode"`
	Asset     string  `json:"asset"`
	TxHash    string  `json:"txHash"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}
