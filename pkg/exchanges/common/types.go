package common

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType denotes the order types the arbitrage chain uses.
type OrderType string

const (
	OrderTypeLimit      OrderType = "LIMIT"
	OrderTypeLimitMaker OrderType = "LIMIT_MAKER"
)

// TimeInForce captures TIF semantics.
type TimeInForce string

const (
	TIFGTC TimeInForce = "GTC" // Good Till Cancelled
	TIFIOC TimeInForce = "IOC" // Immediate Or Cancel
	TIFFOK TimeInForce = "FOK" // Fill Or Kill
)

// OrderStatus normalizes exchange status into a small set.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusPartial  OrderStatus = "PARTIAL"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusRejected OrderStatus = "REJECTED"
	StatusExpired  OrderStatus = "EXPIRED"
	StatusUnknown  OrderStatus = "UNKNOWN"
)

// OrderRequest captures an order intent to be sent to an exchange.
type OrderRequest struct {
	Symbol      string
	Side        Side
	Type        OrderType
	Qty         float64
	Price       float64
	TimeInForce TimeInForce
	ClientID    string // optional client order id
}

// OrderResult returns the exchange ack. IOC orders resolve on the ack
// itself, so fill totals ride along when the venue reports them.
type OrderResult struct {
	ExchangeOrderID string
	ClientID        string
	Status          OrderStatus
	ExecutedQty     float64
	AvgFillPrice    float64 // 0 when nothing filled
}

// Filled reports whether the ack carries any executed quantity.
func (r OrderResult) Filled() bool {
	return r.ExecutedQty > 0
}
