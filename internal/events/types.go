package events

// Event enumerates high-level topics inside the arbitrage core.
type Event string

const (
	EventBookUpdate     Event = "book.update"
	EventEdgeSignal     Event = "edge.signal"
	EventChainStarted   Event = "chain.started"
	EventChainCompleted Event = "chain.completed"
	EventChainAborted   Event = "chain.aborted"
	EventOrderSubmitted Event = "order.submitted"
	EventOrderRejected  Event = "order.rejected"
	EventLegFilled      Event = "order.leg_filled"
)

// BookUpdate is published on every adopted top-of-book change.
type BookUpdate struct {
	Symbol   string  `json:"symbol"`
	Sequence uint64  `json:"sequence"`
	BidPrice float64 `json:"bid_price"`
	BidQty   float64 `json:"bid_qty"`
	AskPrice float64 `json:"ask_price"`
	AskQty   float64 `json:"ask_qty"`
}

// EdgeSignal is published when the scanner fires.
type EdgeSignal struct {
	Edge      float64 `json:"edge"`
	Threshold float64 `json:"threshold"`
}

// LegFill describes one completed leg of an execution chain.
type LegFill struct {
	ChainID  string  `json:"chain_id"`
	Leg      int     `json:"leg"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Qty      float64 `json:"qty"`
	AvgPrice float64 `json:"avg_price"`
}
