// Package scanner scores the triangular cycle against the fee model and
// decides when the edge is worth firing on.
package scanner

import (
	"math"
	"sync"

	"triarb-core/internal/book"
	"triarb-core/internal/triangle"
)

// Scanner evaluates the fee-adjusted edge of one triangle. It keeps the
// previous edge so an unchanged signal sitting above threshold across many
// consecutive frames fires only once.
type Scanner struct {
	baseQuote   *book.Book // e.g. BTCUSDT
	bridgeBase  *book.Book // e.g. ETHBTC
	bridgeQuote *book.Book // e.g. ETHUSDT

	fees      triangle.Fees
	threshold float64
	epsilon   float64
	ready     func() bool

	mu       sync.Mutex
	lastEdge float64
}

// New builds a scanner over the three books. ready gates evaluation until
// every pair has delivered its first update.
func New(cfg triangle.Config, baseQuote, bridgeBase, bridgeQuote *book.Book, ready func() bool) *Scanner {
	return &Scanner{
		baseQuote:   baseQuote,
		bridgeBase:  bridgeBase,
		bridgeQuote: bridgeQuote,
		fees:        cfg.Fees,
		threshold:   cfg.Threshold,
		epsilon:     cfg.Epsilon,
		ready:       ready,
	}
}

// Evaluate computes the round-trip edge of quote → bridge → base → quote:
// buy the bridge at the bridge/quote ask (taker), sell it for base at the
// bridge/base bid (maker), sell the base at the base/quote bid (maker).
// Returns no signal until all pairs have data and all prices are positive;
// lastEdge is untouched in that case.
func (s *Scanner) Evaluate() (edge float64, fire bool) {
	if s.ready != nil && !s.ready() {
		return 0, false
	}

	_, bridgeAsk, _ := s.bridgeQuote.Snapshot()
	bridgeBid, _, _ := s.bridgeBase.Snapshot()
	baseBid, _, _ := s.baseQuote.Snapshot()

	if bridgeAsk.Price <= 0 || bridgeBid.Price <= 0 || baseBid.Price <= 0 {
		return 0, false
	}

	edge = 1.0/bridgeAsk.Price*(1.0+s.fees.Taker)*
		bridgeBid.Price*(1.0-s.fees.Maker)*
		baseBid.Price*(1.0-s.fees.Maker) - 1.0

	s.mu.Lock()
	fire = edge > s.threshold && math.Abs(edge-s.lastEdge) > s.epsilon
	s.lastEdge = edge
	s.mu.Unlock()
	return edge, fire
}

// LastEdge returns the edge from the most recent evaluation.
func (s *Scanner) LastEdge() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEdge
}

// Threshold returns the firing threshold.
func (s *Scanner) Threshold() float64 {
	return s.threshold
}
