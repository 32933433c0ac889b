// Package book keeps the latest top-of-book quote per trading pair,
// gated by the feed's update sequence so out-of-order frames are ignored.
package book

import "sync"

// Quote is an immutable price level. Replaced wholesale, never mutated.
type Quote struct {
	Price float64
	Qty   float64
}

// Book holds the freshest best bid/ask for one symbol. Safe for arbitrary
// concurrent callers; bid and ask are only ever replaced together under the
// same update.
type Book struct {
	symbol string

	mu      sync.Mutex
	lastSeq uint64
	bestBid Quote
	bestAsk Quote
}

func New(symbol string) *Book {
	return &Book{symbol: symbol}
}

// Symbol returns the pair this book tracks.
func (b *Book) Symbol() string {
	return b.symbol
}

// Update adopts the quote pair when seq exceeds the last applied sequence.
// Duplicates and reordered updates are the normal case on a best-effort
// feed and are silently discarded. Reports whether the update was adopted.
func (b *Book) Update(seq uint64, bid, ask Quote) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq <= b.lastSeq {
		return false
	}
	b.bestBid = bid
	b.bestAsk = ask
	b.lastSeq = seq
	return true
}

// Snapshot returns bid, ask, and sequence from the same update. This is the
// only read accessor: two separate reads could interleave quotes from
// different updates.
func (b *Book) Snapshot() (bid, ask Quote, seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bestBid, b.bestAsk, b.lastSeq
}
