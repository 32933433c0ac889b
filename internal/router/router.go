// Package router demultiplexes combined-stream envelopes onto per-symbol
// quote caches.
package router

import (
	"sync/atomic"

	"triarb-core/internal/book"
	"triarb-core/internal/events"
)

// Router forwards top-of-book quotes to the book matching the envelope's
// stream name. Envelopes naming an untracked stream are dropped: on a
// best-effort feed, availability wins over completeness.
type Router struct {
	bus   *events.Bus
	books map[string]*book.Book
	seen  map[string]*atomic.Bool
}

// New creates a router. Streams are registered with Track before the first
// Dispatch; the map is read-only afterwards.
func New(bus *events.Bus) *Router {
	return &Router{
		bus:   bus,
		books: make(map[string]*book.Book),
		seen:  make(map[string]*atomic.Bool),
	}
}

// Track binds a stream name to its book.
func (r *Router) Track(stream string, b *book.Book) {
	r.books[stream] = b
	r.seen[stream] = &atomic.Bool{}
}

// Dispatch routes one envelope. It returns the target book and whether the
// update was adopted by its cache; (nil, false) means the stream is not
// tracked.
func (r *Router) Dispatch(env Envelope) (*book.Book, bool) {
	b, ok := r.books[env.Stream]
	if !ok {
		return nil, false
	}

	adopted := b.Update(env.UpdateID, env.Bids[0], env.Asks[0])
	r.seen[env.Stream].Store(true)

	if adopted && r.bus != nil {
		bid, ask, seq := b.Snapshot()
		r.bus.Publish(events.EventBookUpdate, events.BookUpdate{
			Symbol:   b.Symbol(),
			Sequence: seq,
			BidPrice: bid.Price,
			BidQty:   bid.Qty,
			AskPrice: ask.Price,
			AskQty:   ask.Qty,
		})
	}
	return b, adopted
}

// Ready reports whether every tracked stream has delivered at least one
// envelope.
func (r *Router) Ready() bool {
	for _, flag := range r.seen {
		if !flag.Load() {
			return false
		}
	}
	return len(r.seen) > 0
}
