// Package arb ties the feed, the quote caches, the edge scanner, and the
// execution gateway into one frame-driven loop.
package arb

import (
	"context"
	"log"

	"triarb-core/internal/book"
	"triarb-core/internal/events"
	"triarb-core/internal/execution"
	"triarb-core/internal/router"
	"triarb-core/internal/scanner"
	"triarb-core/internal/triangle"
)

// Bot owns the per-frame pipeline: decode, route, print, evaluate, trigger.
// OnFrame is called from the transport's read loop, one frame at a time, so
// none of the Bot's own state needs locking.
type Bot struct {
	tri     triangle.Triangle
	router  *router.Router
	scanner *scanner.Scanner
	exec    *execution.Gateway
	bus     *events.Bus
	printer *printer

	frames uint64
}

// Config wires a Bot. All fields are required except Bus.
type Config struct {
	Triangle triangle.Triangle
	Router   *router.Router
	Scanner  *scanner.Scanner
	Exec     *execution.Gateway
	Bus      *events.Bus
}

func New(cfg Config) *Bot {
	precision := map[string]int{
		cfg.Triangle.BaseQuote:   2,
		cfg.Triangle.BridgeBase:  8,
		cfg.Triangle.BridgeQuote: 2,
	}
	return &Bot{
		tri:     cfg.Triangle,
		router:  cfg.Router,
		scanner: cfg.Scanner,
		exec:    cfg.Exec,
		bus:     cfg.Bus,
		printer: newPrinter(precision),
	}
}

// Frames returns the number of frames handled so far.
func (b *Bot) Frames() uint64 {
	return b.frames
}

// OnFrame handles one raw websocket frame. A frame that fails to decode is
// dropped with a log line; the caches keep their previous quotes and no
// evaluation happens for that frame.
func (b *Bot) OnFrame(ctx context.Context) func(raw []byte) {
	return func(raw []byte) {
		b.frames++
		if b.frames%100 == 0 {
			log.Printf("arb: %d frames processed", b.frames)
		}

		env, err := router.ParseEnvelope(raw)
		if err != nil {
			log.Printf("arb: dropping frame: %v", err)
			return
		}

		target, adopted := b.router.Dispatch(env)
		if target == nil {
			log.Printf("arb: dropping frame for untracked stream %q", env.Stream)
			return
		}
		if adopted {
			b.printer.observe(target)
		}

		edge, fire := b.scanner.Evaluate()
		if !fire {
			return
		}

		log.Printf("arb: edge %.4f%% above threshold %.4f%%", edge*100, b.scanner.Threshold()*100)
		if b.bus != nil {
			b.bus.Publish(events.EventEdgeSignal, events.EdgeSignal{
				Edge:      edge,
				Threshold: b.scanner.Threshold(),
			})
		}
		b.exec.TriggerChain(ctx, edge)
	}
}

// Books builds the three quote caches for a triangle, in cache order.
func Books(tri triangle.Triangle) (baseQuote, bridgeBase, bridgeQuote *book.Book) {
	return book.New(tri.BaseQuote), book.New(tri.BridgeBase), book.New(tri.BridgeQuote)
}
