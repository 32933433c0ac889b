// Package execution submits signed orders (or simulates them in dry-run)
// and drives the three-leg arbitrage chain.
package execution

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"triarb-core/internal/book"
	"triarb-core/internal/events"
	"triarb-core/internal/risk"
	"triarb-core/internal/triangle"
	"triarb-core/pkg/db"
	exchange "triarb-core/pkg/exchanges/common"
)

// Mode controls real vs dry-run execution.
type Mode int

const (
	ModeDryRun Mode = iota
	ModeLive
)

// FillReport is the per-leg outcome consumed by the next leg's continuation.
type FillReport struct {
	Success        bool
	QuantityFilled float64
	AveragePrice   float64
}

// FillHandler receives a leg's outcome. Dry-run invokes it synchronously;
// live delivers it from the submission goroutine.
type FillHandler func(FillReport)

// Books holds the three quote caches the chain prices against.
type Books struct {
	BaseQuote   *book.Book // e.g. BTCUSDT
	BridgeBase  *book.Book // e.g. ETHBTC
	BridgeQuote *book.Book // e.g. ETHUSDT
}

// Config wires a Gateway.
type Config struct {
	Mode        Mode
	Venue       exchange.Gateway // required in live mode
	Triangle    triangle.Triangle
	Books       Books
	MaxNotional float64 // quote-currency sizing for leg 1
	Bus         *events.Bus
	Journal     *db.Database // optional
	Guard       *risk.Guard  // optional
}

// Gateway builds, signs (via the venue client), and submits leg orders,
// and serializes chain execution: a second trigger while a chain is in
// flight is refused, never interleaved.
type Gateway struct {
	mode        Mode
	venue       exchange.Gateway
	tri         triangle.Triangle
	books       Books
	maxNotional float64
	bus         *events.Bus
	journal     *db.Database
	guard       *risk.Guard

	inFlight atomic.Bool
}

func New(cfg Config) *Gateway {
	return &Gateway{
		mode:        cfg.Mode,
		venue:       cfg.Venue,
		tri:         cfg.Triangle,
		books:       cfg.Books,
		maxNotional: cfg.MaxNotional,
		bus:         cfg.Bus,
		journal:     cfg.Journal,
		guard:       cfg.Guard,
	}
}

// InFlight reports whether a chain is currently executing.
func (g *Gateway) InFlight() bool {
	return g.inFlight.Load()
}

// SubmitOrder submits a single post-only IOC limit order. Dry-run echoes a
// full fill at the requested price synchronously; live posts the signed
// request and delivers the outcome through onFill when the ack arrives.
func (g *Gateway) SubmitOrder(ctx context.Context, symbol string, side exchange.Side, qty, price float64, onFill FillHandler) {
	g.submitLeg(ctx, "", 0, symbol, side, qty, price, onFill)
}

func (g *Gateway) submitLeg(ctx context.Context, chainID string, leg int, symbol string, side exchange.Side, qty, price float64, onFill FillHandler) {
	clientID := uuid.NewString()

	if g.mode == ModeDryRun {
		log.Printf("execution: DRY-RUN %s %.6f %s @ %.2f", side, qty, symbol, price)
		g.recordOrder(ctx, clientID, chainID, leg, symbol, side, qty, price, string(exchange.StatusFilled), qty)
		g.recordFill(ctx, clientID, symbol, side, qty, price)
		g.publish(events.EventOrderSubmitted, clientID)
		onFill(FillReport{Success: true, QuantityFilled: qty, AveragePrice: price})
		return
	}

	req := exchange.OrderRequest{
		Symbol:      symbol,
		Side:        side,
		Type:        exchange.OrderTypeLimitMaker,
		Qty:         qty,
		Price:       price,
		TimeInForce: exchange.TIFIOC,
		ClientID:    clientID,
	}
	g.recordOrder(ctx, clientID, chainID, leg, symbol, side, qty, price, string(exchange.StatusNew), 0)
	g.publish(events.EventOrderSubmitted, clientID)

	go func() {
		res, err := g.venue.SubmitOrder(ctx, req)
		if err != nil {
			log.Printf("execution: submit %s %s failed: %v", side, symbol, err)
			g.updateOrder(ctx, clientID, string(exchange.StatusRejected), 0, price)
			g.publish(events.EventOrderRejected, err.Error())
			onFill(FillReport{})
			return
		}

		avg := res.AvgFillPrice
		if avg == 0 {
			avg = price
		}
		g.updateOrder(ctx, clientID, string(res.Status), res.ExecutedQty, avg)
		if res.Filled() {
			g.recordFill(ctx, clientID, symbol, side, res.ExecutedQty, avg)
		}
		onFill(FillReport{
			Success:        res.Filled(),
			QuantityFilled: res.ExecutedQty,
			AveragePrice:   avg,
		})
	}()
}

// TriggerChain starts the three-leg chain for a detected edge. Returns
// false when a chain is already in flight or the risk guard refuses.
// Each leg prices off a fresh snapshot at its own trigger time, not the
// prices the edge was detected at; the market moving in between is an
// inherent property of the strategy.
func (g *Gateway) TriggerChain(ctx context.Context, edge float64) bool {
	if g.guard != nil {
		if err := g.guard.AllowChain(); err != nil {
			log.Printf("execution: chain refused: %v", err)
			return false
		}
	}
	if !g.inFlight.CompareAndSwap(false, true) {
		log.Printf("execution: chain already in flight, edge %.6f suppressed", edge)
		return false
	}

	notional := g.maxNotional
	if g.guard != nil {
		notional = g.guard.CapNotional(notional)
	}

	_, ask, _ := g.books.BridgeQuote.Snapshot()
	if ask.Price <= 0 {
		log.Printf("execution: no ask for %s, chain not started", g.tri.BridgeQuote)
		g.inFlight.Store(false)
		return false
	}

	c := &chain{
		g:        g,
		ctx:      ctx,
		id:       uuid.NewString(),
		edge:     edge,
		notional: notional,
	}
	c.start(ask)
	return true
}

// chain owns one in-flight execution. Continuations receive the prior
// leg's FillReport by value; nothing is shared across suspension points.
type chain struct {
	g        *Gateway
	ctx      context.Context
	id       string
	edge     float64
	notional float64
}

func (c *chain) start(ask book.Quote) {
	g := c.g
	if g.journal != nil {
		if err := g.journal.CreateChain(c.ctx, db.Chain{
			ID:        c.id,
			Edge:      c.edge,
			Notional:  c.notional,
			Status:    db.ChainRunning,
			StartedAt: time.Now(),
		}); err != nil {
			log.Printf("execution: journal chain error: %v", err)
		}
	}
	g.publish(events.EventChainStarted, c.id)
	log.Printf("execution: chain %s started, edge %.4f%%, notional %.2f", c.id, c.edge*100, c.notional)

	qty := c.notional / ask.Price
	g.submitLeg(c.ctx, c.id, 1, g.tri.BridgeQuote, exchange.SideBuy, qty, ask.Price, c.leg1Filled)
}

func (c *chain) leg1Filled(fill FillReport) {
	g := c.g
	if !fill.Success {
		c.abort(1)
		return
	}
	g.notifyLeg(c.id, 1, g.tri.BridgeQuote, exchange.SideBuy, fill)

	bid, _, _ := g.books.BridgeBase.Snapshot()
	if bid.Price <= 0 {
		c.abort(2)
		return
	}
	// Sell exactly what leg 1 realized, at the freshest bridge/base bid.
	g.submitLeg(c.ctx, c.id, 2, g.tri.BridgeBase, exchange.SideSell, fill.QuantityFilled, bid.Price, c.leg2Filled)
}

func (c *chain) leg2Filled(fill FillReport) {
	g := c.g
	if !fill.Success {
		c.abort(2)
		return
	}
	g.notifyLeg(c.id, 2, g.tri.BridgeBase, exchange.SideSell, fill)

	bid, _, _ := g.books.BaseQuote.Snapshot()
	if bid.Price <= 0 {
		c.abort(3)
		return
	}
	// Leg 2 sold bridge for base; its proceeds in base currency are qty*price.
	proceeds := fill.QuantityFilled * fill.AveragePrice
	g.submitLeg(c.ctx, c.id, 3, g.tri.BaseQuote, exchange.SideSell, proceeds, bid.Price, c.leg3Filled)
}

func (c *chain) leg3Filled(fill FillReport) {
	if !fill.Success {
		c.abort(3)
		return
	}
	c.g.notifyLeg(c.id, 3, c.g.tri.BaseQuote, exchange.SideSell, fill)
	c.complete()
}

func (c *chain) complete() {
	g := c.g
	if g.journal != nil {
		if err := g.journal.FinishChain(c.ctx, c.id, db.ChainCompleted); err != nil {
			log.Printf("execution: journal chain error: %v", err)
		}
	}
	if g.guard != nil {
		g.guard.RecordCompleted()
	}
	g.publish(events.EventChainCompleted, c.id)
	log.Printf("execution: chain %s completed", c.id)
	g.inFlight.Store(false)
}

// abort stops the chain at a failed leg. Prior legs are NOT unwound: the
// position they acquired is left as-is and the operator must intervene.
func (c *chain) abort(leg int) {
	g := c.g
	if g.journal != nil {
		if err := g.journal.FinishChain(c.ctx, c.id, db.ChainAborted); err != nil {
			log.Printf("execution: journal chain error: %v", err)
		}
	}
	if g.guard != nil {
		g.guard.RecordAborted()
	}
	g.publish(events.EventChainAborted, c.id)
	log.Printf("execution: ALERT chain %s ABORTED at leg %d; partial position is NOT unwound, manual intervention required", c.id, leg)
	g.inFlight.Store(false)
}

func (g *Gateway) notifyLeg(chainID string, leg int, symbol string, side exchange.Side, fill FillReport) {
	log.Printf("execution: chain %s leg %d filled %s %.6f %s @ %.2f", chainID, leg, side, fill.QuantityFilled, symbol, fill.AveragePrice)
	g.publish(events.EventLegFilled, events.LegFill{
		ChainID:  chainID,
		Leg:      leg,
		Symbol:   symbol,
		Side:     string(side),
		Qty:      fill.QuantityFilled,
		AvgPrice: fill.AveragePrice,
	})
}

func (g *Gateway) publish(e events.Event, payload any) {
	if g.bus != nil {
		g.bus.Publish(e, payload)
	}
}

func (g *Gateway) recordOrder(ctx context.Context, id, chainID string, leg int, symbol string, side exchange.Side, qty, price float64, status string, filled float64) {
	if g.journal == nil {
		return
	}
	err := g.journal.CreateOrder(ctx, db.Order{
		ID:        id,
		ChainID:   chainID,
		Leg:       leg,
		Symbol:    symbol,
		Side:      string(side),
		Price:     price,
		Qty:       qty,
		FilledQty: filled,
		Status:    status,
		CreatedAt: time.Now(),
	})
	if err != nil {
		log.Printf("execution: journal order error: %v", err)
	}
}

func (g *Gateway) updateOrder(ctx context.Context, id, status string, filledQty, price float64) {
	if g.journal == nil {
		return
	}
	if err := g.journal.UpdateOrderFill(ctx, id, status, filledQty, price); err != nil {
		log.Printf("execution: journal order error: %v", err)
	}
}

func (g *Gateway) recordFill(ctx context.Context, orderID, symbol string, side exchange.Side, qty, price float64) {
	if g.journal == nil {
		return
	}
	err := g.journal.CreateFill(ctx, db.Fill{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Symbol:    symbol,
		Side:      string(side),
		Price:     price,
		Qty:       qty,
		CreatedAt: time.Now(),
	})
	if err != nil {
		log.Printf("execution: journal fill error: %v", err)
	}
}
