package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"triarb-core/internal/book"
	"triarb-core/internal/events"
	"triarb-core/internal/risk"
	"triarb-core/internal/triangle"
	exchange "triarb-core/pkg/exchanges/common"
)

func testBooks(t *testing.T) Books {
	t.Helper()
	b := Books{
		BaseQuote:   book.New("BTCUSDT"),
		BridgeBase:  book.New("ETHBTC"),
		BridgeQuote: book.New("ETHUSDT"),
	}
	b.BaseQuote.Update(1, book.Quote{Price: 50000.00, Qty: 1}, book.Quote{Price: 50001.00, Qty: 1})
	b.BridgeBase.Update(1, book.Quote{Price: 0.0501, Qty: 5}, book.Quote{Price: 0.0502, Qty: 5})
	b.BridgeQuote.Update(1, book.Quote{Price: 2449.00, Qty: 5}, book.Quote{Price: 2450.00, Qty: 5})
	return b
}

// fakeVenue scripts per-symbol outcomes and records submissions.
type fakeVenue struct {
	mu       sync.Mutex
	fail     map[string]bool
	block    chan struct{}
	onSubmit func(exchange.OrderRequest)
	reqs     []exchange.OrderRequest
}

func (f *fakeVenue) SubmitOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	fail := f.fail[req.Symbol]
	f.mu.Unlock()
	if f.onSubmit != nil {
		f.onSubmit(req)
	}
	if fail {
		return exchange.OrderResult{}, errors.New("venue rejected order")
	}
	return exchange.OrderResult{
		ClientID:    req.ClientID,
		Status:      exchange.StatusFilled,
		ExecutedQty: req.Qty,
	}, nil
}

func (f *fakeVenue) submitted() []exchange.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]exchange.OrderRequest(nil), f.reqs...)
}

func TestDryRunEchoesRequestedFill(t *testing.T) {
	g := New(Config{Mode: ModeDryRun, Triangle: triangle.Default().Triangle, Books: testBooks(t)})

	var got FillReport
	g.SubmitOrder(context.Background(), "ETHUSDT", exchange.SideBuy, 0.0408, 2450.00, func(r FillReport) {
		got = r
	})

	if !got.Success {
		t.Fatal("dry-run fill not successful")
	}
	if got.QuantityFilled != 0.0408 || got.AveragePrice != 2450.00 {
		t.Fatalf("fill=%+v, expected requested qty and price echoed", got)
	}
}

func TestDryRunChainCompletes(t *testing.T) {
	bus := events.NewBus()
	ch, unsub := bus.Subscribe(events.EventChainCompleted, 4)
	defer unsub()

	g := New(Config{
		Mode:        ModeDryRun,
		Triangle:    triangle.Default().Triangle,
		Books:       testBooks(t),
		MaxNotional: 100,
		Bus:         bus,
		Guard:       risk.NewGuard(risk.DefaultConfig()),
	})

	if !g.TriggerChain(context.Background(), 0.0012) {
		t.Fatal("chain not triggered")
	}
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no chain-completed event")
	}
	if g.InFlight() {
		t.Fatal("gateway still in flight after completed chain")
	}
}

func TestChainAbortsWithoutFurtherLegs(t *testing.T) {
	bus := events.NewBus()
	aborted, unsub := bus.Subscribe(events.EventChainAborted, 4)
	defer unsub()

	venue := &fakeVenue{fail: map[string]bool{"ETHBTC": true}}
	guard := risk.NewGuard(risk.DefaultConfig())
	g := New(Config{
		Mode:        ModeLive,
		Venue:       venue,
		Triangle:    triangle.Default().Triangle,
		Books:       testBooks(t),
		MaxNotional: 100,
		Bus:         bus,
		Guard:       guard,
	})

	if !g.TriggerChain(context.Background(), 0.0012) {
		t.Fatal("chain not triggered")
	}
	select {
	case <-aborted:
	case <-time.After(time.Second):
		t.Fatal("no chain-aborted event")
	}

	subs := venue.submitted()
	if len(subs) != 2 || subs[0].Symbol != "ETHUSDT" || subs[1].Symbol != "ETHBTC" {
		t.Fatalf("submitted=%v, expected legs 1 and 2 only", subs)
	}
	if m := guard.GetMetrics(); m.ChainsAborted != 1 {
		t.Fatalf("guard metrics=%+v", m)
	}
	if g.InFlight() {
		t.Fatal("gateway still in flight after abort")
	}
}

func TestSecondTriggerSuppressedWhileInFlight(t *testing.T) {
	venue := &fakeVenue{block: make(chan struct{})}
	g := New(Config{
		Mode:        ModeLive,
		Venue:       venue,
		Triangle:    triangle.Default().Triangle,
		Books:       testBooks(t),
		MaxNotional: 100,
	})

	if !g.TriggerChain(context.Background(), 0.0012) {
		t.Fatal("first chain not triggered")
	}
	if g.TriggerChain(context.Background(), 0.0015) {
		t.Fatal("second chain triggered while first in flight")
	}
	close(venue.block)

	deadline := time.After(time.Second)
	for g.InFlight() {
		select {
		case <-deadline:
			t.Fatal("chain never finished")
		case <-time.After(time.Millisecond):
		}
	}
}

// Legs price off the book as it stands when the leg is submitted, not as it
// stood when the edge was detected.
func TestLegsPriceFreshSnapshots(t *testing.T) {
	bus := events.NewBus()
	completed, unsub := bus.Subscribe(events.EventChainCompleted, 4)
	defer unsub()

	books := testBooks(t)
	venue := &fakeVenue{}
	venue.onSubmit = func(req exchange.OrderRequest) {
		// Move the bridge/base bid while leg 1 is still at the venue.
		if req.Symbol == "ETHUSDT" {
			books.BridgeBase.Update(2, book.Quote{Price: 0.0499, Qty: 5}, book.Quote{Price: 0.0500, Qty: 5})
		}
	}

	g := New(Config{
		Mode:        ModeLive,
		Venue:       venue,
		Triangle:    triangle.Default().Triangle,
		Books:       books,
		MaxNotional: 100,
		Bus:         bus,
	})

	if !g.TriggerChain(context.Background(), 0.0012) {
		t.Fatal("chain not triggered")
	}
	select {
	case <-completed:
	case <-time.After(time.Second):
		t.Fatal("chain did not complete")
	}

	subs := venue.submitted()
	if len(subs) != 3 {
		t.Fatalf("submitted %d legs, expected 3", len(subs))
	}
	if subs[1].Price != 0.0499 {
		t.Fatalf("leg2 price=%v, expected the moved bid 0.0499", subs[1].Price)
	}
}

func TestLegTwoUsesRealizedQuantity(t *testing.T) {
	b := testBooks(t)
	g := New(Config{Mode: ModeDryRun, Triangle: triangle.Default().Triangle, Books: b, MaxNotional: 98})

	var (
		mu   sync.Mutex
		legs []FillReport
	)
	record := func(r FillReport) {
		mu.Lock()
		legs = append(legs, r)
		mu.Unlock()
	}

	// Drive the same sizing arithmetic the chain uses, leg by leg.
	_, ask, _ := b.BridgeQuote.Snapshot()
	g.SubmitOrder(context.Background(), "ETHUSDT", exchange.SideBuy, 98/ask.Price, ask.Price, record)
	bid, _, _ := b.BridgeBase.Snapshot()
	g.SubmitOrder(context.Background(), "ETHBTC", exchange.SideSell, legs[0].QuantityFilled, bid.Price, record)

	if legs[1].QuantityFilled != legs[0].QuantityFilled {
		t.Fatalf("leg2 qty=%v, expected leg1 realized qty %v", legs[1].QuantityFilled, legs[0].QuantityFilled)
	}
}
