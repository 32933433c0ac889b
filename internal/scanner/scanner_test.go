package scanner

import (
	"math"
	"testing"

	"triarb-core/internal/book"
	"triarb-core/internal/triangle"
)

func makeBooks(t *testing.T, baseBid, bridgeBid, bridgeAsk float64) (*book.Book, *book.Book, *book.Book) {
	t.Helper()
	baseQuote := book.New("BTCUSDT")
	bridgeBase := book.New("ETHBTC")
	bridgeQuote := book.New("ETHUSDT")
	baseQuote.Update(1, book.Quote{Price: baseBid, Qty: 1}, book.Quote{Price: baseBid + 1, Qty: 1})
	bridgeBase.Update(1, book.Quote{Price: bridgeBid, Qty: 1}, book.Quote{Price: bridgeBid * 1.001, Qty: 1})
	bridgeQuote.Update(1, book.Quote{Price: bridgeAsk - 1, Qty: 1}, book.Quote{Price: bridgeAsk, Qty: 1})
	return baseQuote, bridgeBase, bridgeQuote
}

func alwaysReady() bool { return true }

func TestEvaluateMatchesClosedForm(t *testing.T) {
	cfg := triangle.Default()
	baseQuote, bridgeBase, bridgeQuote := makeBooks(t, 50000.00, 0.0501, 2450.00)
	s := New(cfg, baseQuote, bridgeBase, bridgeQuote, alwaysReady)

	maker, taker := cfg.Fees.Maker, cfg.Fees.Taker
	want := 1.0/2450.00*(1.0+taker)*0.0501*(1.0-maker)*50000.00*(1.0-maker) - 1.0

	edge, fire := s.Evaluate()
	if math.Abs(edge-want) > 1e-9 {
		t.Fatalf("edge=%.12f, expected %.12f", edge, want)
	}
	if !fire {
		t.Fatalf("edge %.6f above threshold %.6f should fire", edge, cfg.Threshold)
	}

	// Deterministic on fixed books.
	again, _ := s.Evaluate()
	if math.Abs(again-edge) > 1e-12 {
		t.Fatalf("second evaluation %.12f differs from first %.12f", again, edge)
	}
}

func TestHysteresisFiresAtMostOnce(t *testing.T) {
	cfg := triangle.Default()
	baseQuote, bridgeBase, bridgeQuote := makeBooks(t, 50000.00, 0.0501, 2450.00)
	s := New(cfg, baseQuote, bridgeBase, bridgeQuote, alwaysReady)

	fires := 0
	for i := 0; i < 10; i++ {
		if _, fire := s.Evaluate(); fire {
			fires++
		}
	}
	if fires != 1 {
		t.Fatalf("fired %d times for an unchanged edge, expected 1", fires)
	}

	// A moved book re-arms the signal.
	bridgeQuote.Update(2, book.Quote{Price: 2439, Qty: 1}, book.Quote{Price: 2440.00, Qty: 1})
	if _, fire := s.Evaluate(); !fire {
		t.Fatal("changed edge above threshold should fire again")
	}
}

func TestBelowThresholdNeverFires(t *testing.T) {
	cfg := triangle.Default()
	// Prices chosen so the cycle round-trips to roughly break-even.
	baseQuote, bridgeBase, bridgeQuote := makeBooks(t, 50000.00, 0.0489, 2445.00)
	s := New(cfg, baseQuote, bridgeBase, bridgeQuote, alwaysReady)

	edge, fire := s.Evaluate()
	if edge > cfg.Threshold {
		t.Fatalf("test prices produced edge %.6f above threshold", edge)
	}
	if fire {
		t.Fatal("fired below threshold")
	}
}

func TestEvaluatePreconditions(t *testing.T) {
	cfg := triangle.Default()

	t.Run("not ready", func(t *testing.T) {
		baseQuote, bridgeBase, bridgeQuote := makeBooks(t, 50000, 0.0501, 2450)
		s := New(cfg, baseQuote, bridgeBase, bridgeQuote, func() bool { return false })
		if edge, fire := s.Evaluate(); edge != 0 || fire {
			t.Fatalf("evaluate before readiness: edge=%v fire=%v", edge, fire)
		}
		if s.LastEdge() != 0 {
			t.Fatal("lastEdge mutated by a no-signal evaluation")
		}
	})

	t.Run("non-positive price", func(t *testing.T) {
		baseQuote := book.New("BTCUSDT") // never updated, prices zero
		_, bridgeBase, bridgeQuote := makeBooks(t, 50000, 0.0501, 2450)
		s := New(cfg, baseQuote, bridgeBase, bridgeQuote, alwaysReady)
		if edge, fire := s.Evaluate(); edge != 0 || fire {
			t.Fatalf("evaluate with zero price: edge=%v fire=%v", edge, fire)
		}
		if s.LastEdge() != 0 {
			t.Fatal("lastEdge mutated by a no-signal evaluation")
		}
	})
}
