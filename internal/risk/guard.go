// Package risk guards chain triggering. An aborted chain leaves a partial
// position behind, so a venue that keeps rejecting legs must not be re-hit
// blindly.
package risk

import (
	"fmt"
	"sync"
)

// Config bounds what the execution gateway may do.
type Config struct {
	MaxNotional          float64 // cap on leg-1 sizing, in quote currency
	MaxConsecutiveAborts int     // halt triggering after this many aborts in a row
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		MaxNotional:          100.0,
		MaxConsecutiveAborts: 3,
	}
}

// Metrics is a snapshot of guard counters.
type Metrics struct {
	ChainsFired       int
	ChainsCompleted   int
	ChainsAborted     int
	ConsecutiveAborts int
	Halted            bool
}

// Guard tracks chain outcomes and halts triggering after repeated aborts.
type Guard struct {
	mu  sync.Mutex
	cfg Config

	fired             int
	completed         int
	aborted           int
	consecutiveAborts int
	halted            bool
}

func NewGuard(cfg Config) *Guard {
	if cfg.MaxNotional <= 0 {
		cfg.MaxNotional = DefaultConfig().MaxNotional
	}
	if cfg.MaxConsecutiveAborts <= 0 {
		cfg.MaxConsecutiveAborts = DefaultConfig().MaxConsecutiveAborts
	}
	return &Guard{cfg: cfg}
}

// AllowChain returns an error when triggering is halted.
func (g *Guard) AllowChain() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.halted {
		return fmt.Errorf("risk: halted after %d consecutive aborted chains", g.consecutiveAborts)
	}
	g.fired++
	return nil
}

// CapNotional clamps the requested leg-1 notional to the configured cap.
func (g *Guard) CapNotional(requested float64) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if requested <= 0 || requested > g.cfg.MaxNotional {
		return g.cfg.MaxNotional
	}
	return requested
}

// RecordCompleted notes a fully executed chain and re-arms the abort counter.
func (g *Guard) RecordCompleted() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed++
	g.consecutiveAborts = 0
}

// RecordAborted notes an aborted chain; crossing the configured streak
// halts further triggering until the process is restarted.
func (g *Guard) RecordAborted() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.aborted++
	g.consecutiveAborts++
	if g.consecutiveAborts >= g.cfg.MaxConsecutiveAborts {
		g.halted = true
	}
}

// GetMetrics returns a snapshot of the guard counters.
func (g *Guard) GetMetrics() Metrics {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Metrics{
		ChainsFired:       g.fired,
		ChainsCompleted:   g.completed,
		ChainsAborted:     g.aborted,
		ConsecutiveAborts: g.consecutiveAborts,
		Halted:            g.halted,
	}
}
