package risk

import "testing"

func TestHaltsAfterConsecutiveAborts(t *testing.T) {
	g := NewGuard(Config{MaxNotional: 100, MaxConsecutiveAborts: 2})

	if err := g.AllowChain(); err != nil {
		t.Fatalf("first chain refused: %v", err)
	}
	g.RecordAborted()
	if err := g.AllowChain(); err != nil {
		t.Fatalf("second chain refused: %v", err)
	}
	g.RecordAborted()

	if err := g.AllowChain(); err == nil {
		t.Fatal("expected halt after reaching abort streak")
	}
	m := g.GetMetrics()
	if !m.Halted || m.ChainsAborted != 2 {
		t.Fatalf("metrics=%+v", m)
	}
}

func TestCompletedChainResetsStreak(t *testing.T) {
	g := NewGuard(Config{MaxNotional: 100, MaxConsecutiveAborts: 2})

	g.RecordAborted()
	g.RecordCompleted()
	g.RecordAborted()

	if err := g.AllowChain(); err != nil {
		t.Fatalf("guard halted despite reset streak: %v", err)
	}
	if m := g.GetMetrics(); m.ConsecutiveAborts != 1 || m.Halted {
		t.Fatalf("metrics=%+v", m)
	}
}

func TestCapNotional(t *testing.T) {
	g := NewGuard(Config{MaxNotional: 100, MaxConsecutiveAborts: 3})
	tests := []struct {
		name      string
		requested float64
		want      float64
	}{
		{"within cap", 50, 50},
		{"above cap", 500, 100},
		{"zero falls back to cap", 0, 100},
		{"negative falls back to cap", -5, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.CapNotional(tt.requested); got != tt.want {
				t.Fatalf("CapNotional(%v)=%v, expected %v", tt.requested, got, tt.want)
			}
		})
	}
}
