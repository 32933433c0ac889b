package router

import (
	"testing"

	"triarb-core/internal/book"
)

func frame(stream string, id uint64, bid, ask string) []byte {
	return []byte(`{"stream":"` + stream + `","data":{"lastUpdateId":` + itoa(id) +
		`,"bids":[["` + bid + `","1.5"]],"asks":[["` + ask + `","2.0"]]}}`)
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope(frame("btcusdt@depth5@100ms", 42, "50000.00", "50001.00"))
	if err != nil {
		t.Fatalf("ParseEnvelope returned error: %v", err)
	}
	if env.Stream != "btcusdt@depth5@100ms" {
		t.Fatalf("stream=%q", env.Stream)
	}
	if env.UpdateID != 42 {
		t.Fatalf("updateId=%d, expected 42", env.UpdateID)
	}
	if env.Bids[0].Price != 50000 || env.Bids[0].Qty != 1.5 {
		t.Fatalf("bid=%+v", env.Bids[0])
	}
	if env.Asks[0].Price != 50001 || env.Asks[0].Qty != 2.0 {
		t.Fatalf("ask=%+v", env.Asks[0])
	}
}

func TestParseEnvelopeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"missing stream", `{"data":{"lastUpdateId":1,"bids":[["1","1"]],"asks":[["2","1"]]}}`},
		{"missing data", `{"stream":"btcusdt@depth5@100ms"}`},
		{"missing lastUpdateId", `{"stream":"btcusdt@depth5@100ms","data":{"bids":[["1","1"]],"asks":[["2","1"]]}}`},
		{"missing bids", `{"stream":"btcusdt@depth5@100ms","data":{"lastUpdateId":1,"asks":[["2","1"]]}}`},
		{"empty asks", `{"stream":"btcusdt@depth5@100ms","data":{"lastUpdateId":1,"bids":[["1","1"]],"asks":[]}}`},
		{"bad price", `{"stream":"btcusdt@depth5@100ms","data":{"lastUpdateId":1,"bids":[["oops","1"]],"asks":[["2","1"]]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseEnvelope([]byte(tt.raw)); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}

func TestDispatchRoutesToMatchingBook(t *testing.T) {
	r := New(nil)
	btc := book.New("BTCUSDT")
	eth := book.New("ETHUSDT")
	r.Track("btcusdt@depth5@100ms", btc)
	r.Track("ethusdt@depth5@100ms", eth)

	env, err := ParseEnvelope(frame("btcusdt@depth5@100ms", 7, "50000.00", "50001.00"))
	if err != nil {
		t.Fatal(err)
	}
	b, adopted := r.Dispatch(env)
	if b != btc || !adopted {
		t.Fatalf("dispatch=(%v,%v), expected (btc,true)", b, adopted)
	}

	bid, _, seq := btc.Snapshot()
	if seq != 7 || bid.Price != 50000 {
		t.Fatalf("btc book seq=%d bid=%v", seq, bid.Price)
	}
	if _, _, seq := eth.Snapshot(); seq != 0 {
		t.Fatal("eth book should be untouched")
	}
}

func TestDispatchIgnoresUnknownStream(t *testing.T) {
	r := New(nil)
	btc := book.New("BTCUSDT")
	r.Track("btcusdt@depth5@100ms", btc)

	env, err := ParseEnvelope(frame("dogeusdt@depth5@100ms", 9, "0.10", "0.11"))
	if err != nil {
		t.Fatal(err)
	}
	if b, adopted := r.Dispatch(env); b != nil || adopted {
		t.Fatalf("unknown stream routed: (%v,%v)", b, adopted)
	}
	if _, _, seq := btc.Snapshot(); seq != 0 {
		t.Fatal("tracked book mutated by unknown stream")
	}
}

func TestReadyRequiresAllStreams(t *testing.T) {
	r := New(nil)
	r.Track("btcusdt@depth5@100ms", book.New("BTCUSDT"))
	r.Track("ethbtc@depth5@100ms", book.New("ETHBTC"))

	if r.Ready() {
		t.Fatal("ready before any data")
	}

	env, _ := ParseEnvelope(frame("btcusdt@depth5@100ms", 1, "50000.00", "50001.00"))
	r.Dispatch(env)
	if r.Ready() {
		t.Fatal("ready with one of two streams")
	}

	env, _ = ParseEnvelope(frame("ethbtc@depth5@100ms", 1, "0.0500", "0.0501"))
	r.Dispatch(env)
	if !r.Ready() {
		t.Fatal("not ready after all streams delivered")
	}
}

// A stale envelope still marks the stream as seen but leaves the book alone.
func TestDispatchStaleUpdate(t *testing.T) {
	r := New(nil)
	btc := book.New("BTCUSDT")
	r.Track("btcusdt@depth5@100ms", btc)

	env, _ := ParseEnvelope(frame("btcusdt@depth5@100ms", 10, "50000.00", "50001.00"))
	r.Dispatch(env)

	stale, _ := ParseEnvelope(frame("btcusdt@depth5@100ms", 5, "49000.00", "49001.00"))
	if _, adopted := r.Dispatch(stale); adopted {
		t.Fatal("stale update adopted")
	}
	bid, _, seq := btc.Snapshot()
	if seq != 10 || bid.Price != 50000 {
		t.Fatalf("book changed by stale update: seq=%d bid=%v", seq, bid.Price)
	}
}
