package router

import (
	"encoding/json"
	"fmt"
	"strconv"

	"triarb-core/internal/book"
)

// Envelope is the decoded, validated form of a combined-stream frame.
// Bids and Asks are ordered best-first and guaranteed non-empty; consumers
// may index level 0 without checking.
type Envelope struct {
	Stream   string
	UpdateID uint64
	Bids     []book.Quote
	Asks     []book.Quote
}

type rawEnvelope struct {
	Stream string `json:"stream"`
	Data   *struct {
		LastUpdateID *uint64     `json:"lastUpdateId"`
		Bids         [][2]string `json:"bids"`
		Asks         [][2]string `json:"asks"`
	} `json:"data"`
}

// ParseEnvelope decodes one frame and enforces the envelope contract:
// stream name present, updateId present, bids and asks non-empty with
// parseable price/quantity strings. Frames violating it are for dropping,
// not for crashing.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var re rawEnvelope
	if err := json.Unmarshal(raw, &re); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if re.Stream == "" {
		return Envelope{}, fmt.Errorf("frame missing stream name")
	}
	if re.Data == nil {
		return Envelope{}, fmt.Errorf("frame missing data object")
	}
	if re.Data.LastUpdateID == nil {
		return Envelope{}, fmt.Errorf("frame missing lastUpdateId")
	}
	bids, err := parseLevels(re.Data.Bids)
	if err != nil {
		return Envelope{}, fmt.Errorf("bids: %w", err)
	}
	asks, err := parseLevels(re.Data.Asks)
	if err != nil {
		return Envelope{}, fmt.Errorf("asks: %w", err)
	}
	return Envelope{
		Stream:   re.Stream,
		UpdateID: *re.Data.LastUpdateID,
		Bids:     bids,
		Asks:     asks,
	}, nil
}

func parseLevels(levels [][2]string) ([]book.Quote, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("empty side")
	}
	out := make([]book.Quote, 0, len(levels))
	for i, lvl := range levels {
		price, err := strconv.ParseFloat(lvl[0], 64)
		if err != nil {
			return nil, fmt.Errorf("level %d price %q: %w", i, lvl[0], err)
		}
		qty, err := strconv.ParseFloat(lvl[1], 64)
		if err != nil {
			return nil, fmt.Errorf("level %d qty %q: %w", i, lvl[1], err)
		}
		out = append(out, book.Quote{Price: price, Qty: qty})
	}
	return out, nil
}
