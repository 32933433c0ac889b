package arb

import (
	"fmt"
	"log"

	"triarb-core/internal/book"
)

// printer logs top-of-book changes, one line per symbol, suppressing
// repeats. All of its state lives here; it is owned by a single Bot and is
// only touched from the frame handler.
type printer struct {
	precision map[string]int
	last      map[string]printed
}

type printed struct {
	bid book.Quote
	ask book.Quote
}

func newPrinter(precision map[string]int) *printer {
	return &printer{
		precision: precision,
		last:      make(map[string]printed),
	}
}

// observe prints the book's current top when it differs from the last line
// printed for that symbol.
func (p *printer) observe(b *book.Book) {
	bid, ask, _ := b.Snapshot()
	sym := b.Symbol()
	cur := printed{bid: bid, ask: ask}
	if prev, ok := p.last[sym]; ok && prev == cur {
		return
	}
	p.last[sym] = cur

	prec := p.precision[sym]
	if prec == 0 {
		prec = 2
	}
	format := fmt.Sprintf("market: %%s bid %%.%[1]df x %%.6f | ask %%.%[1]df x %%.6f", prec)
	log.Printf(format, sym, bid.Price, bid.Qty, ask.Price, ask.Qty)
}
