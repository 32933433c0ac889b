// Package api exposes a read-only status surface over HTTP: current books,
// last edge, chain and order history, and a websocket feed of book updates.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"triarb-core/internal/book"
	"triarb-core/internal/events"
	"triarb-core/internal/risk"
	"triarb-core/internal/scanner"
	"triarb-core/pkg/db"
)

// Meta is static process information reported by /api/status.
type Meta struct {
	Mode      string
	Symbols   []string
	StartedAt time.Time
}

// Server serves the status API. All endpoints are read-only; trading is
// driven exclusively by the market feed.
type Server struct {
	Router  *gin.Engine
	bus     *events.Bus
	journal *db.Database
	books   []*book.Book
	scanner *scanner.Scanner
	guard   *risk.Guard
	meta    Meta

	// FeedState reports the transport phase for /api/status; optional.
	FeedState func() string
}

// Config wires a Server. Journal, Guard, and Bus may be nil; the
// corresponding endpoints degrade instead of failing.
type Config struct {
	Bus       *events.Bus
	Journal   *db.Database
	Books     []*book.Book
	Scanner   *scanner.Scanner
	Guard     *risk.Guard
	Meta      Meta
	FeedState func() string
}

func NewServer(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		Router:    gin.New(),
		bus:       cfg.Bus,
		journal:   cfg.Journal,
		books:     cfg.Books,
		scanner:   cfg.Scanner,
		guard:     cfg.Guard,
		meta:      cfg.Meta,
		FeedState: cfg.FeedState,
	}

	limiter := rate.NewLimiter(rate.Limit(50), 100)
	s.Router.Use(gin.Recovery(), RequestID(), RequestLogger(), RateLimit(limiter), CORS())

	s.Router.GET("/health", s.handleHealth)
	s.Router.GET("/ws", s.handleWebsocket)

	apiGroup := s.Router.Group("/api")
	{
		apiGroup.GET("/status", s.handleStatus)
		apiGroup.GET("/books", s.handleBooks)
		apiGroup.GET("/edge", s.handleEdge)
		apiGroup.GET("/chains", s.handleChains)
		apiGroup.GET("/chains/:id", s.handleChain)
		apiGroup.GET("/orders", s.handleOrders)
	}
	return s
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := gin.H{
		"mode":       s.meta.Mode,
		"symbols":    s.meta.Symbols,
		"uptime_sec": int(time.Since(s.meta.StartedAt).Seconds()),
	}
	if s.FeedState != nil {
		resp["feed"] = s.FeedState()
	}
	if s.guard != nil {
		m := s.guard.GetMetrics()
		resp["chains_fired"] = m.ChainsFired
		resp["chains_completed"] = m.ChainsCompleted
		resp["chains_aborted"] = m.ChainsAborted
		resp["halted"] = m.Halted
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleBooks(c *gin.Context) {
	out := make([]gin.H, 0, len(s.books))
	for _, b := range s.books {
		bid, ask, seq := b.Snapshot()
		out = append(out, gin.H{
			"symbol":    b.Symbol(),
			"sequence":  seq,
			"bid_price": bid.Price,
			"bid_qty":   bid.Qty,
			"ask_price": ask.Price,
			"ask_qty":   ask.Qty,
		})
	}
	c.JSON(http.StatusOK, gin.H{"books": out})
}

func (s *Server) handleEdge(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"edge":      s.scanner.LastEdge(),
		"threshold": s.scanner.Threshold(),
	})
}

func (s *Server) handleChains(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusOK, gin.H{"chains": []any{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	chains, err := s.journal.ListRecentChains(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chains": chainViews(chains)})
}

func (s *Server) handleChain(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}
	id := c.Param("id")
	chain, err := s.journal.GetChain(c.Request.Context(), id)
	if err == db.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "chain not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	orders, err := s.journal.ListOrdersByChain(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	view := chainView(*chain)
	view["orders"] = orderViews(orders)
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleOrders(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusOK, gin.H{"orders": []any{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	orders, err := s.journal.ListRecentOrders(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orderViews(orders)})
}

func chainView(ch db.Chain) gin.H {
	v := gin.H{
		"id":         ch.ID,
		"edge":       ch.Edge,
		"notional":   ch.Notional,
		"status":     ch.Status,
		"started_at": ch.StartedAt,
	}
	if ch.FinishedAt.Valid {
		v["finished_at"] = ch.FinishedAt.Time
	}
	return v
}

func chainViews(chains []db.Chain) []gin.H {
	out := make([]gin.H, 0, len(chains))
	for _, ch := range chains {
		out = append(out, chainView(ch))
	}
	return out
}

func orderViews(orders []db.Order) []gin.H {
	out := make([]gin.H, 0, len(orders))
	for _, o := range orders {
		out = append(out, gin.H{
			"id":         o.ID,
			"chain_id":   o.ChainID,
			"leg":        o.Leg,
			"symbol":     o.Symbol,
			"side":       o.Side,
			"price":      o.Price,
			"qty":        o.Qty,
			"filled_qty": o.FilledQty,
			"status":     o.Status,
			"created_at": o.CreatedAt,
		})
	}
	return out
}
