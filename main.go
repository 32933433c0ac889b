package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"triarb-core/internal/api"
	"triarb-core/internal/arb"
	"triarb-core/internal/book"
	"triarb-core/internal/events"
	"triarb-core/internal/execution"
	"triarb-core/internal/risk"
	"triarb-core/internal/router"
	"triarb-core/internal/scanner"
	"triarb-core/internal/stream"
	"triarb-core/internal/triangle"
	"triarb-core/pkg/config"
	"triarb-core/pkg/db"
	"triarb-core/pkg/exchanges/binance/spot"
	exchange "triarb-core/pkg/exchanges/common"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: %v", err)
	}

	triCfg, err := triangle.Load(cfg.TrianglePath)
	if err != nil {
		log.Fatalf("main: triangle config: %v", err)
	}
	tri := triCfg.Triangle

	journal, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("main: open journal: %v", err)
	}
	defer journal.Close()
	if err := db.ApplyMigrations(journal); err != nil {
		log.Fatalf("main: migrations: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	baseQuote, bridgeBase, bridgeQuote := arb.Books(tri)

	r := router.New(bus)
	r.Track(tri.StreamName(tri.BaseQuote), baseQuote)
	r.Track(tri.StreamName(tri.BridgeBase), bridgeBase)
	r.Track(tri.StreamName(tri.BridgeQuote), bridgeQuote)

	sc := scanner.New(triCfg, baseQuote, bridgeBase, bridgeQuote, r.Ready)
	guard := risk.NewGuard(risk.Config{MaxNotional: cfg.MaxNotional})

	mode := execution.ModeDryRun
	modeName := "dry-run"
	var venue exchange.Gateway
	if cfg.LiveTrading {
		mode = execution.ModeLive
		modeName = "live"
		client := spot.New(spot.Config{
			APIKey:    cfg.BinanceAPIKey,
			APISecret: cfg.BinanceAPISecret,
			Testnet:   cfg.Testnet,
		})
		client.TimeSync().Start(ctx)
		venue = client
	}
	log.Printf("main: mode=%s triangle=%v notional=%.2f", modeName, tri.Symbols(), cfg.MaxNotional)

	exec := execution.New(execution.Config{
		Mode:     mode,
		Venue:    venue,
		Triangle: tri,
		Books: execution.Books{
			BaseQuote:   baseQuote,
			BridgeBase:  bridgeBase,
			BridgeQuote: bridgeQuote,
		},
		MaxNotional: cfg.MaxNotional,
		Bus:         bus,
		Journal:     journal,
		Guard:       guard,
	})

	bot := arb.New(arb.Config{
		Triangle: tri,
		Router:   r,
		Scanner:  sc,
		Exec:     exec,
		Bus:      bus,
	})

	transport := stream.NewTransport(stream.Config{
		Host:            cfg.StreamHost,
		Port:            cfg.StreamPort,
		Target:          tri.StreamTarget(),
		ReadIdleTimeout: cfg.ReadIdleTimeout,
	})

	server := api.NewServer(api.Config{
		Bus:     bus,
		Journal: journal,
		Books:   []*book.Book{baseQuote, bridgeBase, bridgeQuote},
		Scanner: sc,
		Guard:   guard,
		Meta: api.Meta{
			Mode:      modeName,
			Symbols:   tri.Symbols(),
			StartedAt: time.Now(),
		},
		FeedState: func() string { return transport.State().String() },
	})

	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: server.Router}
	go func() {
		log.Printf("main: status API listening on :%s", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("main: status API: %v", err)
		}
	}()

	feedErr := make(chan error, 1)
	go func() {
		feedErr <- transport.Run(ctx, bot.OnFrame(ctx))
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("main: received %v, shutting down", sig)
	case err := <-feedErr:
		// No automatic reconnect: a dead feed means stale quotes, and
		// trading on stale quotes is worse than not trading.
		log.Printf("main: market feed terminated: %v", err)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("main: status API shutdown: %v", err)
	}
}
