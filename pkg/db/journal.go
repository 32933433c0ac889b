package db

import (
	"context"
	"database/sql"
	"time"
)

// Chain statuses recorded in the journal.
const (
	ChainRunning   = "RUNNING"
	ChainCompleted = "COMPLETED"
	ChainAborted   = "ABORTED"
)

// Chain represents one triggered arbitrage chain.
type Chain struct {
	ID         string
	Edge       float64
	Notional   float64
	Status     string
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

// Order represents one leg order stored in the journal.
type Order struct {
	ID        string
	ChainID   string
	Leg       int
	Symbol    string
	Side      string
	Price     float64
	Qty       float64
	FilledQty float64
	Status    string
	CreatedAt time.Time
}

// Fill represents an execution against a leg order.
type Fill struct {
	ID        string
	OrderID   string
	Symbol    string
	Side      string
	Price     float64
	Qty       float64
	CreatedAt time.Time
}

// CreateChain inserts a new chain row in RUNNING state.
func (d *Database) CreateChain(ctx context.Context, c Chain) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO chains (id, edge, notional, status, started_at)
		VALUES (?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`, c.ID, c.Edge, c.Notional, c.Status, c.StartedAt)
	return err
}

// FinishChain records the terminal status of a chain.
func (d *Database) FinishChain(ctx context.Context, id, status string) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE chains SET status = ?, finished_at = CURRENT_TIMESTAMP WHERE id = ?
	`, status, id)
	return err
}

// CreateOrder inserts a new leg order row.
func (d *Database) CreateOrder(ctx context.Context, o Order) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO orders (id, chain_id, leg, symbol, side, price, qty, filled_qty, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`, o.ID, o.ChainID, o.Leg, o.Symbol, o.Side, o.Price, o.Qty, o.FilledQty, o.Status, o.CreatedAt)
	return err
}

// UpdateOrderFill sets status and filled totals once the leg resolves.
func (d *Database) UpdateOrderFill(ctx context.Context, id, status string, filledQty, price float64) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE orders SET status = ?, filled_qty = ?, price = ? WHERE id = ?
	`, status, filledQty, price, id)
	return err
}

// CreateFill inserts a fill row.
func (d *Database) CreateFill(ctx context.Context, f Fill) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO fills (id, order_id, symbol, side, price, qty, created_at)
		VALUES (?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`, f.ID, f.OrderID, f.Symbol, f.Side, f.Price, f.Qty, f.CreatedAt)
	return err
}

// GetChain returns one chain by id.
func (d *Database) GetChain(ctx context.Context, id string) (*Chain, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT id, edge, notional, status, started_at, finished_at
		FROM chains WHERE id = ?
	`, id)
	var c Chain
	if err := row.Scan(&c.ID, &c.Edge, &c.Notional, &c.Status, &c.StartedAt, &c.FinishedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListRecentChains returns the latest chains, newest first.
func (d *Database) ListRecentChains(ctx context.Context, limit int) ([]Chain, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, edge, notional, status, started_at, finished_at
		FROM chains ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Chain
	for rows.Next() {
		var c Chain
		if err := rows.Scan(&c.ID, &c.Edge, &c.Notional, &c.Status, &c.StartedAt, &c.FinishedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// ListOrdersByChain returns a chain's leg orders in leg order.
func (d *Database) ListOrdersByChain(ctx context.Context, chainID string) ([]Order, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, COALESCE(chain_id, ''), leg, symbol, side, price, qty, filled_qty, status, created_at
		FROM orders WHERE chain_id = ? ORDER BY leg ASC
	`, chainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.ChainID, &o.Leg, &o.Symbol, &o.Side, &o.Price, &o.Qty, &o.FilledQty, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// ListRecentOrders returns the latest leg orders, newest first.
func (d *Database) ListRecentOrders(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, COALESCE(chain_id, ''), leg, symbol, side, price, qty, filled_qty, status, created_at
		FROM orders ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.ChainID, &o.Leg, &o.Symbol, &o.Side, &o.Price, &o.Qty, &o.FilledQty, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}
