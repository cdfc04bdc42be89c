package inventory

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-order-saga/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS inventory_items (
	product_id TEXT PRIMARY KEY,
	stock      INTEGER NOT NULL CHECK (stock >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps stock in the inventory_items table. The restock allow-list is
// configuration, not data.
type PostgresStore struct {
	DB      *pgxpool.Pool
	allowed map[string]struct{}
}

func NewPostgresStore(db *pgxpool.Pool, restockAllowed []string) *PostgresStore {
	return &PostgresStore{DB: db, allowed: allowSet(restockAllowed)}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, schema)
	return err
}

// Seed inserts missing products; existing stock levels are left alone.
func (s *PostgresStore) Seed(ctx context.Context, stock map[string]int) error {
	b := &pgx.Batch{}
	for id, qty := range stock {
		b.Queue(`INSERT INTO inventory_items(product_id, stock) VALUES ($1, $2) ON CONFLICT (product_id) DO NOTHING`, id, qty)
	}
	return s.DB.SendBatch(ctx, b).Close()
}

func (s *PostgresStore) Availability(ctx context.Context, items map[string]int) (map[string]bool, error) {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	rows, err := s.DB.Query(ctx, `SELECT product_id, stock FROM inventory_items WHERE product_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool, len(items))
	for id := range items {
		out[id] = false
	}
	for rows.Next() {
		var (
			id    string
			stock int
		)
		if err := rows.Scan(&id, &stock); err != nil {
			return nil, err
		}
		out[id] = stock >= items[id]
	}
	return out, rows.Err()
}

// Reserve locks each row, decrements what it can and commits the successful items even
// when others fail.
func (s *PostgresStore) Reserve(ctx context.Context, items map[string]int) (orders.ReservationResult, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return orders.ReservationResult{}, err
	}
	defer tx.Rollback(ctx)

	res := orders.ReservationResult{OverallSuccess: true, Results: make(map[string]orders.ItemStatus, len(items))}
	for id, qty := range items {
		var stock int
		err := tx.QueryRow(ctx, `SELECT stock FROM inventory_items WHERE product_id=$1 FOR UPDATE`, id).Scan(&stock)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && stock < qty) {
			res.OverallSuccess = false
			res.Results[id] = orders.ItemStatus{Success: false, Message: msgNotEnough}
			continue
		}
		if err != nil {
			return orders.ReservationResult{}, err
		}
		if _, err := tx.Exec(ctx, `UPDATE inventory_items SET stock = stock - $2, updated_at = now() WHERE product_id=$1`, id, qty); err != nil {
			return orders.ReservationResult{}, err
		}
		res.Results[id] = orders.ItemStatus{Success: true, Message: reservedMsg(qty)}
	}
	if err := tx.Commit(ctx); err != nil {
		return orders.ReservationResult{}, err
	}
	return res, nil
}

func (s *PostgresStore) Release(ctx context.Context, items map[string]int) (orders.ReleaseResult, error) {
	res := orders.ReleaseResult{OverallSuccess: true, Messages: make(map[string]string, len(items))}
	for id, qty := range items {
		if err := s.add(ctx, id, qty); err != nil {
			return orders.ReleaseResult{}, err
		}
		res.Messages[id] = releasedMsg(qty)
	}
	return res, nil
}

func (s *PostgresStore) Restock(ctx context.Context, items map[string]int) (orders.RestockResult, error) {
	res := orders.RestockResult{OverallSuccess: true, Results: make(map[string]orders.RestockStatus, len(items))}
	for id, qty := range items {
		if _, ok := s.allowed[id]; !ok {
			res.OverallSuccess = false
			res.Results[id] = orders.RestockStatus{Success: false, Message: msgRestockDenied}
			continue
		}
		added := restockAmount(qty)
		if err := s.add(ctx, id, added); err != nil {
			return orders.RestockResult{}, err
		}
		res.Results[id] = orders.RestockStatus{Success: true, Message: msgRestocked, Added: added}
	}
	return res, nil
}

// Stock returns the current level of one product.
func (s *PostgresStore) Stock(ctx context.Context, id string) (int, error) {
	var stock int
	err := s.DB.QueryRow(ctx, `SELECT stock FROM inventory_items WHERE product_id=$1`, id).Scan(&stock)
	return stock, err
}

func (s *PostgresStore) add(ctx context.Context, id string, qty int) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO inventory_items(product_id, stock) VALUES ($1, $2)
		ON CONFLICT (product_id) DO UPDATE SET stock = inventory_items.stock + EXCLUDED.stock, updated_at = now()
	`, id, qty)
	return err
}
