package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zwaldoo1/Cerveza-artesanal/internal/cart"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Postgres keeps snapshots in the cart_snapshots table, one row per user.
type Postgres struct {
	pool DBPool
}

func NewPostgres(pool DBPool) *Postgres {
	return &Postgres{pool: pool}
}

const getSnapshotSQL = `SELECT items, updated_at FROM cart_snapshots WHERE user_id = $1`

const putSnapshotSQL = `
INSERT INTO cart_snapshots (user_id, items, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (user_id) DO UPDATE
SET items = EXCLUDED.items, updated_at = now()
`

func (p *Postgres) Get(ctx context.Context, userID string) (*cart.RemoteSnapshot, error) {
	var (
		raw       []byte
		updatedAt time.Time
	)
	err := p.pool.QueryRow(ctx, getSnapshotSQL, userID).Scan(&raw, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select cart snapshot: %w", err)
	}
	if raw == nil {
		return nil, cart.ErrMalformedSnapshot
	}

	items, err := cart.DecodeItems(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cart.ErrMalformedSnapshot, err)
	}
	return &cart.RemoteSnapshot{Items: items, UpdatedAt: updatedAt}, nil
}

func (p *Postgres) Put(ctx context.Context, userID string, items []cart.Item) error {
	raw, err := cart.EncodeItems(items)
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, putSnapshotSQL, userID, raw); err != nil {
		return fmt.Errorf("upsert cart snapshot: %w", err)
	}
	return nil
}
