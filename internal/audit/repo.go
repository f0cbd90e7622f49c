package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Entry is one row of the order audit trail.
type Entry struct {
	EventID    string
	EventType  string
	UserID     string
	OrderID    int64
	Total      decimal.Decimal
	ItemCount  int
	OccurredAt time.Time
}

type Repo interface {
	// Record stores e once per event id. It reports false for a replay.
	Record(ctx context.Context, e Entry) (bool, error)
}

type PostgresRepo struct{ DB *pgxpool.Pool }

func (r *PostgresRepo) Record(ctx context.Context, e Entry) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO order_audit(event_id, event_type, user_id, order_id, total, item_count, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, e.EventType, e.UserID, e.OrderID, e.Total.StringFixed(2), e.ItemCount, e.OccurredAt)
	if err != nil {
		return false, fmt.Errorf("insert audit: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}
