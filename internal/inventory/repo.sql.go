package inventory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukahub/dukahub/internal/shared"
)

// Repository reads positions from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListPositions joins positions with catalog and location names. Low stock
// means quantity at or below the position's min level.
func (r *Repository) ListPositions(ctx context.Context, filter PositionFilter) ([]PositionView, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT sp.variant_id, pv.sku, p.name, sp.location_id, l.name,
sp.quantity, sp.min_level, sp.max_level,
(sp.min_level IS NOT NULL AND sp.quantity <= sp.min_level) AS low_stock, sp.updated_at
FROM stock_positions sp
JOIN product_variants pv ON pv.id = sp.variant_id
JOIN products p ON p.id = pv.product_id
JOIN locations l ON l.id = sp.location_id
WHERE ($1 = 0 OR sp.location_id = $1)
  AND ($2 = 0 OR sp.variant_id = $2)
  AND (NOT $3 OR (sp.min_level IS NOT NULL AND sp.quantity <= sp.min_level))
ORDER BY p.name, pv.sku, l.name
LIMIT $4`, filter.LocationID, filter.VariantID, filter.LowStockOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PositionView
	for rows.Next() {
		var v PositionView
		if err := rows.Scan(&v.VariantID, &v.SKU, &v.ProductName, &v.LocationID, &v.LocationName,
			&v.Quantity, &v.MinLevel, &v.MaxLevel, &v.LowStock, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateThresholds writes reorder levels; the position row must exist, which
// it does once any transaction has touched the variant at the location.
func (r *Repository) UpdateThresholds(ctx context.Context, input ThresholdInput) error {
	tag, err := r.pool.Exec(ctx, `UPDATE stock_positions
SET min_level=$3, max_level=$4, updated_at=NOW()
WHERE variant_id=$1 AND location_id=$2`,
		input.VariantID, input.LocationID, input.MinLevel, input.MaxLevel)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position for variant %d at location %d: %w",
			input.VariantID, input.LocationID, shared.ErrNotFound)
	}
	return nil
}

// CountLowStock counts positions at or below their minimum level.
func (r *Repository) CountLowStock(ctx context.Context, locationID int64) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_positions
WHERE min_level IS NOT NULL AND quantity <= min_level
  AND ($1 = 0 OR location_id = $1)`, locationID).Scan(&n)
	return n, err
}
