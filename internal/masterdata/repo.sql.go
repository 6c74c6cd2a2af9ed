package masterdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukahub/dukahub/internal/shared"
)

// Repository persists master data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// --- locations ---

func (r *Repository) CreateLocation(ctx context.Context, loc Location) (Location, error) {
	now := time.Now().UTC()
	loc.CreatedAt, loc.UpdatedAt = now, now
	err := r.pool.QueryRow(ctx, `INSERT INTO locations (name, kind, address, is_active, created_at, updated_at)
VALUES ($1, $2, NULLIF($3,''), $4, $5, $5) RETURNING id`,
		loc.Name, loc.Kind, loc.Address, loc.Active, now).Scan(&loc.ID)
	return loc, err
}

func (r *Repository) UpdateLocation(ctx context.Context, loc Location) error {
	tag, err := r.pool.Exec(ctx, `UPDATE locations SET name=$2, kind=$3, address=NULLIF($4,''), updated_at=NOW()
WHERE id=$1`, loc.ID, loc.Name, loc.Kind, loc.Address)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("location %d: %w", loc.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *Repository) GetLocation(ctx context.Context, id int64) (Location, error) {
	var loc Location
	err := r.pool.QueryRow(ctx, `SELECT id, name, kind, COALESCE(address,''), is_active, created_at, updated_at
FROM locations WHERE id=$1`, id).
		Scan(&loc.ID, &loc.Name, &loc.Kind, &loc.Address, &loc.Active, &loc.CreatedAt, &loc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, fmt.Errorf("location %d: %w", id, shared.ErrNotFound)
	}
	return loc, err
}

func (r *Repository) ListLocations(ctx context.Context, activeOnly bool) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, kind, COALESCE(address,''), is_active, created_at, updated_at
FROM locations WHERE (NOT $1 OR is_active) ORDER BY name`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Kind, &loc.Address, &loc.Active, &loc.CreatedAt, &loc.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

func (r *Repository) SetLocationActive(ctx context.Context, id int64, active bool) error {
	return r.setActive(ctx, "locations", "location", id, active)
}

func (r *Repository) LocationStockOnHand(ctx context.Context, id int64) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM stock_positions
WHERE location_id=$1`, id).Scan(&total)
	return total, err
}

// --- pricing tiers ---

func (r *Repository) CreateTier(ctx context.Context, tier PricingTier) (PricingTier, error) {
	tier.CreatedAt = time.Now().UTC()
	err := r.pool.QueryRow(ctx, `INSERT INTO pricing_tiers (name, discount_pct, created_at)
VALUES ($1, $2, $3) RETURNING id`, tier.Name, tier.DiscountPct, tier.CreatedAt).Scan(&tier.ID)
	return tier, err
}

func (r *Repository) ListTiers(ctx context.Context) ([]PricingTier, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, discount_pct, created_at FROM pricing_tiers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PricingTier
	for rows.Next() {
		var tier PricingTier
		if err := rows.Scan(&tier.ID, &tier.Name, &tier.DiscountPct, &tier.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, tier)
	}
	return out, rows.Err()
}

func (r *Repository) GetTier(ctx context.Context, id int64) (PricingTier, error) {
	var tier PricingTier
	err := r.pool.QueryRow(ctx, `SELECT id, name, discount_pct, created_at FROM pricing_tiers WHERE id=$1`, id).
		Scan(&tier.ID, &tier.Name, &tier.DiscountPct, &tier.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PricingTier{}, fmt.Errorf("pricing tier %d: %w", id, shared.ErrNotFound)
	}
	return tier, err
}

// --- customers ---

const customerColumns = `id, name, COALESCE(phone,''), COALESCE(email,''), credit_limit,
current_balance, pricing_tier_id, is_active, created_at, updated_at`

func (r *Repository) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	err := r.pool.QueryRow(ctx, `INSERT INTO customers
(name, phone, email, credit_limit, current_balance, pricing_tier_id, is_active, created_at, updated_at)
VALUES ($1, NULLIF($2,''), NULLIF($3,''), $4, $5, $6, $7, $8, $8) RETURNING id`,
		c.Name, c.Phone, c.Email, c.CreditLimit, c.CurrentBalance, c.TierID, c.Active, now).Scan(&c.ID)
	return c, err
}

func (r *Repository) UpdateCustomer(ctx context.Context, c Customer) error {
	tag, err := r.pool.Exec(ctx, `UPDATE customers
SET name=$2, phone=NULLIF($3,''), email=NULLIF($4,''), credit_limit=$5, pricing_tier_id=$6, updated_at=NOW()
WHERE id=$1`, c.ID, c.Name, c.Phone, c.Email, c.CreditLimit, c.TierID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %d: %w", c.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *Repository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
	}
	return c, err
}

func (r *Repository) ListCustomers(ctx context.Context, activeOnly bool) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers
WHERE (NOT $1 OR is_active) ORDER BY name`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) SetCustomerActive(ctx context.Context, id int64, active bool) error {
	return r.setActive(ctx, "customers", "customer", id, active)
}

// --- suppliers ---

const supplierColumns = `id, name, COALESCE(phone,''), COALESCE(email,''), payment_terms_days,
is_active, created_at, updated_at`

func (r *Repository) CreateSupplier(ctx context.Context, s Supplier) (Supplier, error) {
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	err := r.pool.QueryRow(ctx, `INSERT INTO suppliers
(name, phone, email, payment_terms_days, is_active, created_at, updated_at)
VALUES ($1, NULLIF($2,''), NULLIF($3,''), $4, $5, $6, $6) RETURNING id`,
		s.Name, s.Phone, s.Email, s.PaymentTermsDays, s.Active, now).Scan(&s.ID)
	return s, err
}

func (r *Repository) UpdateSupplier(ctx context.Context, s Supplier) error {
	tag, err := r.pool.Exec(ctx, `UPDATE suppliers
SET name=$2, phone=NULLIF($3,''), email=NULLIF($4,''), payment_terms_days=$5, updated_at=NOW()
WHERE id=$1`, s.ID, s.Name, s.Phone, s.Email, s.PaymentTermsDays)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("supplier %d: %w", s.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	var s Supplier
	err := r.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &s.Phone, &s.Email, &s.PaymentTermsDays, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, fmt.Errorf("supplier %d: %w", id, shared.ErrNotFound)
	}
	return s, err
}

func (r *Repository) ListSuppliers(ctx context.Context, activeOnly bool) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+supplierColumns+` FROM suppliers
WHERE (NOT $1 OR is_active) ORDER BY name`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.Phone, &s.Email, &s.PaymentTermsDays,
			&s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) SetSupplierActive(ctx context.Context, id int64, active bool) error {
	return r.setActive(ctx, "suppliers", "supplier", id, active)
}

// --- products and variants ---

func (r *Repository) CreateProductCategory(ctx context.Context, name string) (ProductCategory, error) {
	cat := ProductCategory{Name: name, CreatedAt: time.Now().UTC()}
	err := r.pool.QueryRow(ctx, `INSERT INTO product_categories (name, created_at)
VALUES ($1, $2) RETURNING id`, cat.Name, cat.CreatedAt).Scan(&cat.ID)
	return cat, err
}

func (r *Repository) ListProductCategories(ctx context.Context) ([]ProductCategory, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM product_categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ProductCategory
	for rows.Next() {
		var cat ProductCategory
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, rows.Err()
}

func (r *Repository) CreateProduct(ctx context.Context, p Product) (Product, error) {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	err := r.pool.QueryRow(ctx, `INSERT INTO products
(category_id, name, description, is_active, created_at, updated_at)
VALUES ($1, $2, NULLIF($3,''), $4, $5, $5) RETURNING id`,
		p.CategoryID, p.Name, p.Description, p.Active, now).Scan(&p.ID)
	return p, err
}

func (r *Repository) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products
SET category_id=$2, name=$3, description=NULLIF($4,''), updated_at=NOW() WHERE id=$1`,
		p.ID, p.CategoryID, p.Name, p.Description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", p.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, []Variant, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, category_id, name, COALESCE(description,''), is_active, created_at, updated_at
FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, nil, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Product{}, nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+variantColumns+` FROM product_variants
WHERE product_id=$1 ORDER BY id`, id)
	if err != nil {
		return Product{}, nil, err
	}
	defer rows.Close()
	var variants []Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return Product{}, nil, err
		}
		variants = append(variants, v)
	}
	return p, variants, rows.Err()
}

func (r *Repository) ListProducts(ctx context.Context, activeOnly bool) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, category_id, name, COALESCE(description,''), is_active, created_at, updated_at
FROM products WHERE (NOT $1 OR is_active) ORDER BY name`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const variantColumns = `id, product_id, sku, COALESCE(name,''), cost_price, selling_price,
is_active, created_at, updated_at`

func (r *Repository) CreateVariant(ctx context.Context, v Variant) (Variant, error) {
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now
	err := r.pool.QueryRow(ctx, `INSERT INTO product_variants
(product_id, sku, name, cost_price, selling_price, is_active, created_at, updated_at)
VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, $7, $7) RETURNING id`,
		v.ProductID, v.SKU, v.Name, v.CostPrice, v.SellingPrice, v.Active, now).Scan(&v.ID)
	return v, err
}

func (r *Repository) UpdateVariant(ctx context.Context, v Variant) error {
	tag, err := r.pool.Exec(ctx, `UPDATE product_variants
SET sku=$2, name=NULLIF($3,''), cost_price=$4, selling_price=$5, updated_at=NOW() WHERE id=$1`,
		v.ID, v.SKU, v.Name, v.CostPrice, v.SellingPrice)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("variant %d: %w", v.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *Repository) GetVariant(ctx context.Context, id int64) (Variant, error) {
	v, err := scanVariant(r.pool.QueryRow(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Variant{}, fmt.Errorf("variant %d: %w", id, shared.ErrNotFound)
	}
	return v, err
}

func (r *Repository) SetVariantActive(ctx context.Context, id int64, active bool) error {
	return r.setActive(ctx, "product_variants", "variant", id, active)
}

func (r *Repository) VariantStockOnHand(ctx context.Context, id int64) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM stock_positions
WHERE variant_id=$1`, id).Scan(&total)
	return total, err
}

func (r *Repository) setActive(ctx context.Context, table, label string, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET is_active=$2, updated_at=NOW() WHERE id=$1`, table), id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %d: %w", label, id, shared.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.CreditLimit, &c.CurrentBalance,
		&c.TierID, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanVariant(row rowScanner) (Variant, error) {
	var v Variant
	err := row.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Name, &v.CostPrice, &v.SellingPrice,
		&v.Active, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}
