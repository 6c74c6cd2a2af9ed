package masterdata

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dukahub/dukahub/internal/shared"
)

// memRepo implements RepositoryPort for the entities under test.
type memRepo struct {
	locations map[int64]*Location
	tiers     map[int64]PricingTier
	customers map[int64]*Customer
	suppliers map[int64]*Supplier
	products  map[int64]*Product
	variants  map[int64]*Variant
	stock     map[int64]int64 // by location
	varStock  map[int64]int64 // by variant
	nextID    int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		locations: map[int64]*Location{},
		tiers:     map[int64]PricingTier{},
		customers: map[int64]*Customer{},
		suppliers: map[int64]*Supplier{},
		products:  map[int64]*Product{},
		variants:  map[int64]*Variant{},
		stock:     map[int64]int64{},
		varStock:  map[int64]int64{},
	}
}

func (m *memRepo) id() int64 { m.nextID++; return m.nextID }

func (m *memRepo) CreateLocation(_ context.Context, loc Location) (Location, error) {
	loc.ID = m.id()
	m.locations[loc.ID] = &loc
	return loc, nil
}

func (m *memRepo) UpdateLocation(_ context.Context, loc Location) error {
	if _, ok := m.locations[loc.ID]; !ok {
		return fmt.Errorf("location %d: %w", loc.ID, shared.ErrNotFound)
	}
	m.locations[loc.ID] = &loc
	return nil
}

func (m *memRepo) GetLocation(_ context.Context, id int64) (Location, error) {
	loc, ok := m.locations[id]
	if !ok {
		return Location{}, fmt.Errorf("location %d: %w", id, shared.ErrNotFound)
	}
	return *loc, nil
}

func (m *memRepo) ListLocations(_ context.Context, activeOnly bool) ([]Location, error) {
	var out []Location
	for _, loc := range m.locations {
		if activeOnly && !loc.Active {
			continue
		}
		out = append(out, *loc)
	}
	return out, nil
}

func (m *memRepo) SetLocationActive(_ context.Context, id int64, active bool) error {
	loc, ok := m.locations[id]
	if !ok {
		return fmt.Errorf("location %d: %w", id, shared.ErrNotFound)
	}
	loc.Active = active
	return nil
}

func (m *memRepo) LocationStockOnHand(_ context.Context, id int64) (int64, error) {
	return m.stock[id], nil
}

func (m *memRepo) CreateTier(_ context.Context, tier PricingTier) (PricingTier, error) {
	tier.ID = m.id()
	m.tiers[tier.ID] = tier
	return tier, nil
}

func (m *memRepo) ListTiers(_ context.Context) ([]PricingTier, error) {
	var out []PricingTier
	for _, tier := range m.tiers {
		out = append(out, tier)
	}
	return out, nil
}

func (m *memRepo) GetTier(_ context.Context, id int64) (PricingTier, error) {
	tier, ok := m.tiers[id]
	if !ok {
		return PricingTier{}, fmt.Errorf("pricing tier %d: %w", id, shared.ErrNotFound)
	}
	return tier, nil
}

func (m *memRepo) CreateCustomer(_ context.Context, c Customer) (Customer, error) {
	c.ID = m.id()
	m.customers[c.ID] = &c
	return c, nil
}

func (m *memRepo) UpdateCustomer(_ context.Context, c Customer) error {
	if _, ok := m.customers[c.ID]; !ok {
		return fmt.Errorf("customer %d: %w", c.ID, shared.ErrNotFound)
	}
	m.customers[c.ID] = &c
	return nil
}

func (m *memRepo) GetCustomer(_ context.Context, id int64) (Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return Customer{}, fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
	}
	return *c, nil
}

func (m *memRepo) ListCustomers(_ context.Context, activeOnly bool) ([]Customer, error) {
	var out []Customer
	for _, c := range m.customers {
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *memRepo) SetCustomerActive(_ context.Context, id int64, active bool) error {
	c, ok := m.customers[id]
	if !ok {
		return fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
	}
	c.Active = active
	return nil
}

func (m *memRepo) CreateSupplier(_ context.Context, s Supplier) (Supplier, error) {
	s.ID = m.id()
	m.suppliers[s.ID] = &s
	return s, nil
}

func (m *memRepo) UpdateSupplier(_ context.Context, s Supplier) error {
	if _, ok := m.suppliers[s.ID]; !ok {
		return fmt.Errorf("supplier %d: %w", s.ID, shared.ErrNotFound)
	}
	m.suppliers[s.ID] = &s
	return nil
}

func (m *memRepo) GetSupplier(_ context.Context, id int64) (Supplier, error) {
	s, ok := m.suppliers[id]
	if !ok {
		return Supplier{}, fmt.Errorf("supplier %d: %w", id, shared.ErrNotFound)
	}
	return *s, nil
}

func (m *memRepo) ListSuppliers(_ context.Context, activeOnly bool) ([]Supplier, error) {
	var out []Supplier
	for _, s := range m.suppliers {
		if activeOnly && !s.Active {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (m *memRepo) SetSupplierActive(_ context.Context, id int64, active bool) error {
	s, ok := m.suppliers[id]
	if !ok {
		return fmt.Errorf("supplier %d: %w", id, shared.ErrNotFound)
	}
	s.Active = active
	return nil
}

func (m *memRepo) CreateProductCategory(_ context.Context, name string) (ProductCategory, error) {
	return ProductCategory{ID: m.id(), Name: name}, nil
}

func (m *memRepo) ListProductCategories(_ context.Context) ([]ProductCategory, error) {
	return nil, nil
}

func (m *memRepo) CreateProduct(_ context.Context, p Product) (Product, error) {
	p.ID = m.id()
	m.products[p.ID] = &p
	return p, nil
}

func (m *memRepo) UpdateProduct(_ context.Context, p Product) error {
	if _, ok := m.products[p.ID]; !ok {
		return fmt.Errorf("product %d: %w", p.ID, shared.ErrNotFound)
	}
	m.products[p.ID] = &p
	return nil
}

func (m *memRepo) GetProduct(_ context.Context, id int64) (Product, []Variant, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, nil, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	var variants []Variant
	for _, v := range m.variants {
		if v.ProductID == id {
			variants = append(variants, *v)
		}
	}
	return *p, variants, nil
}

func (m *memRepo) ListProducts(_ context.Context, activeOnly bool) ([]Product, error) {
	var out []Product
	for _, p := range m.products {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *memRepo) CreateVariant(_ context.Context, v Variant) (Variant, error) {
	v.ID = m.id()
	m.variants[v.ID] = &v
	return v, nil
}

func (m *memRepo) UpdateVariant(_ context.Context, v Variant) error {
	if _, ok := m.variants[v.ID]; !ok {
		return fmt.Errorf("variant %d: %w", v.ID, shared.ErrNotFound)
	}
	m.variants[v.ID] = &v
	return nil
}

func (m *memRepo) GetVariant(_ context.Context, id int64) (Variant, error) {
	v, ok := m.variants[id]
	if !ok {
		return Variant{}, fmt.Errorf("variant %d: %w", id, shared.ErrNotFound)
	}
	return *v, nil
}

func (m *memRepo) SetVariantActive(_ context.Context, id int64, active bool) error {
	v, ok := m.variants[id]
	if !ok {
		return fmt.Errorf("variant %d: %w", id, shared.ErrNotFound)
	}
	v.Active = active
	return nil
}

func (m *memRepo) VariantStockOnHand(_ context.Context, id int64) (int64, error) {
	return m.varStock[id], nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDeactivateLocationBlockedByStock(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)

	loc, err := svc.CreateLocation(context.Background(), "Back room", KindStore, "")
	require.NoError(t, err)

	repo.stock[loc.ID] = 5
	err = svc.DeactivateLocation(context.Background(), loc.ID)
	require.True(t, shared.IsConflict(err, shared.ReasonLocationInUse))
	require.True(t, repo.locations[loc.ID].Active)

	repo.stock[loc.ID] = 0
	require.NoError(t, svc.DeactivateLocation(context.Background(), loc.ID))
	require.False(t, repo.locations[loc.ID].Active)
}

func TestCreateLocationValidation(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)

	_, err := svc.CreateLocation(context.Background(), "", KindShop, "")
	require.True(t, shared.IsValidation(err))

	_, err = svc.CreateLocation(context.Background(), "Depot", "garage", "")
	require.True(t, shared.IsValidation(err))

	_, err = svc.CreateLocation(context.Background(), "Depot", "", "")
	require.True(t, shared.IsValidation(err))

	loc, err := svc.CreateLocation(context.Background(), "Depot", KindWarehouse, "Mombasa Rd")
	require.NoError(t, err)
	require.Equal(t, KindWarehouse, loc.Kind)

	_, err = svc.UpdateLocation(context.Background(), loc.ID, "Depot", "garage", "Mombasa Rd")
	require.True(t, shared.IsValidation(err))

	updated, err := svc.UpdateLocation(context.Background(), loc.ID, "Depot", KindShop, "Mombasa Rd")
	require.NoError(t, err)
	require.Equal(t, KindShop, updated.Kind)
	require.Equal(t, KindShop, repo.locations[loc.ID].Kind)
}

func TestDeactivateCustomerBlockedByBalance(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)

	c, err := svc.CreateCustomer(context.Background(), CustomerInput{Name: "Wanjiku", CreditLimit: d("5000")})
	require.NoError(t, err)

	repo.customers[c.ID].CurrentBalance = d("1200")
	err = svc.DeactivateCustomer(context.Background(), c.ID)
	require.True(t, shared.IsConflict(err, shared.ReasonBalanceOutstanding))

	repo.customers[c.ID].CurrentBalance = decimal.Zero
	require.NoError(t, svc.DeactivateCustomer(context.Background(), c.ID))
	require.False(t, repo.customers[c.ID].Active)
}

func TestCreateCustomerValidation(t *testing.T) {
	svc := NewService(newMemRepo(), nil)

	_, err := svc.CreateCustomer(context.Background(), CustomerInput{})
	require.True(t, shared.IsValidation(err))

	_, err = svc.CreateCustomer(context.Background(), CustomerInput{Name: "A", CreditLimit: d("-1")})
	require.True(t, shared.IsValidation(err))

	tierID := int64(99)
	_, err = svc.CreateCustomer(context.Background(), CustomerInput{Name: "A", TierID: &tierID})
	require.ErrorIs(t, err, shared.ErrNotFound, "unknown tier rejected")
}

func TestCheckCredit(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)

	c, err := svc.CreateCustomer(context.Background(), CustomerInput{Name: "Otieno", CreditLimit: d("1000")})
	require.NoError(t, err)
	repo.customers[c.ID].CurrentBalance = d("400")

	decision, err := svc.CheckCredit(context.Background(), c.ID, d("500"))
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.True(t, decision.AvailableCredit.Equal(d("600")))

	decision, err = svc.CheckCredit(context.Background(), c.ID, d("700"))
	require.NoError(t, err)
	require.False(t, decision.Allowed)
}

func TestCreateTierBounds(t *testing.T) {
	svc := NewService(newMemRepo(), nil)

	_, err := svc.CreateTier(context.Background(), "Wholesale", d("101"))
	require.True(t, shared.IsValidation(err))

	_, err = svc.CreateTier(context.Background(), "Wholesale", d("-5"))
	require.True(t, shared.IsValidation(err))

	tier, err := svc.CreateTier(context.Background(), "Wholesale", d("12.5"))
	require.NoError(t, err)
	require.True(t, tier.DiscountPct.Equal(d("12.5")))
}

func TestDeactivateVariantBlockedByStock(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)

	p, err := svc.CreateProduct(context.Background(), ProductInput{Name: "Maize flour"})
	require.NoError(t, err)
	v, err := svc.CreateVariant(context.Background(), p.ID, VariantInput{
		SKU: "MF-2KG", CostPrice: d("120"), SellingPrice: d("165"),
	})
	require.NoError(t, err)

	repo.varStock[v.ID] = 30
	err = svc.DeactivateVariant(context.Background(), v.ID)
	require.True(t, shared.IsConflict(err, shared.ReasonStockReferenced))

	repo.varStock[v.ID] = 0
	require.NoError(t, svc.DeactivateVariant(context.Background(), v.ID))
	require.False(t, repo.variants[v.ID].Active)
}

func TestVariantValidation(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)
	p, err := svc.CreateProduct(context.Background(), ProductInput{Name: "Rice"})
	require.NoError(t, err)

	_, err = svc.CreateVariant(context.Background(), p.ID, VariantInput{})
	require.True(t, shared.IsValidation(err), "sku required")

	_, err = svc.CreateVariant(context.Background(), p.ID, VariantInput{SKU: "R-1", SellingPrice: d("-1")})
	require.True(t, shared.IsValidation(err))

	_, err = svc.CreateVariant(context.Background(), 999, VariantInput{SKU: "R-1"})
	require.ErrorIs(t, err, shared.ErrNotFound, "variant needs an existing product")
}
