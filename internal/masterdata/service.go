package masterdata

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dukahub/dukahub/internal/credit"
	"github.com/dukahub/dukahub/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	CreateLocation(ctx context.Context, loc Location) (Location, error)
	UpdateLocation(ctx context.Context, loc Location) error
	GetLocation(ctx context.Context, id int64) (Location, error)
	ListLocations(ctx context.Context, activeOnly bool) ([]Location, error)
	SetLocationActive(ctx context.Context, id int64, active bool) error
	LocationStockOnHand(ctx context.Context, id int64) (int64, error)

	CreateTier(ctx context.Context, tier PricingTier) (PricingTier, error)
	ListTiers(ctx context.Context) ([]PricingTier, error)
	GetTier(ctx context.Context, id int64) (PricingTier, error)

	CreateCustomer(ctx context.Context, c Customer) (Customer, error)
	UpdateCustomer(ctx context.Context, c Customer) error
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	ListCustomers(ctx context.Context, activeOnly bool) ([]Customer, error)
	SetCustomerActive(ctx context.Context, id int64, active bool) error

	CreateSupplier(ctx context.Context, s Supplier) (Supplier, error)
	UpdateSupplier(ctx context.Context, s Supplier) error
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	ListSuppliers(ctx context.Context, activeOnly bool) ([]Supplier, error)
	SetSupplierActive(ctx context.Context, id int64, active bool) error

	CreateProductCategory(ctx context.Context, name string) (ProductCategory, error)
	ListProductCategories(ctx context.Context) ([]ProductCategory, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id int64) (Product, []Variant, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]Product, error)
	CreateVariant(ctx context.Context, v Variant) (Variant, error)
	UpdateVariant(ctx context.Context, v Variant) error
	GetVariant(ctx context.Context, id int64) (Variant, error)
	SetVariantActive(ctx context.Context, id int64, active bool) error
	VariantStockOnHand(ctx context.Context, id int64) (int64, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages master data: the records the ledgers point at. Nothing
// here is ever hard-deleted; ledger rows must keep resolving.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// --- locations ---

func (s *Service) CreateLocation(ctx context.Context, name string, kind LocationKind, address string) (Location, error) {
	if name == "" {
		return Location{}, shared.NewValidation("location name required")
	}
	if !ValidLocationKind(kind) {
		return Location{}, shared.NewValidation("unknown location kind %q", kind)
	}
	loc, err := s.repo.CreateLocation(ctx, Location{Name: name, Kind: kind, Address: address, Active: true})
	if err != nil {
		return Location{}, err
	}
	s.record(ctx, "masterdata:location_create", "location", loc.ID)
	return loc, nil
}

func (s *Service) UpdateLocation(ctx context.Context, id int64, name string, kind LocationKind, address string) (Location, error) {
	if name == "" {
		return Location{}, shared.NewValidation("location name required")
	}
	if !ValidLocationKind(kind) {
		return Location{}, shared.NewValidation("unknown location kind %q", kind)
	}
	loc, err := s.repo.GetLocation(ctx, id)
	if err != nil {
		return Location{}, err
	}
	loc.Name, loc.Kind, loc.Address = name, kind, address
	if err := s.repo.UpdateLocation(ctx, loc); err != nil {
		return Location{}, err
	}
	return loc, nil
}

func (s *Service) GetLocation(ctx context.Context, id int64) (Location, error) {
	return s.repo.GetLocation(ctx, id)
}

func (s *Service) ListLocations(ctx context.Context, activeOnly bool) ([]Location, error) {
	return s.repo.ListLocations(ctx, activeOnly)
}

// DeactivateLocation refuses while any stock remains at the location; move
// or adjust it out first.
func (s *Service) DeactivateLocation(ctx context.Context, id int64) error {
	onHand, err := s.repo.LocationStockOnHand(ctx, id)
	if err != nil {
		return err
	}
	if onHand != 0 {
		return shared.NewConflict(shared.ReasonLocationInUse,
			fmt.Sprintf("location %d still holds %d units of stock", id, onHand),
			map[string]any{"location_id": id, "on_hand": onHand})
	}
	if err := s.repo.SetLocationActive(ctx, id, false); err != nil {
		return err
	}
	s.record(ctx, "masterdata:location_deactivate", "location", id)
	return nil
}

func (s *Service) ActivateLocation(ctx context.Context, id int64) error {
	return s.repo.SetLocationActive(ctx, id, true)
}

// --- pricing tiers ---

func (s *Service) CreateTier(ctx context.Context, name string, discountPct decimal.Decimal) (PricingTier, error) {
	if name == "" {
		return PricingTier{}, shared.NewValidation("tier name required")
	}
	if discountPct.IsNegative() || discountPct.GreaterThan(decimal.NewFromInt(100)) {
		return PricingTier{}, shared.NewValidation("discount must be between 0 and 100 percent")
	}
	return s.repo.CreateTier(ctx, PricingTier{Name: name, DiscountPct: discountPct})
}

func (s *Service) ListTiers(ctx context.Context) ([]PricingTier, error) {
	return s.repo.ListTiers(ctx)
}

// --- customers ---

func (s *Service) CreateCustomer(ctx context.Context, input CustomerInput) (Customer, error) {
	if err := validateCustomerInput(input); err != nil {
		return Customer{}, err
	}
	if input.TierID != nil {
		if _, err := s.repo.GetTier(ctx, *input.TierID); err != nil {
			return Customer{}, err
		}
	}
	c, err := s.repo.CreateCustomer(ctx, Customer{
		Name:           input.Name,
		Phone:          input.Phone,
		Email:          input.Email,
		CreditLimit:    input.CreditLimit,
		CurrentBalance: decimal.Zero,
		TierID:         input.TierID,
		Active:         true,
	})
	if err != nil {
		return Customer{}, err
	}
	s.record(ctx, "masterdata:customer_create", "customer", c.ID)
	return c, nil
}

// UpdateCustomer changes contact details, limit, and tier. The balance is
// ledger-owned and never settable here.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, input CustomerInput) (Customer, error) {
	if err := validateCustomerInput(input); err != nil {
		return Customer{}, err
	}
	c, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if input.TierID != nil {
		if _, err := s.repo.GetTier(ctx, *input.TierID); err != nil {
			return Customer{}, err
		}
	}
	c.Name, c.Phone, c.Email = input.Name, input.Phone, input.Email
	c.CreditLimit = input.CreditLimit
	c.TierID = input.TierID
	if err := s.repo.UpdateCustomer(ctx, c); err != nil {
		return Customer{}, err
	}
	return c, nil
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

func (s *Service) ListCustomers(ctx context.Context, activeOnly bool) ([]Customer, error) {
	return s.repo.ListCustomers(ctx, activeOnly)
}

// CheckCredit reports whether the customer could absorb the prospective
// amount right now. Advisory only; the sales engine re-runs the check with
// the customer row locked.
func (s *Service) CheckCredit(ctx context.Context, id int64, prospective decimal.Decimal) (credit.Decision, error) {
	c, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return credit.Decision{}, err
	}
	return credit.Admit(c.CreditLimit, c.CurrentBalance, prospective, false), nil
}

// DeactivateCustomer refuses while the customer owes money.
func (s *Service) DeactivateCustomer(ctx context.Context, id int64) error {
	c, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return err
	}
	if !c.CurrentBalance.IsZero() {
		return shared.NewConflict(shared.ReasonBalanceOutstanding,
			fmt.Sprintf("customer %d has an outstanding balance of %s", id, shared.FormatKES(c.CurrentBalance)),
			map[string]any{"customer_id": id, "current_balance": c.CurrentBalance})
	}
	if err := s.repo.SetCustomerActive(ctx, id, false); err != nil {
		return err
	}
	s.record(ctx, "masterdata:customer_deactivate", "customer", id)
	return nil
}

func (s *Service) ActivateCustomer(ctx context.Context, id int64) error {
	return s.repo.SetCustomerActive(ctx, id, true)
}

// --- suppliers ---

func (s *Service) CreateSupplier(ctx context.Context, input SupplierInput) (Supplier, error) {
	if err := validateSupplierInput(input); err != nil {
		return Supplier{}, err
	}
	return s.repo.CreateSupplier(ctx, Supplier{
		Name:             input.Name,
		Phone:            input.Phone,
		Email:            input.Email,
		PaymentTermsDays: input.PaymentTermsDays,
		Active:           true,
	})
}

func (s *Service) UpdateSupplier(ctx context.Context, id int64, input SupplierInput) (Supplier, error) {
	if err := validateSupplierInput(input); err != nil {
		return Supplier{}, err
	}
	sup, err := s.repo.GetSupplier(ctx, id)
	if err != nil {
		return Supplier{}, err
	}
	sup.Name, sup.Phone, sup.Email = input.Name, input.Phone, input.Email
	sup.PaymentTermsDays = input.PaymentTermsDays
	if err := s.repo.UpdateSupplier(ctx, sup); err != nil {
		return Supplier{}, err
	}
	return sup, nil
}

func (s *Service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

func (s *Service) ListSuppliers(ctx context.Context, activeOnly bool) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx, activeOnly)
}

func (s *Service) DeactivateSupplier(ctx context.Context, id int64) error {
	return s.repo.SetSupplierActive(ctx, id, false)
}

// --- products and variants ---

func (s *Service) CreateProductCategory(ctx context.Context, name string) (ProductCategory, error) {
	if name == "" {
		return ProductCategory{}, shared.NewValidation("category name required")
	}
	return s.repo.CreateProductCategory(ctx, name)
}

func (s *Service) ListProductCategories(ctx context.Context) ([]ProductCategory, error) {
	return s.repo.ListProductCategories(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (Product, error) {
	if input.Name == "" {
		return Product{}, shared.NewValidation("product name required")
	}
	return s.repo.CreateProduct(ctx, Product{
		CategoryID:  input.CategoryID,
		Name:        input.Name,
		Description: input.Description,
		Active:      true,
	})
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, input ProductInput) (Product, error) {
	if input.Name == "" {
		return Product{}, shared.NewValidation("product name required")
	}
	p, _, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	p.CategoryID, p.Name, p.Description = input.CategoryID, input.Name, input.Description
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (Product, []Variant, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, activeOnly bool) ([]Product, error) {
	return s.repo.ListProducts(ctx, activeOnly)
}

func (s *Service) CreateVariant(ctx context.Context, productID int64, input VariantInput) (Variant, error) {
	if err := validateVariantInput(input); err != nil {
		return Variant{}, err
	}
	if _, _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return Variant{}, err
	}
	return s.repo.CreateVariant(ctx, Variant{
		ProductID:    productID,
		SKU:          input.SKU,
		Name:         input.Name,
		CostPrice:    input.CostPrice,
		SellingPrice: input.SellingPrice,
		Active:       true,
	})
}

// UpdateVariant reprices a variant. Existing sale lines are unaffected;
// prices are frozen onto them at issue time.
func (s *Service) UpdateVariant(ctx context.Context, id int64, input VariantInput) (Variant, error) {
	if err := validateVariantInput(input); err != nil {
		return Variant{}, err
	}
	v, err := s.repo.GetVariant(ctx, id)
	if err != nil {
		return Variant{}, err
	}
	v.SKU, v.Name = input.SKU, input.Name
	v.CostPrice, v.SellingPrice = input.CostPrice, input.SellingPrice
	if err := s.repo.UpdateVariant(ctx, v); err != nil {
		return Variant{}, err
	}
	return v, nil
}

// DeactivateVariant refuses while the variant still has stock on hand
// anywhere.
func (s *Service) DeactivateVariant(ctx context.Context, id int64) error {
	onHand, err := s.repo.VariantStockOnHand(ctx, id)
	if err != nil {
		return err
	}
	if onHand != 0 {
		return shared.NewConflict(shared.ReasonStockReferenced,
			fmt.Sprintf("variant %d still has %d units on hand", id, onHand),
			map[string]any{"variant_id": id, "on_hand": onHand})
	}
	return s.repo.SetVariantActive(ctx, id, false)
}

func validateCustomerInput(input CustomerInput) error {
	if input.Name == "" {
		return shared.NewValidation("customer name required")
	}
	if input.CreditLimit.IsNegative() {
		return shared.NewValidation("credit limit must be >= 0")
	}
	return nil
}

func validateSupplierInput(input SupplierInput) error {
	if input.Name == "" {
		return shared.NewValidation("supplier name required")
	}
	if input.PaymentTermsDays < 0 {
		return shared.NewValidation("payment terms must be >= 0 days")
	}
	return nil
}

func validateVariantInput(input VariantInput) error {
	if input.SKU == "" {
		return shared.NewValidation("sku required")
	}
	if input.CostPrice.IsNegative() || input.SellingPrice.IsNegative() {
		return shared.NewValidation("prices must be >= 0")
	}
	return nil
}

func (s *Service) record(ctx context.Context, action, entity string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", id),
	})
}
