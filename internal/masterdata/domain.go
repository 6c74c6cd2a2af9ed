package masterdata

import (
	"time"

	"github.com/shopspring/decimal"
)

// LocationKind classifies what a location is used for.
type LocationKind string

const (
	KindWarehouse LocationKind = "warehouse"
	KindShop      LocationKind = "shop"
	KindStore     LocationKind = "store"
	KindOther     LocationKind = "other"
)

// ValidLocationKind reports whether k is a known location kind.
func ValidLocationKind(k LocationKind) bool {
	switch k {
	case KindWarehouse, KindShop, KindStore, KindOther:
		return true
	}
	return false
}

// Location is a physical place stock sits in: a shop floor, a store room, a
// kiosk. Locations are deactivated, never deleted, so ledger history keeps
// resolving.
type Location struct {
	ID        int64
	Name      string
	Kind      LocationKind
	Address   string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PricingTier grants a percentage discount to the customers on it.
type PricingTier struct {
	ID          int64
	Name        string
	DiscountPct decimal.Decimal
	CreatedAt   time.Time
}

// Customer is an account that can buy on credit up to its limit.
// CurrentBalance is maintained by the sales and payment ledgers.
type Customer struct {
	ID             int64
	Name           string
	Phone          string
	Email          string
	CreditLimit    decimal.Decimal
	CurrentBalance decimal.Decimal
	TierID         *int64
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AvailableCredit returns the remaining credit room, floored at zero.
func (c Customer) AvailableCredit() decimal.Decimal {
	avail := c.CreditLimit.Sub(c.CurrentBalance)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

// Supplier provides inbound stock, optionally on payment terms.
type Supplier struct {
	ID               int64
	Name             string
	Phone            string
	Email            string
	PaymentTermsDays int
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ProductCategory groups products.
type ProductCategory struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Product is a sellable good; its variants carry the prices and SKUs.
type Product struct {
	ID          int64
	CategoryID  *int64
	Name        string
	Description string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Variant is the unit actually stocked and sold. Prices here are the
// defaults frozen onto sale lines at issue time.
type Variant struct {
	ID           int64
	ProductID    int64
	SKU          string
	Name         string
	CostPrice    decimal.Decimal
	SellingPrice decimal.Decimal
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CustomerInput carries create/update fields for a customer.
type CustomerInput struct {
	Name        string
	Phone       string
	Email       string
	CreditLimit decimal.Decimal
	TierID      *int64
}

// SupplierInput carries create/update fields for a supplier.
type SupplierInput struct {
	Name             string
	Phone            string
	Email            string
	PaymentTermsDays int
}

// ProductInput carries create/update fields for a product.
type ProductInput struct {
	CategoryID  *int64
	Name        string
	Description string
}

// VariantInput carries create/update fields for a variant.
type VariantInput struct {
	SKU          string
	Name         string
	CostPrice    decimal.Decimal
	SellingPrice decimal.Decimal
}
