// Package inventory is the read surface over stock positions. It never
// moves stock; quantities change only through the stock ledger. The one
// thing it writes is the min/max reorder thresholds on a position.
package inventory

import (
	"context"
	"time"

	"github.com/dukahub/dukahub/internal/shared"
)

// PositionView is a stock position joined with its catalog names.
type PositionView struct {
	VariantID    int64     `json:"variant_id"`
	SKU          string    `json:"sku"`
	ProductName  string    `json:"product_name"`
	LocationID   int64     `json:"location_id"`
	LocationName string    `json:"location_name"`
	Quantity     int64     `json:"quantity"`
	MinLevel     *int64    `json:"min_level,omitempty"`
	MaxLevel     *int64    `json:"max_level,omitempty"`
	LowStock     bool      `json:"low_stock"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PositionFilter narrows position listings.
type PositionFilter struct {
	LocationID   int64
	VariantID    int64
	LowStockOnly bool
	Limit        int
}

// ThresholdInput sets reorder levels on one position.
type ThresholdInput struct {
	VariantID  int64
	LocationID int64
	MinLevel   *int64
	MaxLevel   *int64
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	ListPositions(ctx context.Context, filter PositionFilter) ([]PositionView, error)
	UpdateThresholds(ctx context.Context, input ThresholdInput) error
	CountLowStock(ctx context.Context, locationID int64) (int64, error)
}

// Service serves inventory reads.
type Service struct {
	repo RepositoryPort
}

func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Positions lists positions matching the filter.
func (s *Service) Positions(ctx context.Context, filter PositionFilter) ([]PositionView, error) {
	return s.repo.ListPositions(ctx, filter)
}

// SetThresholds updates the reorder levels on one position.
func (s *Service) SetThresholds(ctx context.Context, input ThresholdInput) error {
	if input.VariantID == 0 || input.LocationID == 0 {
		return shared.NewValidation("variant and location required")
	}
	if input.MinLevel != nil && *input.MinLevel < 0 {
		return shared.NewValidation("min level must be >= 0")
	}
	if input.MaxLevel != nil && *input.MaxLevel < 0 {
		return shared.NewValidation("max level must be >= 0")
	}
	if input.MinLevel != nil && input.MaxLevel != nil && *input.MaxLevel < *input.MinLevel {
		return shared.NewValidation("max level must be >= min level")
	}
	return s.repo.UpdateThresholds(ctx, input)
}

// LowStockCount returns how many positions sit at or below their minimum.
func (s *Service) LowStockCount(ctx context.Context, locationID int64) (int64, error) {
	return s.repo.CountLowStock(ctx, locationID)
}
