package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dukahub/dukahub/internal/shared"
)

type memRepo struct {
	positions  []PositionView
	thresholds []ThresholdInput
}

func (m *memRepo) ListPositions(_ context.Context, filter PositionFilter) ([]PositionView, error) {
	var out []PositionView
	for _, p := range m.positions {
		if filter.LowStockOnly && !p.LowStock {
			continue
		}
		if filter.LocationID != 0 && p.LocationID != filter.LocationID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memRepo) UpdateThresholds(_ context.Context, input ThresholdInput) error {
	m.thresholds = append(m.thresholds, input)
	return nil
}

func (m *memRepo) CountLowStock(_ context.Context, _ int64) (int64, error) {
	var n int64
	for _, p := range m.positions {
		if p.LowStock {
			n++
		}
	}
	return n, nil
}

func level(n int64) *int64 { return &n }

func TestSetThresholdsValidation(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo)

	err := svc.SetThresholds(context.Background(), ThresholdInput{VariantID: 1})
	require.True(t, shared.IsValidation(err), "location required")

	err = svc.SetThresholds(context.Background(), ThresholdInput{
		VariantID: 1, LocationID: 2, MinLevel: level(10), MaxLevel: level(5),
	})
	require.True(t, shared.IsValidation(err), "max below min rejected")

	err = svc.SetThresholds(context.Background(), ThresholdInput{
		VariantID: 1, LocationID: 2, MinLevel: level(-1),
	})
	require.True(t, shared.IsValidation(err))

	err = svc.SetThresholds(context.Background(), ThresholdInput{
		VariantID: 1, LocationID: 2, MinLevel: level(5), MaxLevel: level(50),
	})
	require.NoError(t, err)
	require.Len(t, repo.thresholds, 1)
}

func TestLowStockFilter(t *testing.T) {
	repo := &memRepo{positions: []PositionView{
		{VariantID: 1, LocationID: 1, Quantity: 2, MinLevel: level(5), LowStock: true},
		{VariantID: 2, LocationID: 1, Quantity: 50, MinLevel: level(5)},
		{VariantID: 3, LocationID: 2, Quantity: 0, MinLevel: level(1), LowStock: true},
	}}
	svc := NewService(repo)

	out, err := svc.Positions(context.Background(), PositionFilter{LowStockOnly: true})
	require.NoError(t, err)
	require.Len(t, out, 2)

	n, err := svc.LowStockCount(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}
