package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/dukahub/dukahub/internal/shared"
)

// RepositoryPort abstracts the aggregate queries.
type RepositoryPort interface {
	SalesSummary(ctx context.Context, from, to time.Time) (SalesSummary, error)
	Receivables(ctx context.Context, topN int) (Receivables, error)
	LowStockCount(ctx context.Context) (int64, error)
}

// Service serves dashboard aggregates through the cache.
type Service struct {
	repo  RepositoryPort
	cache *Cache
}

func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// SalesSummary returns the aggregate for [from, to), cached.
func (s *Service) SalesSummary(ctx context.Context, from, to time.Time) (SalesSummary, error) {
	if !to.After(from) {
		return SalesSummary{}, shared.NewValidation("to must be after from")
	}
	key := fmt.Sprintf("sales:%d:%d", from.Unix(), to.Unix())
	var summary SalesSummary
	if s.cache.Get(ctx, key, &summary) {
		return summary, nil
	}
	summary, err := s.repo.SalesSummary(ctx, from, to)
	if err != nil {
		return SalesSummary{}, err
	}
	s.cache.Set(ctx, key, summary)
	return summary, nil
}

// Receivables returns the outstanding-balance aggregate, cached.
func (s *Service) Receivables(ctx context.Context, topN int) (Receivables, error) {
	key := fmt.Sprintf("receivables:%d", topN)
	var out Receivables
	if s.cache.Get(ctx, key, &out) {
		return out, nil
	}
	out, err := s.repo.Receivables(ctx, topN)
	if err != nil {
		return Receivables{}, err
	}
	s.cache.Set(ctx, key, out)
	return out, nil
}

// Snapshot assembles the dashboard in one call: today's sales, receivables,
// and the low-stock count.
func (s *Service) Snapshot(ctx context.Context, now time.Time) (Snapshot, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	sales, err := s.SalesSummary(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return Snapshot{}, err
	}
	receivables, err := s.Receivables(ctx, 5)
	if err != nil {
		return Snapshot{}, err
	}
	lowStock, err := s.repo.LowStockCount(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		SalesToday:    sales,
		Receivables:   receivables,
		LowStockCount: lowStock,
		GeneratedAt:   now,
	}, nil
}

// Invalidate drops all cached aggregates. Ledger writers call this after
// committing.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}
