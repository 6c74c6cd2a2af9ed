package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	summaryCalls int
}

func (m *memRepo) SalesSummary(_ context.Context, from, to time.Time) (SalesSummary, error) {
	m.summaryCalls++
	return SalesSummary{From: from, To: to, InvoiceCount: 3, NetSales: decimal.RequireFromString("4500")}, nil
}

func (m *memRepo) Receivables(_ context.Context, _ int) (Receivables, error) {
	return Receivables{CustomersOwing: 2, TotalOutstanding: decimal.RequireFromString("800")}, nil
}

func (m *memRepo) LowStockCount(_ context.Context) (int64, error) { return 1, nil }

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCache(rdb, time.Minute)
}

func TestSalesSummaryCached(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, newTestCache(t))
	ctx := context.Background()
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	first, err := svc.SalesSummary(ctx, from, to)
	require.NoError(t, err)
	require.Equal(t, int64(3), first.InvoiceCount)
	require.Equal(t, 1, repo.summaryCalls)

	second, err := svc.SalesSummary(ctx, from, to)
	require.NoError(t, err)
	require.True(t, second.NetSales.Equal(first.NetSales))
	require.Equal(t, 1, repo.summaryCalls, "second read served from cache")

	// A different window misses the cache.
	_, err = svc.SalesSummary(ctx, from, to.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Equal(t, 2, repo.summaryCalls)
}

func TestInvalidateBumpsVersion(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, newTestCache(t))
	ctx := context.Background()
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	_, err := svc.SalesSummary(ctx, from, to)
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx))

	_, err = svc.SalesSummary(ctx, from, to)
	require.NoError(t, err)
	require.Equal(t, 2, repo.summaryCalls, "invalidation forces a recompute")
}

func TestSalesSummaryValidatesWindow(t *testing.T) {
	svc := NewService(&memRepo{}, newTestCache(t))
	now := time.Now()

	_, err := svc.SalesSummary(context.Background(), now, now)
	require.Error(t, err)
}

func TestCacheDegradesWithoutRedis(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, NewCache(nil, time.Minute))
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.SalesSummary(context.Background(), from, from.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Equal(t, 1, repo.summaryCalls)
}
