package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/linden-market/api/internal/domain"
)

func newTestStatsService(t *testing.T, orders *stubOrderRepository, products *stubProductRepository, newsletter *stubNewsletterRepository, loc *time.Location, now time.Time) AdminStatsService {
	t.Helper()
	service, err := NewAdminStatsService(AdminStatsServiceDeps{
		Orders:     orders,
		Products:   products,
		Newsletter: newsletter,
		Location:   loc,
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewAdminStatsService: %v", err)
	}
	return service
}

func TestAdminStatsServiceBucketsByLocalBoundaries(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Bucharest")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	// Wednesday, 2025-06-18 14:00 local time. The week began Monday the 16th,
	// the month on the 1st.
	now := time.Date(2025, 6, 18, 14, 0, 0, 0, loc)

	orders := &stubOrderRepository{
		listAllFunc: func(ctx context.Context) ([]domain.Order, error) {
			return []domain.Order{
				// Today, still new.
				{Status: domain.OrderStatusNew, Total: 10000, CreatedAt: time.Date(2025, 6, 18, 9, 0, 0, 0, loc)},
				// Today but already confirmed; counts toward revenue, not NewOrdersToday.
				{Status: domain.OrderStatusConfirmed, Total: 5000, CreatedAt: time.Date(2025, 6, 18, 8, 0, 0, 0, loc)},
				// Monday this week, before today.
				{Status: domain.OrderStatusShipped, Total: 3000, CreatedAt: time.Date(2025, 6, 16, 10, 0, 0, 0, loc)},
				// Earlier this month, before the week started.
				{Status: domain.OrderStatusDelivered, Total: 2000, CreatedAt: time.Date(2025, 6, 2, 10, 0, 0, 0, loc)},
				// Last month. Legacy row without a total falls back to the subtotal.
				{Status: domain.OrderStatusDelivered, Total: 0, Subtotal: 1500, CreatedAt: time.Date(2025, 5, 20, 10, 0, 0, 0, loc)},
				// Sunday late evening local time; in UTC this is still Sunday
				// afternoon, so a UTC week would misfile it.
				{Status: domain.OrderStatusNew, Total: 700, CreatedAt: time.Date(2025, 6, 15, 23, 30, 0, 0, loc)},
			}, nil
		},
	}
	products := &stubProductRepository{
		listAllFunc: func(ctx context.Context) ([]domain.Product, error) {
			return []domain.Product{
				{ID: "prd_1", InStock: true},
				{ID: "prd_2", InStock: true},
				{ID: "prd_3", InStock: false},
			}, nil
		},
	}
	newsletter := &stubNewsletterRepository{
		listAllFunc: func(ctx context.Context) ([]domain.NewsletterSubscriber, error) {
			return []domain.NewsletterSubscriber{
				{Email: "a@example.ro", Status: domain.NewsletterStatusActive},
				{Email: "b@example.ro", Status: domain.NewsletterStatusActive},
				{Email: "c@example.ro", Status: domain.NewsletterStatusUnsubscribed},
			}, nil
		},
	}

	service := newTestStatsService(t, orders, products, newsletter, loc, now)
	stats, err := service.ComputeStats(context.Background())
	if err != nil {
		t.Fatalf("ComputeStats: %v", err)
	}

	if stats.Today.Orders != 2 || stats.Today.Revenue != 15000 {
		t.Fatalf("unexpected today bucket %+v", stats.Today)
	}
	if stats.ThisWeek.Orders != 3 || stats.ThisWeek.Revenue != 18000 {
		t.Fatalf("unexpected week bucket %+v", stats.ThisWeek)
	}
	if stats.ThisMonth.Orders != 5 || stats.ThisMonth.Revenue != 20700 {
		t.Fatalf("unexpected month bucket %+v", stats.ThisMonth)
	}
	if stats.AllTime.Orders != 6 || stats.AllTime.Revenue != 22200 {
		t.Fatalf("unexpected all-time bucket %+v", stats.AllTime)
	}
	if stats.NewOrdersToday != 1 {
		t.Fatalf("expected 1 new order today, got %d", stats.NewOrdersToday)
	}
	if stats.ProductsInStock != 2 || stats.ProductsOutOfStock != 1 {
		t.Fatalf("unexpected stock partition %+v", stats)
	}
	if stats.ActiveSubscribers != 2 {
		t.Fatalf("expected 2 active subscribers, got %d", stats.ActiveSubscribers)
	}
}

func TestAdminStatsServiceWeekStartsOnMonday(t *testing.T) {
	// Sunday: the week began six days earlier.
	sunday := time.Date(2025, 6, 22, 12, 0, 0, 0, time.UTC)

	orders := &stubOrderRepository{
		listAllFunc: func(ctx context.Context) ([]domain.Order, error) {
			return []domain.Order{
				// Monday the 16th, inside the current week.
				{Status: domain.OrderStatusNew, Total: 1000, CreatedAt: time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)},
				// Sunday the 15th, previous week.
				{Status: domain.OrderStatusNew, Total: 1000, CreatedAt: time.Date(2025, 6, 15, 23, 59, 0, 0, time.UTC)},
			}, nil
		},
	}

	service := newTestStatsService(t, orders, &stubProductRepository{}, &stubNewsletterRepository{}, time.UTC, sunday)
	stats, err := service.ComputeStats(context.Background())
	if err != nil {
		t.Fatalf("ComputeStats: %v", err)
	}

	if stats.ThisWeek.Orders != 1 {
		t.Fatalf("expected only Monday order in week bucket, got %d", stats.ThisWeek.Orders)
	}
	if stats.AllTime.Orders != 2 {
		t.Fatalf("expected both orders all-time, got %d", stats.AllTime.Orders)
	}
}

func TestAdminStatsServiceMapsUnavailableStore(t *testing.T) {
	now := time.Date(2025, 6, 18, 14, 0, 0, 0, time.UTC)
	orders := &stubOrderRepository{
		listAllFunc: func(ctx context.Context) ([]domain.Order, error) {
			return nil, &repositoryErrorStub{unavailable: true}
		},
	}

	service := newTestStatsService(t, orders, &stubProductRepository{}, &stubNewsletterRepository{}, time.UTC, now)
	if _, err := service.ComputeStats(context.Background()); !errors.Is(err, ErrStatsUnavailable) {
		t.Fatalf("expected ErrStatsUnavailable, got %v", err)
	}
}
