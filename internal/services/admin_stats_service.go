package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/linden-market/api/internal/domain"
	"github.com/linden-market/api/internal/repositories"
)

// ErrStatsUnavailable indicates one of the source collections cannot be read.
var ErrStatsUnavailable = errors.New("stats: storage unavailable")

// AdminStatsServiceDeps bundles collaborators required to construct the stats service.
type AdminStatsServiceDeps struct {
	Orders     repositories.OrderRepository
	Products   repositories.ProductRepository
	Newsletter repositories.NewsletterRepository
	Location   *time.Location
	Clock      func() time.Time
}

type adminStatsService struct {
	orders     repositories.OrderRepository
	products   repositories.ProductRepository
	newsletter repositories.NewsletterRepository
	location   *time.Location
	clock      func() time.Time
}

// NewAdminStatsService wires dependencies into a concrete AdminStatsService implementation.
func NewAdminStatsService(deps AdminStatsServiceDeps) (AdminStatsService, error) {
	if deps.Orders == nil {
		return nil, errors.New("stats service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("stats service: product repository is required")
	}
	if deps.Newsletter == nil {
		return nil, errors.New("stats service: newsletter repository is required")
	}

	location := deps.Location
	if location == nil {
		location = time.UTC
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &adminStatsService{
		orders:     deps.Orders,
		products:   deps.Products,
		newsletter: deps.Newsletter,
		location:   location,
		clock:      clock,
	}, nil
}

// ComputeStats recomputes the dashboard from the full collections. Period
// boundaries are local midnights in the configured store time zone; the week
// starts on Monday.
func (s *adminStatsService) ComputeStats(ctx context.Context) (StoreStats, error) {
	now := s.clock().In(s.location)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	weekStart := dayStart.AddDate(0, 0, -mondayOffset(dayStart.Weekday()))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.location)

	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return StoreStats{}, s.mapRepositoryError(err)
	}
	products, err := s.products.ListAll(ctx)
	if err != nil {
		return StoreStats{}, s.mapRepositoryError(err)
	}
	subscribers, err := s.newsletter.ListAll(ctx)
	if err != nil {
		return StoreStats{}, s.mapRepositoryError(err)
	}

	stats := StoreStats{GeneratedAt: now}
	for _, order := range orders {
		revenue := order.Revenue()
		stats.AllTime.Orders++
		stats.AllTime.Revenue += revenue

		createdAt := order.CreatedAt.In(s.location)
		if !createdAt.Before(monthStart) {
			stats.ThisMonth.Orders++
			stats.ThisMonth.Revenue += revenue
		}
		if !createdAt.Before(weekStart) {
			stats.ThisWeek.Orders++
			stats.ThisWeek.Revenue += revenue
		}
		if !createdAt.Before(dayStart) {
			stats.Today.Orders++
			stats.Today.Revenue += revenue
			if order.Status == domain.OrderStatusNew {
				stats.NewOrdersToday++
			}
		}
	}

	for _, product := range products {
		if product.InStock {
			stats.ProductsInStock++
		} else {
			stats.ProductsOutOfStock++
		}
	}

	for _, subscriber := range subscribers {
		if subscriber.Status == domain.NewsletterStatusActive {
			stats.ActiveSubscribers++
		}
	}

	return stats, nil
}

// mondayOffset returns how many days back the current ISO week began.
func mondayOffset(day time.Weekday) int {
	if day == time.Sunday {
		return 6
	}
	return int(day) - 1
}

func (s *adminStatsService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
		return fmt.Errorf("%w: %v", ErrStatsUnavailable, err)
	}
	return err
}
