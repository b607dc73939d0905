package repositories

import (
	"context"
	"time"

	domain "github.com/linden-market/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartRepository
	Orders() OrderRepository
	Products() ProductRepository
	Categories() CategoryRepository
	Newsletter() NewsletterRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CartRepository stores the full cart document keyed by cart ID. A document
// that cannot be decoded is reported as not found so callers can rehydrate an
// empty cart instead of failing.
type CartRepository interface {
	Get(ctx context.Context, cartID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	Delete(ctx context.Context, cartID string) error
}

// OrderRepository persists order records. Only the status field is mutable
// after insert; UpdateStatus must leave every other field untouched.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	ListAll(ctx context.Context) ([]domain.Order, error)
}

// ProductRepository stores catalog entries used by the storefront and admin.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
	ListAll(ctx context.Context) ([]domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (domain.Product, error)
	Delete(ctx context.Context, productID string) error
}

// CategoryRepository stores storefront navigation categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]domain.Category, error)
	Upsert(ctx context.Context, category domain.Category) (domain.Category, error)
	Delete(ctx context.Context, categoryID string) error
}

// NewsletterRepository stores mailing-list entries keyed by address.
type NewsletterRepository interface {
	Upsert(ctx context.Context, subscriber domain.NewsletterSubscriber) (domain.NewsletterSubscriber, error)
	ListAll(ctx context.Context) ([]domain.NewsletterSubscriber, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type OrderListFilter struct {
	UserID     string
	Status     []domain.OrderStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

type ProductListFilter struct {
	CategoryID string
	InStock    *bool
	Search     string
	Pagination domain.Pagination
}
