package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/linden-market/api/internal/platform/firestore"
	"github.com/linden-market/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the repositories
// contract. The backing store offers no multi-collection transactions beyond
// a single document write, so RunInTx executes the function directly.
type Registry struct {
	provider *pfirestore.Provider

	carts      *CartRepository
	orders     *OrderRepository
	products   *ProductRepository
	categories *CategoryRepository
	newsletter *NewsletterRepository
	counters   *CounterRepository
	health     repositories.HealthRepository
}

// NewRegistry constructs every repository over a shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	categories, err := NewCategoryRepository(provider)
	if err != nil {
		return nil, err
	}
	newsletter, err := NewNewsletterRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name: "firestore",
			Check: func(ctx context.Context) error {
				_, err := provider.Client(ctx)
				return err
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:   provider,
		carts:      carts,
		orders:     orders,
		products:   products,
		categories: categories,
		newsletter: newsletter,
		counters:   counters,
		health:     health,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Carts() repositories.CartRepository             { return r.carts }
func (r *Registry) Orders() repositories.OrderRepository           { return r.orders }
func (r *Registry) Products() repositories.ProductRepository       { return r.products }
func (r *Registry) Categories() repositories.CategoryRepository    { return r.categories }
func (r *Registry) Newsletter() repositories.NewsletterRepository  { return r.newsletter }
func (r *Registry) Counters() repositories.CounterRepository       { return r.counters }
func (r *Registry) Health() repositories.HealthRepository          { return r.health }

// RunInTx executes fn without a surrounding transaction. Order creation is a
// single document insert; the sequence counter carries its own transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("registry: transaction function is required")
	}
	return fn(ctx)
}

var _ repositories.Registry = (*Registry)(nil)
