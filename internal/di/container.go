package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/linden-market/api/internal/platform/config"
	"github.com/linden-market/api/internal/repositories"
	"github.com/linden-market/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
// Concrete implementations are assembled in NewContainer.
type Services struct {
	Cart       services.CartService
	Catalog    services.CatalogService
	Orders     services.OrderService
	Stats      services.AdminStatsService
	Newsletter services.NewsletterService
	System     services.SystemService
}

// ContainerDeps carries the infrastructure the container cannot build itself.
type ContainerDeps struct {
	Config   config.Config
	Registry repositories.Registry
	Mail     services.OrderMailPublisher
	Logger   *zap.Logger
	// Version stamps health reports; typically injected at build time.
	Version string
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides
// the Firestore-backed registry; tests can supply in-memory registries.
func NewContainer(ctx context.Context, deps ContainerDeps) (*Container, error) {
	reg := deps.Registry
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	svc, err := buildServices(reg, deps, logger)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       deps.Config,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(reg repositories.Registry, deps ContainerDeps, logger *zap.Logger) (Services, error) {
	var svc Services
	cfg := deps.Config

	eventLogger := zapEventLogger(logger)

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:    reg.Carts(),
		Products: reg.Products(),
		Clock:    time.Now,
		Logger:   eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products:   reg.Products(),
		Categories: reg.Categories(),
		Clock:      time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:        reg.Orders(),
		Carts:         reg.Carts(),
		Counters:      reg.Counters(),
		UnitOfWork:    reg,
		Mail:          deps.Mail,
		OperatorEmail: cfg.Mail.OperatorEmail,
		Clock:         time.Now,
		Logger:        eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	location, err := cfg.StoreLocation()
	if err != nil {
		return Services{}, fmt.Errorf("resolve store timezone: %w", err)
	}
	statsSvc, err := services.NewAdminStatsService(services.AdminStatsServiceDeps{
		Orders:     reg.Orders(),
		Products:   reg.Products(),
		Newsletter: reg.Newsletter(),
		Location:   location,
		Clock:      time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build stats service: %w", err)
	}
	svc.Stats = statsSvc

	newsletterSvc, err := services.NewNewsletterService(services.NewsletterServiceDeps{
		Newsletter: reg.Newsletter(),
		Clock:      time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build newsletter service: %w", err)
	}
	svc.Newsletter = newsletterSvc

	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Clock:            time.Now,
		Build: services.BuildInfo{
			Version:     deps.Version,
			Environment: cfg.Security.Environment,
			StartedAt:   time.Now().UTC(),
		},
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	return svc, nil
}

// zapEventLogger adapts zap to the event-style logging the services expect.
func zapEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(ctx context.Context, event string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}
