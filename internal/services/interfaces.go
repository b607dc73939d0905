package services

import (
	"context"
	"time"

	domain "github.com/linden-market/api/internal/domain"
	"github.com/linden-market/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Cart                 = domain.Cart
	CartLine             = domain.CartLine
	Product              = domain.Product
	Category             = domain.Category
	Order                = domain.Order
	OrderItem            = domain.OrderItem
	OrderStatus          = domain.OrderStatus
	ShippingAddress      = domain.ShippingAddress
	NewsletterSubscriber = domain.NewsletterSubscriber
	SystemHealthReport   = domain.SystemHealthReport
)

// CartService manages mutable cart state: line merging, quantity updates, and
// derived totals. Every mutation persists the whole cart document.
type CartService interface {
	GetCart(ctx context.Context, cartID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error)
	UpdateQuantity(ctx context.Context, cmd UpdateCartQuantityCommand) (Cart, error)
	ClearCart(ctx context.Context, cartID string) error
}

// CatalogService serves storefront product and category reads plus the admin
// write surface.
type CatalogService interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
	ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error)
	ListCategories(ctx context.Context) ([]Category, error)
	UpsertProduct(ctx context.Context, product Product) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	UpsertCategory(ctx context.Context, category Category) (Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error
}

// OrderService turns a cart snapshot into a persisted order, enforces read
// authorization, and drives status transitions for the back office.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string, opts OrderReadOptions) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
}

// AdminStatsService projects the order, product, and newsletter collections
// into the dashboard counters.
type AdminStatsService interface {
	ComputeStats(ctx context.Context) (StoreStats, error)
}

// NewsletterService maintains the mailing list fed into the stats counters.
type NewsletterService interface {
	Subscribe(ctx context.Context, email string) (NewsletterSubscriber, error)
	Unsubscribe(ctx context.Context, email string) (NewsletterSubscriber, error)
}

// SystemService aggregates utility endpoints such as readiness probes.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// OrderMailPublisher hands order mail jobs to the delivery queue. Publishing
// is best-effort from the order service's point of view.
type OrderMailPublisher interface {
	PublishOrderMail(ctx context.Context, msg OrderMailMessage) error
}

// OrderMailMessage describes a single mail job for the delivery worker.
type OrderMailMessage struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Recipient   string    `json:"recipient,omitempty"`
	Total       int64     `json:"total"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Command and DTO definitions ------------------------------------------------

type AddCartItemCommand struct {
	CartID       string
	UserID       string
	ProductID    string
	Quantity     int
	ColorVariant string
}

type RemoveCartItemCommand struct {
	CartID       string
	ProductID    string
	ColorVariant string
}

type UpdateCartQuantityCommand struct {
	CartID       string
	ProductID    string
	ColorVariant string
	Quantity     int
}

type ProductListFilter = repositories.ProductListFilter

type OrderListFilter = repositories.OrderListFilter

// PlaceOrderCommand carries the checkout submission. Lines are the cart
// snapshot at submit time; the overrides bypass the shipping formula when an
// operator corrects an order by hand.
type PlaceOrderCommand struct {
	CartID               string
	UserID               string
	Email                string
	IdentityEmail        string
	Lines                []CartLine
	Address              ShippingAddress
	Notes                string
	ShippingCostOverride *int64
	TotalOverride        *int64
}

// OrderReadOptions identifies the requester for the read authorization rule.
// Elevated requesters (back office) bypass the ownership check.
type OrderReadOptions struct {
	RequesterID   string
	Authenticated bool
	Elevated      bool
}

type OrderStatusTransitionCommand struct {
	OrderID string
	Target  OrderStatus
	ActorID string
}

// PeriodStats pairs an order count with the revenue it produced.
type PeriodStats struct {
	Orders  int
	Revenue int64
}

// StoreStats is the dashboard projection recomputed per request.
type StoreStats struct {
	Today              PeriodStats
	ThisWeek           PeriodStats
	ThisMonth          PeriodStats
	AllTime            PeriodStats
	NewOrdersToday     int
	ProductsInStock    int
	ProductsOutOfStock int
	ActiveSubscribers  int
	GeneratedAt        time.Time
}
