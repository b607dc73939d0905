package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Product is the catalog entry shoppers add to their carts. Monetary fields
// are carried in bani, the smallest RON unit.
type Product struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Price       int64
	OfferPrice  *int64
	Images      []string
	Colors      []string
	CategoryID  string
	InStock     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EffectivePrice returns the price a new cart line freezes at add time:
// the offer price when one is set, the list price otherwise.
func (p Product) EffectivePrice() int64 {
	if p.OfferPrice != nil {
		return *p.OfferPrice
	}
	return p.Price
}

// Category groups products for storefront navigation.
type Category struct {
	ID        string
	Name      string
	Slug      string
	Image     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartLine stores a single product entry within a cart. Two lines with the
// same (ProductID, ColorVariant) pair never coexist; they are merge targets.
type CartLine struct {
	ProductID    string
	Name         string
	UnitPrice    int64
	Image        string
	Quantity     int
	ColorVariant string
}

// Matches reports whether the line carries the given identity key.
func (l CartLine) Matches(productID, colorVariant string) bool {
	return l.ProductID == productID && l.ColorVariant == colorVariant
}

// LineTotal returns the frozen unit price multiplied by the quantity.
func (l CartLine) LineTotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Cart aggregates the mutable shopping state for a session or user. The ID is
// either the authenticated user's UID or an opaque client-held cart token.
type Cart struct {
	ID        string
	UserID    string
	Lines     []CartLine
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subtotal sums the line totals across the cart.
func (c Cart) Subtotal() int64 {
	var total int64
	for _, line := range c.Lines {
		total += line.LineTotal()
	}
	return total
}

// ItemCount sums the quantities across the cart.
func (c Cart) ItemCount() int {
	var count int
	for _, line := range c.Lines {
		count += line.Quantity
	}
	return count
}

// IsEmpty reports whether the cart holds no lines.
func (c Cart) IsEmpty() bool { return len(c.Lines) == 0 }

// ShippingAddress is the delivery destination embedded in an order. It is
// immutable once the order exists.
type ShippingAddress struct {
	FullName   string
	Phone      string
	Email      string
	Address    string
	County     string
	City       string
	PostalCode string
}

// OrderStatus enumerates the lifecycle states an order moves through.
type OrderStatus string

const (
	// OrderStatusNew indicates the order was just placed and awaits review.
	OrderStatusNew OrderStatus = "new"
	// OrderStatusConfirmed indicates an operator accepted the order.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusShipped indicates the order was handed to the courier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the customer received the order.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was abandoned by either side.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentMethodCashOnDelivery is the only payment method the store offers.
const PaymentMethodCashOnDelivery = "cash_on_delivery"

// OrderStatuses returns the full status set in happy-path order, with
// cancelled last.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusNew,
		OrderStatusConfirmed,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
}

// HappyPath returns the linear fulfilment chain presented by the back office.
func HappyPath() []OrderStatus {
	return []OrderStatus{
		OrderStatusNew,
		OrderStatusConfirmed,
		OrderStatusShipped,
		OrderStatusDelivered,
	}
}

// IsValid reports whether the status is a member of the status set.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusNew, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// OrderItem mirrors a cart line frozen at checkout time.
type OrderItem struct {
	ProductID    string
	ProductName  string
	Price        int64
	Quantity     int
	Color        string
	ProductImage string
}

// Order is the persisted record produced by checkout. Items, address, and
// totals never change after creation; only Status and UpdatedAt do.
type Order struct {
	ID              string
	Number          string
	UserID          string
	Email           string
	Items           []OrderItem
	Subtotal        int64
	ShippingCost    int64
	Total           int64
	ShippingAddress ShippingAddress
	Notes           string
	Status          OrderStatus
	PaymentMethod   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsGuest reports whether the order has no owning identity.
func (o Order) IsGuest() bool { return o.UserID == "" }

// Revenue returns the amount an order contributes to sales statistics. Legacy
// rows may carry a zero total, in which case the subtotal stands in.
func (o Order) Revenue() int64 {
	if o.Total > 0 {
		return o.Total
	}
	return o.Subtotal
}

// NewsletterStatusActive marks subscribers counted by the back office.
const NewsletterStatusActive = "active"

// NewsletterStatusUnsubscribed marks addresses that opted out.
const NewsletterStatusUnsubscribed = "unsubscribed"

// NewsletterSubscriber stores a single mailing-list entry keyed by address.
type NewsletterSubscriber struct {
	Email        string
	Status       string
	SubscribedAt time.Time
	UpdatedAt    time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
