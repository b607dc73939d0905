package firestore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/linden-market/api/internal/domain"
	pfirestore "github.com/linden-market/api/internal/platform/firestore"
	"github.com/linden-market/api/internal/repositories"
)

const (
	orderCollection      = "orders"
	defaultOrderPageSize = 25
	maxOrderPageSize     = 100
)

type orderItemDocument struct {
	ProductID    string `firestore:"productId"`
	ProductName  string `firestore:"product_name"`
	Price        int64  `firestore:"price"`
	Quantity     int    `firestore:"quantity"`
	Color        string `firestore:"color,omitempty"`
	ProductImage string `firestore:"product_image,omitempty"`
}

type orderAddressDocument struct {
	FullName   string `firestore:"fullName"`
	Phone      string `firestore:"phone"`
	Email      string `firestore:"email,omitempty"`
	Address    string `firestore:"address"`
	County     string `firestore:"county"`
	City       string `firestore:"city"`
	PostalCode string `firestore:"postalCode"`
}

type orderDocument struct {
	Number          string               `firestore:"number"`
	UserID          string               `firestore:"userId,omitempty"`
	Email           string               `firestore:"email,omitempty"`
	Items           []orderItemDocument  `firestore:"items"`
	Subtotal        int64                `firestore:"subtotal"`
	ShippingCost    int64                `firestore:"shippingCost"`
	Total           int64                `firestore:"total"`
	ShippingAddress orderAddressDocument `firestore:"shippingAddress"`
	Notes           string               `firestore:"notes,omitempty"`
	Status          string               `firestore:"status"`
	PaymentMethod   string               `firestore:"paymentMethod"`
	CreatedAt       time.Time            `firestore:"createdAt"`
	UpdatedAt       time.Time            `firestore:"updatedAt"`
}

type orderCursor struct {
	CreatedAt time.Time `json:"c"`
	ID        string    `json:"id"`
}

// OrderRepository persists order records. Status is the only field UpdateStatus
// touches; everything else is written once at insert.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base: pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil),
	}, nil
}

// Insert creates the order document, failing when the ID already exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, encodeOrder(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// UpdateStatus mutates only the status and updatedAt fields.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	updates := []firestore.Update{
		{Path: "status", Value: string(status)},
		{Path: "updatedAt", Value: updatedAt.UTC()},
	}
	_, err := r.base.Update(ctx, strings.TrimSpace(orderID), updates)
	return err
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

// List returns orders matching the filter, newest first, with cursor paging.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = defaultOrderPageSize
	}
	if pageSize > maxOrderPageSize {
		pageSize = maxOrderPageSize
	}

	var cursor *orderCursor
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		decoded, err := decodeOrderCursor(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, repositories.NewConflictError("invalid page token", err)
		}
		cursor = &decoded
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if uid := strings.TrimSpace(filter.UserID); uid != "" {
			q = q.Where("userId", "==", uid)
		}
		if len(filter.Status) > 0 {
			statuses := make([]string, 0, len(filter.Status))
			for _, s := range filter.Status {
				statuses = append(statuses, string(s))
			}
			q = q.Where("status", "in", statuses)
		}
		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if cursor != nil {
			q = q.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{Items: make([]domain.Order, 0, len(docs))}
	for i, doc := range docs {
		if i == pageSize {
			last := page.Items[len(page.Items)-1]
			page.NextPageToken = encodeOrderCursor(orderCursor{CreatedAt: last.CreatedAt, ID: last.ID})
			break
		}
		page.Items = append(page.Items, decodeOrder(doc.ID, doc.Data))
	}
	return page, nil
}

// ListAll streams the full order collection for read-side aggregation.
func (r *OrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	docs, err := r.base.Query(ctx, nil)
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrder(doc.ID, doc.Data))
	}
	return orders, nil
}

func encodeOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		Number:       strings.TrimSpace(order.Number),
		UserID:       strings.TrimSpace(order.UserID),
		Email:        strings.TrimSpace(order.Email),
		Items:        make([]orderItemDocument, 0, len(order.Items)),
		Subtotal:     order.Subtotal,
		ShippingCost: order.ShippingCost,
		Total:        order.Total,
		ShippingAddress: orderAddressDocument{
			FullName:   order.ShippingAddress.FullName,
			Phone:      order.ShippingAddress.Phone,
			Email:      order.ShippingAddress.Email,
			Address:    order.ShippingAddress.Address,
			County:     order.ShippingAddress.County,
			City:       order.ShippingAddress.City,
			PostalCode: order.ShippingAddress.PostalCode,
		},
		Notes:         order.Notes,
		Status:        string(order.Status),
		PaymentMethod: order.PaymentMethod,
		CreatedAt:     order.CreatedAt.UTC(),
		UpdatedAt:     order.UpdatedAt.UTC(),
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderItemDocument{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Price:        item.Price,
			Quantity:     item.Quantity,
			Color:        item.Color,
			ProductImage: item.ProductImage,
		})
	}
	return doc
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:           id,
		Number:       doc.Number,
		UserID:       doc.UserID,
		Email:        doc.Email,
		Items:        make([]domain.OrderItem, 0, len(doc.Items)),
		Subtotal:     doc.Subtotal,
		ShippingCost: doc.ShippingCost,
		Total:        doc.Total,
		ShippingAddress: domain.ShippingAddress{
			FullName:   doc.ShippingAddress.FullName,
			Phone:      doc.ShippingAddress.Phone,
			Email:      doc.ShippingAddress.Email,
			Address:    doc.ShippingAddress.Address,
			County:     doc.ShippingAddress.County,
			City:       doc.ShippingAddress.City,
			PostalCode: doc.ShippingAddress.PostalCode,
		},
		Notes:         doc.Notes,
		Status:        domain.OrderStatus(doc.Status),
		PaymentMethod: doc.PaymentMethod,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	for _, item := range doc.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Price:        item.Price,
			Quantity:     item.Quantity,
			Color:        item.Color,
			ProductImage: item.ProductImage,
		})
	}
	return order
}

func encodeOrderCursor(cursor orderCursor) string {
	raw, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeOrderCursor(token string) (orderCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return orderCursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	var cursor orderCursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return orderCursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	if cursor.ID == "" || cursor.CreatedAt.IsZero() {
		return orderCursor{}, errors.New("decode cursor: incomplete token")
	}
	return cursor, nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
