package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/linden-market/api/internal/domain"
	"github.com/linden-market/api/internal/platform/auth"
	"github.com/linden-market/api/internal/platform/httpx"
	"github.com/linden-market/api/internal/services"
)

// OrderHandlers serves customer-facing order reads. Guest orders are readable
// by anyone holding the order ID; orders owned by an account require that
// account or back-office staff.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs the order read handlers.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.OptionalFirebaseAuth())
	}
	r.Get("/", h.listOwnOrders)
	r.Get("/{orderID}", h.getOrder)
}

func (h *OrderHandlers) listOwnOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("auth_required", "authentication is required to list orders", http.StatusUnauthorized))
		return
	}

	filter := services.OrderListFilter{
		UserID: strings.TrimSpace(identity.UID),
		Pagination: domain.Pagination{
			PageSize:  parsePageSize(r.URL.Query().Get("pageSize")),
			PageToken: strings.TrimSpace(r.URL.Query().Get("pageToken")),
		},
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	orders := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		orders = append(orders, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"orders":          orders,
		"next_page_token": page.NextPageToken,
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	opts := services.OrderReadOptions{}
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil && strings.TrimSpace(identity.UID) != "" {
		opts.RequesterID = strings.TrimSpace(identity.UID)
		opts.Authenticated = true
		opts.Elevated = identity.HasRole(auth.RoleStaff) || identity.HasRole(auth.RoleAdmin)
	}

	order, err := h.orders.GetOrder(ctx, strings.TrimSpace(chi.URLParam(r, "orderID")), opts)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}

type orderPayload struct {
	ID            string              `json:"id"`
	Number        string              `json:"number"`
	UserID        string              `json:"user_id,omitempty"`
	Email         string              `json:"email,omitempty"`
	Items         []orderItemPayload  `json:"items"`
	Subtotal      int64               `json:"subtotal"`
	ShippingCost  int64               `json:"shipping_cost"`
	Total         int64               `json:"total"`
	Address       orderAddressPayload `json:"shipping_address"`
	Notes         string              `json:"notes,omitempty"`
	Status        string              `json:"status"`
	PaymentMethod string              `json:"payment_method"`
	CreatedAt     string              `json:"created_at,omitempty"`
	UpdatedAt     string              `json:"updated_at,omitempty"`
}

type orderItemPayload struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	Price        int64  `json:"price"`
	Quantity     int    `json:"quantity"`
	Color        string `json:"color,omitempty"`
	ProductImage string `json:"product_image,omitempty"`
}

type orderAddressPayload struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	Address    string `json:"address"`
	County     string `json:"county"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

func buildOrderPayload(order services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Price:        item.Price,
			Quantity:     item.Quantity,
			Color:        item.Color,
			ProductImage: item.ProductImage,
		})
	}

	return orderPayload{
		ID:           order.ID,
		Number:       order.Number,
		UserID:       order.UserID,
		Email:        order.Email,
		Items:        items,
		Subtotal:     order.Subtotal,
		ShippingCost: order.ShippingCost,
		Total:        order.Total,
		Address: orderAddressPayload{
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
		CreatedAt:     formatTime(order.CreatedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
	}
}
