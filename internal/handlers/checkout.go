package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/linden-market/api/internal/domain"
	"github.com/linden-market/api/internal/platform/auth"
	"github.com/linden-market/api/internal/platform/httpx"
	"github.com/linden-market/api/internal/services"
)

const maxCheckoutBodySize = 32 * 1024

// CheckoutHandlers turns a cart into an order. Guests check out with their
// cart token; signed-in shoppers get the order attributed to their account.
type CheckoutHandlers struct {
	authn  *auth.Authenticator
	carts  services.CartService
	orders services.OrderService
}

// NewCheckoutHandlers constructs the checkout submission handler.
func NewCheckoutHandlers(authn *auth.Authenticator, carts services.CartService, orders services.OrderService) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:  authn,
		carts:  carts,
		orders: orders,
	}
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.OptionalFirebaseAuth())
	}
	r.Post("/", h.placeOrder)
}

type checkoutAddress struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	County     string `json:"county"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

type checkoutRequest struct {
	Email   string          `json:"email"`
	Notes   string          `json:"notes"`
	Address checkoutAddress `json:"address"`
}

type checkoutResponse struct {
	Order orderPayload `json:"order"`
}

func (h *CheckoutHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil || h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout is unavailable", http.StatusServiceUnavailable))
		return
	}

	var userID, identityEmail string
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil {
		userID = strings.TrimSpace(identity.UID)
		identityEmail = strings.TrimSpace(identity.Email)
	}

	cartID := userID
	if cartID == "" {
		cartID = strings.TrimSpace(r.Header.Get(cartTokenHeader))
	}
	if cartID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("cart_token_required", "provide a cart token or sign in", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		} else {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req checkoutRequest
	if err := decodeJSONBody(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	cart, err := h.carts.GetCart(ctx, cartID)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "unable to load cart", http.StatusServiceUnavailable))
		return
	}

	order, err := h.orders.PlaceOrder(ctx, services.PlaceOrderCommand{
		CartID:        cartID,
		UserID:        userID,
		Email:         strings.TrimSpace(req.Email),
		IdentityEmail: identityEmail,
		Lines:         cart.Lines,
		Address: services.ShippingAddress{
			FullName:   req.Address.FullName,
			Phone:      req.Address.Phone,
			Email:      req.Address.Email,
			Address:    req.Address.Address,
			County:     req.Address.County,
			City:       req.Address.City,
			PostalCode: req.Address.PostalCode,
		},
		Notes: req.Notes,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutResponse{Order: buildOrderPayload(order)})
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		apiErr := httpx.NewError("invalid_request", "order submission is invalid", http.StatusBadRequest)
		var fields domain.FieldErrors
		if errors.As(err, &fields) {
			details := make(map[string]any, len(fields))
			for field, message := range fields {
				details[field] = message
			}
			apiErr = apiErr.WithDetails(map[string]any{"fields": details})
		}
		httpx.WriteError(ctx, w, apiErr)
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("order_forbidden", "you may not access this order", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "conflicting order write; retry", http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
