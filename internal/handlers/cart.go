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

const (
	maxCartBodySize = 16 * 1024
	// cartTokenHeader carries the opaque cart identifier for guest shoppers.
	// Authenticated requests use the Firebase UID instead.
	cartTokenHeader = "X-Cart-Token"
)

// CartHandlers exposes the cart endpoints. Guests and authenticated shoppers
// share the same surface; only the cart identifier differs.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

// NewCartHandlers constructs cart handlers with optional Firebase authentication.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{
		authn: authn,
		carts: carts,
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.OptionalFirebaseAuth())
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items", h.updateQuantity)
	r.Delete("/items/{productID}", h.removeItem)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cartID, _, ok := h.requireCartID(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(ctx, cartID)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cartID, userID, ok := h.requireCartID(w, r)
	if !ok {
		return
	}

	var req struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
		Color     string `json:"color"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}

	cart, err := h.carts.AddItem(ctx, services.AddCartItemCommand{
		CartID:       cartID,
		UserID:       userID,
		ProductID:    strings.TrimSpace(req.ProductID),
		Quantity:     req.Quantity,
		ColorVariant: strings.TrimSpace(req.Color),
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) updateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cartID, _, ok := h.requireCartID(w, r)
	if !ok {
		return
	}

	var req struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
		Color     string `json:"color"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}

	cart, err := h.carts.UpdateQuantity(ctx, services.UpdateCartQuantityCommand{
		CartID:       cartID,
		ProductID:    strings.TrimSpace(req.ProductID),
		ColorVariant: strings.TrimSpace(req.Color),
		Quantity:     req.Quantity,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cartID, _, ok := h.requireCartID(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(ctx, services.RemoveCartItemCommand{
		CartID:       cartID,
		ProductID:    strings.TrimSpace(chi.URLParam(r, "productID")),
		ColorVariant: strings.TrimSpace(r.URL.Query().Get("color")),
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cartID, _, ok := h.requireCartID(w, r)
	if !ok {
		return
	}

	if err := h.carts.ClearCart(ctx, cartID); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// requireCartID resolves the cart identifier: the Firebase UID when the
// request is authenticated, the client-held cart token otherwise.
func (h *CartHandlers) requireCartID(w http.ResponseWriter, r *http.Request) (cartID, userID string, ok bool) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return "", "", false
	}

	if identity, found := auth.IdentityFromContext(ctx); found && identity != nil && strings.TrimSpace(identity.UID) != "" {
		uid := strings.TrimSpace(identity.UID)
		return uid, uid, true
	}

	token := strings.TrimSpace(r.Header.Get(cartTokenHeader))
	if token == "" {
		httpx.WriteError(ctx, w, httpx.NewError("cart_token_required", "provide a cart token or sign in", http.StatusBadRequest))
		return "", "", false
	}
	return token, "", true
}

func (h *CartHandlers) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		} else {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := decodeJSONBody(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return false
	}
	return true
}

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to process cart request", http.StatusInternalServerError))
	}
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type cartPayload struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id,omitempty"`
	Items      []cartItemPayload `json:"items"`
	ItemsCount int               `json:"items_count"`
	Subtotal   int64             `json:"subtotal"`
	Shipping   int64             `json:"shipping"`
	Total      int64             `json:"total"`
	UpdatedAt  string            `json:"updated_at,omitempty"`
}

type cartItemPayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Image     string `json:"image,omitempty"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color,omitempty"`
	LineTotal int64  `json:"line_total"`
}

func buildCartPayload(cart services.Cart) cartPayload {
	items := make([]cartItemPayload, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		items = append(items, cartItemPayload{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Image:     line.Image,
			Quantity:  line.Quantity,
			Color:     line.ColorVariant,
			LineTotal: line.LineTotal(),
		})
	}

	// An empty cart previews no shipping fee; the flat fee only applies once
	// there is something to ship.
	subtotal := cart.Subtotal()
	var shipping, total int64
	if !cart.IsEmpty() {
		shipping = domain.ShippingCost(subtotal)
		total = domain.OrderTotal(subtotal)
	}

	return cartPayload{
		ID:         cart.ID,
		UserID:     cart.UserID,
		Items:      items,
		ItemsCount: cart.ItemCount(),
		Subtotal:   subtotal,
		Shipping:   shipping,
		Total:      total,
		UpdatedAt:  formatTime(cart.UpdatedAt),
	}
}
