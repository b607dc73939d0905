package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/linden-market/api/internal/domain"
	"github.com/linden-market/api/internal/platform/auth"
	"github.com/linden-market/api/internal/platform/httpx"
	"github.com/linden-market/api/internal/services"
)

const maxAdminBodySize = 64 * 1024

// AdminHandlers exposes the back-office surface: order management, catalog
// writes, and the dashboard counters.
type AdminHandlers struct {
	authn       *auth.Authenticator
	orders      services.OrderService
	catalog     services.CatalogService
	stats       services.AdminStatsService
	enableStats bool
}

// NewAdminHandlers constructs back-office handlers guarded by staff roles.
func NewAdminHandlers(authn *auth.Authenticator, orders services.OrderService, catalog services.CatalogService, stats services.AdminStatsService, enableStats bool) *AdminHandlers {
	return &AdminHandlers{
		authn:       authn,
		orders:      orders,
		catalog:     catalog,
		stats:       stats,
		enableStats: enableStats,
	}
}

// Routes wires the /admin endpoints onto the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleStaff, auth.RoleAdmin))
	}
	r.Get("/orders", h.listOrders)
	r.Patch("/orders/{orderID}/status", h.transitionStatus)
	r.Put("/products", h.upsertProduct)
	r.Delete("/products/{productID}", h.deleteProduct)
	r.Put("/categories", h.upsertCategory)
	r.Delete("/categories/{categoryID}", h.deleteCategory)
	r.Get("/stats", h.getStats)
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	filter := services.OrderListFilter{
		UserID: strings.TrimSpace(r.URL.Query().Get("user")),
		Pagination: domain.Pagination{
			PageSize:  parsePageSize(r.URL.Query().Get("pageSize")),
			PageToken: strings.TrimSpace(r.URL.Query().Get("pageToken")),
		},
	}

	for _, raw := range strings.Split(r.URL.Query().Get("status"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		status := domain.OrderStatus(raw)
		if !status.IsValid() {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown order status filter", http.StatusBadRequest))
			return
		}
		filter.Status = append(filter.Status, status)
	}

	if from, ok, err := parseDateParam(r, "from"); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from must be an RFC3339 timestamp", http.StatusBadRequest))
		return
	} else if ok {
		filter.DateRange.From = &from
	}
	if to, ok, err := parseDateParam(r, "to"); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "to must be an RFC3339 timestamp", http.StatusBadRequest))
		return
	} else if ok {
		filter.DateRange.To = &to
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"orders":          items,
		"next_page_token": page.NextPageToken,
	})
}

func (h *AdminHandlers) transitionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}

	var actorID string
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil {
		actorID = identity.UID
	}

	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		Target:  domain.OrderStatus(strings.TrimSpace(req.Status)),
		ActorID: actorID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}

type adminProductRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	OfferPrice  *int64   `json:"offer_price"`
	Images      []string `json:"images"`
	Colors      []string `json:"colors"`
	CategoryID  string   `json:"category_id"`
	InStock     bool     `json:"in_stock"`
}

func (h *AdminHandlers) upsertProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req adminProductRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	product, err := h.catalog.UpsertProduct(ctx, services.Product{
		ID:          strings.TrimSpace(req.ID),
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Price:       req.Price,
		OfferPrice:  req.OfferPrice,
		Images:      req.Images,
		Colors:      req.Colors,
		CategoryID:  strings.TrimSpace(req.CategoryID),
		InStock:     req.InStock,
	})
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"product": buildProductPayload(product)})
}

func (h *AdminHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := h.catalog.DeleteProduct(ctx, strings.TrimSpace(chi.URLParam(r, "productID"))); err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adminCategoryRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Image string `json:"image"`
}

func (h *AdminHandlers) upsertCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req adminCategoryRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	category, err := h.catalog.UpsertCategory(ctx, services.Category{
		ID:    strings.TrimSpace(req.ID),
		Name:  req.Name,
		Slug:  req.Slug,
		Image: req.Image,
	})
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"category": buildCategoryPayload(category)})
}

func (h *AdminHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := h.catalog.DeleteCategory(ctx, strings.TrimSpace(chi.URLParam(r, "categoryID"))); err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandlers) getStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.enableStats {
		httpx.WriteError(ctx, w, httpx.NewError("stats_disabled", "dashboard statistics are disabled", http.StatusNotFound))
		return
	}
	if h.stats == nil {
		httpx.WriteError(ctx, w, httpx.NewError("stats_unavailable", "stats service is unavailable", http.StatusServiceUnavailable))
		return
	}

	stats, err := h.stats.ComputeStats(ctx)
	if err != nil {
		if errors.Is(err, services.ErrStatsUnavailable) {
			httpx.WriteError(ctx, w, httpx.NewError("stats_unavailable", "stats service is unavailable", http.StatusServiceUnavailable))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("stats_error", "failed to compute statistics", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"stats": buildStatsPayload(stats)})
}

func (h *AdminHandlers) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxAdminBodySize)
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

func (h *AdminHandlers) writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_not_found", "catalog entry not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to process catalog request", http.StatusInternalServerError))
	}
}

type periodStatsPayload struct {
	Orders  int   `json:"orders"`
	Revenue int64 `json:"revenue"`
}

type statsPayload struct {
	Today              periodStatsPayload `json:"today"`
	ThisWeek           periodStatsPayload `json:"this_week"`
	ThisMonth          periodStatsPayload `json:"this_month"`
	AllTime            periodStatsPayload `json:"all_time"`
	NewOrdersToday     int                `json:"new_orders_today"`
	ProductsInStock    int                `json:"products_in_stock"`
	ProductsOutOfStock int                `json:"products_out_of_stock"`
	ActiveSubscribers  int                `json:"active_subscribers"`
	GeneratedAt        string             `json:"generated_at"`
}

func buildStatsPayload(stats services.StoreStats) statsPayload {
	period := func(p services.PeriodStats) periodStatsPayload {
		return periodStatsPayload{Orders: p.Orders, Revenue: p.Revenue}
	}
	return statsPayload{
		Today:              period(stats.Today),
		ThisWeek:           period(stats.ThisWeek),
		ThisMonth:          period(stats.ThisMonth),
		AllTime:            period(stats.AllTime),
		NewOrdersToday:     stats.NewOrdersToday,
		ProductsInStock:    stats.ProductsInStock,
		ProductsOutOfStock: stats.ProductsOutOfStock,
		ActiveSubscribers:  stats.ActiveSubscribers,
		GeneratedAt:        formatTime(stats.GeneratedAt),
	}
}

func parseDateParam(r *http.Request, name string) (time.Time, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, false, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return parsed, true, nil
}
