package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/linden-market/api/internal/domain"
	"github.com/linden-market/api/internal/platform/httpx"
	"github.com/linden-market/api/internal/services"
)

const (
	defaultPageSize = 24
	maxPageSize     = 100
)

// PublicHandlers serves the unauthenticated storefront reads: catalog
// browsing and the county reference list used by the checkout form.
type PublicHandlers struct {
	catalog services.CatalogService
}

// NewPublicHandlers constructs the storefront read handlers.
func NewPublicHandlers(catalog services.CatalogService) *PublicHandlers {
	return &PublicHandlers{catalog: catalog}
}

// Routes wires the /public endpoints onto the provided router.
func (h *PublicHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/categories", h.listCategories)
	r.Get("/counties", h.listCounties)
	r.Get("/counties/{county}/cities", h.listCities)
}

func (h *PublicHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	filter := services.ProductListFilter{
		CategoryID: strings.TrimSpace(r.URL.Query().Get("category")),
		Search:     strings.TrimSpace(r.URL.Query().Get("q")),
		Pagination: domain.Pagination{
			PageSize:  parsePageSize(r.URL.Query().Get("pageSize")),
			PageToken: strings.TrimSpace(r.URL.Query().Get("pageToken")),
		},
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("inStock")); raw != "" {
		inStock, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "inStock must be a boolean", http.StatusBadRequest))
			return
		}
		filter.InStock = &inStock
	}

	page, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(page.Items))
	for _, product := range page.Items {
		items = append(items, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, productListResponse{
		Products:      items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *PublicHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	product, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"product": buildProductPayload(product)})
}

func (h *PublicHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	items := make([]categoryPayload, 0, len(categories))
	for _, category := range categories {
		items = append(items, buildCategoryPayload(category))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"categories": items})
}

// listCounties returns the fixed county reference list the checkout form
// renders. It never touches storage.
func (h *PublicHandlers) listCounties(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{"counties": domain.Counties()})
}

func (h *PublicHandlers) listCities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	county := strings.TrimSpace(chi.URLParam(r, "county"))
	canonical, ok := domain.CanonicalCounty(county)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("county_not_found", "unknown county", http.StatusNotFound))
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"county": canonical,
		"cities": domain.CitiesFor(canonical),
	})
}

func (h *PublicHandlers) writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "catalog entry not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to read catalog", http.StatusInternalServerError))
	}
}

func parsePageSize(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultPageSize
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size <= 0 {
		return defaultPageSize
	}
	if size > maxPageSize {
		return maxPageSize
	}
	return size
}

type productListResponse struct {
	Products      []productPayload `json:"products"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type productPayload struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description,omitempty"`
	Price       int64    `json:"price"`
	OfferPrice  *int64   `json:"offer_price,omitempty"`
	Images      []string `json:"images,omitempty"`
	Colors      []string `json:"colors,omitempty"`
	CategoryID  string   `json:"category_id,omitempty"`
	InStock     bool     `json:"in_stock"`
	CreatedAt   string   `json:"created_at,omitempty"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
}

type categoryPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Image     string `json:"image,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func buildProductPayload(product services.Product) productPayload {
	return productPayload{
		ID:          product.ID,
		Name:        product.Name,
		Slug:        product.Slug,
		Description: product.Description,
		Price:       product.Price,
		OfferPrice:  product.OfferPrice,
		Images:      product.Images,
		Colors:      product.Colors,
		CategoryID:  product.CategoryID,
		InStock:     product.InStock,
		CreatedAt:   formatTime(product.CreatedAt),
		UpdatedAt:   formatTime(product.UpdatedAt),
	}
}

func buildCategoryPayload(category services.Category) categoryPayload {
	return categoryPayload{
		ID:        category.ID,
		Name:      category.Name,
		Slug:      category.Slug,
		Image:     category.Image,
		CreatedAt: formatTime(category.CreatedAt),
		UpdatedAt: formatTime(category.UpdatedAt),
	}
}
