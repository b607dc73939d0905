package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/linden-market/api/internal/domain"
	"github.com/linden-market/api/internal/platform/auth"
	"github.com/linden-market/api/internal/services"
)

func adminRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	identity := &auth.Identity{UID: "admin-1", Roles: []string{auth.RoleAdmin}}
	return req.WithContext(auth.WithIdentity(req.Context(), identity))
}

func TestAdminHandlersListOrdersForwardsFilter(t *testing.T) {
	var captured services.OrderListFilter
	orders := &stubOrderService{
		listFunc: func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
			captured = filter
			return domain.CursorPage[services.Order]{
				Items: []services.Order{
					{ID: "ord-1", Number: "1001", Status: domain.OrderStatusNew, Total: 5000},
				},
				NextPageToken: "tok-next",
			}, nil
		},
	}

	handler := NewAdminHandlers(nil, orders, nil, nil, false)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	target := "/admin/orders?status=new,confirmed&user=user-3&from=2026-01-01T00:00:00Z&to=2026-02-01T00:00:00Z&pageSize=50"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodGet, target, ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "user-3" {
		t.Fatalf("expected user filter, got %q", captured.UserID)
	}
	if len(captured.Status) != 2 || captured.Status[0] != domain.OrderStatusNew || captured.Status[1] != domain.OrderStatusConfirmed {
		t.Fatalf("unexpected status filter %#v", captured.Status)
	}
	if captured.DateRange.From == nil || captured.DateRange.To == nil {
		t.Fatalf("expected date range set, got %#v", captured.DateRange)
	}
	if captured.Pagination.PageSize != 50 {
		t.Fatalf("expected page size 50, got %d", captured.Pagination.PageSize)
	}

	var resp struct {
		Orders        []orderPayload `json:"orders"`
		NextPageToken string         `json:"next_page_token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Orders) != 1 || resp.NextPageToken != "tok-next" {
		t.Fatalf("unexpected response %#v", resp)
	}
}

func TestAdminHandlersListOrdersUnknownStatus(t *testing.T) {
	handler := NewAdminHandlers(nil, &stubOrderService{}, nil, nil, false)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodGet, "/admin/orders?status=expediat", ""))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlersTransitionStatus(t *testing.T) {
	var captured services.OrderStatusTransitionCommand
	orders := &stubOrderService{
		transitionFunc: func(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: cmd.OrderID, Status: cmd.Target}, nil
		},
	}

	handler := NewAdminHandlers(nil, orders, nil, nil, false)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodPatch, "/admin/orders/ord-4/status", `{"status":"shipped"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord-4" || captured.Target != domain.OrderStatusShipped {
		t.Fatalf("unexpected command %#v", captured)
	}
	if captured.ActorID != "admin-1" {
		t.Fatalf("expected actor from identity, got %q", captured.ActorID)
	}
}

func TestAdminHandlersTransitionStatusConflict(t *testing.T) {
	orders := &stubOrderService{
		transitionFunc: func(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderConflict
		},
	}

	handler := NewAdminHandlers(nil, orders, nil, nil, false)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodPatch, "/admin/orders/ord-4/status", `{"status":"confirmed"}`))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestAdminHandlersUpsertProduct(t *testing.T) {
	var captured services.Product
	catalog := &stubCatalogService{
		upsertProductFunc: func(ctx context.Context, product services.Product) (services.Product, error) {
			captured = product
			product.ID = "prod-new"
			return product, nil
		},
	}

	handler := NewAdminHandlers(nil, nil, catalog, nil, false)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	body := `{"name":"Tavă lemn","slug":"tava-lemn","price":7800,"offer_price":6900,"colors":["natur"],"category_id":"cat-2","in_stock":true}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodPut, "/admin/products", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Name != "Tavă lemn" || captured.Price != 7800 {
		t.Fatalf("unexpected product captured %#v", captured)
	}
	if captured.OfferPrice == nil || *captured.OfferPrice != 6900 {
		t.Fatalf("expected offer price captured, got %#v", captured.OfferPrice)
	}

	var resp struct {
		Product productPayload `json:"product"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Product.ID != "prod-new" {
		t.Fatalf("expected generated id echoed, got %q", resp.Product.ID)
	}
}

func TestAdminHandlersDeleteProduct(t *testing.T) {
	var deleted string
	catalog := &stubCatalogService{
		deleteProductFunc: func(ctx context.Context, productID string) error {
			deleted = productID
			return nil
		},
	}

	handler := NewAdminHandlers(nil, nil, catalog, nil, false)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodDelete, "/admin/products/prod-7", ""))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if deleted != "prod-7" {
		t.Fatalf("expected prod-7 deleted, got %q", deleted)
	}
}

func TestAdminHandlersUpsertCategory(t *testing.T) {
	catalog := &stubCatalogService{
		upsertCategoryFunc: func(ctx context.Context, category services.Category) (services.Category, error) {
			category.ID = "cat-new"
			return category, nil
		},
	}

	handler := NewAdminHandlers(nil, nil, catalog, nil, false)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodPut, "/admin/categories", `{"name":"Textile","slug":"textile"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAdminHandlersStatsDisabled(t *testing.T) {
	handler := NewAdminHandlers(nil, nil, nil, &stubStatsService{}, false)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodGet, "/admin/stats", ""))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestAdminHandlersStatsSuccess(t *testing.T) {
	generated := time.Date(2026, 4, 2, 7, 0, 0, 0, time.UTC)
	stats := &stubStatsService{
		computeFunc: func(ctx context.Context) (services.StoreStats, error) {
			return services.StoreStats{
				Today:             services.PeriodStats{Orders: 3, Revenue: 45000},
				AllTime:           services.PeriodStats{Orders: 412, Revenue: 9830000},
				NewOrdersToday:    2,
				ProductsInStock:   58,
				ActiveSubscribers: 311,
				GeneratedAt:       generated,
			}, nil
		},
	}

	handler := NewAdminHandlers(nil, nil, nil, stats, true)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodGet, "/admin/stats", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Stats statsPayload `json:"stats"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Stats.Today.Orders != 3 || resp.Stats.Today.Revenue != 45000 {
		t.Fatalf("unexpected today stats %#v", resp.Stats.Today)
	}
	if resp.Stats.ActiveSubscribers != 311 {
		t.Fatalf("expected 311 subscribers, got %d", resp.Stats.ActiveSubscribers)
	}
	if resp.Stats.GeneratedAt != generated.Format(time.RFC3339) {
		t.Fatalf("unexpected generated_at %q", resp.Stats.GeneratedAt)
	}
}

func TestAdminHandlersStatsUnavailable(t *testing.T) {
	stats := &stubStatsService{
		computeFunc: func(ctx context.Context) (services.StoreStats, error) {
			return services.StoreStats{}, services.ErrStatsUnavailable
		},
	}

	handler := NewAdminHandlers(nil, nil, nil, stats, true)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodGet, "/admin/stats", ""))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

type stubStatsService struct {
	computeFunc func(ctx context.Context) (services.StoreStats, error)
}

func (s *stubStatsService) ComputeStats(ctx context.Context) (services.StoreStats, error) {
	if s.computeFunc != nil {
		return s.computeFunc(ctx)
	}
	return services.StoreStats{}, errors.New("not implemented")
}
