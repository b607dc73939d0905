package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/linden-market/api/internal/domain"
	"github.com/linden-market/api/internal/services"
)

func TestHealthHandlersHealthz(t *testing.T) {
	handler := NewHealthHandlers(nil)
	rr := httptest.NewRecorder()
	handler.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != domain.HealthStatusOK {
		t.Fatalf("expected ok status, got %v", resp["status"])
	}
}

func TestHealthHandlersReadyzHealthy(t *testing.T) {
	system := &stubSystemService{
		reportFunc: func(ctx context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{
				Status: domain.HealthStatusOK,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond},
				},
				Version:     "1.4.0",
				Environment: "production",
				GeneratedAt: time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC),
			}, nil
		},
	}

	handler := NewHealthHandlers(system)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Status  string                    `json:"status"`
		Checks  map[string]map[string]any `json:"checks"`
		Version string                    `json:"version"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != domain.HealthStatusOK || resp.Version != "1.4.0" {
		t.Fatalf("unexpected payload %#v", resp)
	}
	if _, ok := resp.Checks["firestore"]; !ok {
		t.Fatalf("expected firestore check in payload, got %#v", resp.Checks)
	}
}

func TestHealthHandlersReadyzDependencyDown(t *testing.T) {
	system := &stubSystemService{
		reportFunc: func(ctx context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{
				Status: domain.HealthStatusError,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusError, Error: "context deadline exceeded"},
				},
			}, nil
		},
	}

	handler := NewHealthHandlers(system)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestHealthHandlersReadyzProbeFailure(t *testing.T) {
	system := &stubSystemService{
		reportFunc: func(ctx context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{}, errors.New("probe failed")
		},
	}

	handler := NewHealthHandlers(system)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestHealthHandlersReadyzWithoutSystemService(t *testing.T) {
	handler := NewHealthHandlers(nil)
	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

type stubSystemService struct {
	reportFunc func(ctx context.Context) (services.SystemHealthReport, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (services.SystemHealthReport, error) {
	if s.reportFunc != nil {
		return s.reportFunc(ctx)
	}
	return services.SystemHealthReport{}, errors.New("not implemented")
}
