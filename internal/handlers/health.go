package handlers

import (
	"net/http"
	"time"

	domain "github.com/linden-market/api/internal/domain"
	"github.com/linden-market/api/internal/services"
)

// HealthHandlers serves the liveness and readiness probes. Healthz answers
// from memory; Readyz consults the system service so a broken Firestore
// connection takes the pod out of rotation.
type HealthHandlers struct {
	system services.SystemService
}

// NewHealthHandlers constructs probe handlers. A nil system service degrades
// Readyz to a liveness check.
func NewHealthHandlers(system services.SystemService) *HealthHandlers {
	return &HealthHandlers{system: system}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    domain.HealthStatusOK,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz reports dependency health.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.system == nil {
		h.Healthz(w, r)
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{
			"status": domain.HealthStatusError,
			"error":  "health probe failed",
		})
		return
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}

	checks := make(map[string]any, len(report.Checks))
	for name, check := range report.Checks {
		entry := map[string]any{"status": check.Status}
		if check.Detail != "" {
			entry["detail"] = check.Detail
		}
		if check.Error != "" {
			entry["error"] = check.Error
		}
		if check.Latency > 0 {
			entry["latency_ms"] = check.Latency.Milliseconds()
		}
		checks[name] = entry
	}

	payload := map[string]any{
		"status":    report.Status,
		"checks":    checks,
		"timestamp": formatTime(report.GeneratedAt),
	}
	if report.Version != "" {
		payload["version"] = report.Version
	}
	if report.Environment != "" {
		payload["environment"] = report.Environment
	}
	if report.Uptime > 0 {
		payload["uptime"] = report.Uptime.String()
	}

	writeJSONResponse(w, status, payload)
}
