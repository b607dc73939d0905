package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/linden-market/api/internal/domain"
)

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
	calls  int
}

func (s *stubHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	s.calls++
	return s.report, s.err
}

func TestSystemServiceHealthReportEnrichesMetadata(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Minute)
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
			},
		},
	}

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            func() time.Time { return now },
		Build: BuildInfo{
			Version:     "1.2.3",
			Environment: "prod",
			StartedAt:   start,
		},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}

	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected derived ok status, got %q", report.Status)
	}
	if report.Version != "1.2.3" || report.Environment != "prod" {
		t.Fatalf("expected build metadata filled in, got %#v", report)
	}
	if report.Uptime != 5*time.Minute {
		t.Fatalf("expected uptime 5m, got %v", report.Uptime)
	}
	if report.GeneratedAt != now {
		t.Fatalf("expected generatedAt %v, got %v", now, report.GeneratedAt)
	}
	if repo.calls != 1 {
		t.Fatalf("expected single collect call, got %d", repo.calls)
	}
}

func TestSystemServiceHealthReportDerivesWorstStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]domain.SystemHealthCheck
		want   string
	}{
		{
			name:   "no checks defaults to ok",
			checks: nil,
			want:   domain.HealthStatusOK,
		},
		{
			name: "degraded dependency degrades the report",
			checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
				"pubsub":    {Status: domain.HealthStatusDegraded},
			},
			want: domain.HealthStatusDegraded,
		},
		{
			name: "error dependency wins over degraded",
			checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusError},
				"pubsub":    {Status: domain.HealthStatusDegraded},
			},
			want: domain.HealthStatusError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubHealthRepository{report: domain.SystemHealthReport{Checks: tc.checks}}
			svc, err := NewSystemService(SystemServiceDeps{
				HealthRepository: repo,
				Clock:            func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
			})
			if err != nil {
				t.Fatalf("NewSystemService: %v", err)
			}

			report, err := svc.HealthReport(context.Background())
			if err != nil {
				t.Fatalf("HealthReport: %v", err)
			}
			if report.Status != tc.want {
				t.Fatalf("expected status %q, got %q", tc.want, report.Status)
			}
		})
	}
}

func TestSystemServiceHealthReportPropagatesCollectError(t *testing.T) {
	collectErr := errors.New("probe failed")
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{err: collectErr},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	if _, err := svc.HealthReport(context.Background()); !errors.Is(err, collectErr) {
		t.Fatalf("expected collect error, got %v", err)
	}
}

func TestSystemServiceRequiresHealthRepository(t *testing.T) {
	if _, err := NewSystemService(SystemServiceDeps{}); err == nil {
		t.Fatal("expected error for missing health repository")
	}
}
