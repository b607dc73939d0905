package mail

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/linden-market/api/internal/services"
)

type stubDoer struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	return s.doFunc(req)
}

func jsonResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("{}")),
	}
}

func TestDispatchSendsConfirmationThroughProvider(t *testing.T) {
	var captured providerPayload
	var authHeader string
	doer := &stubDoer{
		doFunc: func(req *http.Request) (*http.Response, error) {
			authHeader = req.Header.Get("Authorization")
			if err := json.NewDecoder(req.Body).Decode(&captured); err != nil {
				t.Fatalf("failed to decode provider payload: %v", err)
			}
			return jsonResponse(http.StatusOK), nil
		},
	}

	d := NewDispatcher("magazin@example.ro", "operator@example.ro", "token-123", WithHTTPClient(doer))
	err := d.Dispatch(context.Background(), services.OrderMailMessage{
		Type:        services.MailTypeOrderConfirmation,
		OrderID:     "ord-1",
		OrderNumber: "1001",
		Recipient:   "client@example.ro",
		Total:       12550,
		OccurredAt:  time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	if authHeader != "Bearer token-123" {
		t.Fatalf("expected bearer token, got %q", authHeader)
	}
	if captured.From != "magazin@example.ro" || captured.To != "client@example.ro" {
		t.Fatalf("unexpected addressing %#v", captured)
	}
	if !strings.Contains(captured.Subject, "1001") {
		t.Fatalf("expected order number in subject, got %q", captured.Subject)
	}
	if !strings.Contains(captured.Text, "125.50") {
		t.Fatalf("expected total in lei in body, got %q", captured.Text)
	}
}

func TestDispatchAdminNotifyDefaultsToOperator(t *testing.T) {
	var captured providerPayload
	doer := &stubDoer{
		doFunc: func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&captured); err != nil {
				t.Fatalf("failed to decode provider payload: %v", err)
			}
			return jsonResponse(http.StatusAccepted), nil
		},
	}

	d := NewDispatcher("magazin@example.ro", "operator@example.ro", "token-123", WithHTTPClient(doer))
	err := d.Dispatch(context.Background(), services.OrderMailMessage{
		Type:        services.MailTypeOrderAdminNotify,
		OrderID:     "ord-2",
		OrderNumber: "1002",
		Total:       4000,
	})
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if captured.To != "operator@example.ro" {
		t.Fatalf("expected operator fallback recipient, got %q", captured.To)
	}
}

func TestDispatchLogOnlyModeSkipsProvider(t *testing.T) {
	doer := &stubDoer{
		doFunc: func(req *http.Request) (*http.Response, error) {
			t.Fatalf("provider must not be called without a token")
			return nil, nil
		},
	}

	d := NewDispatcher("magazin@example.ro", "operator@example.ro", "", WithHTTPClient(doer))
	err := d.Dispatch(context.Background(), services.OrderMailMessage{
		Type:      services.MailTypeOrderConfirmation,
		OrderID:   "ord-3",
		Recipient: "client@example.ro",
	})
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
}

func TestDispatchUnknownTypeFails(t *testing.T) {
	d := NewDispatcher("magazin@example.ro", "operator@example.ro", "")
	err := d.Dispatch(context.Background(), services.OrderMailMessage{Type: "order.mystery"})
	if !errors.Is(err, ErrUnknownMailType) {
		t.Fatalf("expected ErrUnknownMailType, got %v", err)
	}
}

func TestDispatchProviderErrorSurfaces(t *testing.T) {
	doer := &stubDoer{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusBadGateway), nil
		},
	}

	d := NewDispatcher("magazin@example.ro", "operator@example.ro", "token-123", WithHTTPClient(doer))
	err := d.Dispatch(context.Background(), services.OrderMailMessage{
		Type:      services.MailTypeOrderConfirmation,
		Recipient: "client@example.ro",
	})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected provider status error, got %v", err)
	}
}

func TestDispatchMissingRecipientFails(t *testing.T) {
	d := NewDispatcher("magazin@example.ro", "", "")
	err := d.Dispatch(context.Background(), services.OrderMailMessage{
		Type: services.MailTypeOrderAdminNotify,
	})
	if err == nil {
		t.Fatalf("expected error for missing recipient")
	}
}
