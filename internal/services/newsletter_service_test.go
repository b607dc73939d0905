package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/linden-market/api/internal/domain"
)

func TestNewsletterServiceSubscribeNormalisesAddress(t *testing.T) {
	now := time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)
	var saved domain.NewsletterSubscriber

	repo := &stubNewsletterRepository{
		upsertFunc: func(ctx context.Context, subscriber domain.NewsletterSubscriber) (domain.NewsletterSubscriber, error) {
			saved = subscriber
			return subscriber, nil
		},
	}
	service, err := NewNewsletterService(NewsletterServiceDeps{
		Newsletter: repo,
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewNewsletterService: %v", err)
	}

	subscriber, err := service.Subscribe(context.Background(), "  Ana@Example.RO ")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if subscriber.Email != "ana@example.ro" {
		t.Fatalf("expected lowercased trimmed email, got %q", subscriber.Email)
	}
	if subscriber.Status != domain.NewsletterStatusActive {
		t.Fatalf("expected active status, got %q", subscriber.Status)
	}
	if saved.SubscribedAt != now || saved.UpdatedAt != now {
		t.Fatalf("expected timestamps set, got %#v", saved)
	}
}

func TestNewsletterServiceUnsubscribeKeepsEntry(t *testing.T) {
	now := time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)
	repo := &stubNewsletterRepository{}
	service, err := NewNewsletterService(NewsletterServiceDeps{
		Newsletter: repo,
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewNewsletterService: %v", err)
	}

	subscriber, err := service.Unsubscribe(context.Background(), "ana@example.ro")
	if err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if subscriber.Status != domain.NewsletterStatusUnsubscribed {
		t.Fatalf("expected unsubscribed status, got %q", subscriber.Status)
	}
}

func TestNewsletterServiceRejectsMalformedAddress(t *testing.T) {
	service, err := NewNewsletterService(NewsletterServiceDeps{Newsletter: &stubNewsletterRepository{}})
	if err != nil {
		t.Fatalf("NewNewsletterService: %v", err)
	}

	for _, email := range []string{"", "plain", "a@b", "@example.ro"} {
		if _, err := service.Subscribe(context.Background(), email); !errors.Is(err, ErrNewsletterInvalidInput) {
			t.Fatalf("expected ErrNewsletterInvalidInput for %q, got %v", email, err)
		}
	}
}
