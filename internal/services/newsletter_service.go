package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/linden-market/api/internal/domain"
	"github.com/linden-market/api/internal/repositories"
)

var (
	// ErrNewsletterInvalidInput signals the caller provided invalid data.
	ErrNewsletterInvalidInput = errors.New("newsletter: invalid input")
	// ErrNewsletterUnavailable indicates the subscriber store cannot be reached.
	ErrNewsletterUnavailable = errors.New("newsletter: storage unavailable")
)

// NewsletterServiceDeps bundles collaborators required to construct the newsletter service.
type NewsletterServiceDeps struct {
	Newsletter repositories.NewsletterRepository
	Clock      func() time.Time
}

type newsletterService struct {
	newsletter repositories.NewsletterRepository
	clock      func() time.Time
}

// NewNewsletterService wires dependencies into a concrete NewsletterService implementation.
func NewNewsletterService(deps NewsletterServiceDeps) (NewsletterService, error) {
	if deps.Newsletter == nil {
		return nil, errors.New("newsletter service: newsletter repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &newsletterService{
		newsletter: deps.Newsletter,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// Subscribe records the address as active. Subscribing twice refreshes the
// existing entry rather than duplicating it.
func (s *newsletterService) Subscribe(ctx context.Context, email string) (NewsletterSubscriber, error) {
	return s.setStatus(ctx, email, domain.NewsletterStatusActive)
}

// Unsubscribe marks the address as opted out while keeping the entry.
func (s *newsletterService) Unsubscribe(ctx context.Context, email string) (NewsletterSubscriber, error) {
	return s.setStatus(ctx, email, domain.NewsletterStatusUnsubscribed)
}

func (s *newsletterService) setStatus(ctx context.Context, email, status string) (NewsletterSubscriber, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if err := domain.ValidateEmail(trimmed); err != nil {
		return NewsletterSubscriber{}, fmt.Errorf("%w: %v", ErrNewsletterInvalidInput, err)
	}

	now := s.clock()
	saved, err := s.newsletter.Upsert(ctx, domain.NewsletterSubscriber{
		Email:        trimmed,
		Status:       status,
		SubscribedAt: now,
		UpdatedAt:    now,
	})
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
			return NewsletterSubscriber{}, fmt.Errorf("%w: %v", ErrNewsletterUnavailable, err)
		}
		return NewsletterSubscriber{}, err
	}
	return saved, nil
}
