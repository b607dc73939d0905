package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	domain "github.com/linden-market/api/internal/domain"
	pfirestore "github.com/linden-market/api/internal/platform/firestore"
	"github.com/linden-market/api/internal/repositories"
)

const newsletterCollection = "newsletter"

type newsletterDocument struct {
	Email        string    `firestore:"email"`
	Status       string    `firestore:"status"`
	SubscribedAt time.Time `firestore:"subscribedAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// NewsletterRepository stores mailing-list entries. Documents are keyed by a
// hash of the lower-cased address so an email maps to exactly one entry.
type NewsletterRepository struct {
	base *pfirestore.BaseRepository[newsletterDocument]
}

// NewNewsletterRepository constructs a Firestore-backed newsletter repository.
func NewNewsletterRepository(provider *pfirestore.Provider) (*NewsletterRepository, error) {
	if provider == nil {
		return nil, errors.New("newsletter repository requires firestore provider")
	}
	return &NewsletterRepository{
		base: pfirestore.NewBaseRepository[newsletterDocument](provider, newsletterCollection, nil, nil),
	}, nil
}

// Upsert writes the subscriber entry for its address.
func (r *NewsletterRepository) Upsert(ctx context.Context, subscriber domain.NewsletterSubscriber) (domain.NewsletterSubscriber, error) {
	if r == nil || r.base == nil {
		return domain.NewsletterSubscriber{}, errors.New("newsletter repository not initialised")
	}
	email := strings.ToLower(strings.TrimSpace(subscriber.Email))
	if email == "" {
		return domain.NewsletterSubscriber{}, errors.New("newsletter repository: email is required")
	}

	doc := newsletterDocument{
		Email:        email,
		Status:       strings.TrimSpace(subscriber.Status),
		SubscribedAt: subscriber.SubscribedAt.UTC(),
		UpdatedAt:    subscriber.UpdatedAt.UTC(),
	}
	if doc.SubscribedAt.IsZero() {
		doc.SubscribedAt = time.Now().UTC()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.SubscribedAt
	}

	result, err := r.base.Set(ctx, emailDocID(email), doc)
	if err != nil {
		return domain.NewsletterSubscriber{}, err
	}
	return domain.NewsletterSubscriber{
		Email:        doc.Email,
		Status:       doc.Status,
		SubscribedAt: doc.SubscribedAt,
		UpdatedAt:    result.UpdateTime,
	}, nil
}

// ListAll streams the full subscriber list for read-side aggregation.
func (r *NewsletterRepository) ListAll(ctx context.Context) ([]domain.NewsletterSubscriber, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("newsletter repository not initialised")
	}
	docs, err := r.base.Query(ctx, nil)
	if err != nil {
		return nil, err
	}
	subscribers := make([]domain.NewsletterSubscriber, 0, len(docs))
	for _, doc := range docs {
		subscribers = append(subscribers, domain.NewsletterSubscriber{
			Email:        doc.Data.Email,
			Status:       doc.Data.Status,
			SubscribedAt: doc.Data.SubscribedAt,
			UpdatedAt:    doc.Data.UpdatedAt,
		})
	}
	return subscribers, nil
}

func emailDocID(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:16])
}

var _ repositories.NewsletterRepository = (*NewsletterRepository)(nil)
