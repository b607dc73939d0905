package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/linden-market/api/internal/domain"
	pfirestore "github.com/linden-market/api/internal/platform/firestore"
	"github.com/linden-market/api/internal/repositories"
)

const cartCollection = "carts"

type cartLineDocument struct {
	ProductID    string `firestore:"productId"`
	Name         string `firestore:"name"`
	UnitPrice    int64  `firestore:"unitPrice"`
	Image        string `firestore:"image,omitempty"`
	Quantity     int    `firestore:"quantity"`
	ColorVariant string `firestore:"colorVariant,omitempty"`
}

type cartDocument struct {
	UserID    string             `firestore:"userId,omitempty"`
	Lines     []cartLineDocument `firestore:"lines"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

// CartRepository persists whole cart documents keyed by cart ID.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base: pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil),
	}, nil
}

// Get loads the cart document for the given cart ID. A document that fails to
// decode is reported as not found so the caller can start from an empty cart.
func (r *CartRepository) Get(ctx context.Context, cartID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	id := strings.TrimSpace(cartID)
	if id == "" {
		return domain.Cart{}, errors.New("cart repository: cart id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) {
			return domain.Cart{}, err
		}
		return domain.Cart{}, repositories.NewNotFoundError("cart document unreadable", err)
	}

	cart := domain.Cart{
		ID:        doc.ID,
		UserID:    strings.TrimSpace(doc.Data.UserID),
		Lines:     make([]domain.CartLine, 0, len(doc.Data.Lines)),
		CreatedAt: doc.Data.CreatedAt,
		UpdatedAt: doc.UpdateTime,
	}
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = doc.CreateTime
	}
	for _, line := range doc.Data.Lines {
		cart.Lines = append(cart.Lines, domain.CartLine{
			ProductID:    line.ProductID,
			Name:         line.Name,
			UnitPrice:    line.UnitPrice,
			Image:        line.Image,
			Quantity:     line.Quantity,
			ColorVariant: line.ColorVariant,
		})
	}
	return cart, nil
}

// Save writes the whole cart document, replacing any previous contents.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	id := strings.TrimSpace(cart.ID)
	if id == "" {
		return domain.Cart{}, errors.New("cart repository: cart id is required")
	}

	now := cart.UpdatedAt.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	createdAt := cart.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := cartDocument{
		UserID:    strings.TrimSpace(cart.UserID),
		Lines:     make([]cartLineDocument, 0, len(cart.Lines)),
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
	for _, line := range cart.Lines {
		doc.Lines = append(doc.Lines, cartLineDocument{
			ProductID:    line.ProductID,
			Name:         line.Name,
			UnitPrice:    line.UnitPrice,
			Image:        line.Image,
			Quantity:     line.Quantity,
			ColorVariant: line.ColorVariant,
		})
	}

	result, err := r.base.Set(ctx, id, doc)
	if err != nil {
		return domain.Cart{}, err
	}

	saved := cart
	saved.ID = id
	saved.Lines = append([]domain.CartLine(nil), cart.Lines...)
	saved.CreatedAt = createdAt
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// Delete removes the cart document. Deleting an absent cart is not an error.
func (r *CartRepository) Delete(ctx context.Context, cartID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	id := strings.TrimSpace(cartID)
	if id == "" {
		return errors.New("cart repository: cart id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("carts.delete", err)
	}
	return nil
}

var _ repositories.CartRepository = (*CartRepository)(nil)
