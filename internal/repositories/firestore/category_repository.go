package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/linden-market/api/internal/domain"
	pfirestore "github.com/linden-market/api/internal/platform/firestore"
	"github.com/linden-market/api/internal/repositories"
)

const categoryCollection = "categories"

type categoryDocument struct {
	Name      string    `firestore:"name"`
	Slug      string    `firestore:"slug"`
	Image     string    `firestore:"image,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// CategoryRepository persists storefront navigation categories.
type CategoryRepository struct {
	base *pfirestore.BaseRepository[categoryDocument]
}

// NewCategoryRepository constructs a Firestore-backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository requires firestore provider")
	}
	return &CategoryRepository{
		base: pfirestore.NewBaseRepository[categoryDocument](provider, categoryCollection, nil, nil),
	}, nil
}

// List returns every category, name-ordered.
func (r *CategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("category repository not initialised")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	categories := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, domain.Category{
			ID:        doc.ID,
			Name:      doc.Data.Name,
			Slug:      doc.Data.Slug,
			Image:     doc.Data.Image,
			CreatedAt: doc.Data.CreatedAt,
			UpdatedAt: doc.Data.UpdatedAt,
		})
	}
	return categories, nil
}

// Upsert writes the category document under its ID.
func (r *CategoryRepository) Upsert(ctx context.Context, category domain.Category) (domain.Category, error) {
	if r == nil || r.base == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	id := strings.TrimSpace(category.ID)
	if id == "" {
		return domain.Category{}, errors.New("category repository: category id is required")
	}

	doc := categoryDocument{
		Name:      strings.TrimSpace(category.Name),
		Slug:      strings.TrimSpace(category.Slug),
		Image:     strings.TrimSpace(category.Image),
		CreatedAt: category.CreatedAt.UTC(),
		UpdatedAt: category.UpdatedAt.UTC(),
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	result, err := r.base.Set(ctx, id, doc)
	if err != nil {
		return domain.Category{}, err
	}
	return domain.Category{
		ID:        id,
		Name:      doc.Name,
		Slug:      doc.Slug,
		Image:     doc.Image,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: result.UpdateTime,
	}, nil
}

// Delete removes the category document.
func (r *CategoryRepository) Delete(ctx context.Context, categoryID string) error {
	if r == nil || r.base == nil {
		return errors.New("category repository not initialised")
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(categoryID))
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("categories.delete", err)
	}
	return nil
}

var _ repositories.CategoryRepository = (*CategoryRepository)(nil)
