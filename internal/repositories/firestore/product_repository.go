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

const (
	productCollection      = "products"
	defaultProductPageSize = 50
	maxProductPageSize     = 200
)

type productDocument struct {
	Name        string    `firestore:"name"`
	Slug        string    `firestore:"slug"`
	Description string    `firestore:"description,omitempty"`
	Price       int64     `firestore:"price"`
	OfferPrice  *int64    `firestore:"offerPrice,omitempty"`
	Images      []string  `firestore:"images,omitempty"`
	Colors      []string  `firestore:"colors,omitempty"`
	CategoryID  string    `firestore:"categoryId,omitempty"`
	InStock     bool      `firestore:"inStock"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// ProductRepository persists catalog entries.
type ProductRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		base: pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil),
	}, nil
}

// FindByID loads a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProduct(doc.ID, doc.Data), nil
}

// List returns catalog entries matching the filter, name-ordered.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Product]{}, errors.New("product repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = defaultProductPageSize
	}
	if pageSize > maxProductPageSize {
		pageSize = maxProductPageSize
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if categoryID := strings.TrimSpace(filter.CategoryID); categoryID != "" {
			q = q.Where("categoryId", "==", categoryID)
		}
		if filter.InStock != nil {
			q = q.Where("inStock", "==", *filter.InStock)
		}
		q = q.OrderBy("name", firestore.Asc)
		if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
			q = q.StartAfter(token)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	search := domain.FoldName(filter.Search)
	page := domain.CursorPage[domain.Product]{Items: make([]domain.Product, 0, len(docs))}
	for i, doc := range docs {
		if i == pageSize {
			page.NextPageToken = page.Items[len(page.Items)-1].Name
			break
		}
		product := decodeProduct(doc.ID, doc.Data)
		if search != "" && !strings.Contains(domain.FoldName(product.Name), search) {
			continue
		}
		page.Items = append(page.Items, product)
	}
	return page, nil
}

// ListAll streams the full catalog for read-side aggregation.
func (r *ProductRepository) ListAll(ctx context.Context) ([]domain.Product, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("product repository not initialised")
	}
	docs, err := r.base.Query(ctx, nil)
	if err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, decodeProduct(doc.ID, doc.Data))
	}
	return products, nil
}

// Upsert writes the product document under its ID.
func (r *ProductRepository) Upsert(ctx context.Context, product domain.Product) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(product.ID)
	if id == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}

	doc := productDocument{
		Name:        strings.TrimSpace(product.Name),
		Slug:        strings.TrimSpace(product.Slug),
		Description: product.Description,
		Price:       product.Price,
		OfferPrice:  product.OfferPrice,
		Images:      append([]string(nil), product.Images...),
		Colors:      append([]string(nil), product.Colors...),
		CategoryID:  strings.TrimSpace(product.CategoryID),
		InStock:     product.InStock,
		CreatedAt:   product.CreatedAt.UTC(),
		UpdatedAt:   product.UpdatedAt.UTC(),
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	result, err := r.base.Set(ctx, id, doc)
	if err != nil {
		return domain.Product{}, err
	}
	saved := decodeProduct(id, doc)
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// Delete removes the product document.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(productID))
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("products.delete", err)
	}
	return nil
}

func decodeProduct(id string, doc productDocument) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        doc.Name,
		Slug:        doc.Slug,
		Description: doc.Description,
		Price:       doc.Price,
		OfferPrice:  doc.OfferPrice,
		Images:      append([]string(nil), doc.Images...),
		Colors:      append([]string(nil), doc.Colors...),
		CategoryID:  doc.CategoryID,
		InStock:     doc.InStock,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
