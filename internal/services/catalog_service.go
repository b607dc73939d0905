package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/linden-market/api/internal/domain"
	"github.com/linden-market/api/internal/repositories"
)

const (
	productIDPrefix  = "prd_"
	categoryIDPrefix = "cat_"
)

var (
	// ErrCatalogInvalidInput signals the caller provided invalid data.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogNotFound indicates the product or category does not exist.
	ErrCatalogNotFound = errors.New("catalog: not found")
	// ErrCatalogUnavailable indicates the catalog store cannot be reached.
	ErrCatalogUnavailable = errors.New("catalog: storage unavailable")
)

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	Products    repositories.ProductRepository
	Categories  repositories.CategoryRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type catalogService struct {
	products    repositories.ProductRepository
	categories  repositories.CategoryRepository
	descrPolicy *bluemonday.Policy
	clock       func() time.Time
	newID       func() string
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	if deps.Categories == nil {
		return nil, errors.New("catalog service: category repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	return &catalogService{
		products:    deps.Products,
		categories:  deps.Categories,
		descrPolicy: bluemonday.UGCPolicy(),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return Product{}, s.mapRepositoryError(err)
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error) {
	page, err := s.products.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Product]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return categories, nil
}

// UpsertProduct writes the product, assigning an id and slug when absent and
// sanitising the rich-text description.
func (s *catalogService) UpsertProduct(ctx context.Context, product Product) (Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" {
		return Product{}, fmt.Errorf("%w: product name is required", ErrCatalogInvalidInput)
	}
	if product.Price < 0 {
		return Product{}, fmt.Errorf("%w: price must not be negative", ErrCatalogInvalidInput)
	}
	if product.OfferPrice != nil && *product.OfferPrice < 0 {
		return Product{}, fmt.Errorf("%w: offer price must not be negative", ErrCatalogInvalidInput)
	}

	now := s.clock()
	if strings.TrimSpace(product.ID) == "" {
		product.ID = productIDPrefix + s.newID()
		product.CreatedAt = now
	}
	if strings.TrimSpace(product.Slug) == "" {
		product.Slug = Slugify(product.Name)
	}
	product.Description = strings.TrimSpace(s.descrPolicy.Sanitize(product.Description))
	product.UpdatedAt = now

	saved, err := s.products.Upsert(ctx, product)
	if err != nil {
		return Product{}, s.mapRepositoryError(err)
	}
	return saved, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	id := strings.TrimSpace(productID)
	if id == "" {
		return fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *catalogService) UpsertCategory(ctx context.Context, category Category) (Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return Category{}, fmt.Errorf("%w: category name is required", ErrCatalogInvalidInput)
	}

	now := s.clock()
	if strings.TrimSpace(category.ID) == "" {
		category.ID = categoryIDPrefix + s.newID()
		category.CreatedAt = now
	}
	if strings.TrimSpace(category.Slug) == "" {
		category.Slug = Slugify(category.Name)
	}
	category.UpdatedAt = now

	saved, err := s.categories.Upsert(ctx, category)
	if err != nil {
		return Category{}, s.mapRepositoryError(err)
	}
	return saved, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	id := strings.TrimSpace(categoryID)
	if id == "" {
		return fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *catalogService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCatalogNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
	}
	return err
}

// Slugify folds a display name into a URL-safe slug.
func Slugify(name string) string {
	folded := domain.FoldName(name)
	slug := slugSeparators.ReplaceAllString(folded, "-")
	return strings.Trim(slug, "-")
}
