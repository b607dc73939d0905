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
	// ErrCartInvalidInput signals the caller provided invalid data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartProductNotFound indicates the referenced product does not exist.
	ErrCartProductNotFound = errors.New("cart: product not found")
	// ErrCartUnavailable indicates the cart store cannot be reached.
	ErrCartUnavailable = errors.New("cart: storage unavailable")
)

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Products repositories.ProductRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// GetCart loads and normalises the cart. A missing or unreadable document
// degrades to an empty cart so a corrupt store entry never reaches the caller.
func (s *cartService) GetCart(ctx context.Context, cartID string) (Cart, error) {
	id := strings.TrimSpace(cartID)
	if id == "" {
		return Cart{}, fmt.Errorf("%w: cart id is required", ErrCartInvalidInput)
	}
	return s.loadCart(ctx, id)
}

func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	id := strings.TrimSpace(cmd.CartID)
	if id == "" {
		return Cart{}, fmt.Errorf("%w: cart id is required", ErrCartInvalidInput)
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return Cart{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, fmt.Errorf("%w: %s", ErrCartProductNotFound, productID)
		}
		return Cart{}, s.mapRepositoryError(err)
	}

	cart, err := s.loadCart(ctx, id)
	if err != nil {
		return Cart{}, err
	}

	colorVariant := strings.TrimSpace(cmd.ColorVariant)
	merged := false
	for i := range cart.Lines {
		if cart.Lines[i].Matches(productID, colorVariant) {
			cart.Lines[i].Quantity += cmd.Quantity
			merged = true
			break
		}
	}
	if !merged {
		image := ""
		if len(product.Images) > 0 {
			image = product.Images[0]
		}
		cart.Lines = append(cart.Lines, domain.CartLine{
			ProductID:    productID,
			Name:         product.Name,
			UnitPrice:    product.EffectivePrice(),
			Image:        image,
			Quantity:     cmd.Quantity,
			ColorVariant: colorVariant,
		})
	}

	if uid := strings.TrimSpace(cmd.UserID); uid != "" {
		cart.UserID = uid
	}
	return s.saveCart(ctx, cart)
}

// RemoveItem deletes the matching line. Removing an absent line is a no-op.
func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error) {
	id := strings.TrimSpace(cmd.CartID)
	if id == "" {
		return Cart{}, fmt.Errorf("%w: cart id is required", ErrCartInvalidInput)
	}

	cart, err := s.loadCart(ctx, id)
	if err != nil {
		return Cart{}, err
	}

	productID := strings.TrimSpace(cmd.ProductID)
	colorVariant := strings.TrimSpace(cmd.ColorVariant)
	kept := cart.Lines[:0]
	removed := false
	for _, line := range cart.Lines {
		if line.Matches(productID, colorVariant) {
			removed = true
			continue
		}
		kept = append(kept, line)
	}
	if !removed {
		return cart, nil
	}
	cart.Lines = kept
	return s.saveCart(ctx, cart)
}

// UpdateQuantity sets the quantity of the matching line exactly. A quantity
// of zero or less removes the line.
func (s *cartService) UpdateQuantity(ctx context.Context, cmd UpdateCartQuantityCommand) (Cart, error) {
	if cmd.Quantity <= 0 {
		return s.RemoveItem(ctx, RemoveCartItemCommand{
			CartID:       cmd.CartID,
			ProductID:    cmd.ProductID,
			ColorVariant: cmd.ColorVariant,
		})
	}

	id := strings.TrimSpace(cmd.CartID)
	if id == "" {
		return Cart{}, fmt.Errorf("%w: cart id is required", ErrCartInvalidInput)
	}

	cart, err := s.loadCart(ctx, id)
	if err != nil {
		return Cart{}, err
	}

	productID := strings.TrimSpace(cmd.ProductID)
	colorVariant := strings.TrimSpace(cmd.ColorVariant)
	for i := range cart.Lines {
		if cart.Lines[i].Matches(productID, colorVariant) {
			cart.Lines[i].Quantity = cmd.Quantity
			return s.saveCart(ctx, cart)
		}
	}
	return cart, nil
}

// ClearCart empties the collection by deleting the cart document.
func (s *cartService) ClearCart(ctx context.Context, cartID string) error {
	id := strings.TrimSpace(cartID)
	if id == "" {
		return fmt.Errorf("%w: cart id is required", ErrCartInvalidInput)
	}
	if err := s.carts.Delete(ctx, id); err != nil {
		if isRepoNotFound(err) {
			return nil
		}
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *cartService) loadCart(ctx context.Context, cartID string) (Cart, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		if isRepoNotFound(err) {
			s.logger(ctx, "cart.rehydrate.empty", map[string]any{
				"cart": cartID,
			})
			return Cart{ID: cartID, Lines: []domain.CartLine{}}, nil
		}
		return Cart{}, s.mapRepositoryError(err)
	}
	cart.ID = cartID
	return normaliseCart(cart), nil
}

func (s *cartService) saveCart(ctx context.Context, cart Cart) (Cart, error) {
	cart = normaliseCart(cart)
	now := s.clock()
	cart.UpdatedAt = now
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	saved, err := s.carts.Save(ctx, cart)
	if err != nil {
		return Cart{}, s.mapRepositoryError(err)
	}
	return saved, nil
}

// normaliseCart collapses duplicate (product, colour) lines and drops lines
// whose quantity is not positive. Stored documents predating a rule change
// may violate either invariant.
func normaliseCart(cart Cart) Cart {
	lines := make([]domain.CartLine, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		if line.Quantity <= 0 || strings.TrimSpace(line.ProductID) == "" {
			continue
		}
		mergedInto := -1
		for i := range lines {
			if lines[i].Matches(line.ProductID, line.ColorVariant) {
				mergedInto = i
				break
			}
		}
		if mergedInto >= 0 {
			lines[mergedInto].Quantity += line.Quantity
			continue
		}
		lines = append(lines, line)
	}
	cart.Lines = lines
	return cart
}

func (s *cartService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCartProductNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
		}
	}
	return err
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
