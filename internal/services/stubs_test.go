package services

import (
	"context"
	"sync"
	"time"

	domain "github.com/linden-market/api/internal/domain"
	"github.com/linden-market/api/internal/repositories"
)

// repositoryErrorStub satisfies repositories.RepositoryError for tests.
type repositoryErrorStub struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *repositoryErrorStub) Error() string       { return "repository error stub" }
func (e *repositoryErrorStub) IsNotFound() bool    { return e.notFound }
func (e *repositoryErrorStub) IsConflict() bool    { return e.conflict }
func (e *repositoryErrorStub) IsUnavailable() bool { return e.unavailable }

type stubCartRepository struct {
	getFunc    func(ctx context.Context, cartID string) (domain.Cart, error)
	saveFunc   func(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	deleteFunc func(ctx context.Context, cartID string) error
}

func (s *stubCartRepository) Get(ctx context.Context, cartID string) (domain.Cart, error) {
	if s.getFunc == nil {
		return domain.Cart{}, &repositoryErrorStub{notFound: true}
	}
	return s.getFunc(ctx, cartID)
}

func (s *stubCartRepository) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if s.saveFunc == nil {
		return cart, nil
	}
	return s.saveFunc(ctx, cart)
}

func (s *stubCartRepository) Delete(ctx context.Context, cartID string) error {
	if s.deleteFunc == nil {
		return nil
	}
	return s.deleteFunc(ctx, cartID)
}

type stubProductRepository struct {
	findFunc    func(ctx context.Context, productID string) (domain.Product, error)
	listFunc    func(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error)
	listAllFunc func(ctx context.Context) ([]domain.Product, error)
	upsertFunc  func(ctx context.Context, product domain.Product) (domain.Product, error)
	deleteFunc  func(ctx context.Context, productID string) error
}

func (s *stubProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findFunc == nil {
		return domain.Product{}, &repositoryErrorStub{notFound: true}
	}
	return s.findFunc(ctx, productID)
}

func (s *stubProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if s.listFunc == nil {
		return domain.CursorPage[domain.Product]{}, nil
	}
	return s.listFunc(ctx, filter)
}

func (s *stubProductRepository) ListAll(ctx context.Context) ([]domain.Product, error) {
	if s.listAllFunc == nil {
		return nil, nil
	}
	return s.listAllFunc(ctx)
}

func (s *stubProductRepository) Upsert(ctx context.Context, product domain.Product) (domain.Product, error) {
	if s.upsertFunc == nil {
		return product, nil
	}
	return s.upsertFunc(ctx, product)
}

func (s *stubProductRepository) Delete(ctx context.Context, productID string) error {
	if s.deleteFunc == nil {
		return nil
	}
	return s.deleteFunc(ctx, productID)
}

type stubCategoryRepository struct {
	listFunc   func(ctx context.Context) ([]domain.Category, error)
	upsertFunc func(ctx context.Context, category domain.Category) (domain.Category, error)
	deleteFunc func(ctx context.Context, categoryID string) error
}

func (s *stubCategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	if s.listFunc == nil {
		return nil, nil
	}
	return s.listFunc(ctx)
}

func (s *stubCategoryRepository) Upsert(ctx context.Context, category domain.Category) (domain.Category, error) {
	if s.upsertFunc == nil {
		return category, nil
	}
	return s.upsertFunc(ctx, category)
}

func (s *stubCategoryRepository) Delete(ctx context.Context, categoryID string) error {
	if s.deleteFunc == nil {
		return nil
	}
	return s.deleteFunc(ctx, categoryID)
}

type stubOrderRepository struct {
	insertFunc       func(ctx context.Context, order domain.Order) error
	updateStatusFunc func(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) error
	findFunc         func(ctx context.Context, orderID string) (domain.Order, error)
	listFunc         func(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	listAllFunc      func(ctx context.Context) ([]domain.Order, error)
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFunc == nil {
		return nil
	}
	return s.insertFunc(ctx, order)
}

func (s *stubOrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) error {
	if s.updateStatusFunc == nil {
		return nil
	}
	return s.updateStatusFunc(ctx, orderID, status, updatedAt)
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFunc == nil {
		return domain.Order{}, &repositoryErrorStub{notFound: true}
	}
	return s.findFunc(ctx, orderID)
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFunc == nil {
		return domain.CursorPage[domain.Order]{}, nil
	}
	return s.listFunc(ctx, filter)
}

func (s *stubOrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	if s.listAllFunc == nil {
		return nil, nil
	}
	return s.listAllFunc(ctx)
}

type stubNewsletterRepository struct {
	upsertFunc  func(ctx context.Context, subscriber domain.NewsletterSubscriber) (domain.NewsletterSubscriber, error)
	listAllFunc func(ctx context.Context) ([]domain.NewsletterSubscriber, error)
}

func (s *stubNewsletterRepository) Upsert(ctx context.Context, subscriber domain.NewsletterSubscriber) (domain.NewsletterSubscriber, error) {
	if s.upsertFunc == nil {
		return subscriber, nil
	}
	return s.upsertFunc(ctx, subscriber)
}

func (s *stubNewsletterRepository) ListAll(ctx context.Context) ([]domain.NewsletterSubscriber, error) {
	if s.listAllFunc == nil {
		return nil, nil
	}
	return s.listAllFunc(ctx)
}

type stubCounterRepository struct {
	nextFunc func(ctx context.Context, counterID string, step int64) (int64, error)
}

func (s *stubCounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if s.nextFunc == nil {
		return 1, nil
	}
	return s.nextFunc(ctx, counterID, step)
}

// stubMailPublisher records published messages. Publish runs on a detached
// goroutine in the order service, so reads synchronise on the done channel.
type stubMailPublisher struct {
	mu       sync.Mutex
	messages []OrderMailMessage
	err      error
	done     chan struct{}
}

func newStubMailPublisher(expected int) *stubMailPublisher {
	return &stubMailPublisher{done: make(chan struct{}, expected)}
}

func (s *stubMailPublisher) PublishOrderMail(ctx context.Context, msg OrderMailMessage) error {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	err := s.err
	s.mu.Unlock()
	if s.done != nil {
		s.done <- struct{}{}
	}
	return err
}

func (s *stubMailPublisher) wait(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for i := 0; i < n; i++ {
		select {
		case <-s.done:
		case <-deadline:
			return false
		}
	}
	return true
}

func (s *stubMailPublisher) published() []OrderMailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OrderMailMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// eventRecorder captures logger events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) log(ctx context.Context, event string, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

func int64Ptr(v int64) *int64 { return &v }
