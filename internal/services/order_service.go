package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/linden-market/api/internal/domain"
	"github.com/linden-market/api/internal/repositories"
)

const (
	orderIDPrefix      = "ord_"
	orderNumberCounter = "orders"

	// MailTypeOrderConfirmation addresses the customer who placed the order.
	MailTypeOrderConfirmation = "order.confirmation"
	// MailTypeOrderAdminNotify addresses the store operator.
	MailTypeOrderAdminNotify = "order.notify_admin"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderForbidden indicates the requester may not read the order.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderConflict indicates duplicate ids or conflicting writes.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUnavailable indicates the order store cannot be reached.
	ErrOrderUnavailable = errors.New("order: storage unavailable")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders        repositories.OrderRepository
	Carts         repositories.CartRepository
	Counters      repositories.CounterRepository
	UnitOfWork    repositories.UnitOfWork
	Mail          OrderMailPublisher
	OperatorEmail string
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders        repositories.OrderRepository
	carts         repositories.CartRepository
	counters      repositories.CounterRepository
	unitOfWork    repositories.UnitOfWork
	mail          OrderMailPublisher
	operatorEmail string
	notesPolicy   *bluemonday.Policy
	clock         func() time.Time
	newID         func() string
	logger        func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
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
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:        deps.Orders,
		carts:         deps.Carts,
		counters:      deps.Counters,
		unitOfWork:    unit,
		mail:          deps.Mail,
		operatorEmail: strings.TrimSpace(deps.OperatorEmail),
		notesPolicy:   bluemonday.StrictPolicy(),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// PlaceOrder persists an order built from the submitted cart snapshot. The
// write must succeed before any side effect runs; mail dispatch and cart
// cleanup are best-effort afterwards.
func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	lines := snapshotLines(cmd.Lines)
	if len(lines) == 0 {
		return Order{}, fmt.Errorf("%w: cart must contain at least one item", ErrOrderInvalidInput)
	}
	if err := domain.ValidateShippingAddress(cmd.Address); err != nil {
		return Order{}, fmt.Errorf("%w: %w", ErrOrderInvalidInput, err)
	}

	now := s.clock()

	var subtotal int64
	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		subtotal += line.LineTotal()
		items = append(items, domain.OrderItem{
			ProductID:    line.ProductID,
			ProductName:  line.Name,
			Price:        line.UnitPrice,
			Quantity:     line.Quantity,
			Color:        line.ColorVariant,
			ProductImage: line.Image,
		})
	}

	shippingCost := domain.ShippingCost(subtotal)
	if cmd.ShippingCostOverride != nil {
		shippingCost = *cmd.ShippingCostOverride
	}
	total := subtotal + shippingCost
	if cmd.TotalOverride != nil {
		total = *cmd.TotalOverride
	}

	order := Order{
		ID:              orderIDPrefix + s.newID(),
		UserID:          strings.TrimSpace(cmd.UserID),
		Email:           resolveOrderEmail(cmd),
		Items:           items,
		Subtotal:        subtotal,
		ShippingCost:    shippingCost,
		Total:           total,
		ShippingAddress: normaliseAddress(cmd.Address),
		Notes:           strings.TrimSpace(s.notesPolicy.Sanitize(cmd.Notes)),
		Status:          domain.OrderStatusNew,
		PaymentMethod:   domain.PaymentMethodCashOnDelivery,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	order.Number = number

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if order.Email != "" {
		s.dispatchMail(ctx, OrderMailMessage{
			Type:        MailTypeOrderConfirmation,
			OrderID:     order.ID,
			OrderNumber: order.Number,
			Recipient:   order.Email,
			Total:       order.Total,
			OccurredAt:  now,
		})
	}
	s.dispatchMail(ctx, OrderMailMessage{
		Type:        MailTypeOrderAdminNotify,
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Recipient:   s.operatorEmail,
		Total:       order.Total,
		OccurredAt:  now,
	})

	s.clearSourceCart(ctx, cmd.CartID, order.ID)

	return order, nil
}

// GetOrder enforces the read rule: owned orders are visible to their owner
// and to elevated requesters; guest orders are visible to anyone who knows
// the id.
func (s *orderService) GetOrder(ctx context.Context, orderID string, opts OrderReadOptions) (Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if !order.IsGuest() && !opts.Elevated {
		if !opts.Authenticated || strings.TrimSpace(opts.RequesterID) != order.UserID {
			return Order{}, fmt.Errorf("%w: order %s", ErrOrderForbidden, id)
		}
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// TransitionStatus moves the order to the target status. The status set is
// checked, the ordering is not: the back office may move any order to any
// state, terminal states included. Only Status and UpdatedAt change.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	id := strings.TrimSpace(cmd.OrderID)
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !cmd.Target.IsValid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Target)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	now := s.clock()
	if err := s.orders.UpdateStatus(ctx, id, cmd.Target, now); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "order.status.changed", map[string]any{
		"order": id,
		"from":  string(order.Status),
		"to":    string(cmd.Target),
		"actor": strings.TrimSpace(cmd.ActorID),
	})

	order.Status = cmd.Target
	order.UpdatedAt = now
	return order, nil
}

// dispatchMail hands the message to the queue on a detached context. Failures
// are logged and never joined with the order write.
func (s *orderService) dispatchMail(ctx context.Context, msg OrderMailMessage) {
	if s.mail == nil {
		return
	}
	if msg.Type == MailTypeOrderAdminNotify && msg.Recipient == "" {
		s.logger(ctx, "order.mail.skipped", map[string]any{
			"order":  msg.OrderID,
			"type":   msg.Type,
			"reason": "operator email not configured",
		})
		return
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		if err := s.mail.PublishOrderMail(detached, msg); err != nil {
			s.logger(detached, "order.mail.publish.failed", map[string]any{
				"order": msg.OrderID,
				"type":  msg.Type,
				"error": err.Error(),
			})
		}
	}()
}

func (s *orderService) clearSourceCart(ctx context.Context, cartID, orderID string) {
	id := strings.TrimSpace(cartID)
	if id == "" || s.carts == nil {
		return
	}
	if err := s.carts.Delete(ctx, id); err != nil && !isRepoNotFound(err) {
		s.logger(ctx, "order.cart.clear.failed", map[string]any{
			"order": orderID,
			"cart":  id,
			"error": err.Error(),
		})
	}
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderNumberCounter, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("LM-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}
	return err
}

// snapshotLines copies the submitted lines, dropping empty ones, so later
// caller mutations cannot reach into the stored order.
func snapshotLines(lines []CartLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line.ProductID) == "" || line.Quantity <= 0 {
			continue
		}
		out = append(out, line)
	}
	return out
}

func resolveOrderEmail(cmd PlaceOrderCommand) string {
	if email := strings.TrimSpace(cmd.Email); email != "" {
		return email
	}
	return strings.TrimSpace(cmd.IdentityEmail)
}

func normaliseAddress(addr ShippingAddress) ShippingAddress {
	if canonical, ok := domain.CanonicalCounty(addr.County); ok {
		addr.County = canonical
	}
	addr.FullName = strings.TrimSpace(addr.FullName)
	addr.Phone = strings.TrimSpace(addr.Phone)
	addr.Email = strings.TrimSpace(addr.Email)
	addr.Address = strings.TrimSpace(addr.Address)
	addr.City = strings.TrimSpace(addr.City)
	addr.PostalCode = strings.TrimSpace(addr.PostalCode)
	return addr
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}
