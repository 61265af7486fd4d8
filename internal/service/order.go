package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hariomGiri/localshop-connect-sub001/internal/catalog"
	"github.com/hariomGiri/localshop-connect-sub001/internal/domain"
	"github.com/hariomGiri/localshop-connect-sub001/internal/pricing"
	"github.com/hariomGiri/localshop-connect-sub001/internal/repository"
	apperrors "github.com/hariomGiri/localshop-connect-sub001/pkg/errors"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/pagination"
)

// EventPublisher announces order changes. Implemented by *event.Producer.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order) error
	PublishStatusChanged(ctx context.Context, change domain.StatusChange) error
	PublishPaymentStatusChanged(ctx context.Context, change domain.PaymentChange) error
}

// Defaults fill fields a customer may leave empty at checkout.
type Defaults struct {
	Currency      string
	PaymentMethod string
	Country       string
}

// OrderService implements the business logic for order operations.
type OrderService struct {
	repo     repository.OrderRepository
	catalog  catalog.Reader
	pricing  *pricing.Engine
	events   EventPublisher
	defaults Defaults
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrderService creates a new order service.
func NewOrderService(
	repo repository.OrderRepository,
	products catalog.Reader,
	engine *pricing.Engine,
	events EventPublisher,
	defaults Defaults,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		repo:     repo,
		catalog:  products,
		pricing:  engine,
		events:   events,
		defaults: defaults,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateOrderInput holds the parameters for placing an order.
type CreateOrderInput struct {
	CustomerID           string
	Items                []CartEntry
	DeliveryAddress      domain.Address
	OrderType            string
	ExpectedDeliveryDate *time.Time
	PaymentMethod        string
	Notes                string
}

// CreateOrder prices the cart against the catalog, splits it per shop and
// persists a pending order. Inventory is not touched.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if input.CustomerID == "" {
		return nil, apperrors.InvalidInput("customer_id is required")
	}
	if len(input.Items) == 0 {
		return nil, domain.ErrEmptyCart()
	}

	addr := input.DeliveryAddress
	if missing := addr.MissingFields(); len(missing) > 0 {
		return nil, domain.ErrInvalidAddress(missing)
	}
	if strings.TrimSpace(addr.Country) == "" {
		addr.Country = s.defaults.Country
	}

	now := s.now().UTC()

	orderType := input.OrderType
	if orderType == "" {
		orderType = domain.OrderTypeRegular
	}
	if !domain.IsValidOrderType(orderType) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid order_type %q, must be %s or %s",
			orderType, domain.OrderTypeRegular, domain.OrderTypePreOrder))
	}

	var deliveryDate *time.Time
	if orderType == domain.OrderTypePreOrder {
		if input.ExpectedDeliveryDate == nil {
			return nil, domain.ErrInvalidDeliveryDate("expected_delivery_date is required for pre-orders")
		}
		if !input.ExpectedDeliveryDate.After(now) {
			return nil, domain.ErrInvalidDeliveryDate("expected_delivery_date must be in the future")
		}
		d := input.ExpectedDeliveryDate.UTC()
		deliveryDate = &d
	}

	items, err := BuildLineItems(ctx, s.catalog, input.Items)
	if err != nil {
		return nil, err
	}
	groups, err := PartitionByShop(ctx, s.catalog, items)
	if err != nil {
		return nil, err
	}
	totals, err := s.pricing.Price(groups)
	if err != nil {
		return nil, err
	}

	paymentMethod := input.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = s.defaults.PaymentMethod
	}

	order := &domain.Order{
		ID:                   uuid.NewString(),
		CustomerID:           input.CustomerID,
		ShopGroups:           groups,
		Items:                flatten(groups),
		SubtotalAmount:       totals.Subtotal,
		TaxAmount:            totals.Tax,
		DeliveryFee:          totals.DeliveryFee,
		TotalAmount:          totals.Total,
		Currency:             s.defaults.Currency,
		OrderType:            orderType,
		ExpectedDeliveryDate: deliveryDate,
		PaymentMethod:        paymentMethod,
		PaymentStatus:        domain.PaymentStatusPending,
		OrderStatus:          domain.OrderStatusPending,
		DeliveryAddress:      addr,
		Notes:                strings.TrimSpace(input.Notes),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	ordersCreated.WithLabelValues(orderType).Inc()

	if err := s.events.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("customer_id", order.CustomerID),
		slog.Int("shops", len(groups)),
		slog.Int64("total_amount", order.TotalAmount),
	)

	return order, nil
}

// GetOrder returns the order if actor may see it, projected to the actor's shops
// for shopkeepers.
func (s *OrderService) GetOrder(ctx context.Context, id string, actor domain.Actor) (*domain.Order, error) {
	actor, err := s.resolveActor(ctx, actor)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	if err := domain.CanView(order, actor); err != nil {
		return nil, err
	}
	return order.ProjectFor(actor), nil
}

// ListMyOrders returns one page of the customer's orders, newest first.
func (s *OrderService) ListMyOrders(ctx context.Context, customerID string, page pagination.Params) ([]domain.Order, int, error) {
	if customerID == "" {
		return nil, 0, apperrors.InvalidInput("customer_id is required")
	}

	orders, total, err := s.repo.List(ctx, repository.OrderFilter{CustomerID: &customerID, Params: page})
	if err != nil {
		return nil, 0, fmt.Errorf("list customer orders: %w", err)
	}
	return orders, total, nil
}

// ListShopOrders returns one page of orders containing a group for shopID, or
// for any shop the shopkeeper owns when shopID is empty. Admins must name a shop.
// Shopkeepers see only the groups of the listed shops.
func (s *OrderService) ListShopOrders(ctx context.Context, actor domain.Actor, shopID string, status string, page pagination.Params) ([]domain.Order, int, error) {
	if status != "" && !domain.IsValidStatus(status) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid status %q, must be one of: %s",
			status, strings.Join(domain.ValidStatuses(), ", ")))
	}

	var shopIDs []string
	switch actor.Role {
	case domain.RoleAdmin:
		if shopID == "" {
			return nil, 0, apperrors.InvalidInput("shop_id is required")
		}
		shopIDs = []string{shopID}
	case domain.RoleShopkeeper:
		resolved, err := s.resolveActor(ctx, actor)
		if err != nil {
			return nil, 0, err
		}
		actor = resolved
		if shopID != "" {
			if !actor.Owns(shopID) {
				return nil, 0, apperrors.Forbidden("you do not own this shop")
			}
			shopIDs = []string{shopID}
		} else {
			shopIDs = actor.ShopIDs
		}
		if len(shopIDs) == 0 {
			return []domain.Order{}, 0, nil
		}
	default:
		return nil, 0, apperrors.Forbidden("only shopkeepers and admins can list shop orders")
	}

	filter := repository.OrderFilter{ShopIDs: shopIDs, Params: page}
	if status != "" {
		filter.Status = &status
	}

	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list shop orders: %w", err)
	}

	if actor.Role == domain.RoleShopkeeper {
		for i := range orders {
			orders[i] = *orders[i].ProjectShops(shopIDs)
		}
	}
	return orders, total, nil
}

// UpdateStatus moves the order to status on behalf of actor. The change is
// applied only if nobody else changed the order since it was read.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, actor domain.Actor, status, reason string) (*domain.Order, error) {
	actor, err := s.resolveActor(ctx, actor)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order for status update: %w", err)
	}

	change, err := order.Transition(actor, status, reason, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, change); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, domain.ErrConflictingTransition(id)
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	orderTransitions.WithLabelValues(change.FromStatus, change.ToStatus, change.ActorRole).Inc()
	if change.PaymentChanged() {
		paymentUpdates.WithLabelValues(change.ToPayment, "cancellation").Inc()
	}

	if err := s.events.PublishStatusChanged(ctx, change); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order status events",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", id),
		slog.String("old_status", change.FromStatus),
		slog.String("new_status", change.ToStatus),
		slog.String("payment_status", change.ToPayment),
		slog.String("role", change.ActorRole),
	)

	return order.ProjectFor(actor), nil
}

// CancelOrder cancels the order on behalf of actor, refunding a paid order.
func (s *OrderService) CancelOrder(ctx context.Context, id string, actor domain.Actor, reason string) (*domain.Order, error) {
	return s.UpdateStatus(ctx, id, actor, domain.OrderStatusCancelled, reason)
}

// UpdatePaymentStatus records a payment outcome set manually by an admin.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, id string, actor domain.Actor, status string) (*domain.Order, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.Forbidden("only admins can change payment status")
	}
	return s.applyPaymentStatus(ctx, id, status, "admin")
}

// RecordPaymentStatus records a payment outcome reported by the payment service.
func (s *OrderService) RecordPaymentStatus(ctx context.Context, orderID, status string) error {
	_, err := s.applyPaymentStatus(ctx, orderID, status, "event")
	return err
}

func (s *OrderService) applyPaymentStatus(ctx context.Context, id, status, source string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order for payment update: %w", err)
	}

	change, err := order.SetPaymentStatus(status, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdatePaymentStatus(ctx, change); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, domain.ErrConflictingTransition(id)
		}
		return nil, fmt.Errorf("update payment status: %w", err)
	}
	paymentUpdates.WithLabelValues(change.To, source).Inc()

	if err := s.events.PublishPaymentStatusChanged(ctx, change); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.payment_status_changed event",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "payment status updated",
		slog.String("order_id", id),
		slog.String("old_status", change.From),
		slog.String("new_status", change.To),
		slog.String("source", source),
	)

	return order, nil
}

// resolveActor loads the shops a shopkeeper owns unless the caller already did.
func (s *OrderService) resolveActor(ctx context.Context, actor domain.Actor) (domain.Actor, error) {
	if actor.Role != domain.RoleShopkeeper || actor.ShopIDs != nil {
		return actor, nil
	}
	ids, err := s.catalog.ListShopIDsByOwner(ctx, actor.ID)
	if err != nil {
		return actor, fmt.Errorf("list shops of %s: %w", actor.ID, err)
	}
	if ids == nil {
		ids = []string{}
	}
	actor.ShopIDs = ids
	return actor, nil
}
