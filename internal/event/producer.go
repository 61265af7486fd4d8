package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hariomGiri/localshop-connect-sub001/internal/domain"
	pkgkafka "github.com/hariomGiri/localshop-connect-sub001/pkg/kafka"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/logger"
)

// Kafka topics for order domain events.
var (
	TopicOrderCreated              = pkgkafka.Topic("order", "created")
	TopicOrderStatusChanged        = pkgkafka.Topic("order", "status_changed")
	TopicOrderCanceled             = pkgkafka.Topic("order", "canceled")
	TopicOrderPaymentStatusChanged = pkgkafka.Topic("order", "payment_status_changed")
)

const (
	AggregateTypeOrder = "order"
	SourceOrderService = "order-service"
)

// OrderCreatedData is the payload for order.created: the full order snapshot.
type OrderCreatedData struct {
	ID                   string             `json:"id"`
	CustomerID           string             `json:"customer_id"`
	ShopIDs              []string           `json:"shop_ids"`
	ShopGroups           []domain.ShopGroup `json:"shop_groups"`
	SubtotalAmount       int64              `json:"subtotal_amount"`
	TaxAmount            int64              `json:"tax_amount"`
	DeliveryFee          int64              `json:"delivery_fee"`
	TotalAmount          int64              `json:"total_amount"`
	Currency             string             `json:"currency"`
	OrderType            string             `json:"order_type"`
	ExpectedDeliveryDate *time.Time         `json:"expected_delivery_date,omitempty"`
	PaymentMethod        string             `json:"payment_method"`
	PaymentStatus        string             `json:"payment_status"`
	OrderStatus          string             `json:"order_status"`
	DeliveryAddress      domain.Address     `json:"delivery_address"`
	CreatedAt            time.Time          `json:"created_at"`
}

// OrderStatusChangedData is the payload for order.status_changed.
type OrderStatusChangedData struct {
	OrderID   string    `json:"order_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	ChangedBy string    `json:"changed_by"`
	Role      string    `json:"role"`
	ChangedAt time.Time `json:"changed_at"`
}

// OrderCanceledData is the payload for order.canceled.
type OrderCanceledData struct {
	OrderID       string    `json:"order_id"`
	Reason        string    `json:"reason,omitempty"`
	CanceledBy    string    `json:"canceled_by"`
	Role          string    `json:"role"`
	PaymentStatus string    `json:"payment_status"`
	CanceledAt    time.Time `json:"canceled_at"`
}

// PaymentStatusChangedData is the payload for order.payment_status_changed.
type PaymentStatusChangedData struct {
	OrderID   string    `json:"order_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	ChangedAt time.Time `json:"changed_at"`
}

type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes order domain events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer. kafka is normally a *pkgkafka.Producer.
func NewProducer(kafka publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishOrderCreated publishes order.created with the full order snapshot.
func (p *Producer) PublishOrderCreated(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderCreated, o.ID, OrderCreatedData{
		ID:                   o.ID,
		CustomerID:           o.CustomerID,
		ShopIDs:              o.ShopIDs(),
		ShopGroups:           o.ShopGroups,
		SubtotalAmount:       o.SubtotalAmount,
		TaxAmount:            o.TaxAmount,
		DeliveryFee:          o.DeliveryFee,
		TotalAmount:          o.TotalAmount,
		Currency:             o.Currency,
		OrderType:            o.OrderType,
		ExpectedDeliveryDate: o.ExpectedDeliveryDate,
		PaymentMethod:        o.PaymentMethod,
		PaymentStatus:        o.PaymentStatus,
		OrderStatus:          o.OrderStatus,
		DeliveryAddress:      o.DeliveryAddress,
		CreatedAt:            o.CreatedAt,
	})
}

// PublishStatusChanged publishes order.status_changed, plus order.canceled for
// cancellations and order.payment_status_changed when the payment cascaded.
// Every event is attempted; the errors are joined.
func (p *Producer) PublishStatusChanged(ctx context.Context, c domain.StatusChange) error {
	var errs []error

	if err := p.publish(ctx, TopicOrderStatusChanged, c.OrderID, OrderStatusChangedData{
		OrderID:   c.OrderID,
		OldStatus: c.FromStatus,
		NewStatus: c.ToStatus,
		ChangedBy: c.ActorID,
		Role:      c.ActorRole,
		ChangedAt: c.At,
	}); err != nil {
		errs = append(errs, err)
	}

	if c.ToStatus == domain.OrderStatusCancelled {
		if err := p.publish(ctx, TopicOrderCanceled, c.OrderID, OrderCanceledData{
			OrderID:       c.OrderID,
			Reason:        c.Reason,
			CanceledBy:    c.ActorID,
			Role:          c.ActorRole,
			PaymentStatus: c.ToPayment,
			CanceledAt:    c.At,
		}); err != nil {
			errs = append(errs, err)
		}
	}

	if c.PaymentChanged() {
		if err := p.PublishPaymentStatusChanged(ctx, domain.PaymentChange{
			OrderID: c.OrderID,
			From:    c.FromPayment,
			To:      c.ToPayment,
			At:      c.At,
		}); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// PublishPaymentStatusChanged publishes order.payment_status_changed.
func (p *Producer) PublishPaymentStatusChanged(ctx context.Context, c domain.PaymentChange) error {
	return p.publish(ctx, TopicOrderPaymentStatusChanged, c.OrderID, PaymentStatusChangedData{
		OrderID:   c.OrderID,
		OldStatus: c.From,
		NewStatus: c.To,
		ChangedAt: c.At,
	})
}

func (p *Producer) publish(ctx context.Context, topic, orderID string, data any) error {
	event, err := pkgkafka.NewEvent(pkgkafka.Meta{
		Type:          topic,
		AggregateID:   orderID,
		AggregateType: AggregateTypeOrder,
		Source:        SourceOrderService,
		CorrelationID: logger.CorrelationIDFromContext(ctx),
	}, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published order event",
		slog.String("topic", topic),
		slog.String("order_id", orderID),
		slog.String("event_id", event.EventID),
	)
	return nil
}
