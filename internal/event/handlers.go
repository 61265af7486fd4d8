package event

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hariomGiri/localshop-connect-sub001/internal/domain"
	apperrors "github.com/hariomGiri/localshop-connect-sub001/pkg/errors"
	pkgkafka "github.com/hariomGiri/localshop-connect-sub001/pkg/kafka"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/logger"
)

// Topics consumed by the order service.
var (
	TopicPaymentSucceeded = pkgkafka.Topic("payment", "succeeded")
	TopicPaymentFailed    = pkgkafka.Topic("payment", "failed")
	TopicShopUpdated      = pkgkafka.Topic("shop", "updated")
)

// PaymentEventData is the part of a payment event the order service reads.
type PaymentEventData struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id,omitempty"`
	Amount    int64  `json:"amount,omitempty"`
}

// ShopUpdatedData is the part of a shop.updated event the order service reads.
type ShopUpdatedData struct {
	ID string `json:"id"`
}

// PaymentRecorder applies a payment outcome to an order.
type PaymentRecorder interface {
	RecordPaymentStatus(ctx context.Context, orderID, status string) error
}

// ShopInvalidator evicts cached shop data.
type ShopInvalidator interface {
	InvalidateShop(ctx context.Context, shopID string) error
}

// Handlers returns the topic handlers the order service consumes. Payment
// handlers are deduplicated through store.
func Handlers(
	payments PaymentRecorder,
	shops ShopInvalidator,
	store pkgkafka.IdempotencyStore,
	logger *slog.Logger,
) map[string]pkgkafka.Handler {
	return map[string]pkgkafka.Handler{
		TopicPaymentSucceeded: pkgkafka.IdempotentHandler(store, PaymentHandler(payments, domain.PaymentStatusPaid, logger), logger),
		TopicPaymentFailed:    pkgkafka.IdempotentHandler(store, PaymentHandler(payments, domain.PaymentStatusFailed, logger), logger),
		TopicShopUpdated:      ShopUpdatedHandler(shops, logger),
	}
}

// PaymentHandler records status on the order named in the event. Business-rule
// rejections (unknown order, order already finalized, status already set) are
// logged and acknowledged; infrastructure failures are returned for retry.
func PaymentHandler(recorder PaymentRecorder, status string, base *slog.Logger) pkgkafka.Handler {
	return func(ctx context.Context, event *pkgkafka.Event) error {
		if event.CorrelationID != "" {
			ctx = logger.WithCorrelationID(ctx, event.CorrelationID)
		}
		l := logger.WithContext(ctx, base)

		var data PaymentEventData
		if err := event.DecodeData(&data); err != nil || data.OrderID == "" {
			l.WarnContext(ctx, "payment event without order id, skipping",
				slog.String("event_id", event.EventID),
				slog.String("event_type", event.EventType),
			)
			return nil
		}

		err := recorder.RecordPaymentStatus(ctx, data.OrderID, status)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, apperrors.ErrNotFound),
			errors.Is(err, apperrors.ErrConflict),
			errors.Is(err, apperrors.ErrInvalidInput):
			l.WarnContext(ctx, "payment event rejected",
				slog.String("event_id", event.EventID),
				slog.String("order_id", data.OrderID),
				slog.String("payment_status", status),
				slog.String("error", err.Error()),
			)
			return nil
		default:
			return err
		}
	}
}

// ShopUpdatedHandler evicts the updated shop from the catalog cache so renamed
// shops show up on the next order.
func ShopUpdatedHandler(inv ShopInvalidator, l *slog.Logger) pkgkafka.Handler {
	return func(ctx context.Context, event *pkgkafka.Event) error {
		var data ShopUpdatedData
		_ = event.DecodeData(&data)
		id := data.ID
		if id == "" {
			id = event.AggregateID
		}
		if id == "" {
			l.WarnContext(ctx, "shop event without id, skipping", slog.String("event_id", event.EventID))
			return nil
		}

		if err := inv.InvalidateShop(ctx, id); err != nil {
			return err
		}
		l.DebugContext(ctx, "shop cache entry evicted", slog.String("shop_id", id))
		return nil
	}
}
