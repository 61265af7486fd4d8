package repository

import (
	"context"
	"errors"

	"github.com/hariomGiri/localshop-connect-sub001/internal/domain"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/pagination"
)

// ErrStaleState is returned when a compare-and-set update finds the order no
// longer in the state the change was validated against.
var ErrStaleState = errors.New("order state changed concurrently")

// OrderFilter defines filter criteria for listing orders. Results are always
// newest first.
type OrderFilter struct {
	CustomerID *string
	// ShopIDs matches orders containing a group for any of the shops.
	ShopIDs []string
	Status  *string
	pagination.Params
}

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create inserts a new order with its shop groups and items.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by id. Missing orders match apperrors.ErrNotFound.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// List returns one page of orders matching filter along with the total count.
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// UpdateStatus applies change if the order still has change.FromStatus and
	// change.FromPayment, otherwise returns ErrStaleState.
	UpdateStatus(ctx context.Context, change domain.StatusChange) error

	// UpdatePaymentStatus applies change if the order still has change.From and
	// change.OrderStatus, otherwise returns ErrStaleState.
	UpdatePaymentStatus(ctx context.Context, change domain.PaymentChange) error
}
