package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hariomGiri/localshop-connect-sub001/internal/domain"
	"github.com/hariomGiri/localshop-connect-sub001/internal/repository"
	apperrors "github.com/hariomGiri/localshop-connect-sub001/pkg/errors"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/pagination"
)

// --- Test Helpers ---

var columns = []string{
	"id", "customer_id", "shop_groups", "items", "subtotal_amount", "tax_amount", "delivery_fee",
	"total_amount", "currency", "order_type", "expected_delivery_date", "payment_method", "payment_status",
	"order_status", "delivery_address", "notes", "cancel_reason", "created_at", "updated_at",
}

func newTestRepo(t *testing.T) (*OrderRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewOrderRepository(mock), mock
}

func sampleOrder() *domain.Order {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	p := domain.LineItem{ProductID: "p-1", ShopID: "s-1", ShopName: "Tea House", Name: "Tea", UnitPrice: 1000, Quantity: 2, Subtotal: 2000}
	q := domain.LineItem{ProductID: "p-2", ShopID: "s-2", ShopName: "Bakery", Name: "Bun", UnitPrice: 550, Quantity: 1, Subtotal: 550}
	return &domain.Order{
		ID:         "8c7b8a4e-5b7e-4c57-9b7e-0d6a1f0c2a11",
		CustomerID: "c-1",
		ShopGroups: []domain.ShopGroup{
			{ShopID: "s-1", ShopName: "Tea House", Items: []domain.LineItem{p}, Subtotal: 2000},
			{ShopID: "s-2", ShopName: "Bakery", Items: []domain.LineItem{q}, Subtotal: 550},
		},
		Items:           []domain.LineItem{p, q},
		SubtotalAmount:  2550,
		TaxAmount:       204,
		DeliveryFee:     300,
		TotalAmount:     3054,
		Currency:        "INR",
		OrderType:       domain.OrderTypeRegular,
		PaymentMethod:   "cod",
		PaymentStatus:   domain.PaymentStatusPending,
		OrderStatus:     domain.OrderStatusPending,
		DeliveryAddress: domain.Address{Street: "1 MG Road", City: "Pune", State: "MH", ZipCode: "411001", Country: "IN"},
		Notes:           "ring twice",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func orderRow(t *testing.T, o *domain.Order) []any {
	return []any{
		o.ID, o.CustomerID, mustJSON(t, o.ShopGroups), mustJSON(t, o.Items),
		o.SubtotalAmount, o.TaxAmount, o.DeliveryFee, o.TotalAmount,
		o.Currency, o.OrderType, o.ExpectedDeliveryDate, o.PaymentMethod, o.PaymentStatus,
		o.OrderStatus, mustJSON(t, o.DeliveryAddress), o.Notes, o.CancelReason, o.CreatedAt, o.UpdatedAt,
	}
}

// --- Create ---

// anyArgs matches n statement arguments of any value.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestOrderRepository_Create(t *testing.T) {
	repo, mock := newTestRepo(t)
	o := sampleOrder()

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(
			o.ID, o.CustomerID, pgxmock.AnyArg(), pgxmock.AnyArg(),
			o.SubtotalAmount, o.TaxAmount, o.DeliveryFee, o.TotalAmount,
			o.Currency, o.OrderType, o.ExpectedDeliveryDate, o.PaymentMethod, o.PaymentStatus,
			o.OrderStatus, pgxmock.AnyArg(), o.Notes, o.CancelReason, o.CreatedAt, o.UpdatedAt,
			[]string{"s-1", "s-2"},
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Create_DBError(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(anyArgs(20)...).
		WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), sampleOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert order")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- GetByID ---

func TestOrderRepository_GetByID(t *testing.T) {
	repo, mock := newTestRepo(t)
	o := sampleOrder()
	eta := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	o.OrderType = domain.OrderTypePreOrder
	o.ExpectedDeliveryDate = &eta

	mock.ExpectQuery("(?s)SELECT .+ FROM orders WHERE id = \\$1").
		WithArgs(o.ID).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(orderRow(t, o)...))

	got, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("(?s)SELECT .+ FROM orders WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(columns))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- List ---

func TestOrderRepository_List_ByShop(t *testing.T) {
	repo, mock := newTestRepo(t)
	o := sampleOrder()

	status := domain.OrderStatusPending
	filter := repository.OrderFilter{
		ShopIDs: []string{"s-2"},
		Status:  &status,
		Params:  pagination.Params{Page: 2, PerPage: 10},
	}

	mock.ExpectQuery("(?s)shop_ids && \\$1 AND order_status = \\$2.+ORDER BY created_at DESC.+LIMIT \\$3 OFFSET \\$4").
		WithArgs([]string{"s-2"}, status, 10, 10).
		WillReturnRows(pgxmock.NewRows(append(columns, "total_count")).AddRow(append(orderRow(t, o), 11)...))

	orders, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, orders, 1)
	assert.Equal(t, o.ID, orders[0].ID)
	assert.Len(t, orders[0].ShopGroups, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_List_ByCustomerDefaultsPaging(t *testing.T) {
	repo, mock := newTestRepo(t)
	customer := "c-1"

	mock.ExpectQuery("(?s)WHERE customer_id = \\$1.+LIMIT \\$2 OFFSET \\$3").
		WithArgs(customer, pagination.DefaultPerPage, 0).
		WillReturnRows(pgxmock.NewRows(append(columns, "total_count")))

	orders, total, err := repo.List(context.Background(), repository.OrderFilter{CustomerID: &customer})
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.NotNil(t, orders)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- UpdateStatus ---

func cancelChange() domain.StatusChange {
	return domain.StatusChange{
		OrderID:     "o-1",
		FromStatus:  domain.OrderStatusProcessing,
		ToStatus:    domain.OrderStatusCancelled,
		FromPayment: domain.PaymentStatusPaid,
		ToPayment:   domain.PaymentStatusRefunded,
		Reason:      "out of stock",
		At:          time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestOrderRepository_UpdateStatus(t *testing.T) {
	repo, mock := newTestRepo(t)
	c := cancelChange()

	mock.ExpectExec("UPDATE orders").
		WithArgs(c.OrderID, c.ToStatus, c.ToPayment, c.Reason, c.At, c.FromStatus, c.FromPayment).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateStatus_Stale(t *testing.T) {
	repo, mock := newTestRepo(t)
	c := cancelChange()

	mock.ExpectExec("UPDATE orders").
		WithArgs(c.OrderID, c.ToStatus, c.ToPayment, c.Reason, c.At, c.FromStatus, c.FromPayment).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(c.OrderID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.UpdateStatus(context.Background(), c)
	assert.ErrorIs(t, err, repository.ErrStaleState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateStatus_Missing(t *testing.T) {
	repo, mock := newTestRepo(t)
	c := cancelChange()

	mock.ExpectExec("UPDATE orders").
		WithArgs(c.OrderID, c.ToStatus, c.ToPayment, c.Reason, c.At, c.FromStatus, c.FromPayment).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(c.OrderID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.UpdateStatus(context.Background(), c)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- UpdatePaymentStatus ---

func TestOrderRepository_UpdatePaymentStatus(t *testing.T) {
	repo, mock := newTestRepo(t)
	c := domain.PaymentChange{
		OrderID:     "o-1",
		OrderStatus: domain.OrderStatusPending,
		From:        domain.PaymentStatusPending,
		To:          domain.PaymentStatusPaid,
		At:          time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("UPDATE orders\\s+SET payment_status").
		WithArgs(c.OrderID, c.To, c.At, c.From, c.OrderStatus).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdatePaymentStatus(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdatePaymentStatus_DBError(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("UPDATE orders").
		WithArgs(anyArgs(5)...).
		WillReturnError(errors.New("deadlock detected"))

	err := repo.UpdatePaymentStatus(context.Background(), domain.PaymentChange{OrderID: "o-1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrStaleState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdatePaymentStatus_Stale(t *testing.T) {
	repo, mock := newTestRepo(t)
	c := domain.PaymentChange{
		OrderID:     "o-1",
		OrderStatus: domain.OrderStatusPending,
		From:        domain.PaymentStatusPending,
		To:          domain.PaymentStatusFailed,
		At:          time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("UPDATE orders\\s+SET payment_status").
		WithArgs(c.OrderID, c.To, c.At, c.From, c.OrderStatus).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(c.OrderID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.UpdatePaymentStatus(context.Background(), c)
	assert.ErrorIs(t, err, repository.ErrStaleState)
	assert.NoError(t, mock.ExpectationsWereMet())
}
