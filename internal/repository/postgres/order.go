package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hariomGiri/localshop-connect-sub001/internal/domain"
	"github.com/hariomGiri/localshop-connect-sub001/internal/repository"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/database"
	apperrors "github.com/hariomGiri/localshop-connect-sub001/pkg/errors"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/pagination"
)

const orderColumns = `id, customer_id, shop_groups, items, subtotal_amount, tax_amount, delivery_fee,
	total_amount, currency, order_type, expected_delivery_date, payment_method, payment_status,
	order_status, delivery_address, notes, cancel_reason, created_at, updated_at`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order as a single row. Shop groups, items and the address
// are stored as JSONB snapshots; shop_ids is denormalized for shop-scoped lookups.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	groupsJSON, err := json.Marshal(o.ShopGroups)
	if err != nil {
		return fmt.Errorf("marshal shop groups: %w", err)
	}
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	addressJSON, err := json.Marshal(o.DeliveryAddress)
	if err != nil {
		return fmt.Errorf("marshal delivery address: %w", err)
	}

	query := `
		INSERT INTO orders (` + orderColumns + `, shop_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	ctx, end := database.TraceQuery(ctx, "CreateOrder", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		o.ID,
		o.CustomerID,
		groupsJSON,
		itemsJSON,
		o.SubtotalAmount,
		o.TaxAmount,
		o.DeliveryFee,
		o.TotalAmount,
		o.Currency,
		o.OrderType,
		o.ExpectedDeliveryDate,
		o.PaymentMethod,
		o.PaymentStatus,
		o.OrderStatus,
		addressJSON,
		o.Notes,
		o.CancelReason,
		o.CreatedAt,
		o.UpdatedAt,
		o.ShopIDs(),
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by its ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (_ *domain.Order, err error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetOrder", query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	o, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// List returns orders matching the filter, newest first, with the total count.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) (_ []domain.Order, _ int, err error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CustomerID != nil {
		conditions = append(conditions, "customer_id = "+arg(*filter.CustomerID))
	}
	if filter.ShopIDs != nil {
		conditions = append(conditions, "shop_ids && "+arg(filter.ShopIDs))
	}
	if filter.Status != nil {
		conditions = append(conditions, "order_status = "+arg(*filter.Status))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	p := filter.Params
	if p.Page < 1 || p.PerPage < 1 {
		p = pagination.DefaultParams()
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM orders
		%s
		ORDER BY created_at DESC, id
		LIMIT %s OFFSET %s`,
		orderColumns, whereClause, arg(p.PerPage), arg(p.Offset()),
	)

	ctx, end := database.TraceQuery(ctx, "ListOrders", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var total int
	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, total, nil
}

// UpdateStatus applies a status change as a compare-and-set on the order and
// payment status it was validated against.
func (r *OrderRepository) UpdateStatus(ctx context.Context, c domain.StatusChange) (err error) {
	query := `
		UPDATE orders
		SET order_status = $2,
			payment_status = $3,
			cancel_reason = CASE WHEN $2 = 'cancelled' THEN $4 ELSE cancel_reason END,
			updated_at = $5
		WHERE id = $1 AND order_status = $6 AND payment_status = $7`

	ctx, end := database.TraceQuery(ctx, "UpdateOrderStatus", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query,
		c.OrderID, c.ToStatus, c.ToPayment, c.Reason, c.At, c.FromStatus, c.FromPayment,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrStale(ctx, c.OrderID)
	}
	return nil
}

// UpdatePaymentStatus applies a payment status change as a compare-and-set.
func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, c domain.PaymentChange) (err error) {
	query := `
		UPDATE orders
		SET payment_status = $2, updated_at = $3
		WHERE id = $1 AND payment_status = $4 AND order_status = $5`

	ctx, end := database.TraceQuery(ctx, "UpdatePaymentStatus", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, c.OrderID, c.To, c.At, c.From, c.OrderStatus)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrStale(ctx, c.OrderID)
	}
	return nil
}

func (r *OrderRepository) missOrStale(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check order exists: %w", err)
	}
	if !exists {
		return apperrors.NotFound("order", id)
	}
	return repository.ErrStaleState
}

// scanOrder reads the orderColumns projection plus any trailing destinations.
func scanOrder(row pgx.Row, extra ...any) (*domain.Order, error) {
	var (
		o           domain.Order
		groupsJSON  []byte
		itemsJSON   []byte
		addressJSON []byte
		expected    *time.Time
	)

	dest := []any{
		&o.ID,
		&o.CustomerID,
		&groupsJSON,
		&itemsJSON,
		&o.SubtotalAmount,
		&o.TaxAmount,
		&o.DeliveryFee,
		&o.TotalAmount,
		&o.Currency,
		&o.OrderType,
		&expected,
		&o.PaymentMethod,
		&o.PaymentStatus,
		&o.OrderStatus,
		&addressJSON,
		&o.Notes,
		&o.CancelReason,
		&o.CreatedAt,
		&o.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(groupsJSON, &o.ShopGroups); err != nil {
		return nil, fmt.Errorf("unmarshal shop groups: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &o.DeliveryAddress); err != nil {
		return nil, fmt.Errorf("unmarshal delivery address: %w", err)
	}
	o.ExpectedDeliveryDate = expected
	return &o, nil
}
