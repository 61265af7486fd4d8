package domain

import (
	"math"
	"slices"
	"strings"
	"time"
)

// Order status constants.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Payment status constants.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Order types.
const (
	OrderTypeRegular  = "regular"
	OrderTypePreOrder = "pre-order"
)

// Roles carried by an authenticated actor.
const (
	RoleCustomer   = "customer"
	RoleShopkeeper = "shopkeeper"
	RoleAdmin      = "admin"
)

// Order is a customer checkout split into per-shop groups. Totals are fixed at
// creation; only the status fields change afterwards.
type Order struct {
	ID                   string      `json:"id"`
	CustomerID           string      `json:"customer_id"`
	ShopGroups           []ShopGroup `json:"shop_groups"`
	Items                []LineItem  `json:"items"`
	SubtotalAmount       int64       `json:"subtotal_amount"`
	TaxAmount            int64       `json:"tax_amount"`
	DeliveryFee          int64       `json:"delivery_fee"`
	TotalAmount          int64       `json:"total_amount"`
	Currency             string      `json:"currency"`
	OrderType            string      `json:"order_type"`
	ExpectedDeliveryDate *time.Time  `json:"expected_delivery_date,omitempty"`
	PaymentMethod        string      `json:"payment_method"`
	PaymentStatus        string      `json:"payment_status"`
	OrderStatus          string      `json:"order_status"`
	DeliveryAddress      Address     `json:"delivery_address"`
	Notes                string      `json:"notes,omitempty"`
	CancelReason         string      `json:"cancel_reason,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// Address is the delivery destination.
type Address struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zip_code"`
	Country  string `json:"country"`
	Landmark string `json:"landmark,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// MissingFields lists the required address fields that are blank, by JSON name.
func (a Address) MissingFields() []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zip_code", a.ZipCode},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// LineItem is a priced snapshot of one cart entry. It is never re-joined to live catalog data.
type LineItem struct {
	ProductID string `json:"product_id"`
	ShopID    string `json:"shop_id"`
	ShopName  string `json:"shop_name"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

// LineTotal returns unit price times quantity, or an error when either is
// negative or the product does not fit in an int64.
func (i LineItem) LineTotal() (int64, error) {
	if i.UnitPrice < 0 || i.Quantity < 0 {
		return 0, ErrAmountOutOfRange()
	}
	q := int64(i.Quantity)
	if q > 0 && i.UnitPrice > math.MaxInt64/q {
		return 0, ErrAmountOutOfRange()
	}
	return i.UnitPrice * q, nil
}

// ShopGroup holds the items of one shop within an order.
type ShopGroup struct {
	ShopID   string     `json:"shop_id"`
	ShopName string     `json:"shop_name"`
	Items    []LineItem `json:"items"`
	Subtotal int64      `json:"subtotal"`
}

// Actor is the authenticated caller. ShopIDs is only populated for shopkeepers.
type Actor struct {
	ID      string
	Role    string
	ShopIDs []string
}

// Owns reports whether the actor owns shopID.
func (a Actor) Owns(shopID string) bool {
	return slices.Contains(a.ShopIDs, shopID)
}

// ShopIDs returns the distinct shop ids in group order.
func (o *Order) ShopIDs() []string {
	ids := make([]string, 0, len(o.ShopGroups))
	for _, g := range o.ShopGroups {
		ids = append(ids, g.ShopID)
	}
	return ids
}

// HasShop reports whether the order contains a group for shopID.
func (o *Order) HasShop(shopID string) bool {
	for _, g := range o.ShopGroups {
		if g.ShopID == shopID {
			return true
		}
	}
	return false
}

// ValidStatuses returns all order statuses.
func ValidStatuses() []string {
	return []string{
		OrderStatusPending,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(status string) bool {
	return slices.Contains(ValidStatuses(), status)
}

// IsTerminal reports whether no further status change is possible.
func IsTerminal(status string) bool {
	return status == OrderStatusDelivered || status == OrderStatusCancelled
}

// ValidPaymentStatuses returns all payment statuses.
func ValidPaymentStatuses() []string {
	return []string{
		PaymentStatusPending,
		PaymentStatusPaid,
		PaymentStatusFailed,
		PaymentStatusRefunded,
	}
}

// IsValidPaymentStatus checks if a payment status string is valid.
func IsValidPaymentStatus(status string) bool {
	return slices.Contains(ValidPaymentStatuses(), status)
}

// IsValidOrderType checks if an order type string is valid.
func IsValidOrderType(orderType string) bool {
	return orderType == OrderTypeRegular || orderType == OrderTypePreOrder
}
