package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hariomGiri/localshop-connect-sub001/internal/domain"
	"github.com/hariomGiri/localshop-connect-sub001/internal/service"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/httputil"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/logger"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/pagination"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/validator"
)

// OrderService is the business API the handlers call. Implemented by
// *service.OrderService.
type OrderService interface {
	CreateOrder(ctx context.Context, input service.CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, id string, actor domain.Actor) (*domain.Order, error)
	ListMyOrders(ctx context.Context, customerID string, page pagination.Params) ([]domain.Order, int, error)
	ListShopOrders(ctx context.Context, actor domain.Actor, shopID, status string, page pagination.Params) ([]domain.Order, int, error)
	UpdateStatus(ctx context.Context, id string, actor domain.Actor, status, reason string) (*domain.Order, error)
	CancelOrder(ctx context.Context, id string, actor domain.Actor, reason string) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, id string, actor domain.Actor, status string) (*domain.Order, error)
}

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	service OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// CartItemRequest is one cart line. The lower bound on Quantity is checked by
// the service so a zero or negative quantity reports INVALID_QUANTITY.
type CartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"max=1000"`
}

// CreateOrderRequest is the JSON request body for placing an order.
type CreateOrderRequest struct {
	Items                []CartItemRequest `json:"items" validate:"max=100,dive"`
	DeliveryAddress      domain.Address    `json:"delivery_address"`
	OrderType            string            `json:"order_type" validate:"max=16"`
	ExpectedDeliveryDate *time.Time        `json:"expected_delivery_date"`
	PaymentMethod        string            `json:"payment_method" validate:"max=32"`
	Notes                string            `json:"notes" validate:"max=1000"`
}

// UpdateStatusRequest is the JSON request body for changing order status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

// CancelOrderRequest is the optional JSON request body for cancelling an order.
type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// UpdatePaymentStatusRequest is the JSON request body for changing payment status.
type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required,oneof=pending paid failed refunded"`
}

// --- Handlers ---

// CreateOrder handles POST /api/v1/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	items := make([]service.CartEntry, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.CartEntry{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	order, err := h.service.CreateOrder(r.Context(), service.CreateOrderInput{
		CustomerID:           logger.UserIDFromContext(r.Context()),
		Items:                items,
		DeliveryAddress:      req.DeliveryAddress,
		OrderType:            req.OrderType,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		PaymentMethod:        req.PaymentMethod,
		Notes:                req.Notes,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}

// ListMyOrders handles GET /api/v1/orders/me
func (h *OrderHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)

	orders, total, err := h.service.ListMyOrders(r.Context(), logger.UserIDFromContext(r.Context()), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(orders, total, page))
}

// ListShopOrders handles GET /api/v1/orders/shop
func (h *OrderHandler) ListShopOrders(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	q := r.URL.Query()

	orders, total, err := h.service.ListShopOrders(r.Context(), actorFrom(r), q.Get("shop_id"), q.Get("status"), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(orders, total, page))
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, r, "order", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), id.String(), actorFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// UpdateStatus handles PUT /api/v1/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, r, "order", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), id.String(), actorFrom(r), req.Status, req.Reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// CancelOrder handles PUT /api/v1/orders/{id}/cancel. The body is optional.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, r, "order", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req CancelOrderRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteValidationError(w, r, err)
		return
	}

	order, err := h.service.CancelOrder(r.Context(), id.String(), actorFrom(r), req.Reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// UpdatePaymentStatus handles PUT /api/v1/orders/{id}/payment-status
func (h *OrderHandler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, r, "order", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdatePaymentStatusRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	order, err := h.service.UpdatePaymentStatus(r.Context(), id.String(), actorFrom(r), req.PaymentStatus)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// actorFrom reads the identity stored by the auth middleware. Shop ownership
// is resolved by the service.
func actorFrom(r *http.Request) domain.Actor {
	return domain.Actor{
		ID:   logger.UserIDFromContext(r.Context()),
		Role: logger.RoleFromContext(r.Context()),
	}
}
