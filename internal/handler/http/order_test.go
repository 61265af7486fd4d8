package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hariomGiri/localshop-connect-sub001/internal/domain"
	"github.com/hariomGiri/localshop-connect-sub001/internal/service"
	apperrors "github.com/hariomGiri/localshop-connect-sub001/pkg/errors"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/health"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/httputil"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/middleware"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/pagination"
)

// --- Mock OrderService ---

type mockOrderService struct {
	mock.Mock
}

func (m *mockOrderService) CreateOrder(ctx context.Context, input service.CreateOrderInput) (*domain.Order, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderService) GetOrder(ctx context.Context, id string, actor domain.Actor) (*domain.Order, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderService) ListMyOrders(ctx context.Context, customerID string, page pagination.Params) ([]domain.Order, int, error) {
	args := m.Called(ctx, customerID, page)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderService) ListShopOrders(ctx context.Context, actor domain.Actor, shopID, status string, page pagination.Params) ([]domain.Order, int, error) {
	args := m.Called(ctx, actor, shopID, status, page)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderService) UpdateStatus(ctx context.Context, id string, actor domain.Actor, status, reason string) (*domain.Order, error) {
	args := m.Called(ctx, id, actor, status, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderService) CancelOrder(ctx context.Context, id string, actor domain.Actor, reason string) (*domain.Order, error) {
	args := m.Called(ctx, id, actor, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderService) UpdatePaymentStatus(ctx context.Context, id string, actor domain.Actor, status string) (*domain.Order, error) {
	args := m.Called(ctx, id, actor, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

// --- Test Helpers ---

const orderID = "7c9e6679-7425-40de-944b-e07fc1f90ae7"

var (
	customer   = domain.Actor{ID: "c-1", Role: domain.RoleCustomer}
	shopkeeper = domain.Actor{ID: "k-1", Role: domain.RoleShopkeeper}
	admin      = domain.Actor{ID: "a-1", Role: domain.RoleAdmin}
)

// tokens maps bearer tokens to the actor they authenticate.
var tokens = map[string]domain.Actor{
	"customer-token":   customer,
	"shopkeeper-token": shopkeeper,
	"admin-token":      admin,
}

func staticValidator(token string) (*middleware.Claims, error) {
	a, ok := tokens[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return &middleware.Claims{UserID: a.ID, Role: a.Role}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRouter(svc *mockOrderService) http.Handler {
	return NewRouter(svc, health.NewHandler(), staticValidator, testLogger(), RouterConfig{})
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	if buf.Len() > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *httputil.ErrorResponse {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder) domain.Order {
	t.Helper()
	var resp struct {
		Data domain.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data
}

func sampleOrder(status, payment string) *domain.Order {
	return &domain.Order{
		ID:             orderID,
		CustomerID:     "c-1",
		ShopGroups:     []domain.ShopGroup{{ShopID: "s1", ShopName: "Corner Deli", Subtotal: 2000}},
		SubtotalAmount: 2000,
		TaxAmount:      160,
		DeliveryFee:    300,
		TotalAmount:    2460,
		Currency:       "USD",
		OrderType:      domain.OrderTypeRegular,
		OrderStatus:    status,
		PaymentStatus:  payment,
	}
}

// --- CreateOrder ---

func TestCreateOrder_Success(t *testing.T) {
	svc := new(mockOrderService)
	svc.On("CreateOrder", mock.Anything, mock.MatchedBy(func(in service.CreateOrderInput) bool {
		return in.CustomerID == "c-1" &&
			len(in.Items) == 2 &&
			in.Items[0] == service.CartEntry{ProductID: "p", Quantity: 2} &&
			in.DeliveryAddress.City == "Springfield" &&
			in.OrderType == "" && in.Notes == "ring twice"
	})).Return(sampleOrder(domain.OrderStatusPending, domain.PaymentStatusPending), nil)

	rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/v1/orders", "customer-token", map[string]any{
		"items": []map[string]any{{"product_id": "p", "quantity": 2}, {"product_id": "q", "quantity": 1}},
		"delivery_address": map[string]string{
			"street": "1 Main St", "city": "Springfield", "state": "IL", "zip_code": "62704",
		},
		"notes": "ring twice",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
	order := decodeOrder(t, rec)
	assert.Equal(t, orderID, order.ID)
	assert.Equal(t, int64(2460), order.TotalAmount)
	svc.AssertExpectations(t)
}

func TestCreateOrder_RateLimited(t *testing.T) {
	svc := new(mockOrderService)
	svc.On("CreateOrder", mock.Anything, mock.Anything).
		Return(sampleOrder(domain.OrderStatusPending, domain.PaymentStatusPending), nil).Once()

	router := NewRouter(svc, health.NewHandler(), staticValidator, testLogger(), RouterConfig{
		CreateRateLimit: middleware.RateLimitConfig{RPS: 0.001, Burst: 1},
	})
	body := map[string]any{
		"items":            []map[string]any{{"product_id": "p", "quantity": 1}},
		"delivery_address": map[string]string{"street": "1 Main St", "city": "Springfield", "state": "IL", "zip_code": "62704"},
	}

	first := doRequest(t, router, http.MethodPost, "/api/v1/orders", "customer-token", body)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := doRequest(t, router, http.MethodPost, "/api/v1/orders", "customer-token", body)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, second).Code)
	svc.AssertExpectations(t)
}

func TestCreateOrder_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		body       any
		wantStatus int
		wantCode   string
	}{
		{name: "no token", token: "", body: map[string]any{}, wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "bad token", token: "forged", body: map[string]any{}, wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "shopkeeper", token: "shopkeeper-token", body: map[string]any{}, wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN"},
		{name: "malformed json", token: "customer-token", body: "{not json", wantStatus: http.StatusBadRequest, wantCode: "INVALID_INPUT"},
		{name: "unknown field", token: "customer-token", body: map[string]any{"user_id": "c-2"}, wantStatus: http.StatusBadRequest, wantCode: "INVALID_INPUT"},
		{name: "missing product id", token: "customer-token", body: map[string]any{"items": []map[string]any{{"quantity": 1}}}, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "quantity above cap", token: "customer-token", body: map[string]any{"items": []map[string]any{{"product_id": "p", "quantity": 1001}}}, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "quantity that would wrap", token: "customer-token", body: map[string]any{"items": []map[string]any{{"product_id": "p", "quantity": 1<<54 + 1}}}, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockOrderService)

			rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/v1/orders", tt.token, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
			svc.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateOrder_UnsupportedMediaType(t *testing.T) {
	svc := new(mockOrderService)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString("items=p"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer customer-token")
	rec := httptest.NewRecorder()

	newTestRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestCreateOrder_DomainErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "empty cart", err: domain.ErrEmptyCart(), wantStatus: http.StatusBadRequest, wantCode: domain.CodeEmptyCart},
		{name: "quantity", err: domain.ErrInvalidQuantity("p", 0), wantStatus: http.StatusBadRequest, wantCode: domain.CodeInvalidQuantity},
		{name: "address", err: domain.ErrInvalidAddress([]string{"city"}), wantStatus: http.StatusBadRequest, wantCode: domain.CodeInvalidAddress},
		{name: "product", err: domain.ErrProductNotFound("p"), wantStatus: http.StatusNotFound, wantCode: domain.CodeProductNotFound},
		{name: "catalog down", err: apperrors.ServiceUnavailable("catalog", errors.New("open")), wantStatus: http.StatusServiceUnavailable, wantCode: "SERVICE_UNAVAILABLE"},
		{name: "database", err: errors.New("create order: connection refused"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockOrderService)
			svc.On("CreateOrder", mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/v1/orders", "customer-token",
				map[string]any{"items": []map[string]any{{"product_id": "p", "quantity": 0}}})

			assert.Equal(t, tt.wantStatus, rec.Code)
			errResp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, errResp.Code)
			assert.NotContains(t, errResp.Message, "connection refused")
			assert.NotEmpty(t, errResp.RequestID)
		})
	}
}

// --- Listing ---

func TestListMyOrders(t *testing.T) {
	svc := new(mockOrderService)
	svc.On("ListMyOrders", mock.Anything, "c-1", pagination.Params{Page: 2, PerPage: 1}).
		Return([]domain.Order{*sampleOrder("pending", "pending")}, 3, nil)

	rec := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/v1/orders/me?page=2&per_page=1", "customer-token", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp httputil.PaginatedResponse[domain.Order]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, 3, resp.TotalCount)
	assert.Equal(t, 3, resp.TotalPages)
	assert.True(t, resp.HasNext)
}

func TestListShopOrders(t *testing.T) {
	svc := new(mockOrderService)
	svc.On("ListShopOrders", mock.Anything, shopkeeper, "s1", "pending", pagination.DefaultParams()).
		Return([]domain.Order{}, 0, nil)

	rec := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/v1/orders/shop?shop_id=s1&status=pending", "shopkeeper-token", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp httputil.PaginatedResponse[domain.Order]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Data)
	assert.Zero(t, resp.TotalCount)
	svc.AssertExpectations(t)
}

func TestListShopOrders_CustomerForbidden(t *testing.T) {
	svc := new(mockOrderService)

	rec := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/v1/orders/shop", "customer-token", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	svc.AssertNotCalled(t, "ListShopOrders", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListShopOrders_AdminWithoutShop(t *testing.T) {
	svc := new(mockOrderService)
	svc.On("ListShopOrders", mock.Anything, admin, "", "", pagination.DefaultParams()).
		Return(nil, 0, apperrors.InvalidInput("shop_id is required"))

	rec := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/v1/orders/shop", "admin-token", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "shop_id is required", decodeError(t, rec).Message)
}

// --- GetOrder ---

func TestGetOrder(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		token      string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "found", path: "/api/v1/orders/" + orderID, token: "customer-token", wantStatus: http.StatusOK},
		{name: "malformed id", path: "/api/v1/orders/not-a-uuid", token: "customer-token", wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "not found", path: "/api/v1/orders/" + orderID, token: "customer-token", err: apperrors.NotFound("order", orderID), wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "forbidden", path: "/api/v1/orders/" + orderID, token: "customer-token", err: apperrors.Forbidden("no"), wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockOrderService)
			if tt.err != nil {
				svc.On("GetOrder", mock.Anything, orderID, customer).Return(nil, tt.err)
			} else {
				svc.On("GetOrder", mock.Anything, orderID, customer).Return(sampleOrder("pending", "pending"), nil)
			}

			rec := doRequest(t, newTestRouter(svc), http.MethodGet, tt.path, tt.token, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
				return
			}
			assert.Equal(t, orderID, decodeOrder(t, rec).ID)
		})
	}
}

func TestOrderRoutes_MalformedIDIsNotFound(t *testing.T) {
	tests := []struct {
		method string
		path   string
		token  string
		body   any
	}{
		{method: http.MethodGet, path: "/api/v1/orders/42", token: "admin-token"},
		{method: http.MethodPut, path: "/api/v1/orders/42/status", token: "admin-token", body: map[string]string{"status": "shipped"}},
		{method: http.MethodPut, path: "/api/v1/orders/42/cancel", token: "customer-token"},
		{method: http.MethodPut, path: "/api/v1/orders/42/payment-status", token: "admin-token", body: map[string]string{"payment_status": "paid"}},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			svc := new(mockOrderService)

			rec := doRequest(t, newTestRouter(svc), tt.method, tt.path, tt.token, tt.body)

			assert.Equal(t, http.StatusNotFound, rec.Code)
			errResp := decodeError(t, rec)
			assert.Equal(t, "NOT_FOUND", errResp.Code)
			assert.Contains(t, errResp.Message, "42")
			assert.Empty(t, svc.Calls)
		})
	}
}

// --- Status changes ---

func TestUpdateStatus(t *testing.T) {
	svc := new(mockOrderService)
	svc.On("UpdateStatus", mock.Anything, orderID, shopkeeper, "processing", "").
		Return(sampleOrder("processing", "pending"), nil)

	rec := doRequest(t, newTestRouter(svc), http.MethodPut, "/api/v1/orders/"+orderID+"/status", "shopkeeper-token",
		map[string]string{"status": "processing"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "processing", decodeOrder(t, rec).OrderStatus)
}

func TestUpdateStatus_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		body       any
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "customer", token: "customer-token", body: map[string]string{"status": "shipped"}, wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN"},
		{name: "missing status", token: "admin-token", body: map[string]string{"reason": "x"}, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "invalid transition", token: "admin-token", body: map[string]string{"status": "pending"},
			err: domain.ErrInvalidTransition("admin", "shipped", "pending"), wantStatus: http.StatusConflict, wantCode: domain.CodeInvalidTransition},
		{name: "finalized", token: "admin-token", body: map[string]string{"status": "shipped"},
			err: domain.ErrOrderAlreadyFinalized("delivered"), wantStatus: http.StatusConflict, wantCode: domain.CodeOrderAlreadyFinalized},
		{name: "race", token: "admin-token", body: map[string]string{"status": "shipped"},
			err: domain.ErrConflictingTransition(orderID), wantStatus: http.StatusConflict, wantCode: domain.CodeConflictingTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockOrderService)
			if tt.err != nil {
				svc.On("UpdateStatus", mock.Anything, orderID, admin, mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			rec := doRequest(t, newTestRouter(svc), http.MethodPut, "/api/v1/orders/"+orderID+"/status", tt.token, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestCancelOrder_EmptyBody(t *testing.T) {
	svc := new(mockOrderService)
	svc.On("CancelOrder", mock.Anything, orderID, customer, "").
		Return(sampleOrder("cancelled", "pending"), nil)

	rec := doRequest(t, newTestRouter(svc), http.MethodPut, "/api/v1/orders/"+orderID+"/cancel", "customer-token", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", decodeOrder(t, rec).OrderStatus)
}

func TestCancelOrder_WithReason(t *testing.T) {
	svc := new(mockOrderService)
	refunded := sampleOrder("cancelled", "refunded")
	refunded.CancelReason = "changed my mind"
	svc.On("CancelOrder", mock.Anything, orderID, admin, "changed my mind").Return(refunded, nil)

	rec := doRequest(t, newTestRouter(svc), http.MethodPut, "/api/v1/orders/"+orderID+"/cancel", "admin-token",
		map[string]string{"reason": "changed my mind"})

	require.Equal(t, http.StatusOK, rec.Code)
	order := decodeOrder(t, rec)
	assert.Equal(t, "refunded", order.PaymentStatus)
	assert.Equal(t, "changed my mind", order.CancelReason)
}

// --- Payment status ---

func TestUpdatePaymentStatus(t *testing.T) {
	svc := new(mockOrderService)
	svc.On("UpdatePaymentStatus", mock.Anything, orderID, admin, "paid").Return(sampleOrder("pending", "paid"), nil)

	rec := doRequest(t, newTestRouter(svc), http.MethodPut, "/api/v1/orders/"+orderID+"/payment-status", "admin-token",
		map[string]string{"payment_status": "paid"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paid", decodeOrder(t, rec).PaymentStatus)
}

func TestUpdatePaymentStatus_Rejections(t *testing.T) {
	svc := new(mockOrderService)
	router := newTestRouter(svc)
	path := "/api/v1/orders/" + orderID + "/payment-status"

	rec := doRequest(t, router, http.MethodPut, path, "shopkeeper-token", map[string]string{"payment_status": "paid"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, router, http.MethodPut, path, "admin-token", map[string]string{"payment_status": "settled"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errResp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", errResp.Code)
	assert.Contains(t, errResp.Fields, "payment_status")

	svc.AssertNotCalled(t, "UpdatePaymentStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- Infrastructure routes ---

func TestHealthAndMetricsArePublic(t *testing.T) {
	router := newTestRouter(new(mockOrderService))

	rec := doRequest(t, router, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
