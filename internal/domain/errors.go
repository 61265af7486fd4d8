package domain

import (
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/hariomGiri/localshop-connect-sub001/pkg/errors"
)

// Error codes specific to ordering.
const (
	CodeInvalidQuantity       = "INVALID_QUANTITY"
	CodeAmountOutOfRange      = "AMOUNT_OUT_OF_RANGE"
	CodeProductNotFound       = "PRODUCT_NOT_FOUND"
	CodeShopNotFound          = "SHOP_NOT_FOUND"
	CodeEmptyCart             = "EMPTY_CART"
	CodeInvalidAddress        = "INVALID_ADDRESS"
	CodeInvalidDeliveryDate   = "INVALID_DELIVERY_DATE"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeOrderAlreadyFinalized = "ORDER_ALREADY_FINALIZED"
	CodeConflictingTransition = "CONFLICTING_TRANSITION"
	CodeInvalidPaymentChange  = "INVALID_PAYMENT_TRANSITION"
)

func ErrInvalidQuantity(productID string, quantity int) *apperrors.AppError {
	return apperrors.New(CodeInvalidQuantity,
		fmt.Sprintf("quantity for product %s must be between 1 and %d, got %d", productID, MaxQuantity, quantity),
		http.StatusBadRequest, apperrors.ErrInvalidInput)
}

func ErrAmountOutOfRange() *apperrors.AppError {
	return apperrors.New(CodeAmountOutOfRange, "order amount is out of range", http.StatusBadRequest, apperrors.ErrInvalidInput)
}

func ErrProductNotFound(productID string) *apperrors.AppError {
	return apperrors.New(CodeProductNotFound,
		fmt.Sprintf("product %s not found", productID),
		http.StatusNotFound, apperrors.ErrNotFound)
}

func ErrShopNotFound(shopID string) *apperrors.AppError {
	return apperrors.New(CodeShopNotFound,
		fmt.Sprintf("shop %s not found", shopID),
		http.StatusNotFound, apperrors.ErrNotFound)
}

func ErrEmptyCart() *apperrors.AppError {
	return apperrors.New(CodeEmptyCart, "cart has no items", http.StatusBadRequest, apperrors.ErrInvalidInput)
}

func ErrInvalidAddress(missing []string) *apperrors.AppError {
	return apperrors.New(CodeInvalidAddress,
		"delivery address is missing: "+strings.Join(missing, ", "),
		http.StatusBadRequest, apperrors.ErrInvalidInput)
}

func ErrInvalidDeliveryDate(message string) *apperrors.AppError {
	return apperrors.New(CodeInvalidDeliveryDate, message, http.StatusBadRequest, apperrors.ErrInvalidInput)
}

func ErrInvalidTransition(role, from, to string) *apperrors.AppError {
	return apperrors.New(CodeInvalidTransition,
		fmt.Sprintf("%s cannot move an order from %q to %q", role, from, to),
		http.StatusConflict, apperrors.ErrConflict)
}

func ErrOrderAlreadyFinalized(status string) *apperrors.AppError {
	return apperrors.New(CodeOrderAlreadyFinalized,
		fmt.Sprintf("order is already %s", status),
		http.StatusConflict, apperrors.ErrConflict)
}

func ErrConflictingTransition(orderID string) *apperrors.AppError {
	return apperrors.New(CodeConflictingTransition,
		fmt.Sprintf("order %s was modified concurrently, reload and retry", orderID),
		http.StatusConflict, apperrors.ErrConflict)
}

func ErrInvalidPaymentTransition(from, to string) *apperrors.AppError {
	return apperrors.New(CodeInvalidPaymentChange,
		fmt.Sprintf("payment status cannot change from %q to %q", from, to),
		http.StatusConflict, apperrors.ErrConflict)
}
