package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hariomGiri/localshop-connect-sub001/pkg/errors"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestDecodeData(t *testing.T) {
	var out struct {
		ID    string `json:"id"`
		Price int64  `json:"price"`
	}
	err := DecodeData(response(http.StatusOK, `{"data":{"id":"p-1","price":1000}}`), "catalog", &out)
	require.NoError(t, err)
	assert.Equal(t, "p-1", out.ID)
	assert.Equal(t, int64(1000), out.Price)
}

func TestDecodeData_MissingData(t *testing.T) {
	var out map[string]any
	err := DecodeData(response(http.StatusOK, `{"data":null}`), "catalog", &out)
	assert.Error(t, err)
}

func TestDecodeData_ErrorStatus(t *testing.T) {
	var out map[string]any
	err := DecodeData(response(http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"product not found"}}`), "catalog", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestParseResponseError(t *testing.T) {
	tests := []struct {
		status   int
		body     string
		sentinel error
	}{
		{http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"x"}}`, apperrors.ErrNotFound},
		{http.StatusBadRequest, `{"error":{"code":"INVALID_INPUT","message":"x"}}`, apperrors.ErrInvalidInput},
		{http.StatusUnauthorized, `nope`, apperrors.ErrUnauthorized},
		{http.StatusForbidden, `{"error":{"code":"FORBIDDEN","message":"x"}}`, apperrors.ErrForbidden},
		{http.StatusConflict, `{"error":{"code":"CONFLICT","message":"x"}}`, apperrors.ErrConflict},
		{http.StatusBadGateway, `upstream`, apperrors.ErrServiceUnavail},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := ParseResponseError(response(tt.status, tt.body), "catalog")
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}
}

func TestParseResponseError_UnexpectedStatus(t *testing.T) {
	err := ParseResponseError(response(http.StatusTeapot, "short and stout"), "catalog")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 418")
}
