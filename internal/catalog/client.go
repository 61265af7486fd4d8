package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/hariomGiri/localshop-connect-sub001/pkg/errors"
	"github.com/hariomGiri/localshop-connect-sub001/pkg/httpclient"
)

const serviceName = "catalog"

// Client reads the catalog over its REST API.
type Client struct {
	doer    httpclient.Doer
	baseURL string
}

// NewClient creates a Client. doer is normally a circuit-breaker-wrapped httpclient.
func NewClient(doer httpclient.Doer, baseURL string) *Client {
	return &Client{doer: doer, baseURL: strings.TrimRight(baseURL, "/")}
}

// GetProduct implements Reader.
func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	if err := c.get(ctx, "/api/v1/products/"+url.PathEscape(id), &p); err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return &p, nil
}

// GetShop implements Reader.
func (c *Client) GetShop(ctx context.Context, id string) (*Shop, error) {
	var s Shop
	if err := c.get(ctx, "/api/v1/shops/"+url.PathEscape(id), &s); err != nil {
		return nil, fmt.Errorf("get shop %s: %w", id, err)
	}
	return &s, nil
}

// ListShopIDsByOwner implements Reader.
func (c *Client) ListShopIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	var shops []Shop
	q := url.Values{"owner_id": {ownerID}}
	if err := c.get(ctx, "/api/v1/shops?"+q.Encode(), &shops); err != nil {
		return nil, fmt.Errorf("list shops of owner %s: %w", ownerID, err)
	}
	ids := make([]string, 0, len(shops))
	for _, s := range shops {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.ServiceUnavailable(serviceName, err)
	}
	return httpclient.DecodeData(resp, serviceName, v)
}
