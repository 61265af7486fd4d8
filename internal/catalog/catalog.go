// Package catalog reads product and shop records owned by the catalog service.
package catalog

import "context"

// Product is the subset of a catalog product needed to price a cart line.
type Product struct {
	ID     string `json:"id"`
	ShopID string `json:"shop_id"`
	Name   string `json:"name"`
	Price  int64  `json:"price"`
}

// Shop is the subset of a catalog shop needed for grouping and ownership checks.
type Shop struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

// Reader looks up catalog records. Missing records are reported with an error
// matching apperrors.ErrNotFound; an unreachable catalog with apperrors.ErrServiceUnavail.
type Reader interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetShop(ctx context.Context, id string) (*Shop, error)
	ListShopIDsByOwner(ctx context.Context, ownerID string) ([]string, error)
}
