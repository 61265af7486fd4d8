package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/hariomGiri/localshop-connect-sub001/internal/catalog"
	"github.com/hariomGiri/localshop-connect-sub001/internal/domain"
	apperrors "github.com/hariomGiri/localshop-connect-sub001/pkg/errors"
)

// CartEntry is one requested cart line.
type CartEntry struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// BuildLineItems prices each entry against the current catalog record. Entries
// are processed in order and duplicate product ids stay separate lines.
// Quantities must lie in [1, domain.MaxQuantity].
func BuildLineItems(ctx context.Context, products catalog.Reader, entries []CartEntry) ([]domain.LineItem, error) {
	items := make([]domain.LineItem, 0, len(entries))
	for _, e := range entries {
		if e.Quantity < 1 || e.Quantity > domain.MaxQuantity {
			return nil, domain.ErrInvalidQuantity(e.ProductID, e.Quantity)
		}

		p, err := products.GetProduct(ctx, e.ProductID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, domain.ErrProductNotFound(e.ProductID)
			}
			return nil, fmt.Errorf("get product %s: %w", e.ProductID, err)
		}

		item := domain.LineItem{
			ProductID: p.ID,
			ShopID:    p.ShopID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  e.Quantity,
		}
		if item.Subtotal, err = item.LineTotal(); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// PartitionByShop groups items by shop in first-seen order. Each shop is looked
// up once and its name is copied onto the group and its items.
func PartitionByShop(ctx context.Context, shops catalog.Reader, items []domain.LineItem) ([]domain.ShopGroup, error) {
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart()
	}

	index := make(map[string]int)
	var groups []domain.ShopGroup
	for _, item := range items {
		i, ok := index[item.ShopID]
		if !ok {
			shop, err := shops.GetShop(ctx, item.ShopID)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					return nil, domain.ErrShopNotFound(item.ShopID)
				}
				return nil, fmt.Errorf("get shop %s: %w", item.ShopID, err)
			}
			i = len(groups)
			index[item.ShopID] = i
			groups = append(groups, domain.ShopGroup{ShopID: item.ShopID, ShopName: shop.Name})
		}

		subtotal, err := domain.AddAmounts(groups[i].Subtotal, item.Subtotal)
		if err != nil {
			return nil, err
		}
		item.ShopName = groups[i].ShopName
		groups[i].Items = append(groups[i].Items, item)
		groups[i].Subtotal = subtotal
	}
	return groups, nil
}

// flatten lists the items of groups in group order.
func flatten(groups []domain.ShopGroup) []domain.LineItem {
	var items []domain.LineItem
	for _, g := range groups {
		items = append(items, g.Items...)
	}
	return items
}
