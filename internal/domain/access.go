package domain

import (
	apperrors "github.com/hariomGiri/localshop-connect-sub001/pkg/errors"
)

// CanView allows admins, the owning customer, and shopkeepers owning a shop in the order.
func CanView(o *Order, actor Actor) error {
	switch {
	case actor.Role == RoleAdmin:
		return nil
	case actor.ID != "" && actor.ID == o.CustomerID:
		return nil
	case actor.Role == RoleShopkeeper && ownsAny(o, actor):
		return nil
	}
	return apperrors.Forbidden("you do not have access to this order")
}

// CanModify is the ownership half of a status change. Customers act on their own
// orders, shopkeepers on orders containing one of their shops, admins on any order.
func CanModify(o *Order, actor Actor) error {
	switch actor.Role {
	case RoleAdmin:
		return nil
	case RoleCustomer:
		if actor.ID != "" && actor.ID == o.CustomerID {
			return nil
		}
	case RoleShopkeeper:
		if ownsAny(o, actor) {
			return nil
		}
	}
	return apperrors.Forbidden("you cannot change this order")
}

func ownsAny(o *Order, actor Actor) bool {
	for _, g := range o.ShopGroups {
		if actor.Owns(g.ShopID) {
			return true
		}
	}
	return false
}

// ProjectFor returns the view of o that actor is entitled to. Shopkeepers who are
// not the buyer see only their own shop groups and items; totals stay order-level.
// Everyone else gets o unchanged.
func (o *Order) ProjectFor(actor Actor) *Order {
	if actor.Role != RoleShopkeeper || actor.ID == o.CustomerID {
		return o
	}
	return o.ProjectShops(actor.ShopIDs)
}

// ProjectShops returns a copy of o restricted to the groups and items of shopIDs.
func (o *Order) ProjectShops(shopIDs []string) *Order {
	keep := make(map[string]struct{}, len(shopIDs))
	for _, id := range shopIDs {
		keep[id] = struct{}{}
	}

	p := *o
	p.ShopGroups = make([]ShopGroup, 0, len(o.ShopGroups))
	for _, g := range o.ShopGroups {
		if _, ok := keep[g.ShopID]; ok {
			p.ShopGroups = append(p.ShopGroups, g)
		}
	}
	p.Items = make([]LineItem, 0, len(o.Items))
	for _, it := range o.Items {
		if _, ok := keep[it.ShopID]; ok {
			p.Items = append(p.Items, it)
		}
	}
	return &p
}
