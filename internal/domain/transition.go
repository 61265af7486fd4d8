package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	apperrors "github.com/hariomGiri/localshop-connect-sub001/pkg/errors"
)

// transitionTable maps role -> current status -> statuses that role may set.
// Terminal statuses have no entry. Cancellation is only reachable from pending
// and processing, for every role.
var transitionTable = map[string]map[string][]string{
	RoleCustomer: {
		OrderStatusPending:    {OrderStatusCancelled},
		OrderStatusProcessing: {OrderStatusCancelled},
	},
	RoleShopkeeper: {
		OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
		OrderStatusProcessing: {OrderStatusShipped},
		OrderStatusShipped:    {OrderStatusDelivered},
	},
	RoleAdmin: {
		OrderStatusPending:    {OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
		OrderStatusProcessing: {OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
		OrderStatusShipped:    {OrderStatusProcessing, OrderStatusDelivered},
	},
}

// AllowedTransitions returns the statuses role may move an order to from status from.
func AllowedTransitions(role, from string) []string {
	return slices.Clone(transitionTable[role][from])
}

// CheckTransition validates a status change for role, ignoring ownership.
// Terminal states are reported before the table is consulted.
func CheckTransition(role, from, to string) error {
	if !IsValidStatus(to) {
		return apperrors.InvalidInput(fmt.Sprintf("invalid status %q, must be one of: %s",
			to, strings.Join(ValidStatuses(), ", ")))
	}
	if IsTerminal(from) {
		return ErrOrderAlreadyFinalized(from)
	}
	if !slices.Contains(transitionTable[role][from], to) {
		return ErrInvalidTransition(role, from, to)
	}
	return nil
}

// StatusChange describes one applied transition.
type StatusChange struct {
	OrderID     string
	FromStatus  string
	ToStatus    string
	FromPayment string
	ToPayment   string
	Reason      string
	ActorID     string
	ActorRole   string
	At          time.Time
}

// PaymentChanged reports whether the transition also moved the payment status.
func (c StatusChange) PaymentChanged() bool {
	return c.FromPayment != c.ToPayment
}

// Transition moves the order to status to on behalf of actor. Cancelling a paid
// order marks the payment refunded. The order is only mutated on success.
func (o *Order) Transition(actor Actor, to, reason string, now time.Time) (StatusChange, error) {
	if err := CanModify(o, actor); err != nil {
		return StatusChange{}, err
	}
	if err := CheckTransition(actor.Role, o.OrderStatus, to); err != nil {
		return StatusChange{}, err
	}

	change := StatusChange{
		OrderID:     o.ID,
		FromStatus:  o.OrderStatus,
		ToStatus:    to,
		FromPayment: o.PaymentStatus,
		ToPayment:   o.PaymentStatus,
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		At:          now,
	}
	if to == OrderStatusCancelled {
		change.Reason = strings.TrimSpace(reason)
		if o.PaymentStatus == PaymentStatusPaid {
			change.ToPayment = PaymentStatusRefunded
		}
	}

	o.OrderStatus = change.ToStatus
	o.PaymentStatus = change.ToPayment
	if to == OrderStatusCancelled {
		o.CancelReason = change.Reason
	}
	o.UpdatedAt = now

	return change, nil
}

// PaymentChange describes one applied payment status update.
// OrderStatus is the order status the change was validated against.
type PaymentChange struct {
	OrderID     string
	OrderStatus string
	From        string
	To          string
	At          time.Time
}

// CheckPaymentTransition validates a payment status update against the order state.
// Refunded is final, a cancelled order can only be refunded, and only a paid order
// can be refunded.
func CheckPaymentTransition(orderStatus, from, to string) error {
	if !IsValidPaymentStatus(to) {
		return apperrors.InvalidInput(fmt.Sprintf("invalid payment status %q, must be one of: %s",
			to, strings.Join(ValidPaymentStatuses(), ", ")))
	}
	switch {
	case from == to, from == PaymentStatusRefunded:
		return ErrInvalidPaymentTransition(from, to)
	case orderStatus == OrderStatusCancelled && to != PaymentStatusRefunded:
		return ErrOrderAlreadyFinalized(orderStatus)
	case to == PaymentStatusRefunded && from != PaymentStatusPaid:
		return ErrInvalidPaymentTransition(from, to)
	}
	return nil
}

// SetPaymentStatus applies a validated payment status update.
func (o *Order) SetPaymentStatus(to string, now time.Time) (PaymentChange, error) {
	if err := CheckPaymentTransition(o.OrderStatus, o.PaymentStatus, to); err != nil {
		return PaymentChange{}, err
	}
	change := PaymentChange{OrderID: o.ID, OrderStatus: o.OrderStatus, From: o.PaymentStatus, To: to, At: now}
	o.PaymentStatus = to
	o.UpdatedAt = now
	return change, nil
}
