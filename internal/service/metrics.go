package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders placed, by order type.",
		},
		[]string{"order_type"},
	)

	orderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Applied order status transitions.",
		},
		[]string{"from", "to", "role"},
	)

	paymentUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_payment_status_updates_total",
			Help: "Applied payment status updates, by new status and source.",
		},
		[]string{"status", "source"},
	)
)
