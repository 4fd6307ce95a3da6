// Package metrics holds the Prometheus collectors for the booking lifecycle
// and the credit ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transition outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// BookingTransitions counts lifecycle transition attempts by outcome.
var BookingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "skillswap",
	Subsystem: "booking",
	Name:      "transitions_total",
	Help:      "Booking lifecycle transitions by transition name and outcome.",
}, []string{"transition", "outcome"})

// CreditsMoved sums absolute credit amounts written to the ledger, by entry type.
var CreditsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "skillswap",
	Subsystem: "ledger",
	Name:      "credits_moved_total",
	Help:      "Absolute credits recorded in the ledger by entry type.",
}, []string{"kind"})

// OrphansRefunded counts bookings deleted and refunded by the orphan sweep.
var OrphansRefunded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "skillswap",
	Subsystem: "reconcile",
	Name:      "orphans_refunded_total",
	Help:      "Orphaned bookings refunded and removed by the sweep.",
})
