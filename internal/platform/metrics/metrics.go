// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OptOutsRegistered counts registration outcomes by result
	// (created, duplicate, error).
	OptOutsRegistered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "optout_registrations_total",
		Help: "Opt-out registration attempts by outcome.",
	}, []string{"result"})

	// MilestonesEmitted counts milestone events by threshold.
	MilestonesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "optout_milestones_total",
		Help: "Milestone events emitted by threshold percent.",
	}, []string{"percent"})

	// ResolverFailures counts carrier-route lookups that did not produce a
	// route, by failure reason.
	ResolverFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "optout_resolver_failures_total",
		Help: "Carrier route resolver failures by reason.",
	}, []string{"reason"})
)
