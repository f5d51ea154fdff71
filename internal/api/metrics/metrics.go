// Package metrics defines and registers all custom Prometheus metrics for the
// admin API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation and exposed by the router at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "orgadmin"

// ── Record metrics ────────────────────────────────────────────────────────────

// MutationsTotal counts committed mutations (each paired with one audit entry).
// Labels:
//   - entity: catalog entity name (e.g. "asset", "event")
//   - type: "create" or "update"
var MutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mutations_total",
		Help:      "Total number of committed record mutations, by entity and type.",
	},
	[]string{"entity", "type"},
)

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthRejectionsTotal counts requests stopped by the auth pipeline.
// Label:
//   - reason: "missing_token", "invalid_token", "inactive_principal", "no_admin_grant"
var AuthRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_rejections_total",
		Help:      "Total number of requests rejected by the auth pipeline, by reason.",
	},
	[]string{"reason"},
)

// LoginsTotal counts login attempts.
// Labels:
//   - kind: "user" or "admin"
//   - result: "success" or "failure"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by kind and result.",
	},
	[]string{"kind", "result"},
)
