package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(entitlementsResolved, roleGrants, reconcileRuns)
}

var (
	entitlementsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entitlements_resolved_total",
			Help:      "Pending role requests marked paid, by program.",
		},
		[]string{"program"},
	)

	// status: granted|already_held|failed
	roleGrants = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_grants_total",
			Help:      "Role grant attempts by role and status.",
		},
		[]string{"role", "status"},
	)

	reconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entitlement_reconcile_runs_total",
			Help:      "Reconciler ticks by outcome (ran/skipped_locked/error).",
		},
		[]string{"outcome"},
	)
)

func IncEntitlementResolved(program string) {
	entitlementsResolved.WithLabelValues(norm(program)).Inc()
}

func IncRoleGrant(role, status string) {
	roleGrants.WithLabelValues(norm(role), norm(status)).Inc()
}

func IncReconcileRun(outcome string) {
	reconcileRuns.WithLabelValues(norm(outcome)).Inc()
}
