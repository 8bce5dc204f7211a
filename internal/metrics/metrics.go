// Package metrics exposes Prometheus collectors for sync observability.
// Collectors register on the default registry; cmd/syncd serves them on
// /metrics via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SnapshotsApplied counts remote snapshots reconciled into the local
	// store, labeled by scope ("groups" or "expenses").
	SnapshotsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fairsplit",
		Subsystem: "sync",
		Name:      "snapshots_applied_total",
		Help:      "Remote snapshots reconciled into the local store.",
	}, []string{"scope"})

	// MergeOutcomes counts per-entity merge decisions: "inserted" (no local
	// copy), "overwritten" (clean local), "remote_won" and "local_kept"
	// (LWW on a dirty local copy).
	MergeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fairsplit",
		Subsystem: "sync",
		Name:      "merge_outcomes_total",
		Help:      "Per-entity merge decisions during reconciliation.",
	}, []string{"outcome"})

	// StreamErrors counts subscription streams terminated by an error.
	StreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fairsplit",
		Subsystem: "sync",
		Name:      "stream_errors_total",
		Help:      "Snapshot subscriptions terminated by a stream error.",
	}, []string{"scope"})

	// PushBatches counts upload batches by status ("ok", "failed", "skipped").
	PushBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fairsplit",
		Subsystem: "upload",
		Name:      "push_batches_total",
		Help:      "Upload batches pushed to the remote store.",
	}, []string{"status"})

	// EntitiesUploaded counts entities successfully pushed.
	EntitiesUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fairsplit",
		Subsystem: "upload",
		Name:      "entities_uploaded_total",
		Help:      "Entities acknowledged by the remote store.",
	})

	// GhostClaims counts claim attempts by result ("ok", "rejected", "error").
	GhostClaims = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fairsplit",
		Subsystem: "identity",
		Name:      "ghost_claims_total",
		Help:      "Ghost claim attempts by result.",
	}, []string{"result"})
)
