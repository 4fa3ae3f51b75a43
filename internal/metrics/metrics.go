package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Tree sync metrics
	// ============================================
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shieldswap_sync_runs_total",
			Help: "Total number of tree sync runs by result",
		},
		[]string{"result"},
	)

	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shieldswap_sync_duration_seconds",
		Help:    "Tree sync run duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	SyncInProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shieldswap_sync_in_progress",
		Help: "Whether a tree sync run is currently in flight (1=yes, 0=no)",
	})

	RootMismatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shieldswap_root_mismatch_total",
		Help: "Total number of sync runs whose local root diverged from the on-chain root",
	})

	LastSyncedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shieldswap_last_synced_block",
			Help: "Last block number covered by a successful sync",
		},
		[]string{"chain_id", "pool"},
	)

	TreeLeafCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shieldswap_tree_leaf_count",
			Help: "Number of leaves in the local commitment tree",
		},
		[]string{"chain_id", "pool"},
	)

	DepositEventsInsertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shieldswap_deposit_events_inserted_total",
		Help: "Total number of deposit events inserted into the local tree",
	})

	MalformedEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shieldswap_malformed_events_total",
		Help: "Total number of deposit logs dropped because they failed validation",
	})

	SnapshotWritesFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shieldswap_snapshot_writes_failed_total",
		Help: "Total number of tree snapshot persist failures",
	})

	// ============================================
	// Note store metrics
	// ============================================
	NotesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shieldswap_notes_created_total",
		Help: "Total number of deposit notes created",
	})

	NotesSpentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shieldswap_notes_spent_total",
		Help: "Total number of deposit notes marked spent",
	})

	NotesImportedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shieldswap_notes_imported_total",
			Help: "Total number of note import entries by result",
		},
		[]string{"result"},
	)

	// ============================================
	// Proof orchestration metrics
	// ============================================
	ProofRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shieldswap_proof_requests_total",
			Help: "Total number of swap proof requests by result",
		},
		[]string{"result"},
	)

	ProofGenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shieldswap_proof_generation_duration_seconds",
		Help:    "External prover call duration in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	// ============================================
	// Connection metrics
	// ============================================
	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shieldswap_db_connection_status",
		Help: "Database connection status (1=healthy, 0=unhealthy)",
	})

	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shieldswap_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	WSClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shieldswap_ws_clients_connected",
		Help: "Number of connected websocket status subscribers",
	})
)
