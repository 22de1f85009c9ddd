package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Vault ledger metrics
	// ============================================
	VaultTotalPooled = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vault_total_pooled",
			Help: "Total pooled balance per asset ledger",
		},
		[]string{"token_id", "asset"},
	)

	VaultAllocatedOut = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vault_allocated_out",
			Help: "Funds currently allocated to strategies per asset ledger",
		},
		[]string{"token_id", "asset"},
	)

	VaultDeposits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_deposits_total",
			Help: "Total number of vault deposits",
		},
		[]string{"token_id"},
	)

	VaultWithdrawals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_withdrawals_total",
			Help: "Total number of vault withdrawals",
		},
		[]string{"token_id"},
	)

	// ============================================
	// Orchestrator operation metrics
	// ============================================
	OperationsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_operations_started_total",
			Help: "Cross-chain operations initiated, by type and path",
		},
		[]string{"type", "path"}, // path: local | remote
	)

	OperationsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orchestrator_operations_pending",
		Help: "Cross-chain operations currently awaiting confirmation",
	})

	OperationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_operations_completed_total",
			Help: "Pending operations resolved, by type and outcome",
		},
		[]string{"type", "outcome"}, // outcome: completed | failed | expired
	)

	// ============================================
	// Message transport metrics
	// ============================================
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_messages_received_total",
			Help: "Inbound cross-chain messages received",
		},
		[]string{"type"},
	)

	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_messages_processed_total",
			Help: "Inbound cross-chain messages processed successfully",
		},
		[]string{"type"},
	)

	MessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_messages_failed_total",
			Help: "Inbound cross-chain messages whose processing failed",
		},
		[]string{"type", "error_type"},
	)

	MessagesDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_messages_duplicate_total",
		Help: "Inbound messages rejected by the processed-message set",
	})

	MessageProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_message_processing_duration_seconds",
			Help:    "Inbound message processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	TransportConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transport_connection_status",
		Help: "Messaging transport connection status (1=connected, 0=disconnected)",
	})

	TransportFeesPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transport_fees_paid_total",
		Help: "Cumulative transport fees paid, native units",
	})

	// ============================================
	// Database metrics
	// ============================================
	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backend_db_connection_status",
		Help: "Database connection status (1=healthy, 0=unhealthy)",
	})

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_type"},
	)
)
