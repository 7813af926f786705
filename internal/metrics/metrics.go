// Package metrics exposes Prometheus instrumentation for the custody core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WalletsCreated counts new wallet records persisted.
	WalletsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lumensave",
		Subsystem: "keystore",
		Name:      "wallets_created_total",
		Help:      "Number of wallet records created.",
	})

	// CreateRacesLost counts get-or-create calls that lost the insert race
	// and fell back to reading the winner's record.
	CreateRacesLost = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lumensave",
		Subsystem: "keystore",
		Name:      "create_races_lost_total",
		Help:      "Number of wallet creations that lost the uniqueness race.",
	})

	// SignRequests counts signing calls by outcome.
	SignRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lumensave",
		Subsystem: "keystore",
		Name:      "sign_requests_total",
		Help:      "Number of signing requests by outcome.",
	}, []string{"outcome"})

	// DecryptFailures counts stored records that failed authentication on
	// decrypt. Any non-zero value means tampering or a master-key mismatch
	// and warrants an alert.
	DecryptFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lumensave",
		Subsystem: "keystore",
		Name:      "decrypt_failures_total",
		Help:      "Number of stored secrets that failed authenticated decryption.",
	})

	// SignDuration observes end-to-end signing latency.
	SignDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lumensave",
		Subsystem: "keystore",
		Name:      "sign_duration_seconds",
		Help:      "Latency of fetch-decrypt-sign cycles.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Outcome labels for SignRequests.
const (
	OutcomeOK        = "ok"
	OutcomeNotFound  = "not_found"
	OutcomeAuthFail  = "auth_failure"
	OutcomeStorage   = "storage_error"
	OutcomeMalformed = "malformed"
)
