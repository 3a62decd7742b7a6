// Package metrics exposes the engine's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCalls counts outbound RPC calls per method.
	RPCCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rifts_rpc_calls_total",
		Help: "Outbound RPC calls by method.",
	}, []string{"method"})

	// CacheHits counts reads served from the response cache per method.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rifts_rpc_cache_hits_total",
		Help: "RPC reads served from cache by method.",
	}, []string{"method"})

	// FallbackRotations counts endpoint rotations after rate limiting.
	FallbackRotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rifts_rpc_fallback_rotations_total",
		Help: "Endpoint rotations triggered by rate-limit errors.",
	})

	// ScanFailures counts program-account scans that collapsed to an empty
	// result. Scans and genuinely empty results are indistinguishable to
	// callers; this counter is the only signal of decode-format drift.
	ScanFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rifts_program_scan_failures_total",
		Help: "Program-account scans that failed and returned empty sets.",
	})

	// DecodeFailures counts rift account buffers that produced sentinel records.
	DecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rifts_account_decode_failures_total",
		Help: "Rift account decodes that produced sentinel records.",
	})

	// OperationsTotal counts orchestrator runs by operation and outcome.
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rifts_operations_total",
		Help: "Orchestrator runs by operation and outcome.",
	}, []string{"op", "outcome"})

	// ConfirmLatency observes seconds from submission to confirmation.
	ConfirmLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rifts_confirm_latency_seconds",
		Help:    "Latency from transaction submission to confirmation.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
	})
)
