package rpcx

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Sentinel errors surfaced by the access layer.
var (
	// ErrRateLimited is returned when an endpoint keeps throttling after
	// fallback and backoff were exhausted.
	ErrRateLimited = errors.New("rpc: rate limited on all endpoints")
	// ErrAccountNotFound marks a read that resolved to no account.
	ErrAccountNotFound = errors.New("rpc: account not found")
)

// errorClass buckets RPC failures by recovery policy.
type errorClass int

const (
	classOther errorClass = iota
	classRateLimit
	classTransient
	classCanceled
)

var rateLimitMarkers = []string{
	"429",
	"too many requests",
	"rate limit",
	"rate-limited",
	"-32005",
}

var transientMarkers = []string{
	"500",
	"502",
	"503",
	"504",
	"bad gateway",
	"gateway timeout",
	"service unavailable",
	"connection reset",
	"connection refused",
	"eof",
	"i/o timeout",
	"context deadline exceeded",
}

// classify decides recovery policy from the error shape. Gagliardetto's rpc
// client folds HTTP status and JSON-RPC error codes into the message, so
// marker matching is the only portable signal.
func classify(err error) errorClass {
	if err == nil {
		return classOther
	}
	if errors.Is(err, context.Canceled) {
		return classCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return classTransient
	}
	msg := strings.ToLower(err.Error())
	for _, m := range rateLimitMarkers {
		if strings.Contains(msg, m) {
			return classRateLimit
		}
	}
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return classTransient
		}
	}
	return classOther
}

// IsUserRejection detects a wallet-side signing refusal by message pattern.
// Expected user behavior, not a fault; callers suppress error logging for it.
func IsUserRejection(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") || strings.Contains(msg, "rejected the request")
}
