package engine

import "errors"

// Typed operation errors. Every public orchestrator returns one of these
// classes wrapped with context; messages are safe to display directly.
var (
	// ErrInvalidAmount rejects non-positive or overflowing amounts before
	// any network call.
	ErrInvalidAmount = errors.New("amount must be a positive value")
	// ErrRiftNotFound means the rift account does not exist on-chain.
	ErrRiftNotFound = errors.New("rift account not found")
	// ErrRiftClosed rejects operations against a closed rift.
	ErrRiftClosed = errors.New("rift has been closed")
	// ErrDecodeFailed marks a rift account whose bytes could not be decoded.
	ErrDecodeFailed = errors.New("rift account data could not be decoded")
	// ErrInsufficientLiquidity is the liquidity guard: the vault cannot
	// cover the requested withdrawal. Raised before submission.
	ErrInsufficientLiquidity = errors.New("vault liquidity insufficient for withdrawal")
	// ErrConfirmTimeout means the transaction was submitted but never
	// reached a confirmed or finalized status within the polling window.
	ErrConfirmTimeout = errors.New("transaction confirmation timed out")
	// ErrTransactionFailed carries an on-chain execution failure.
	ErrTransactionFailed = errors.New("transaction failed on-chain")
	// ErrUnauthorized rejects operations the connected wallet cannot sign for.
	ErrUnauthorized = errors.New("wallet is not authorized for this operation")
	// ErrOracleTooFrequent mirrors the program's 1-hour manual oracle rate limit.
	ErrOracleTooFrequent = errors.New("manual oracle updated less than an hour ago")
	// ErrOracleDriftTooLarge mirrors the program's 10% per-update price bound.
	ErrOracleDriftTooLarge = errors.New("oracle price change exceeds the 10% drift bound")
	// ErrRebalanceNotDue means no rebalance trigger condition is met.
	ErrRebalanceNotDue = errors.New("no rebalance condition is currently met")
	// ErrNoSwitchboardFeed means the rift has no bound switchboard feed.
	ErrNoSwitchboardFeed = errors.New("rift has no switchboard feed configured")
	// ErrSimulationFailed means preflight simulation reported an execution error.
	ErrSimulationFailed = errors.New("transaction simulation failed")
)
