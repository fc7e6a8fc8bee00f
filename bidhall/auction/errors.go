package auction

import "errors"

// Error taxonomy surfaced at the request boundary. All validation happens
// before any ledger write, so a returned error implies no partial mutation.
var (
	// ErrInvalidSpec rejects malformed creation input (non-positive
	// increment, negative prices, non-positive duration).
	ErrInvalidSpec = errors.New("invalid auction spec")

	// ErrNotFound reports an unknown auction id.
	ErrNotFound = errors.New("auction not found")

	// ErrInvalidTransition reports a state-machine violation: status only
	// ever moves pending -> active -> completed.
	ErrInvalidTransition = errors.New("invalid auction status transition")

	// ErrBidTooLow rejects a manual bid below currentPrice + increment.
	ErrBidTooLow = errors.New("bid below minimum valid amount")

	// ErrInsufficientBudget is the internal signal from the bid policy
	// adapter that an agent cannot clear the next valid bid. It is never
	// surfaced as a request failure; the agent is skipped for the round.
	ErrInsufficientBudget = errors.New("insufficient budget for minimum bid")

	// errNoProposal marks a strategy declining to bid this round.
	errNoProposal = errors.New("strategy declined to bid")
)
