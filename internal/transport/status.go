package transport

import (
	"errors"

	"github.com/saiexchange/predictx/internal/coordinator"
)

// statusFor maps a Coordinator-level sentinel error to the wire status
// string spec.md's error table names, InternalInvariantViolated included.
// Any error that doesn't match one of the known kinds is surfaced
// generically as "error".
func statusFor(err error) string {
	switch {
	case errors.Is(err, coordinator.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, coordinator.ErrDuplicateOrderID):
		return "duplicate_order_id"
	case errors.Is(err, coordinator.ErrInactiveMarket):
		return "inactive_market"
	case errors.Is(err, coordinator.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, coordinator.ErrUnknownOrder):
		return "unknown_order"
	case errors.Is(err, coordinator.ErrInternalInvariantViolated):
		return "internal_invariant_violated"
	default:
		return "error"
	}
}
