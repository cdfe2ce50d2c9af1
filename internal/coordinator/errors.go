package coordinator

import (
	"errors"

	"github.com/saiexchange/predictx/internal/audit"
	"github.com/saiexchange/predictx/internal/book"
	"github.com/saiexchange/predictx/internal/engine"
	"github.com/saiexchange/predictx/internal/ledger"
)

// Error kinds surfaced to the client. Every error Dispatch returns wraps
// exactly one of these via errors.Is, regardless of which internal package
// originated it; the wire layer maps these to the response's status field.
var (
	ErrInvalidArgument           = errors.New("coordinator: invalid argument")
	ErrDuplicateOrderID          = errors.New("coordinator: duplicate order id")
	ErrInactiveMarket            = errors.New("coordinator: inactive market")
	ErrInsufficientFunds         = errors.New("coordinator: insufficient funds")
	ErrUnknownOrder              = errors.New("coordinator: unknown order")
	ErrInternalInvariantViolated = errors.New("coordinator: internal invariant violated")
)

// classify maps an internal package's sentinel error to the Coordinator's
// own error kind, so callers never need to know which subsystem a failure
// came from.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, book.ErrNonPositivePrice), errors.Is(err, book.ErrNonPositiveQuantity):
		return errors.Join(ErrInvalidArgument, err)
	case errors.Is(err, book.ErrDuplicateOrderID):
		return errors.Join(ErrDuplicateOrderID, err)
	case errors.Is(err, book.ErrInactiveMarket):
		return errors.Join(ErrInactiveMarket, err)
	case errors.Is(err, book.ErrUnknownOrder):
		return errors.Join(ErrUnknownOrder, err)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return errors.Join(ErrInsufficientFunds, err)
	case errors.Is(err, engine.ErrUnknownMarket):
		return errors.Join(ErrInvalidArgument, err)
	case errors.Is(err, audit.ErrInvariantViolated):
		return errors.Join(ErrInternalInvariantViolated, err)
	default:
		return err
	}
}
