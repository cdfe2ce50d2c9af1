package ledger

import "errors"

// ErrInsufficientFunds is returned by LockForBuy when available cash is
// less than price*qty.
var ErrInsufficientFunds = errors.New("ledger: insufficient available funds")
