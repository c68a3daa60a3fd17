package token

import "errors"

var (
	// Assertion failures: a required equality or bound does not hold.
	// The whole transaction aborts with no state change.
	ErrStaleRead             = errors.New("token: state read no longer matches on-chain value")
	ErrSupplyOverflow        = errors.New("token: total supply overflow")
	ErrSupplyUnderflow       = errors.New("token: burn exceeds total supply")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrAllowanceOverflow     = errors.New("token: allowance overflow")
	ErrAllowanceUnderflow    = errors.New("token: allowance decrease exceeds current value")

	// Transaction construction errors.
	ErrAlreadyStaged = errors.New("token: transaction already carries an operation")
	ErrNothingStaged = errors.New("token: transaction carries no operation")
)
