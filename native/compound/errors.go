package compound

import "errors"

var (
	// ErrNilState is returned when the engine is used before being wired to
	// a persistence layer.
	ErrNilState = errors.New("compound engine: state not configured")
	// ErrNilTransferrer is returned when the engine is used before being
	// wired to the token transfer collaborator.
	ErrNilTransferrer = errors.New("compound engine: transferrer not configured")
	// ErrInvalidAmount rejects non-positive action amounts.
	ErrInvalidAmount = errors.New("compound engine: amount must be positive")
	// ErrNoPosition is returned when an action requires an existing ledger
	// record for the caller and none has been created by a prior lend.
	ErrNoPosition = errors.New("compound engine: no position for account")
	// ErrInsufficientCollateral is returned when a borrow or withdraw would
	// leave the account under-collateralized.
	ErrInsufficientCollateral = errors.New("compound engine: insufficient collateral")
	// ErrRefundExceedsDebt rejects repayments larger than the outstanding
	// borrowed principal.
	ErrRefundExceedsDebt = errors.New("compound engine: refund exceeds outstanding debt")
	// ErrWithdrawExceedsBalance rejects withdrawals larger than the lent
	// balance converted to base-asset terms.
	ErrWithdrawExceedsBalance = errors.New("compound engine: withdraw exceeds lent balance")
	// ErrArithmeticOverflow is returned when a checked multiplication leaves
	// the supported integer range instead of wrapping silently.
	ErrArithmeticOverflow = errors.New("compound engine: arithmetic overflow")
	// ErrDivisionByZero is returned when a conversion would divide by a zero
	// exchange rate.
	ErrDivisionByZero = errors.New("compound engine: division by zero")
	// ErrTransferFailed wraps any non-success outcome from the external
	// token transfer collaborator.
	ErrTransferFailed = errors.New("compound engine: token transfer failed")
	// ErrInvariantViolation signals that a mutation would have broken the
	// solvency or non-negativity invariants. The action fails closed and no
	// state is committed.
	ErrInvariantViolation = errors.New("compound engine: ledger invariant violation")
)
