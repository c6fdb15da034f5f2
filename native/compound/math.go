package compound

import (
	"math/big"

	"github.com/holiman/uint256"
)

var basisPoints = big.NewInt(10_000)

// secondsPerYear anchors the per-year basis point rates to the whole-second
// timestamps used by the accrual bookkeeping.
const secondsPerYear = 31_536_000

// checkedMul multiplies two non-negative big integers and fails with
// ErrArithmeticOverflow when either operand or the product leaves the 256-bit
// range.
func checkedMul(a, b *big.Int) (*big.Int, error) {
	if a == nil || b == nil || a.Sign() < 0 || b.Sign() < 0 {
		return nil, ErrArithmeticOverflow
	}
	x, overflow := uint256.FromBig(a)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	y, overflow := uint256.FromBig(b)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	var product uint256.Int
	if _, overflow := product.MulOverflow(x, y); overflow {
		return nil, ErrArithmeticOverflow
	}
	return product.ToBig(), nil
}

// checkedDiv divides a by b truncating toward zero. The truncation policy is
// deliberate: remainders stay in custody rather than being minted to the
// caller. A zero divisor fails with ErrDivisionByZero.
func checkedDiv(a, b *big.Int) (*big.Int, error) {
	if a == nil || b == nil || a.Sign() < 0 {
		return nil, ErrArithmeticOverflow
	}
	if b.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	x, overflow := uint256.FromBig(a)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	y, overflow := uint256.FromBig(b)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	var quotient uint256.Int
	quotient.Div(x, y)
	return quotient.ToBig(), nil
}

// countCTokens converts a base-asset amount to receipt-asset units:
// receiptAmount = baseAmount * exchangeRate.
func countCTokens(tokensAmount, exchangeRate *big.Int) (*big.Int, error) {
	return checkedMul(tokensAmount, exchangeRate)
}

// countTokens converts a receipt-asset amount back to base-asset units:
// baseAmount = receiptAmount / exchangeRate, truncating.
func countTokens(ctokensAmount, exchangeRate *big.Int) (*big.Int, error) {
	return checkedDiv(ctokensAmount, exchangeRate)
}
