package compound

import "math/big"

// Accrual model
//
// Both sides of a position earn (or owe) time-weighted simple interest. For a
// side with principal P, yearly rate r (basis points) and ledger init time t0,
// define the weight of a timestamp t as
//
//	weight(t) = r * (t - t0)
//
// The stored offset is recentered to P * weight(t) whenever the principal
// changes at time t, so the effective balance at any later time t' is
//
//	effective(t') = P + (P*weight(t') - offset) / (10_000 * secondsPerYear)
//
// which is exactly P plus linear interest on P since the last principal
// change. Every mutation first settles accrued interest into the principal
// and then recenters the offset, so interest earned before a partial
// withdrawal (or owed before a partial refund) is retained and never
// re-accrued. Interest is therefore capitalized at operation boundaries and
// grows linearly in between; there is no continuous compounding.

func weightAt(rateBps, initTime, now uint64) *big.Int {
	if now <= initTime {
		return big.NewInt(0)
	}
	elapsed := new(big.Int).SetUint64(now - initTime)
	return elapsed.Mul(elapsed, new(big.Int).SetUint64(rateBps))
}

var accrualDenominator = new(big.Int).Mul(basisPoints, big.NewInt(secondsPerYear))

func effectiveAmount(principal, offset *big.Int, weight *big.Int) *big.Int {
	if principal == nil || principal.Sign() == 0 {
		return big.NewInt(0)
	}
	accrued := new(big.Int).Mul(principal, weight)
	if offset != nil {
		accrued.Sub(accrued, offset)
	}
	accrued.Quo(accrued, accrualDenominator)
	if accrued.Sign() < 0 {
		accrued.SetInt64(0)
	}
	return accrued.Add(accrued, principal)
}

// EffectiveLent returns the accrual-corrected lent balance in ctoken units at
// the given timestamp. This is the only lend-side read path other components
// should use; the raw principal is stale between operations.
func (p *Position) EffectiveLent(rateBps, initTime, now uint64) *big.Int {
	if p == nil {
		return big.NewInt(0)
	}
	return effectiveAmount(p.LentAmount, p.LendOffset, weightAt(rateBps, initTime, now))
}

// EffectiveBorrowed returns the accrual-corrected debt in base token units at
// the given timestamp.
func (p *Position) EffectiveBorrowed(rateBps, initTime, now uint64) *big.Int {
	if p == nil {
		return big.NewInt(0)
	}
	return effectiveAmount(p.BorrowedAmount, p.BorrowOffset, weightAt(rateBps, initTime, now))
}

// settleLend capitalizes accrued lend interest into the principal and
// recenters the offset at the given timestamp.
func (p *Position) settleLend(rateBps, initTime, now uint64) {
	weight := weightAt(rateBps, initTime, now)
	p.LentAmount = effectiveAmount(p.LentAmount, p.LendOffset, weight)
	p.LendOffset = new(big.Int).Mul(p.LentAmount, weight)
}

// settleBorrow capitalizes accrued borrow interest into the principal and
// recenters the offset at the given timestamp.
func (p *Position) settleBorrow(rateBps, initTime, now uint64) {
	weight := weightAt(rateBps, initTime, now)
	p.BorrowedAmount = effectiveAmount(p.BorrowedAmount, p.BorrowOffset, weight)
	p.BorrowOffset = new(big.Int).Mul(p.BorrowedAmount, weight)
}

// addLend settles accrual and credits freshly minted ctokens to the lent
// principal.
func (p *Position) addLend(ctokens *big.Int, rateBps, initTime, now uint64) {
	p.settleLend(rateBps, initTime, now)
	p.LentAmount = new(big.Int).Add(p.LentAmount, ctokens)
	p.LendOffset = new(big.Int).Mul(p.LentAmount, weightAt(rateBps, initTime, now))
}

// subLend settles accrual and debits redeemed ctokens from the lent
// principal. Drawing the principal negative is an invariant violation.
func (p *Position) subLend(ctokens *big.Int, rateBps, initTime, now uint64) error {
	p.settleLend(rateBps, initTime, now)
	if p.LentAmount.Cmp(ctokens) < 0 {
		return ErrInvariantViolation
	}
	p.LentAmount = new(big.Int).Sub(p.LentAmount, ctokens)
	p.LendOffset = new(big.Int).Mul(p.LentAmount, weightAt(rateBps, initTime, now))
	return nil
}

// addBorrow settles accrual and adds newly drawn tokens to the debt
// principal.
func (p *Position) addBorrow(tokens *big.Int, rateBps, initTime, now uint64) {
	p.settleBorrow(rateBps, initTime, now)
	p.BorrowedAmount = new(big.Int).Add(p.BorrowedAmount, tokens)
	p.BorrowOffset = new(big.Int).Mul(p.BorrowedAmount, weightAt(rateBps, initTime, now))
}

// subBorrow settles accrual and reduces the debt principal by a repayment.
// Drawing the principal negative is an invariant violation.
func (p *Position) subBorrow(tokens *big.Int, rateBps, initTime, now uint64) error {
	p.settleBorrow(rateBps, initTime, now)
	if p.BorrowedAmount.Cmp(tokens) < 0 {
		return ErrInvariantViolation
	}
	p.BorrowedAmount = new(big.Int).Sub(p.BorrowedAmount, tokens)
	p.BorrowOffset = new(big.Int).Mul(p.BorrowedAmount, weightAt(rateBps, initTime, now))
	return nil
}
