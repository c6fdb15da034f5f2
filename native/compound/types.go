package compound

import "math/big"

// Position is the per-account accounting record. Lent principal is held in
// receipt-asset (ctoken) units, borrowed principal in base-asset units. The
// offsets are accrual recentering values, kept signed and strictly separate
// from the unsigned principals; see position.go for the exact formula.
type Position struct {
	// LentAmount is the current lent principal in ctoken units.
	LentAmount *big.Int
	// LendOffset recenters lend-side interest accrual on principal changes.
	LendOffset *big.Int
	// BorrowedAmount is the current borrowed principal in base token units.
	BorrowedAmount *big.Int
	// BorrowOffset recenters borrow-side interest accrual on principal
	// changes.
	BorrowOffset *big.Int
}

// NewPosition returns an empty position with zeroed balances.
func NewPosition() *Position {
	return &Position{
		LentAmount:     big.NewInt(0),
		LendOffset:     big.NewInt(0),
		BorrowedAmount: big.NewInt(0),
		BorrowOffset:   big.NewInt(0),
	}
}

// EnsureDefaults populates nil fields so decoded positions are arithmetic
// safe.
func (p *Position) EnsureDefaults() {
	if p == nil {
		return
	}
	if p.LentAmount == nil {
		p.LentAmount = big.NewInt(0)
	}
	if p.LendOffset == nil {
		p.LendOffset = big.NewInt(0)
	}
	if p.BorrowedAmount == nil {
		p.BorrowedAmount = big.NewInt(0)
	}
	if p.BorrowOffset == nil {
		p.BorrowOffset = big.NewInt(0)
	}
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := NewPosition()
	if p.LentAmount != nil {
		clone.LentAmount.Set(p.LentAmount)
	}
	if p.LendOffset != nil {
		clone.LendOffset.Set(p.LendOffset)
	}
	if p.BorrowedAmount != nil {
		clone.BorrowedAmount.Set(p.BorrowedAmount)
	}
	if p.BorrowOffset != nil {
		clone.BorrowOffset.Set(p.BorrowOffset)
	}
	return clone
}

// Params groups the protocol parameters fixed at ledger initialization. All
// rate and factor fields must be positive for the ledger's entire lifetime.
type Params struct {
	// InterestRateBps is the yearly yield applied to lent principal,
	// expressed in basis points.
	InterestRateBps uint64
	// BorrowRateBps is the yearly rate applied to borrowed principal,
	// expressed in basis points.
	BorrowRateBps uint64
	// CollateralFactorBps is the fraction of lent value usable as borrowing
	// capacity, expressed in basis points.
	CollateralFactorBps uint64
	// ExchangeRate converts base tokens to ctokens:
	// ctokenAmount = tokenAmount * ExchangeRate.
	ExchangeRate *big.Int
}

// Clone returns a deep copy of the parameter set.
func (p Params) Clone() Params {
	clone := Params{
		InterestRateBps:     p.InterestRateBps,
		BorrowRateBps:       p.BorrowRateBps,
		CollateralFactorBps: p.CollateralFactorBps,
	}
	if p.ExchangeRate != nil {
		clone.ExchangeRate = new(big.Int).Set(p.ExchangeRate)
	}
	return clone
}
