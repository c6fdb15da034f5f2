package types

import "math/big"

// Account holds the transferable token balances for a single address. The
// base token and the yield-bearing ctoken are independent balances; the
// compound engine never mutates them directly and always moves them through
// the token ledger.
type Account struct {
	Nonce         uint64   `json:"nonce"`
	BalanceToken  *big.Int `json:"balanceToken"`
	BalanceCToken *big.Int `json:"balanceCToken"`
}

// EnsureDefaults replaces nil balances with zero so callers can rely on
// arithmetic-safe values after decoding.
func (a *Account) EnsureDefaults() {
	if a == nil {
		return
	}
	if a.BalanceToken == nil {
		a.BalanceToken = big.NewInt(0)
	}
	if a.BalanceCToken == nil {
		a.BalanceCToken = big.NewInt(0)
	}
}
