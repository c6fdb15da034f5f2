package token

import (
	"context"
	"errors"
	"math/big"

	"compoundbank/core/types"
	"compoundbank/crypto"
)

var (
	errNilState          = errors.New("token ledger: state not configured")
	errUnknownAsset      = errors.New("token ledger: unknown asset")
	errInvalidAmount     = errors.New("token ledger: amount must be positive")
	errInsufficientFunds = errors.New("token ledger: insufficient funds")
)

// ledgerState is the persistence boundary for token account balances. A nil
// account with a nil error means the address has never held a balance.
type ledgerState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, acc *types.Account) error
}

// Ledger moves base token and ctoken balances between accounts. It is the
// asset-transfer collaborator consumed by the compound engine; the engine
// treats any error from Transfer as a full failure of the enclosing action.
type Ledger struct {
	state         ledgerState
	tokenAddress  crypto.Address
	ctokenAddress crypto.Address
}

// NewLedger constructs a token ledger for the two managed asset identities.
func NewLedger(state ledgerState, tokenAddr, ctokenAddr crypto.Address) *Ledger {
	return &Ledger{state: state, tokenAddress: tokenAddr, ctokenAddress: ctokenAddr}
}

// Transfer moves amount units of the given asset from one account to the
// other. The transfer is atomic: either both balances change or neither does.
func (l *Ledger) Transfer(ctx context.Context, asset, from, to crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}

	get, set, err := l.balanceAccess(asset)
	if err != nil {
		return err
	}

	fromAcc, err := l.loadAccount(from)
	if err != nil {
		return err
	}
	if get(fromAcc).Cmp(amount) < 0 {
		return errInsufficientFunds
	}
	if from.Equal(to) {
		return nil
	}
	toAcc, err := l.loadAccount(to)
	if err != nil {
		return err
	}

	set(fromAcc, new(big.Int).Sub(get(fromAcc), amount))
	set(toAcc, new(big.Int).Add(get(toAcc), amount))

	if err := l.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return l.state.PutAccount(to, toAcc)
}

// BalanceOf returns the balance of the given asset held by addr.
func (l *Ledger) BalanceOf(asset, addr crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	get, _, err := l.balanceAccess(asset)
	if err != nil {
		return nil, err
	}
	acc, err := l.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(get(acc)), nil
}

// Mint credits freshly issued units to an account. Only the bootstrap path
// uses it, to seed genesis allocations.
func (l *Ledger) Mint(asset, addr crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	get, set, err := l.balanceAccess(asset)
	if err != nil {
		return err
	}
	acc, err := l.loadAccount(addr)
	if err != nil {
		return err
	}
	set(acc, new(big.Int).Add(get(acc), amount))
	return l.state.PutAccount(addr, acc)
}

func (l *Ledger) loadAccount(addr crypto.Address) (*types.Account, error) {
	acc, err := l.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = &types.Account{}
	}
	acc.EnsureDefaults()
	return acc, nil
}

func (l *Ledger) balanceAccess(asset crypto.Address) (func(*types.Account) *big.Int, func(*types.Account, *big.Int), error) {
	switch {
	case asset.Equal(l.tokenAddress):
		return func(a *types.Account) *big.Int { return a.BalanceToken },
			func(a *types.Account, v *big.Int) { a.BalanceToken = v }, nil
	case asset.Equal(l.ctokenAddress):
		return func(a *types.Account) *big.Int { return a.BalanceCToken },
			func(a *types.Account, v *big.Int) { a.BalanceCToken = v }, nil
	default:
		return nil, nil, errUnknownAsset
	}
}
