package compound

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"compoundbank/crypto"
	nativecommon "compoundbank/native/common"
)

const moduleName = "compound"

// engineState is the persistence boundary for per-account positions. A nil
// position with a nil error means the account has no ledger record yet.
type engineState interface {
	GetPosition(addr crypto.Address) (*Position, error)
	PutPosition(addr crypto.Address, pos *Position) error
}

// TokenTransferrer is the external asset-movement collaborator. The call may
// suspend; any non-nil error (including context cancellation) is a full
// failure of the enclosing action.
type TokenTransferrer interface {
	Transfer(ctx context.Context, asset, from, to crypto.Address, amount *big.Int) error
}

// Engine owns the lending ledger: protocol parameters fixed at init plus the
// per-account positions reached through the state interface. All handlers
// follow the same shape: validate, transfer through the collaborator, then
// commit the position mutation. A mutex serializes handlers so the ledger
// keeps its single-writer property under concurrent dispatch.
type Engine struct {
	mu          sync.Mutex
	state       engineState
	transferrer TokenTransferrer
	emitter     EventEmitter
	pauses      nativecommon.PauseView

	custodyAddress crypto.Address
	tokenAddress   crypto.Address
	ctokenAddress  crypto.Address
	params         Params
	initTime       uint64
	nowFn          func() uint64
}

// NewEngine constructs a ledger engine for the given custody account, asset
// identities and protocol parameters. initTime is the ledger initialization
// timestamp in whole seconds; accrual elapsed time is measured from it.
func NewEngine(custodyAddr, tokenAddr, ctokenAddr crypto.Address, params Params, initTime uint64) *Engine {
	return &Engine{
		custodyAddress: custodyAddr,
		tokenAddress:   tokenAddr,
		ctokenAddress:  ctokenAddr,
		params:         params.Clone(),
		initTime:       initTime,
		emitter:        NoopEmitter{},
		nowFn:          func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTransferrer wires the engine to the token transfer collaborator.
func (e *Engine) SetTransferrer(t TokenTransferrer) { e.transferrer = t }

// SetEmitter configures the sink receiving result events.
func (e *Engine) SetEmitter(emitter EventEmitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetClock overrides the timestamp source used for interest accrual. Tests
// use it to advance time deterministically.
func (e *Engine) SetClock(now func() uint64) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

// Params returns a copy of the immutable protocol parameters.
func (e *Engine) Params() Params {
	if e == nil {
		return Params{}
	}
	return e.params.Clone()
}

// InitTime returns the ledger initialization timestamp in whole seconds.
func (e *Engine) InitTime() uint64 {
	if e == nil {
		return 0
	}
	return e.initTime
}

// LendResult reports the base amount deposited and the receipt amount minted.
type LendResult struct {
	Account       crypto.Address
	Amount        *big.Int
	CTokensAmount *big.Int
}

// BorrowResult reports the amount borrowed and the borrow rate in effect.
type BorrowResult struct {
	Account       crypto.Address
	Amount        *big.Int
	BorrowRateBps uint64
}

// RefundResult reports the repaid amount.
type RefundResult struct {
	Account crypto.Address
	Amount  *big.Int
}

// WithdrawResult reports the redeemed base amount.
type WithdrawResult struct {
	Account crypto.Address
	Amount  *big.Int
}

// Lend deposits amount base tokens from the caller into custody and mints the
// corresponding ctokens back to the caller. The caller's position is created
// on first lend and credited only after both transfers succeed.
func (e *Engine) Lend(ctx context.Context, caller crypto.Address, amount *big.Int) (*LendResult, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.transferrer == nil {
		return nil, ErrNilTransferrer
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	ctokensAmount, err := countCTokens(amount, e.params.ExchangeRate)
	if err != nil {
		return nil, err
	}

	pos, err := e.loadPosition(caller)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = NewPosition()
	}

	if err := e.transfer(ctx, e.tokenAddress, caller, e.custodyAddress, amount); err != nil {
		return nil, err
	}
	if err := e.transfer(ctx, e.ctokenAddress, e.custodyAddress, caller, ctokensAmount); err != nil {
		// Undo the deposit so the failed action leaves no partial state.
		e.compensate(ctx, e.tokenAddress, e.custodyAddress, caller, amount)
		return nil, err
	}

	now := e.nowFn()
	pos.addLend(ctokensAmount, e.params.InterestRateBps, e.initTime, now)
	if err := checkNonNegative(pos); err != nil {
		return nil, err
	}
	if err := e.state.PutPosition(caller, pos); err != nil {
		return nil, err
	}

	e.emitter.Emit(newTokensLentEvent(caller, amount, ctokensAmount))
	return &LendResult{Account: caller, Amount: new(big.Int).Set(amount), CTokensAmount: ctokensAmount}, nil
}

// Borrow draws amount base tokens from custody against the caller's lent
// collateral. The collateral check runs on accrual-corrected balances before
// any transfer.
func (e *Engine) Borrow(ctx context.Context, caller crypto.Address, amount *big.Int) (*BorrowResult, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.transferrer == nil {
		return nil, ErrNilTransferrer
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	pos, err := e.loadPosition(caller)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, ErrNoPosition
	}

	now := e.nowFn()
	effLent := pos.EffectiveLent(e.params.InterestRateBps, e.initTime, now)
	effBorrowed := pos.EffectiveBorrowed(e.params.BorrowRateBps, e.initTime, now)

	maxBorrow, err := e.maxBorrowable(effLent)
	if err != nil {
		return nil, err
	}
	projected := new(big.Int).Add(effBorrowed, amount)
	if maxBorrow.Cmp(projected) < 0 {
		return nil, ErrInsufficientCollateral
	}

	if err := e.transfer(ctx, e.tokenAddress, e.custodyAddress, caller, amount); err != nil {
		return nil, err
	}

	pos.addBorrow(amount, e.params.BorrowRateBps, e.initTime, now)
	if err := checkNonNegative(pos); err != nil {
		return nil, err
	}
	if err := e.checkSolvency(pos, now); err != nil {
		return nil, err
	}
	if err := e.state.PutPosition(caller, pos); err != nil {
		return nil, err
	}

	e.emitter.Emit(newTokensBorrowedEvent(caller, amount, e.params.BorrowRateBps))
	return &BorrowResult{Account: caller, Amount: new(big.Int).Set(amount), BorrowRateBps: e.params.BorrowRateBps}, nil
}

// Refund repays amount base tokens of the caller's outstanding debt.
func (e *Engine) Refund(ctx context.Context, caller crypto.Address, amount *big.Int) (*RefundResult, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.transferrer == nil {
		return nil, ErrNilTransferrer
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	pos, err := e.loadPosition(caller)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, ErrNoPosition
	}

	now := e.nowFn()
	effBorrowed := pos.EffectiveBorrowed(e.params.BorrowRateBps, e.initTime, now)
	if effBorrowed.Cmp(amount) < 0 {
		return nil, ErrRefundExceedsDebt
	}

	if err := e.transfer(ctx, e.tokenAddress, caller, e.custodyAddress, amount); err != nil {
		return nil, err
	}

	if err := pos.subBorrow(amount, e.params.BorrowRateBps, e.initTime, now); err != nil {
		return nil, err
	}
	if err := checkNonNegative(pos); err != nil {
		return nil, err
	}
	if err := e.state.PutPosition(caller, pos); err != nil {
		return nil, err
	}

	e.emitter.Emit(newTokensRefundedEvent(caller, amount))
	return &RefundResult{Account: caller, Amount: new(big.Int).Set(amount)}, nil
}

// Withdraw redeems amount base tokens of lent principal: the matching ctokens
// return to custody and the base tokens flow back to the caller. The
// post-withdraw solvency check runs before any transfer so a withdrawal can
// never leave the account under-collateralized.
func (e *Engine) Withdraw(ctx context.Context, caller crypto.Address, amount *big.Int) (*WithdrawResult, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.transferrer == nil {
		return nil, ErrNilTransferrer
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	pos, err := e.loadPosition(caller)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, ErrNoPosition
	}

	now := e.nowFn()
	effLent := pos.EffectiveLent(e.params.InterestRateBps, e.initTime, now)
	lentAsBase, err := countTokens(effLent, e.params.ExchangeRate)
	if err != nil {
		return nil, err
	}
	if lentAsBase.Cmp(amount) < 0 {
		return nil, ErrWithdrawExceedsBalance
	}

	ctokensAmount, err := countCTokens(amount, e.params.ExchangeRate)
	if err != nil {
		return nil, err
	}

	remainingLent := new(big.Int).Sub(effLent, ctokensAmount)
	maxBorrow, err := e.maxBorrowable(remainingLent)
	if err != nil {
		return nil, err
	}
	effBorrowed := pos.EffectiveBorrowed(e.params.BorrowRateBps, e.initTime, now)
	if maxBorrow.Cmp(effBorrowed) < 0 {
		return nil, ErrInsufficientCollateral
	}

	if err := e.transfer(ctx, e.ctokenAddress, caller, e.custodyAddress, ctokensAmount); err != nil {
		return nil, err
	}
	if err := e.transfer(ctx, e.tokenAddress, e.custodyAddress, caller, amount); err != nil {
		// Return the collected ctokens so the failed action leaves no
		// partial state.
		e.compensate(ctx, e.ctokenAddress, e.custodyAddress, caller, ctokensAmount)
		return nil, err
	}

	if err := pos.subLend(ctokensAmount, e.params.InterestRateBps, e.initTime, now); err != nil {
		return nil, err
	}
	if err := checkNonNegative(pos); err != nil {
		return nil, err
	}
	if err := e.checkSolvency(pos, now); err != nil {
		return nil, err
	}
	if err := e.state.PutPosition(caller, pos); err != nil {
		return nil, err
	}

	e.emitter.Emit(newTokensWithdrawnEvent(caller, amount))
	return &WithdrawResult{Account: caller, Amount: new(big.Int).Set(amount)}, nil
}

// GetLentAmount returns the accrual-corrected lent balance in ctoken units.
// Accounts without a position report zero.
func (e *Engine) GetLentAmount(addr crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pos, err := e.loadPosition(addr)
	if err != nil {
		return nil, err
	}
	return pos.EffectiveLent(e.params.InterestRateBps, e.initTime, e.nowFn()), nil
}

// GetBorrowAmount returns the accrual-corrected debt in base token units.
// Accounts without a position report zero.
func (e *Engine) GetBorrowAmount(addr crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pos, err := e.loadPosition(addr)
	if err != nil {
		return nil, err
	}
	return pos.EffectiveBorrowed(e.params.BorrowRateBps, e.initTime, e.nowFn()), nil
}

// GetPosition returns a copy of the stored position together with its
// accrual-corrected balances. ok is false when the account has never lent.
func (e *Engine) GetPosition(addr crypto.Address) (*Position, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pos, err := e.loadPosition(addr)
	if err != nil {
		return nil, false, err
	}
	if pos == nil {
		return nil, false, nil
	}
	return pos, true, nil
}

func (e *Engine) loadPosition(addr crypto.Address) (*Position, error) {
	pos, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, nil
	}
	pos.EnsureDefaults()
	return pos, nil
}

// maxBorrowable converts a lent balance (ctoken units) into base token
// borrowing capacity: countTokens(lent * collateralFactor, exchangeRate).
func (e *Engine) maxBorrowable(effLent *big.Int) (*big.Int, error) {
	scaled, err := checkedMul(effLent, new(big.Int).SetUint64(e.params.CollateralFactorBps))
	if err != nil {
		return nil, err
	}
	scaled.Quo(scaled, basisPoints)
	return countTokens(scaled, e.params.ExchangeRate)
}

func (e *Engine) transfer(ctx context.Context, asset, from, to crypto.Address, amount *big.Int) error {
	if err := e.transferrer.Transfer(ctx, asset, from, to, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

// compensate reverses an already-completed transfer after a later transfer in
// the same action failed. The reversal must not be lost to a cancelled
// context; a failure here means the custody account keeps the funds and the
// discrepancy is left for the operator.
func (e *Engine) compensate(ctx context.Context, asset, from, to crypto.Address, amount *big.Int) {
	_ = e.transferrer.Transfer(context.WithoutCancel(ctx), asset, from, to, amount)
}

// checkNonNegative verifies both principals stayed non-negative after a
// mutation that should have preserved them. A violation aborts the action
// before anything is persisted.
func checkNonNegative(pos *Position) error {
	if pos.LentAmount.Sign() < 0 || pos.BorrowedAmount.Sign() < 0 {
		return ErrInvariantViolation
	}
	return nil
}

// checkSolvency re-verifies the over-collateralization rule after a borrow or
// withdraw. The preconditions make this unreachable; finding it false is a
// defect and the action fails closed.
func (e *Engine) checkSolvency(pos *Position, now uint64) error {
	effBorrowed := pos.EffectiveBorrowed(e.params.BorrowRateBps, e.initTime, now)
	if effBorrowed.Sign() == 0 {
		return nil
	}
	effLent := pos.EffectiveLent(e.params.InterestRateBps, e.initTime, now)
	maxBorrow, err := e.maxBorrowable(effLent)
	if err != nil {
		return err
	}
	if maxBorrow.Cmp(effBorrowed) < 0 {
		return ErrInvariantViolation
	}
	return nil
}
