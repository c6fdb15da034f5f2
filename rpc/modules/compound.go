package modules

import (
	"context"
	"errors"
	"math/big"
	"net/http"

	"compoundbank/crypto"
	"compoundbank/native/compound"
	"compoundbank/observability/metrics"
)

// CompoundModule adapts the compound engine to the JSON-RPC surface,
// translating engine errors into transport errors and recording metrics.
type CompoundModule struct {
	engine *compound.Engine
}

func NewCompoundModule(engine *compound.Engine) *CompoundModule {
	return &CompoundModule{engine: engine}
}

func (m *CompoundModule) moduleUnavailable() *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "compound module not available"}
}

// LendResultDTO is the JSON shape of a successful lend.
type LendResultDTO struct {
	Account       string `json:"account"`
	Amount        string `json:"amount"`
	CTokensAmount string `json:"ctokensAmount"`
}

// BorrowResultDTO is the JSON shape of a successful borrow.
type BorrowResultDTO struct {
	Account       string `json:"account"`
	Amount        string `json:"amount"`
	BorrowRateBps uint64 `json:"borrowRateBps"`
}

// AmountResultDTO is the JSON shape of a refund or withdraw result.
type AmountResultDTO struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// PositionDTO is the JSON shape of a position query: stored principal plus
// the accrual-corrected balances.
type PositionDTO struct {
	Account         string `json:"account"`
	LentAmount      string `json:"lentAmount"`
	BorrowedAmount  string `json:"borrowedAmount"`
	EffectiveLent   string `json:"effectiveLent"`
	EffectiveBorrow string `json:"effectiveBorrow"`
}

// LedgerDTO is the JSON shape of the ledger parameter query.
type LedgerDTO struct {
	InterestRateBps     uint64 `json:"interestRateBps"`
	BorrowRateBps       uint64 `json:"borrowRateBps"`
	CollateralFactorBps uint64 `json:"collateralFactorBps"`
	ExchangeRate        string `json:"exchangeRate"`
	InitTime            uint64 `json:"initTime"`
}

func (m *CompoundModule) Lend(ctx context.Context, from crypto.Address, amount *big.Int) (*LendResultDTO, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	result, err := m.engine.Lend(ctx, from, amount)
	metrics.Compound().ObserveAction("lend", err)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return &LendResultDTO{
		Account:       result.Account.String(),
		Amount:        result.Amount.String(),
		CTokensAmount: result.CTokensAmount.String(),
	}, nil
}

func (m *CompoundModule) Borrow(ctx context.Context, from crypto.Address, amount *big.Int) (*BorrowResultDTO, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	result, err := m.engine.Borrow(ctx, from, amount)
	metrics.Compound().ObserveAction("borrow", err)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return &BorrowResultDTO{
		Account:       result.Account.String(),
		Amount:        result.Amount.String(),
		BorrowRateBps: result.BorrowRateBps,
	}, nil
}

func (m *CompoundModule) Refund(ctx context.Context, from crypto.Address, amount *big.Int) (*AmountResultDTO, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	result, err := m.engine.Refund(ctx, from, amount)
	metrics.Compound().ObserveAction("refund", err)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return &AmountResultDTO{Account: result.Account.String(), Amount: result.Amount.String()}, nil
}

func (m *CompoundModule) Withdraw(ctx context.Context, from crypto.Address, amount *big.Int) (*AmountResultDTO, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	result, err := m.engine.Withdraw(ctx, from, amount)
	metrics.Compound().ObserveAction("withdraw", err)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return &AmountResultDTO{Account: result.Account.String(), Amount: result.Amount.String()}, nil
}

func (m *CompoundModule) GetPosition(addr crypto.Address) (*PositionDTO, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	pos, ok, err := m.engine.GetPosition(addr)
	if err != nil {
		return nil, m.wrapError(err)
	}
	if !ok {
		return nil, &ModuleError{HTTPStatus: http.StatusNotFound, Code: codeNotFound, Message: "position not found", Data: addr.String()}
	}
	effLent, err := m.engine.GetLentAmount(addr)
	if err != nil {
		return nil, m.wrapError(err)
	}
	effBorrow, err := m.engine.GetBorrowAmount(addr)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return &PositionDTO{
		Account:         addr.String(),
		LentAmount:      pos.LentAmount.String(),
		BorrowedAmount:  pos.BorrowedAmount.String(),
		EffectiveLent:   effLent.String(),
		EffectiveBorrow: effBorrow.String(),
	}, nil
}

func (m *CompoundModule) GetLedger() (*LedgerDTO, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, m.moduleUnavailable()
	}
	params := m.engine.Params()
	rate := "0"
	if params.ExchangeRate != nil {
		rate = params.ExchangeRate.String()
	}
	return &LedgerDTO{
		InterestRateBps:     params.InterestRateBps,
		BorrowRateBps:       params.BorrowRateBps,
		CollateralFactorBps: params.CollateralFactorBps,
		ExchangeRate:        rate,
		InitTime:            m.engine.InitTime(),
	}, nil
}

func (m *CompoundModule) wrapError(err error) *ModuleError {
	if err == nil {
		return nil
	}
	status := http.StatusInternalServerError
	code := codeServerError
	switch {
	case errors.Is(err, compound.ErrNoPosition):
		status = http.StatusNotFound
		code = codeNotFound
	case errors.Is(err, compound.ErrInvalidAmount),
		errors.Is(err, compound.ErrInsufficientCollateral),
		errors.Is(err, compound.ErrRefundExceedsDebt),
		errors.Is(err, compound.ErrWithdrawExceedsBalance),
		errors.Is(err, compound.ErrArithmeticOverflow),
		errors.Is(err, compound.ErrDivisionByZero):
		status = http.StatusBadRequest
		code = codeInvalidParams
	case errors.Is(err, compound.ErrTransferFailed):
		metrics.Compound().ObserveTransferError()
		status = http.StatusConflict
		code = codeServerError
	}
	return &ModuleError{HTTPStatus: status, Code: code, Message: err.Error()}
}
