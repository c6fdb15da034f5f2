package compound

import (
	"math/big"

	"compoundbank/core/types"
	"compoundbank/crypto"
)

const (
	EventTypeTokensLent      = "compound.tokens.lent"
	EventTypeTokensBorrowed  = "compound.tokens.borrowed"
	EventTypeTokensRefunded  = "compound.tokens.refunded"
	EventTypeTokensWithdrawn = "compound.tokens.withdrawn"
)

// EventEmitter receives the canonical events produced by successful ledger
// actions. Emission happens strictly after state has been committed.
type EventEmitter interface {
	Emit(evt *types.Event)
}

// NoopEmitter drops all events. Used when the host does not consume them.
type NoopEmitter struct{}

func (NoopEmitter) Emit(*types.Event) {}

func newTokensLentEvent(account crypto.Address, amount, ctokens *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTokensLent,
		Attributes: map[string]string{
			"account":       account.String(),
			"amount":        amount.String(),
			"ctokensAmount": ctokens.String(),
		},
	}
}

func newTokensBorrowedEvent(account crypto.Address, amount *big.Int, borrowRateBps uint64) *types.Event {
	return &types.Event{
		Type: EventTypeTokensBorrowed,
		Attributes: map[string]string{
			"account":       account.String(),
			"amount":        amount.String(),
			"borrowRateBps": new(big.Int).SetUint64(borrowRateBps).String(),
		},
	}
}

func newTokensRefundedEvent(account crypto.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTokensRefunded,
		Attributes: map[string]string{
			"account": account.String(),
			"amount":  amount.String(),
		},
	}
}

func newTokensWithdrawnEvent(account crypto.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTokensWithdrawn,
		Attributes: map[string]string{
			"account": account.String(),
			"amount":  amount.String(),
		},
	}
}
