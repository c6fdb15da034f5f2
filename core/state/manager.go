package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"compoundbank/core/types"
	"compoundbank/crypto"
	"compoundbank/native/compound"
	"compoundbank/storage"
)

var errNilDatabase = errors.New("state manager: database not configured")

// Manager persists ledger state in the underlying key-value store using RLP
// encoding. It implements the persistence boundaries of both the compound
// engine (positions) and the token ledger (accounts), plus the one-time
// ledger metadata written at bootstrap.
type Manager struct {
	db storage.Database
}

func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// storedPosition is the RLP shape of a compound position. RLP cannot carry
// negative big integers, so the signed accrual offsets are stored as a sign
// flag plus absolute value.
type storedPosition struct {
	LentAmount      *big.Int
	LendOffsetNeg   bool
	LendOffsetAbs   *big.Int
	BorrowedAmount  *big.Int
	BorrowOffsetNeg bool
	BorrowOffsetAbs *big.Int
}

// storedAccount is the RLP shape of a token account.
type storedAccount struct {
	Nonce         uint64
	BalanceToken  *big.Int
	BalanceCToken *big.Int
}

// LedgerMeta is the persisted record of the one-time ledger initialization:
// the immutable protocol parameters, asset identities and init timestamp.
type LedgerMeta struct {
	TokenAddress        []byte
	CTokenAddress       []byte
	CustodyAddress      []byte
	InterestRateBps     uint64
	BorrowRateBps       uint64
	CollateralFactorBps uint64
	ExchangeRate        *big.Int
	InitTime            uint64
}

// GetPosition loads the position for addr, or nil when the account has no
// ledger record.
func (m *Manager) GetPosition(addr crypto.Address) (*compound.Position, error) {
	if m == nil || m.db == nil {
		return nil, errNilDatabase
	}
	key := positionKey(addr.Bytes())
	ok, err := m.db.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	data, err := m.db.Get(key)
	if err != nil {
		return nil, err
	}
	stored := new(storedPosition)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, fmt.Errorf("state manager: decode position: %w", err)
	}
	pos := &compound.Position{
		LentAmount:     stored.LentAmount,
		LendOffset:     applySign(stored.LendOffsetAbs, stored.LendOffsetNeg),
		BorrowedAmount: stored.BorrowedAmount,
		BorrowOffset:   applySign(stored.BorrowOffsetAbs, stored.BorrowOffsetNeg),
	}
	pos.EnsureDefaults()
	return pos, nil
}

// PutPosition writes the position for addr.
func (m *Manager) PutPosition(addr crypto.Address, pos *compound.Position) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	if pos == nil {
		return errors.New("state manager: nil position")
	}
	pos.EnsureDefaults()
	stored := &storedPosition{
		LentAmount:      pos.LentAmount,
		LendOffsetNeg:   pos.LendOffset.Sign() < 0,
		LendOffsetAbs:   new(big.Int).Abs(pos.LendOffset),
		BorrowedAmount:  pos.BorrowedAmount,
		BorrowOffsetNeg: pos.BorrowOffset.Sign() < 0,
		BorrowOffsetAbs: new(big.Int).Abs(pos.BorrowOffset),
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("state manager: encode position: %w", err)
	}
	return m.db.Put(positionKey(addr.Bytes()), encoded)
}

// GetAccount loads the token account for addr, or nil when the address has
// never held a balance.
func (m *Manager) GetAccount(addr crypto.Address) (*types.Account, error) {
	if m == nil || m.db == nil {
		return nil, errNilDatabase
	}
	key := accountKey(addr.Bytes())
	ok, err := m.db.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	data, err := m.db.Get(key)
	if err != nil {
		return nil, err
	}
	stored := new(storedAccount)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, fmt.Errorf("state manager: decode account: %w", err)
	}
	acc := &types.Account{
		Nonce:         stored.Nonce,
		BalanceToken:  stored.BalanceToken,
		BalanceCToken: stored.BalanceCToken,
	}
	acc.EnsureDefaults()
	return acc, nil
}

// PutAccount writes the token account for addr.
func (m *Manager) PutAccount(addr crypto.Address, acc *types.Account) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	if acc == nil {
		return errors.New("state manager: nil account")
	}
	acc.EnsureDefaults()
	stored := &storedAccount{
		Nonce:         acc.Nonce,
		BalanceToken:  acc.BalanceToken,
		BalanceCToken: acc.BalanceCToken,
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("state manager: encode account: %w", err)
	}
	return m.db.Put(accountKey(addr.Bytes()), encoded)
}

// GetLedgerMeta loads the persisted initialization record. ok is false when
// the ledger has never been initialized.
func (m *Manager) GetLedgerMeta() (*LedgerMeta, bool, error) {
	if m == nil || m.db == nil {
		return nil, false, errNilDatabase
	}
	ok, err := m.db.Has(compoundLedgerKeyByte)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	data, err := m.db.Get(compoundLedgerKeyByte)
	if err != nil {
		return nil, false, err
	}
	meta := new(LedgerMeta)
	if err := rlp.DecodeBytes(data, meta); err != nil {
		return nil, false, fmt.Errorf("state manager: decode ledger meta: %w", err)
	}
	if meta.ExchangeRate == nil {
		meta.ExchangeRate = big.NewInt(0)
	}
	return meta, true, nil
}

// PutLedgerMeta persists the initialization record. Callers must ensure this
// happens at most once; the parameters are immutable afterwards.
func (m *Manager) PutLedgerMeta(meta *LedgerMeta) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	if meta == nil {
		return errors.New("state manager: nil ledger meta")
	}
	if meta.ExchangeRate == nil {
		meta.ExchangeRate = big.NewInt(0)
	}
	encoded, err := rlp.EncodeToBytes(meta)
	if err != nil {
		return fmt.Errorf("state manager: encode ledger meta: %w", err)
	}
	return m.db.Put(compoundLedgerKeyByte, encoded)
}

func applySign(abs *big.Int, neg bool) *big.Int {
	if abs == nil {
		return big.NewInt(0)
	}
	v := new(big.Int).Set(abs)
	if neg {
		v.Neg(v)
	}
	return v
}
