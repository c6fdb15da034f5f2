package compound

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"compoundbank/crypto"
)

// Config is the initialization record for the ledger, consumed exactly once
// at bootstrap. Addresses are bech32 encoded.
type Config struct {
	TokenAddress        string `toml:"TokenAddress"`
	CTokenAddress       string `toml:"CTokenAddress"`
	InterestRateBps     uint64 `toml:"InterestRateBps"`
	BorrowRateBps       uint64 `toml:"BorrowRateBps"`
	CollateralFactorBps uint64 `toml:"CollateralFactorBps"`
	ExchangeRate        int64  `toml:"ExchangeRate"`
}

var (
	errTokenAddress    = errors.New("compound config: token address must be a non-zero address")
	errCTokenAddress   = errors.New("compound config: ctoken address must be a non-zero address")
	errSameAsset       = errors.New("compound config: token and ctoken addresses must differ")
	errInterestRate    = errors.New("compound config: interest rate must be positive")
	errBorrowRate      = errors.New("compound config: borrow rate must be positive")
	errCollateralBound = errors.New("compound config: collateral factor must be positive")
	errExchangeRate    = errors.New("compound config: exchange rate must be positive")
)

// Validate checks the initialization invariants: both asset identities are
// non-zero and distinct, and every rate and factor is positive.
func (c Config) Validate() error {
	token, err := decodeAssetAddress(c.TokenAddress, errTokenAddress)
	if err != nil {
		return err
	}
	ctoken, err := decodeAssetAddress(c.CTokenAddress, errCTokenAddress)
	if err != nil {
		return err
	}
	if token.Equal(ctoken) {
		return errSameAsset
	}
	if c.InterestRateBps == 0 {
		return errInterestRate
	}
	if c.BorrowRateBps == 0 {
		return errBorrowRate
	}
	if c.CollateralFactorBps == 0 {
		return errCollateralBound
	}
	if c.ExchangeRate <= 0 {
		return errExchangeRate
	}
	return nil
}

// Params converts the validated config into the engine parameter set.
func (c Config) Params() Params {
	return Params{
		InterestRateBps:     c.InterestRateBps,
		BorrowRateBps:       c.BorrowRateBps,
		CollateralFactorBps: c.CollateralFactorBps,
		ExchangeRate:        big.NewInt(c.ExchangeRate),
	}
}

// Token returns the decoded base asset address. Validate must have passed.
func (c Config) Token() (crypto.Address, error) {
	return decodeAssetAddress(c.TokenAddress, errTokenAddress)
}

// CToken returns the decoded receipt asset address. Validate must have
// passed.
func (c Config) CToken() (crypto.Address, error) {
	return decodeAssetAddress(c.CTokenAddress, errCTokenAddress)
}

func decodeAssetAddress(raw string, invalid error) (crypto.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return crypto.Address{}, invalid
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: %v", invalid, err)
	}
	if addr.IsZero() {
		return crypto.Address{}, invalid
	}
	return addr, nil
}
