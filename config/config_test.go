package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"compoundbank/crypto"
)

func testBech32(suffix byte) string {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.BankPrefix, raw).String()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func validTOML() string {
	return fmt.Sprintf(`
RPCAddress = ":9777"
DataDir = "/tmp/compoundbank-test"
Env = "dev"
CustodyAddress = %q

[compound]
TokenAddress = %q
CTokenAddress = %q
InterestRateBps = 1000
BorrowRateBps = 2000
CollateralFactorBps = 5000
ExchangeRate = 2

[[genesis]]
Address = %q
Token = "1000000"

[[genesis]]
Address = %q
CToken = "500000"
`, testBech32(0xAA), testBech32(0x01), testBech32(0x02), testBech32(0x10), testBech32(0xAA))
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validTOML()))
	require.NoError(t, err)

	require.Equal(t, ":9777", cfg.RPCAddress)
	require.Equal(t, "/tmp/compoundbank-test", cfg.DataDir)
	require.Equal(t, "dev", cfg.Env)
	require.False(t, cfg.PauseCompound)

	custody, err := cfg.Custody()
	require.NoError(t, err)
	require.Equal(t, testBech32(0xAA), custody.String())

	require.Len(t, cfg.Genesis, 2)
	first, err := cfg.Genesis[0].Decode()
	require.NoError(t, err)
	require.Zero(t, first.Token.Cmp(big.NewInt(1_000_000)))
	require.Zero(t, first.CToken.Sign(), "omitted amount defaults to zero")
}

func TestLoadDefaults(t *testing.T) {
	body := fmt.Sprintf(`
CustodyAddress = %q

[compound]
TokenAddress = %q
CTokenAddress = %q
InterestRateBps = 1
BorrowRateBps = 1
CollateralFactorBps = 1
ExchangeRate = 1
`, testBech32(0xAA), testBech32(0x01), testBech32(0x02))

	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	require.Equal(t, ":8545", cfg.RPCAddress)
	require.Equal(t, "./data", cfg.DataDir)
}

func TestLoadRejectsMissingCustody(t *testing.T) {
	body := fmt.Sprintf(`
[compound]
TokenAddress = %q
CTokenAddress = %q
InterestRateBps = 1
BorrowRateBps = 1
CollateralFactorBps = 1
ExchangeRate = 1
`, testBech32(0x01), testBech32(0x02))

	_, err := Load(writeConfig(t, body))
	require.ErrorContains(t, err, "CustodyAddress")
}

func TestLoadRejectsInvalidGenesisAmount(t *testing.T) {
	body := validTOML() + fmt.Sprintf(`
[[genesis]]
Address = %q
Token = "-5"
`, testBech32(0x11))

	_, err := Load(writeConfig(t, body))
	require.ErrorContains(t, err, "invalid amount")
}

func TestLoadRejectsInvalidLedgerConfig(t *testing.T) {
	body := fmt.Sprintf(`
CustodyAddress = %q

[compound]
TokenAddress = %q
CTokenAddress = %q
InterestRateBps = 0
BorrowRateBps = 1
CollateralFactorBps = 1
ExchangeRate = 1
`, testBech32(0xAA), testBech32(0x01), testBech32(0x02))

	_, err := Load(writeConfig(t, body))
	require.ErrorContains(t, err, "interest rate")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
