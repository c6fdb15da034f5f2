package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/BurntSushi/toml"

	"compoundbank/crypto"
	"compoundbank/native/compound"
)

// Config is the node configuration loaded from TOML at startup.
type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	DataDir        string `toml:"DataDir"`
	Env            string `toml:"Env"`
	LogFile        string `toml:"LogFile"`
	CustodyAddress string `toml:"CustodyAddress"`
	PauseCompound  bool   `toml:"PauseCompound"`

	Compound compound.Config     `toml:"compound"`
	Genesis  []GenesisAllocation `toml:"genesis"`
}

// GenesisAllocation seeds an account balance when the ledger is initialized
// for the first time. Amounts are decimal strings so they can exceed the
// native integer range.
type GenesisAllocation struct {
	Address string `toml:"Address"`
	Token   string `toml:"Token"`
	CToken  string `toml:"CToken"`
}

// Load reads and validates the configuration file.
func Load(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress: ":8545",
		DataDir:    "./data",
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the node-level settings and the embedded ledger init
// record.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil configuration")
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		return errors.New("config: RPCAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("config: DataDir must not be empty")
	}
	if _, err := c.Custody(); err != nil {
		return err
	}
	if err := c.Compound.Validate(); err != nil {
		return err
	}
	for i := range c.Genesis {
		if _, err := c.Genesis[i].Decode(); err != nil {
			return err
		}
	}
	return nil
}

// Custody returns the decoded custody account address.
func (c *Config) Custody() (crypto.Address, error) {
	trimmed := strings.TrimSpace(c.CustodyAddress)
	if trimmed == "" {
		return crypto.Address{}, errors.New("config: CustodyAddress must not be empty")
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("config: invalid CustodyAddress: %w", err)
	}
	if addr.IsZero() {
		return crypto.Address{}, errors.New("config: CustodyAddress must be a non-zero address")
	}
	return addr, nil
}

// DecodedAllocation is a genesis allocation with parsed address and amounts.
type DecodedAllocation struct {
	Address crypto.Address
	Token   *big.Int
	CToken  *big.Int
}

// Decode parses the allocation entry. Empty amounts default to zero.
func (g *GenesisAllocation) Decode() (*DecodedAllocation, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(g.Address))
	if err != nil {
		return nil, fmt.Errorf("config: invalid genesis address %q: %w", g.Address, err)
	}
	token, err := parseAmount(g.Token)
	if err != nil {
		return nil, fmt.Errorf("config: genesis allocation for %s: %w", g.Address, err)
	}
	ctoken, err := parseAmount(g.CToken)
	if err != nil {
		return nil, fmt.Errorf("config: genesis allocation for %s: %w", g.Address, err)
	}
	return &DecodedAllocation{Address: addr, Token: token, CToken: ctoken}, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}
