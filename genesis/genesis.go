// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"math/big"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/lockforge/lockledger/ledger"
	"github.com/lockforge/lockledger/lock"
	"github.com/lockforge/lockledger/state"
	"github.com/lockforge/lockledger/token"
)

// Balance is one pre-minted token balance.
type Balance struct {
	Account string `yaml:"account"`
	Amount  string `yaml:"amount"`
}

// Config describes the deterministic initial state of a ledger deployment.
// Addresses are hex strings, amounts decimal strings.
type Config struct {
	Owner string `yaml:"owner"`

	Token struct {
		Address  string    `yaml:"address"`
		Balances []Balance `yaml:"balances"`
	} `yaml:"token"`

	Ledger struct {
		Address         string `yaml:"address"`
		RewardsDuration uint64 `yaml:"rewardsDuration"`
		// RewardFund is minted straight onto the ledger's balance as
		// collateral for future reward periods.
		RewardFund string `yaml:"rewardFund"`
	} `yaml:"ledger"`
}

// Load reads and parses a genesis config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read genesis file")
	}
	return Parse(data)
}

// Parse parses a genesis config document.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(err, "failed to parse genesis config")
	}
	return &config, nil
}

// Wire constructs the ledger and token at the configured addresses without
// touching state. Use it to reopen an already-built deployment.
func (c *Config) Wire(st *state.State) (*ledger.Ledger, *token.Token, error) {
	tokenAddr, err := lock.ParseAddress(c.Token.Address)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "token address")
	}
	ledgerAddr, err := lock.ParseAddress(c.Ledger.Address)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "ledger address")
	}

	tkn := token.New(*tokenAddr, st)
	return ledger.New(*ledgerAddr, st, tkn), tkn, nil
}

// Build applies the config to a fresh state and returns the wired ledger and
// token. The caller commits the state.
func (c *Config) Build(st *state.State) (*ledger.Ledger, *token.Token, error) {
	owner, err := lock.ParseAddress(c.Owner)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "owner")
	}
	led, tkn, err := c.Wire(st)
	if err != nil {
		return nil, nil, err
	}

	if err := led.Initialize(*owner); err != nil {
		return nil, nil, err
	}

	for i, balance := range c.Token.Balances {
		account, err := lock.ParseAddress(balance.Account)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "balances[%d] account", i)
		}
		amount, ok := new(big.Int).SetString(balance.Amount, 10)
		if !ok || amount.Sign() < 0 {
			return nil, nil, errors.Errorf("balances[%d]: malformed amount %q", i, balance.Amount)
		}
		if err := tkn.Mint(*account, amount); err != nil {
			return nil, nil, err
		}
	}

	if c.Ledger.RewardFund != "" {
		fund, ok := new(big.Int).SetString(c.Ledger.RewardFund, 10)
		if !ok || fund.Sign() < 0 {
			return nil, nil, errors.Errorf("malformed reward fund %q", c.Ledger.RewardFund)
		}
		if err := tkn.Mint(led.Address(), fund); err != nil {
			return nil, nil, err
		}
	}

	if c.Ledger.RewardsDuration > 0 {
		if err := led.SetRewardsDuration(*owner, c.Ledger.RewardsDuration, 0); err != nil {
			return nil, nil, err
		}
	}

	led.ClearEvents()
	return led, tkn, nil
}
