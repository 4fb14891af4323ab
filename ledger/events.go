// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"math/big"

	"github.com/lockforge/lockledger/ledger/tiers"
	"github.com/lockforge/lockledger/lock"
)

// Event is one journaled fact about a completed state change. Events recorded
// by a reverted entry point are discarded together with the state changes.
type Event interface {
	Name() string
}

type DepositMade struct {
	Account   lock.Address
	DepositID uint32
	Amount    *big.Int
	Tier      tiers.Tier
}

func (DepositMade) Name() string { return "deposit-made" }

type WithdrawalMade struct {
	Account   lock.Address
	DepositID uint32
	Amount    *big.Int
	Tier      tiers.Tier
}

func (WithdrawalMade) Name() string { return "withdrawal-made" }

// DelegatePowerChanged records a signed delta applied to a delegate's
// checkpointed power on behalf of an account.
type DelegatePowerChanged struct {
	Account  lock.Address
	Delegate lock.Address
	Delta    *big.Int
}

func (DelegatePowerChanged) Name() string { return "delegate-power-changed" }

type RewardsDurationUpdated struct {
	Duration uint64
}

func (RewardsDurationUpdated) Name() string { return "rewards-duration-updated" }

type RewardAdded struct {
	Amount *big.Int
}

func (RewardAdded) Name() string { return "reward-added" }

type RewardPaid struct {
	Account lock.Address
	Amount  *big.Int
}

func (RewardPaid) Name() string { return "reward-paid" }

type TokenRecovered struct {
	Token  lock.Address
	Amount *big.Int
}

func (TokenRecovered) Name() string { return "token-recovered" }

type PausedSet struct {
	Paused bool
}

func (PausedSet) Name() string { return "paused-set" }
