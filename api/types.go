// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"

	"github.com/lockforge/lockledger/lock"
)

// Supply is the ledger-wide summary.
type Supply struct {
	TotalSupply       *math.HexOrDecimal256 `json:"totalSupply"`
	RewardsDuration   uint64                `json:"rewardsDuration"`
	PeriodFinish      uint64                `json:"periodFinish"`
	RewardForDuration *math.HexOrDecimal256 `json:"rewardForDuration"`
	Paused            bool                  `json:"paused"`
	Owner             lock.Address          `json:"owner"`
}

// Deposit is one deposit record with its tier-boosted entitlement.
type Deposit struct {
	ID         uint32                `json:"id"`
	Amount     *math.HexOrDecimal256 `json:"amount"`
	Tier       string                `json:"tier"`
	UnlockTime uint32                `json:"unlockTime"`
	Bonus      *math.HexOrDecimal256 `json:"bonus"`
}

// Account summarizes one account's position.
type Account struct {
	TotalDeposited *math.HexOrDecimal256 `json:"totalDeposited"`
	Delegate       *lock.Address         `json:"delegate,omitempty"`
	Power          *math.HexOrDecimal256 `json:"power"`
	Earned         *math.HexOrDecimal256 `json:"earned"`
}

// Power is a point-in-time voting power lookup result.
type Power struct {
	Ordinal *uint32               `json:"ordinal,omitempty"`
	Power   *math.HexOrDecimal256 `json:"power"`
}

func toHexOrDecimal(v *big.Int) *math.HexOrDecimal256 {
	if v == nil {
		v = new(big.Int)
	}
	return (*math.HexOrDecimal256)(v)
}
