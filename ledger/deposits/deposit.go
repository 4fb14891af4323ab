// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package deposits

import (
	"math/big"

	"github.com/lockforge/lockledger/ledger/tiers"
)

// Deposit is one locked position of an account. Tier and unlock time are
// fixed at creation; only the amount moves, and only downward. A record
// drained to zero keeps its slot and stays counted against the deposit cap.
//
// UnlockTime is a 32-bit timestamp in seconds. Dates past its width are an
// accepted limitation of the format.
type Deposit struct {
	Amount     *big.Int
	Tier       tiers.Tier
	UnlockTime uint32
}

// Active returns whether the record still holds a balance.
func (d *Deposit) Active() bool {
	return d != nil && d.Amount != nil && d.Amount.Sign() > 0
}

// Unlocked returns whether the lock has elapsed at blockTime.
func (d *Deposit) Unlocked(blockTime uint64) bool {
	return uint64(d.UnlockTime) <= blockTime
}

func (d *Deposit) balance() *big.Int {
	if d == nil || d.Amount == nil {
		return new(big.Int)
	}
	return d.Amount
}
