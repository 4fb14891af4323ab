// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package delegation

import (
	"math/big"

	"github.com/lockforge/lockledger/lock"
)

// Delegation is the per-account delegation record.
// The delegate is fixed at the first deposit and only moves via ChangeDelegate.
type Delegation struct {
	Delegate  lock.Address
	RawAmount *big.Int
}

// IsEmpty returns whether the entry can be treated as empty.
func (d *Delegation) IsEmpty() bool {
	return d == nil || (d.Delegate.IsZero() && (d.RawAmount == nil || d.RawAmount.Sign() == 0))
}

func (d *Delegation) raw() *big.Int {
	if d == nil || d.RawAmount == nil {
		return new(big.Int)
	}
	return d.RawAmount
}
