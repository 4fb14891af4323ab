// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tiers

import (
	"math/big"

	"github.com/pkg/errors"
)

// Tier selects a lock duration and bonus multiplier at deposit time.
// The set is closed; a deposit's tier is immutable.
type Tier uint8

const (
	Short Tier = iota
	Medium
	Long
)

// MultiplierDenominator is the fixed-point denominator of bonus multipliers.
const MultiplierDenominator = 100

const day = 24 * 60 * 60

// Per-tier lock durations in seconds. Multipliers grow with duration.
const (
	ShortDuration  uint32 = 7 * day
	MediumDuration uint32 = 15 * day
	LongDuration   uint32 = 30 * day

	ShortMultiplier  uint8 = 5
	MediumMultiplier uint8 = 15
	LongMultiplier   uint8 = 35
)

// Valid reports whether t is a member of the closed tier set.
func (t Tier) Valid() bool {
	return t <= Long
}

func (t Tier) String() string {
	switch t {
	case Short:
		return "short"
	case Medium:
		return "medium"
	case Long:
		return "long"
	default:
		return "unknown"
	}
}

// Parse converts a tier name into a Tier.
func Parse(s string) (Tier, error) {
	switch s {
	case "short":
		return Short, nil
	case "medium":
		return Medium, nil
	case "long":
		return Long, nil
	default:
		return 0, errors.Errorf("unknown tier %q", s)
	}
}

// Duration returns the lock duration of the tier in seconds.
// It panics on an unrecognized tier: the set is closed, so this is a
// programming error rather than a runtime input.
func (t Tier) Duration() uint32 {
	switch t {
	case Short:
		return ShortDuration
	case Medium:
		return MediumDuration
	case Long:
		return LongDuration
	default:
		panic("unknown tier")
	}
}

// Multiplier returns the bonus multiplier of the tier,
// expressed over MultiplierDenominator.
func (t Tier) Multiplier() uint8 {
	switch t {
	case Short:
		return ShortMultiplier
	case Medium:
		return MediumMultiplier
	case Long:
		return LongMultiplier
	default:
		panic("unknown tier")
	}
}

// Bonus returns amount + amount·multiplier/denominator.
func Bonus(amount *big.Int, t Tier) *big.Int {
	bonus := new(big.Int).Mul(amount, big.NewInt(int64(t.Multiplier())))
	bonus.Div(bonus, big.NewInt(MultiplierDenominator))
	return bonus.Add(bonus, amount)
}
