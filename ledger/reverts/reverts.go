// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reverts

import (
	"errors"
)

// ErrRevert is a named validation failure. An operation failing with an
// ErrRevert has made no state change at all.
type ErrRevert struct {
	message string
}

func New(message string) *ErrRevert {
	return &ErrRevert{
		message: message,
	}
}

func (e *ErrRevert) Error() string {
	return e.message
}

// IsRevert tells whether err is (or wraps) a named revert condition.
func IsRevert(err any) bool {
	if err == nil {
		return false
	}
	e, ok := err.(error)
	if !ok {
		return false
	}
	var ve *ErrRevert
	return errors.As(e, &ve)
}

// Named revert conditions surfaced by the ledger entry points.
// Callers assert on the specific condition, never on a generic failure.
var (
	ErrZeroAddress         = New("zero address")
	ErrZeroAmount          = New("zero amount")
	ErrTooManyDeposits     = New("deposit cap reached")
	ErrNoActiveDeposit     = New("no active deposit")
	ErrDepositLocked       = New("deposit still locked")
	ErrInvalidTier         = New("invalid lock tier")
	ErrDelegateConflict    = New("delegate conflicts with recorded delegate")
	ErrNoDelegation        = New("no delegation recorded")
	ErrPowerBoundExceeded  = New("amount exceeds power accounting bound")
	ErrPeriodNotElapsed    = New("reward period not elapsed")
	ErrZeroRewardRate      = New("reward rate is zero")
	ErrRewardBalanceTooLow = New("reward exceeds available balance")
	ErrProtectedToken      = New("cannot recover the deposit asset")
	ErrPaused              = New("ledger is paused")
	ErrReentrancy          = New("reentrant call")
	ErrUnauthorized        = New("caller is not the owner")
	ErrAlreadyInitialized  = New("already initialized")
	ErrZeroRewardsDuration = New("rewards duration is zero")
)
