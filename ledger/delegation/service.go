// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package delegation

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/lockforge/lockledger/ledger/checkpoints"
	"github.com/lockforge/lockledger/ledger/reverts"
	"github.com/lockforge/lockledger/lock"
	"github.com/lockforge/lockledger/storage"
)

var (
	slotDelegations = lock.BytesToBytes32([]byte("delegations"))
	slotCheckpoints = lock.BytesToBytes32([]byte("power-checkpoints"))

	// MaxRawAmount bounds cumulative delegated power to a 96-bit domain.
	// Amounts past the bound are rejected, never wrapped.
	MaxRawAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(1))
)

// Service maintains per-account delegation records and drives the
// delegate-keyed checkpoint store.
type Service struct {
	delegations *storage.Mapping[lock.Address, *Delegation]
	checkpoints *checkpoints.Store
}

func New(sctx *storage.Context) *Service {
	return &Service{
		delegations: storage.NewMapping[lock.Address, *Delegation](sctx, slotDelegations),
		checkpoints: checkpoints.New(sctx, slotCheckpoints),
	}
}

// Get retrieves the delegation record of an account. Never nil.
func (s *Service) Get(account lock.Address) (*Delegation, error) {
	d, err := s.delegations.Get(account)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get delegation")
	}
	if d == nil {
		return &Delegation{RawAmount: new(big.Int)}, nil
	}
	return d, nil
}

// AddPower increases the account's raw amount and checkpoints the delegate's
// new power at blockNum. The first call fixes the account's delegate; later
// calls with a different delegate are rejected.
func (s *Service) AddPower(account lock.Address, amount *big.Int, delegate lock.Address, blockNum uint32) error {
	if delegate.IsZero() {
		return reverts.ErrZeroAddress
	}

	del, err := s.Get(account)
	if err != nil {
		return err
	}
	if del.Delegate.IsZero() {
		del.Delegate = delegate
	} else if del.Delegate != delegate {
		return reverts.ErrDelegateConflict
	}

	newRaw := new(big.Int).Add(del.raw(), amount)
	if newRaw.Cmp(MaxRawAmount) > 0 {
		return reverts.ErrPowerBoundExceeded
	}
	del.RawAmount = newRaw
	if err := s.delegations.Set(account, del); err != nil {
		return errors.Wrap(err, "failed to set delegation")
	}

	return s.shiftPower(delegate, amount, blockNum)
}

// SubPower decreases the account's raw amount and checkpoints the delegate's
// new power at blockNum. It returns the delegate the power was subtracted from.
func (s *Service) SubPower(account lock.Address, amount *big.Int, blockNum uint32) (lock.Address, error) {
	// same bound as AddPower
	if amount.Cmp(MaxRawAmount) > 0 {
		return lock.Address{}, reverts.ErrPowerBoundExceeded
	}

	del, err := s.Get(account)
	if err != nil {
		return lock.Address{}, err
	}
	if del.IsEmpty() {
		return lock.Address{}, reverts.ErrNoDelegation
	}
	if del.raw().Cmp(amount) < 0 {
		return lock.Address{}, errors.New("subtracted power exceeds raw amount")
	}

	del.RawAmount = new(big.Int).Sub(del.raw(), amount)
	if err := s.delegations.Set(account, del); err != nil {
		return lock.Address{}, errors.Wrap(err, "failed to set delegation")
	}

	return del.Delegate, s.shiftPower(del.Delegate, new(big.Int).Neg(amount), blockNum)
}

// ChangeDelegate moves the account's entire raw amount from the recorded
// delegate's checkpoint sequence to newDelegate's, then re-points the record.
// It returns the previous delegate.
func (s *Service) ChangeDelegate(account, newDelegate lock.Address, blockNum uint32) (lock.Address, error) {
	if newDelegate.IsZero() {
		return lock.Address{}, reverts.ErrZeroAddress
	}

	del, err := s.Get(account)
	if err != nil {
		return lock.Address{}, err
	}
	if del.Delegate.IsZero() {
		return lock.Address{}, reverts.ErrNoDelegation
	}

	old := del.Delegate
	if old == newDelegate {
		return old, nil
	}

	raw := del.raw()
	if err := s.shiftPower(old, new(big.Int).Neg(raw), blockNum); err != nil {
		return lock.Address{}, err
	}
	if err := s.shiftPower(newDelegate, raw, blockNum); err != nil {
		return lock.Address{}, err
	}

	del.Delegate = newDelegate
	if err := s.delegations.Set(account, del); err != nil {
		return lock.Address{}, errors.Wrap(err, "failed to set delegation")
	}
	return old, nil
}

// Power returns the delegate key's voting power as of the given ordinal.
func (s *Service) Power(key lock.Address, ordinal uint32) (*big.Int, error) {
	return s.checkpoints.Find(key, ordinal)
}

// CurrentPower returns the delegate key's latest checkpointed power.
func (s *Service) CurrentPower(key lock.Address) (*big.Int, error) {
	return s.checkpoints.Top(key)
}

// shiftPower applies a signed delta on top of the delegate's latest
// checkpointed power, giving read-modify-write semantics without a separate
// current-value field.
func (s *Service) shiftPower(delegate lock.Address, delta *big.Int, blockNum uint32) error {
	top, err := s.checkpoints.Top(delegate)
	if err != nil {
		return errors.Wrap(err, "failed to read top checkpoint")
	}
	return s.checkpoints.Push(delegate, blockNum, new(big.Int).Add(top, delta))
}
