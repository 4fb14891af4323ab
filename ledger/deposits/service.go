// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package deposits

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/lockforge/lockledger/ledger/reverts"
	"github.com/lockforge/lockledger/ledger/tiers"
	"github.com/lockforge/lockledger/lock"
	"github.com/lockforge/lockledger/storage"
)

var (
	slotDeposits      = lock.BytesToBytes32([]byte("deposits"))
	slotTotalSupply   = lock.BytesToBytes32([]byte("deposits-total-supply"))
	slotAccountTotals = lock.BytesToBytes32([]byte("deposits-account-totals"))
)

// Swept describes one record drained by an ExitAll sweep.
type Swept struct {
	ID     uint32
	Amount *big.Int
	Tier   tiers.Tier
}

// Service owns the per-account deposit collections and the aggregate totals.
// The aggregate total supply moves only through Add, Withdraw and ExitAll.
type Service struct {
	context       *storage.Context
	totalSupply   *storage.Uint256
	accountTotals *storage.Mapping[lock.Address, *big.Int]

	maxDeposits uint32
}

func New(sctx *storage.Context, maxDeposits uint32) *Service {
	return &Service{
		context:       sctx,
		totalSupply:   storage.NewUint256(sctx, slotTotalSupply),
		accountTotals: storage.NewMapping[lock.Address, *big.Int](sctx, slotAccountTotals),
		maxDeposits:   maxDeposits,
	}
}

func (s *Service) sequence(account lock.Address) *storage.Array[*Deposit] {
	return storage.NewArray[*Deposit](s.context, lock.Blake2b(slotDeposits.Bytes(), account.Bytes()))
}

// Count returns the number of deposit records of an account, zeroed slots included.
func (s *Service) Count(account lock.Address) (uint32, error) {
	n, err := s.sequence(account).Len()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read deposit count")
	}
	return uint32(n), nil
}

// Get returns the deposit record, or an empty record when the id was never assigned.
func (s *Service) Get(account lock.Address, id uint32) (*Deposit, error) {
	seq := s.sequence(account)
	n, err := seq.Len()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read deposit count")
	}
	if uint64(id) >= n {
		return &Deposit{Amount: new(big.Int)}, nil
	}
	d, err := seq.Get(uint64(id))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get deposit")
	}
	return d, nil
}

// Add appends a new deposit record and grows the aggregates.
// It fails when the account already holds maxDeposits records; zeroed slots
// count, so a drained collection never frees capacity.
func (s *Service) Add(account lock.Address, amount *big.Int, tier tiers.Tier, unlockTime uint32) (uint32, error) {
	seq := s.sequence(account)
	n, err := seq.Len()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read deposit count")
	}
	if n >= uint64(s.maxDeposits) {
		return 0, reverts.ErrTooManyDeposits
	}

	id, err := seq.Append(&Deposit{
		Amount:     new(big.Int).Set(amount),
		Tier:       tier,
		UnlockTime: unlockTime,
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to append deposit")
	}

	if err := s.grow(account, amount); err != nil {
		return 0, err
	}
	return uint32(id), nil
}

// Withdraw takes amount out of one unlocked record, clamping to the remaining
// balance. The withdrawn amount and the record's tier are returned.
func (s *Service) Withdraw(account lock.Address, id uint32, amount *big.Int, blockTime uint64) (*big.Int, tiers.Tier, error) {
	seq := s.sequence(account)
	n, err := seq.Len()
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to read deposit count")
	}
	if uint64(id) >= n {
		return nil, 0, reverts.ErrNoActiveDeposit
	}
	d, err := seq.Get(uint64(id))
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to get deposit")
	}
	if !d.Active() {
		return nil, 0, reverts.ErrNoActiveDeposit
	}
	if !d.Unlocked(blockTime) {
		return nil, 0, reverts.ErrDepositLocked
	}

	// over-specification means "withdraw everything remaining"
	withdrawn := new(big.Int).Set(amount)
	if withdrawn.Cmp(d.balance()) > 0 {
		withdrawn.Set(d.balance())
	}

	d.Amount = new(big.Int).Sub(d.balance(), withdrawn)
	if err := seq.Set(uint64(id), d); err != nil {
		return nil, 0, errors.Wrap(err, "failed to set deposit")
	}

	if err := s.shrink(account, withdrawn); err != nil {
		return nil, 0, err
	}
	return withdrawn, d.Tier, nil
}

// ExitAll drains every unlocked active record of the account in one bounded
// pass (the collection never exceeds maxDeposits) and applies a single
// aggregate reduction. Locked records are silently skipped.
func (s *Service) ExitAll(account lock.Address, blockTime uint64) (*big.Int, []Swept, error) {
	seq := s.sequence(account)
	n, err := seq.Len()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read deposit count")
	}

	total := new(big.Int)
	var swept []Swept
	for i := uint64(0); i < n; i++ {
		d, err := seq.Get(i)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to get deposit")
		}
		if !d.Active() || !d.Unlocked(blockTime) {
			continue
		}

		amount := d.balance()
		total.Add(total, amount)
		swept = append(swept, Swept{ID: uint32(i), Amount: amount, Tier: d.Tier})

		d.Amount = new(big.Int)
		if err := seq.Set(i, d); err != nil {
			return nil, nil, errors.Wrap(err, "failed to set deposit")
		}
	}

	if total.Sign() > 0 {
		if err := s.shrink(account, total); err != nil {
			return nil, nil, err
		}
	}
	return total, swept, nil
}

// Active returns the ids of records still holding a balance.
func (s *Service) Active(account lock.Address) ([]uint32, error) {
	seq := s.sequence(account)
	n, err := seq.Len()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read deposit count")
	}

	var ids []uint32
	for i := uint64(0); i < n; i++ {
		d, err := seq.Get(i)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get deposit")
		}
		if d.Active() {
			ids = append(ids, uint32(i))
		}
	}
	return ids, nil
}

// TotalSupply returns the sum of all active deposit amounts across all accounts.
func (s *Service) TotalSupply() (*big.Int, error) {
	return s.totalSupply.Get()
}

// AccountTotal returns the sum of the account's active deposit amounts.
func (s *Service) AccountTotal(account lock.Address) (*big.Int, error) {
	total, err := s.accountTotals.Get(account)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account total")
	}
	if total == nil {
		return new(big.Int), nil
	}
	return total, nil
}

func (s *Service) grow(account lock.Address, amount *big.Int) error {
	if err := s.totalSupply.Add(amount); err != nil {
		return err
	}
	total, err := s.AccountTotal(account)
	if err != nil {
		return err
	}
	return s.accountTotals.Set(account, new(big.Int).Add(total, amount))
}

func (s *Service) shrink(account lock.Address, amount *big.Int) error {
	if err := s.totalSupply.Sub(amount); err != nil {
		return err
	}
	total, err := s.AccountTotal(account)
	if err != nil {
		return err
	}
	return s.accountTotals.Set(account, new(big.Int).Sub(total, amount))
}
