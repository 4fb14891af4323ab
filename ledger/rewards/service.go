// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rewards

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/lockforge/lockledger/ledger/reverts"
	"github.com/lockforge/lockledger/lock"
	"github.com/lockforge/lockledger/storage"
)

var (
	slotSchedule  = lock.BytesToBytes32([]byte("rewards-schedule"))
	slotSnapshots = lock.BytesToBytes32([]byte("rewards-snapshots"))

	// precisionFactor scales reward-per-unit figures to avoid rounding away
	// small per-second accruals.
	precisionFactor = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

// SupplyReader exposes the deposit ledger's aggregates.
// The accountant never keeps its own copy of the staked supply.
type SupplyReader interface {
	TotalSupply() (*big.Int, error)
	AccountTotal(account lock.Address) (*big.Int, error)
}

// schedule is the global period state, single-writer.
type schedule struct {
	Rate                 *big.Int // reward tokens per second
	Duration             uint64   // period length in seconds
	PeriodFinish         uint64
	LastUpdateTime       uint64
	RewardPerTokenStored *big.Int // scaled by precisionFactor
}

func (s *schedule) normalize() {
	if s.Rate == nil {
		s.Rate = new(big.Int)
	}
	if s.RewardPerTokenStored == nil {
		s.RewardPerTokenStored = new(big.Int)
	}
}

// snapshot is the per-account accrual state, created on first touch.
type snapshot struct {
	RewardPerTokenPaid *big.Int // scaled by precisionFactor
	Accrued            *big.Int
}

func (s *snapshot) normalize() {
	if s.RewardPerTokenPaid == nil {
		s.RewardPerTokenPaid = new(big.Int)
	}
	if s.Accrued == nil {
		s.Accrued = new(big.Int)
	}
}

// Service implements period-based continuous reward accrual over the deposit
// ledger's aggregate: rewardPerToken grows by rate x elapsed / totalStaked on
// every touch, and accounts settle against it via snapshots.
type Service struct {
	schedule  *storage.Raw[*schedule]
	snapshots *storage.Mapping[lock.Address, *snapshot]
	supply    SupplyReader
}

func New(sctx *storage.Context, supply SupplyReader) *Service {
	return &Service{
		schedule:  storage.NewRaw[*schedule](sctx, slotSchedule),
		snapshots: storage.NewMapping[lock.Address, *snapshot](sctx, slotSnapshots),
		supply:    supply,
	}
}

func (s *Service) getSchedule() (*schedule, error) {
	sched, err := s.schedule.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reward schedule")
	}
	if sched == nil {
		sched = &schedule{}
	}
	sched.normalize()
	return sched, nil
}

func (s *Service) getSnapshot(account lock.Address) (*snapshot, error) {
	snap, err := s.snapshots.Get(account)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reward snapshot")
	}
	if snap == nil {
		snap = &snapshot{}
	}
	snap.normalize()
	return snap, nil
}

func lastTimeApplicable(sched *schedule, blockTime uint64) uint64 {
	if blockTime < sched.PeriodFinish {
		return blockTime
	}
	return sched.PeriodFinish
}

func (s *Service) rewardPerToken(sched *schedule, blockTime uint64) (*big.Int, error) {
	totalStaked, err := s.supply.TotalSupply()
	if err != nil {
		return nil, err
	}
	if totalStaked.Sign() == 0 {
		return sched.RewardPerTokenStored, nil
	}

	elapsed := lastTimeApplicable(sched, blockTime)
	if elapsed <= sched.LastUpdateTime {
		return sched.RewardPerTokenStored, nil
	}

	accrued := new(big.Int).SetUint64(elapsed - sched.LastUpdateTime)
	accrued.Mul(accrued, sched.Rate)
	accrued.Mul(accrued, precisionFactor)
	accrued.Div(accrued, totalStaked)
	return new(big.Int).Add(sched.RewardPerTokenStored, accrued), nil
}

func (s *Service) earned(sched *schedule, snap *snapshot, account lock.Address, blockTime uint64) (*big.Int, error) {
	staked, err := s.supply.AccountTotal(account)
	if err != nil {
		return nil, err
	}
	rpt, err := s.rewardPerToken(sched, blockTime)
	if err != nil {
		return nil, err
	}

	delta := new(big.Int).Sub(rpt, snap.RewardPerTokenPaid)
	delta.Mul(delta, staked)
	delta.Div(delta, precisionFactor)
	return delta.Add(delta, snap.Accrued), nil
}

// Touch brings the global accrual and the account's snapshot up to blockTime.
// It must run before any change to the account's staked amount.
func (s *Service) Touch(account lock.Address, blockTime uint64) error {
	sched, err := s.getSchedule()
	if err != nil {
		return err
	}

	rpt, err := s.rewardPerToken(sched, blockTime)
	if err != nil {
		return err
	}
	sched.RewardPerTokenStored = rpt
	sched.LastUpdateTime = lastTimeApplicable(sched, blockTime)
	if err := s.schedule.Set(sched); err != nil {
		return errors.Wrap(err, "failed to set reward schedule")
	}

	if account.IsZero() {
		return nil
	}

	snap, err := s.getSnapshot(account)
	if err != nil {
		return err
	}
	accrued, err := s.earned(sched, snap, account, blockTime)
	if err != nil {
		return err
	}
	snap.Accrued = accrued
	snap.RewardPerTokenPaid = rpt
	if err := s.snapshots.Set(account, snap); err != nil {
		return errors.Wrap(err, "failed to set reward snapshot")
	}
	return nil
}

// Earned returns the account's claimable reward as of blockTime.
func (s *Service) Earned(account lock.Address, blockTime uint64) (*big.Int, error) {
	sched, err := s.getSchedule()
	if err != nil {
		return nil, err
	}
	snap, err := s.getSnapshot(account)
	if err != nil {
		return nil, err
	}
	return s.earned(sched, snap, account, blockTime)
}

// ClaimAccrued zeroes the account's accrued reward and returns the amount.
// The caller settles the transfer.
func (s *Service) ClaimAccrued(account lock.Address, blockTime uint64) (*big.Int, error) {
	if err := s.Touch(account, blockTime); err != nil {
		return nil, err
	}
	snap, err := s.getSnapshot(account)
	if err != nil {
		return nil, err
	}
	claimed := snap.Accrued
	if claimed.Sign() == 0 {
		return new(big.Int), nil
	}
	snap.Accrued = new(big.Int)
	if err := s.snapshots.Set(account, snap); err != nil {
		return nil, errors.Wrap(err, "failed to set reward snapshot")
	}
	return claimed, nil
}

// NotifyRewardAmount starts a new emission period funded with reward tokens.
// available is the ledger's current reward-token balance; a promise the
// balance cannot cover, or a rate rounding to zero, is rejected. A new period
// can only start once the previous one has fully elapsed.
func (s *Service) NotifyRewardAmount(reward, available *big.Int, blockTime uint64) error {
	if err := s.Touch(lock.Address{}, blockTime); err != nil {
		return err
	}
	sched, err := s.getSchedule()
	if err != nil {
		return err
	}
	if blockTime < sched.PeriodFinish {
		return reverts.ErrPeriodNotElapsed
	}
	if sched.Duration == 0 {
		return reverts.ErrZeroRewardsDuration
	}

	rate := new(big.Int).Div(reward, new(big.Int).SetUint64(sched.Duration))
	if rate.Sign() == 0 {
		return reverts.ErrZeroRewardRate
	}
	implied := new(big.Int).Mul(rate, new(big.Int).SetUint64(sched.Duration))
	if implied.Cmp(available) > 0 {
		return reverts.ErrRewardBalanceTooLow
	}

	sched.Rate = rate
	sched.LastUpdateTime = blockTime
	sched.PeriodFinish = blockTime + sched.Duration
	return s.schedule.Set(sched)
}

// SetDuration changes the period length for subsequent periods.
// It is rejected while a period is still running.
func (s *Service) SetDuration(duration uint64, blockTime uint64) error {
	if duration == 0 {
		return reverts.ErrZeroRewardsDuration
	}
	sched, err := s.getSchedule()
	if err != nil {
		return err
	}
	if blockTime < sched.PeriodFinish {
		return reverts.ErrPeriodNotElapsed
	}
	sched.Duration = duration
	return s.schedule.Set(sched)
}

// Duration returns the configured period length in seconds.
func (s *Service) Duration() (uint64, error) {
	sched, err := s.getSchedule()
	if err != nil {
		return 0, err
	}
	return sched.Duration, nil
}

// PeriodFinish returns the end time of the current period.
func (s *Service) PeriodFinish() (uint64, error) {
	sched, err := s.getSchedule()
	if err != nil {
		return 0, err
	}
	return sched.PeriodFinish, nil
}

// RewardForDuration returns the total emission of the current period.
func (s *Service) RewardForDuration() (*big.Int, error) {
	sched, err := s.getSchedule()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Mul(sched.Rate, new(big.Int).SetUint64(sched.Duration)), nil
}
