// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/log"

	"github.com/lockforge/lockledger/ledger/delegation"
	"github.com/lockforge/lockledger/ledger/deposits"
	"github.com/lockforge/lockledger/ledger/reverts"
	"github.com/lockforge/lockledger/ledger/rewards"
	"github.com/lockforge/lockledger/ledger/tiers"
	"github.com/lockforge/lockledger/lock"
	"github.com/lockforge/lockledger/metrics"
	"github.com/lockforge/lockledger/state"
	"github.com/lockforge/lockledger/storage"
)

var (
	logger = log.New("pkg", "ledger")

	// MaxDeposits caps the number of deposit records one account may ever
	// create. Zeroed records keep their slot, so the cap bounds every sweep.
	MaxDeposits uint32 = 100

	slotOwner  = lock.BytesToBytes32([]byte("owner"))
	slotPaused = lock.BytesToBytes32([]byte("paused"))

	metricEntryCalls  = metrics.LazyLoadCounterVec("ledger_entry_calls_count", []string{"entry", "outcome"})
	metricSweptCount  = metrics.LazyLoadCounter("ledger_exit_all_swept_count")
	metricTotalSupply = metrics.LazyLoadGauge("ledger_total_supply_gauge")
)

func SetLogger(l log.Logger) {
	logger = l
}

// Token is the fungible asset interface the ledger locks deposits in and pays
// rewards from. The ledger only moves tokens it holds or was approved to pull.
type Token interface {
	Address() lock.Address
	BalanceOf(account lock.Address) (*big.Int, error)
	Transfer(from, to lock.Address, amount *big.Int) error
	TransferFrom(spender, from, to lock.Address, amount *big.Int) error
}

// Ledger locks token deposits under timed tiers, tracks delegated voting power
// as checkpointed history, and accrues continuous rewards over the locked
// supply. It composes one service per concern and owns entry-point ordering,
// owner gating, the pause flag and the revert-on-failure discipline: every
// state-changing entry point either completes fully or leaves no trace.
type Ledger struct {
	addr  lock.Address
	state *state.State
	token Token

	owner  *storage.Raw[lock.Address]
	paused *storage.Raw[bool]

	depositService    *deposits.Service
	delegationService *delegation.Service
	rewardService     *rewards.Service

	entered bool
	events  []Event
}

// New creates a ledger instance bound to addr's storage space within state.
func New(addr lock.Address, st *state.State, token Token) *Ledger {
	sctx := storage.NewContext(addr, st)
	depositService := deposits.New(sctx, MaxDeposits)

	return &Ledger{
		addr:  addr,
		state: st,
		token: token,

		owner:  storage.NewRaw[lock.Address](sctx, slotOwner),
		paused: storage.NewRaw[bool](sctx, slotPaused),

		depositService:    depositService,
		delegationService: delegation.New(sctx),
		rewardService:     rewards.New(sctx, depositService),
	}
}

// Address returns the ledger's own address.
func (l *Ledger) Address() lock.Address {
	return l.addr
}

// Events returns the journal of facts recorded since the last ClearEvents.
func (l *Ledger) Events() []Event {
	return l.events
}

// ClearEvents empties the event journal, typically after the journal has been
// persisted alongside a state commit.
func (l *Ledger) ClearEvents() {
	l.events = nil
}

func (l *Ledger) emit(ev Event) {
	l.events = append(l.events, ev)
}

// runExclusive wraps a state-changing entry point with the reentrancy guard
// and a state checkpoint. On failure both the state and the event journal are
// rolled back to where they were before the call.
func (l *Ledger) runExclusive(entry string, fn func() error) (err error) {
	if l.entered {
		return reverts.ErrReentrancy
	}
	l.entered = true
	defer func() {
		l.entered = false
		outcome := "ok"
		if err != nil {
			outcome = "reverted"
		}
		metricEntryCalls().AddWithLabel(1, map[string]string{"entry": entry, "outcome": outcome})
	}()

	checkpoint := l.state.NewCheckpoint()
	mark := len(l.events)
	if err = fn(); err != nil {
		l.state.RevertTo(checkpoint)
		l.events = l.events[:mark]
	}
	return
}

// gaugeSupply refreshes the total-supply gauge after a supply-moving entry
// point completes. Supplies past the gauge's int64 width are left unreported.
func (l *Ledger) gaugeSupply() {
	if supply, err := l.depositService.TotalSupply(); err == nil && supply.IsInt64() {
		metricTotalSupply().Set(supply.Int64())
	}
}

func (l *Ledger) requireOwner(caller lock.Address) error {
	owner, err := l.owner.Get()
	if err != nil {
		return err
	}
	if owner.IsZero() || owner != caller {
		return reverts.ErrUnauthorized
	}
	return nil
}

func (l *Ledger) requireRunning() error {
	paused, err := l.paused.Get()
	if err != nil {
		return err
	}
	if paused {
		return reverts.ErrPaused
	}
	return nil
}

//
// Setters - state change
//

// Initialize fixes the owner account. It can only run once, at genesis.
func (l *Ledger) Initialize(owner lock.Address) error {
	return l.runExclusive("initialize", func() error {
		if owner.IsZero() {
			return reverts.ErrZeroAddress
		}
		current, err := l.owner.Get()
		if err != nil {
			return err
		}
		if !current.IsZero() {
			return reverts.ErrAlreadyInitialized
		}
		return l.owner.Set(owner)
	})
}

// Deposit locks amount of the token under the chosen tier and credits the
// deposited amount to delegate's voting power. The caller must have approved
// the ledger to pull the tokens. Returns the new deposit's id.
func (l *Ledger) Deposit(
	caller, delegate lock.Address,
	amount *big.Int,
	tier tiers.Tier,
	blockNum uint32,
	blockTime uint64,
) (uint32, error) {
	logger.Debug("depositing", "account", caller, "amount", amount, "tier", tier)

	var id uint32
	err := l.runExclusive("deposit", func() error {
		if err := l.requireRunning(); err != nil {
			return err
		}
		if caller.IsZero() {
			return reverts.ErrZeroAddress
		}
		if amount == nil || amount.Sign() <= 0 {
			return reverts.ErrZeroAmount
		}
		if !tier.Valid() {
			return reverts.ErrInvalidTier
		}

		if err := l.rewardService.Touch(caller, blockTime); err != nil {
			return err
		}

		unlockTime := uint32(blockTime) + tier.Duration()
		var err error
		if id, err = l.depositService.Add(caller, amount, tier, unlockTime); err != nil {
			return err
		}
		if err := l.delegationService.AddPower(caller, amount, delegate, blockNum); err != nil {
			return err
		}
		if err := l.token.TransferFrom(l.addr, caller, l.addr, amount); err != nil {
			return err
		}

		l.emit(DepositMade{Account: caller, DepositID: id, Amount: amount, Tier: tier})
		l.emit(DelegatePowerChanged{Account: caller, Delegate: delegate, Delta: amount})
		return nil
	})
	if err != nil {
		logger.Info("deposit failed", "account", caller, "error", err)
		return 0, err
	}

	l.gaugeSupply()
	logger.Info("deposit made", "account", caller, "id", id, "tier", tier)
	return id, nil
}

// Withdraw takes amount out of one unlocked deposit. Amounts above the
// deposit's remaining balance are clamped to it. Returns the amount withdrawn.
func (l *Ledger) Withdraw(caller lock.Address, id uint32, amount *big.Int, blockNum uint32, blockTime uint64) (*big.Int, error) {
	logger.Debug("withdrawing", "account", caller, "id", id, "amount", amount)

	var withdrawn *big.Int
	err := l.runExclusive("withdraw", func() error {
		if err := l.requireRunning(); err != nil {
			return err
		}
		if amount == nil || amount.Sign() <= 0 {
			return reverts.ErrZeroAmount
		}
		var err error
		withdrawn, err = l.withdraw(caller, id, amount, blockNum, blockTime)
		return err
	})
	if err != nil {
		logger.Info("withdrawal failed", "account", caller, "id", id, "error", err)
		return nil, err
	}

	l.gaugeSupply()
	logger.Info("withdrawal made", "account", caller, "id", id)
	return withdrawn, nil
}

// Exit withdraws the entire remaining balance of one deposit.
func (l *Ledger) Exit(caller lock.Address, id uint32, blockNum uint32, blockTime uint64) (*big.Int, error) {
	logger.Debug("exiting deposit", "account", caller, "id", id)

	var withdrawn *big.Int
	err := l.runExclusive("exit", func() error {
		if err := l.requireRunning(); err != nil {
			return err
		}
		d, err := l.depositService.Get(caller, id)
		if err != nil {
			return err
		}
		if !d.Active() {
			return reverts.ErrNoActiveDeposit
		}
		withdrawn, err = l.withdraw(caller, id, d.Amount, blockNum, blockTime)
		return err
	})
	if err != nil {
		logger.Info("exit failed", "account", caller, "id", id, "error", err)
		return nil, err
	}

	l.gaugeSupply()
	logger.Info("exit made", "account", caller, "id", id)
	return withdrawn, nil
}

// withdraw is the shared body of Withdraw and Exit. It must run inside
// runExclusive.
func (l *Ledger) withdraw(caller lock.Address, id uint32, amount *big.Int, blockNum uint32, blockTime uint64) (*big.Int, error) {
	if err := l.rewardService.Touch(caller, blockTime); err != nil {
		return nil, err
	}

	withdrawn, tier, err := l.depositService.Withdraw(caller, id, amount, blockTime)
	if err != nil {
		return nil, err
	}
	delegate, err := l.delegationService.SubPower(caller, withdrawn, blockNum)
	if err != nil {
		return nil, err
	}
	if err := l.token.Transfer(l.addr, caller, withdrawn); err != nil {
		return nil, err
	}

	l.emit(WithdrawalMade{Account: caller, DepositID: id, Amount: withdrawn, Tier: tier})
	l.emit(DelegatePowerChanged{Account: caller, Delegate: delegate, Delta: new(big.Int).Neg(withdrawn)})
	return withdrawn, nil
}

// ExitAll sweeps every unlocked deposit of the caller in one bounded pass and
// settles the accrued reward in the same operation: one aggregate power
// reduction, one principal transfer, one reward transfer. Locked deposits are
// silently skipped; sweeping nothing is not an error.
func (l *Ledger) ExitAll(caller lock.Address, blockNum uint32, blockTime uint64) (*big.Int, error) {
	logger.Debug("exiting all deposits", "account", caller)

	total := new(big.Int)
	err := l.runExclusive("exit_all", func() error {
		if err := l.requireRunning(); err != nil {
			return err
		}
		if err := l.rewardService.Touch(caller, blockTime); err != nil {
			return err
		}

		swept, sweptRecords, err := l.depositService.ExitAll(caller, blockTime)
		if err != nil {
			return err
		}
		if swept.Sign() > 0 {
			delegate, err := l.delegationService.SubPower(caller, swept, blockNum)
			if err != nil {
				return err
			}
			if err := l.token.Transfer(l.addr, caller, swept); err != nil {
				return err
			}
			for _, rec := range sweptRecords {
				l.emit(WithdrawalMade{Account: caller, DepositID: rec.ID, Amount: rec.Amount, Tier: rec.Tier})
			}
			l.emit(DelegatePowerChanged{Account: caller, Delegate: delegate, Delta: new(big.Int).Neg(swept)})
			metricSweptCount().Add(int64(len(sweptRecords)))
			total.Set(swept)
		}

		claimed, err := l.rewardService.ClaimAccrued(caller, blockTime)
		if err != nil {
			return err
		}
		if claimed.Sign() > 0 {
			if err := l.token.Transfer(l.addr, caller, claimed); err != nil {
				return err
			}
			l.emit(RewardPaid{Account: caller, Amount: claimed})
		}
		return nil
	})
	if err != nil {
		logger.Info("exit all failed", "account", caller, "error", err)
		return nil, err
	}

	l.gaugeSupply()
	logger.Info("exited all deposits", "account", caller, "total", total)
	return total, nil
}

// ChangeDelegate moves the caller's entire deposited amount from the recorded
// delegate's power to newDelegate's.
func (l *Ledger) ChangeDelegate(caller, newDelegate lock.Address, blockNum uint32, blockTime uint64) error {
	logger.Debug("changing delegate", "account", caller, "newDelegate", newDelegate)

	err := l.runExclusive("change_delegate", func() error {
		if err := l.requireRunning(); err != nil {
			return err
		}
		if err := l.rewardService.Touch(caller, blockTime); err != nil {
			return err
		}

		old, err := l.delegationService.ChangeDelegate(caller, newDelegate, blockNum)
		if err != nil {
			return err
		}
		if old == newDelegate {
			return nil
		}

		del, err := l.delegationService.Get(caller)
		if err != nil {
			return err
		}
		raw := del.RawAmount
		l.emit(DelegatePowerChanged{Account: caller, Delegate: old, Delta: new(big.Int).Neg(raw)})
		l.emit(DelegatePowerChanged{Account: caller, Delegate: newDelegate, Delta: new(big.Int).Set(raw)})
		return nil
	})
	if err != nil {
		logger.Info("change delegate failed", "account", caller, "error", err)
		return err
	}

	logger.Info("delegate changed", "account", caller, "newDelegate", newDelegate)
	return nil
}

// ClaimReward pays out the caller's accrued reward. Returns the amount paid.
func (l *Ledger) ClaimReward(caller lock.Address, blockTime uint64) (*big.Int, error) {
	logger.Debug("claiming reward", "account", caller)

	claimed := new(big.Int)
	err := l.runExclusive("claim_reward", func() error {
		if err := l.requireRunning(); err != nil {
			return err
		}
		paid, err := l.rewardService.ClaimAccrued(caller, blockTime)
		if err != nil {
			return err
		}
		if paid.Sign() > 0 {
			if err := l.token.Transfer(l.addr, caller, paid); err != nil {
				return err
			}
			l.emit(RewardPaid{Account: caller, Amount: paid})
			claimed.Set(paid)
		}
		return nil
	})
	if err != nil {
		logger.Info("claim reward failed", "account", caller, "error", err)
		return nil, err
	}

	logger.Info("reward claimed", "account", caller, "amount", claimed)
	return claimed, nil
}

// NotifyRewardAmount starts a new reward period emitting reward tokens over
// the configured duration. The reward tokens must already sit on the ledger's
// balance; locked principal does not count as collateral.
func (l *Ledger) NotifyRewardAmount(caller lock.Address, reward *big.Int, blockTime uint64) error {
	logger.Debug("notifying reward amount", "caller", caller, "reward", reward)

	err := l.runExclusive("notify_reward_amount", func() error {
		if err := l.requireRunning(); err != nil {
			return err
		}
		if err := l.requireOwner(caller); err != nil {
			return err
		}
		if reward == nil || reward.Sign() <= 0 {
			return reverts.ErrZeroAmount
		}

		balance, err := l.token.BalanceOf(l.addr)
		if err != nil {
			return err
		}
		locked, err := l.depositService.TotalSupply()
		if err != nil {
			return err
		}
		available := new(big.Int).Sub(balance, locked)

		if err := l.rewardService.NotifyRewardAmount(reward, available, blockTime); err != nil {
			return err
		}
		l.emit(RewardAdded{Amount: reward})
		return nil
	})
	if err != nil {
		logger.Info("notify reward amount failed", "caller", caller, "error", err)
		return err
	}

	logger.Info("reward added", "reward", reward)
	return nil
}

// SetRewardsDuration changes the reward period length. Only allowed between
// periods.
func (l *Ledger) SetRewardsDuration(caller lock.Address, duration uint64, blockTime uint64) error {
	logger.Debug("setting rewards duration", "caller", caller, "duration", duration)

	err := l.runExclusive("set_rewards_duration", func() error {
		if err := l.requireRunning(); err != nil {
			return err
		}
		if err := l.requireOwner(caller); err != nil {
			return err
		}
		if err := l.rewardService.SetDuration(duration, blockTime); err != nil {
			return err
		}
		l.emit(RewardsDurationUpdated{Duration: duration})
		return nil
	})
	if err != nil {
		logger.Info("set rewards duration failed", "caller", caller, "error", err)
		return err
	}

	logger.Info("rewards duration updated", "duration", duration)
	return nil
}

// RecoverToken sends amount of a stray token held by the ledger to the owner.
// The ledger's own deposit asset is protected and cannot be recovered.
func (l *Ledger) RecoverToken(caller lock.Address, stray Token, amount *big.Int) error {
	logger.Debug("recovering token", "caller", caller, "token", stray.Address(), "amount", amount)

	err := l.runExclusive("recover_token", func() error {
		if err := l.requireRunning(); err != nil {
			return err
		}
		if err := l.requireOwner(caller); err != nil {
			return err
		}
		if stray.Address() == l.token.Address() {
			return reverts.ErrProtectedToken
		}
		if amount == nil || amount.Sign() <= 0 {
			return reverts.ErrZeroAmount
		}
		if err := stray.Transfer(l.addr, caller, amount); err != nil {
			return err
		}
		l.emit(TokenRecovered{Token: stray.Address(), Amount: amount})
		return nil
	})
	if err != nil {
		logger.Info("recover token failed", "caller", caller, "error", err)
		return err
	}

	logger.Info("token recovered", "token", stray.Address(), "amount", amount)
	return nil
}

// Pause halts every state-changing entry point. Read entry points stay
// available, and the owner can always Unpause.
func (l *Ledger) Pause(caller lock.Address) error {
	return l.setPaused(caller, true)
}

// Unpause re-enables the state-changing entry points.
func (l *Ledger) Unpause(caller lock.Address) error {
	return l.setPaused(caller, false)
}

func (l *Ledger) setPaused(caller lock.Address, paused bool) error {
	err := l.runExclusive("set_paused", func() error {
		if err := l.requireOwner(caller); err != nil {
			return err
		}
		current, err := l.paused.Get()
		if err != nil {
			return err
		}
		if current == paused {
			return nil
		}
		if err := l.paused.Set(paused); err != nil {
			return err
		}
		l.emit(PausedSet{Paused: paused})
		return nil
	})
	if err != nil {
		logger.Info("set paused failed", "caller", caller, "error", err)
		return err
	}

	logger.Info("paused set", "paused", paused)
	return nil
}

//
// Getters - no state change
//

// Owner returns the owner account fixed at genesis.
func (l *Ledger) Owner() (lock.Address, error) {
	return l.owner.Get()
}

// Paused reports whether new deposits are stopped.
func (l *Ledger) Paused() (bool, error) {
	return l.paused.Get()
}

// TotalSupply returns the sum of all locked deposit amounts.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	return l.depositService.TotalSupply()
}

// TotalUserDeposits returns the sum of the account's locked deposit amounts.
func (l *Ledger) TotalUserDeposits(account lock.Address) (*big.Int, error) {
	return l.depositService.AccountTotal(account)
}

// GetDeposit returns one deposit record. Unknown ids read as empty records.
func (l *Ledger) GetDeposit(account lock.Address, id uint32) (*deposits.Deposit, error) {
	return l.depositService.Get(account, id)
}

// DepositBalance returns the remaining balance of one deposit.
func (l *Ledger) DepositBalance(account lock.Address, id uint32) (*big.Int, error) {
	d, err := l.depositService.Get(account, id)
	if err != nil {
		return nil, err
	}
	return d.Amount, nil
}

// LastDepositID returns the most recently assigned deposit id of the account.
// ok is false when the account never deposited.
func (l *Ledger) LastDepositID(account lock.Address) (id uint32, ok bool, err error) {
	count, err := l.depositService.Count(account)
	if err != nil || count == 0 {
		return 0, false, err
	}
	return count - 1, true, nil
}

// ActiveDeposits returns the ids of the account's deposits still holding a
// balance.
func (l *Ledger) ActiveDeposits(account lock.Address) ([]uint32, error) {
	return l.depositService.Active(account)
}

// DepositBonus returns the tier-boosted entitlement of one deposit:
// its remaining balance plus the tier bonus.
func (l *Ledger) DepositBonus(account lock.Address, id uint32) (*big.Int, error) {
	d, err := l.depositService.Get(account, id)
	if err != nil {
		return nil, err
	}
	if !d.Active() {
		return new(big.Int), nil
	}
	return tiers.Bonus(d.Amount, d.Tier), nil
}

// GetDelegation returns the account's delegation record. Never nil.
func (l *Ledger) GetDelegation(account lock.Address) (*delegation.Delegation, error) {
	return l.delegationService.Get(account)
}

// VotePower returns the power delegated to the account as of the given
// ordinal. Power is keyed by delegate: an account's own power aggregates
// everything delegated to it, self-delegation included.
func (l *Ledger) VotePower(account lock.Address, ordinal uint32) (*big.Int, error) {
	return l.delegationService.Power(account, ordinal)
}

// CurrentPower returns the latest checkpointed power of the account.
func (l *Ledger) CurrentPower(account lock.Address) (*big.Int, error) {
	return l.delegationService.CurrentPower(account)
}

// Earned returns the account's claimable reward as of blockTime.
func (l *Ledger) Earned(account lock.Address, blockTime uint64) (*big.Int, error) {
	return l.rewardService.Earned(account, blockTime)
}

// RewardsDuration returns the configured reward period length in seconds.
func (l *Ledger) RewardsDuration() (uint64, error) {
	return l.rewardService.Duration()
}

// PeriodFinish returns the end time of the current reward period.
func (l *Ledger) PeriodFinish() (uint64, error) {
	return l.rewardService.PeriodFinish()
}

// RewardForDuration returns the total emission of the current reward period.
func (l *Ledger) RewardForDuration() (*big.Int, error) {
	return l.rewardService.RewardForDuration()
}
