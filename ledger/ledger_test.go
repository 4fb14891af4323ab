// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockforge/lockledger/kv"
	"github.com/lockforge/lockledger/ledger/reverts"
	"github.com/lockforge/lockledger/ledger/tiers"
	"github.com/lockforge/lockledger/lock"
	"github.com/lockforge/lockledger/state"
	"github.com/lockforge/lockledger/token"
)

var (
	owner = lock.BytesToAddress([]byte("owner"))
	alice = lock.BytesToAddress([]byte("alice"))
	bob   = lock.BytesToAddress([]byte("bob"))
	carol = lock.BytesToAddress([]byte("carol"))
	dave  = lock.BytesToAddress([]byte("dave"))
)

const initialBalance = 1_000_000

type testEnv struct {
	st     *state.State
	token  *token.Token
	ledger *Ledger
}

func newTestEnv(t *testing.T) *testEnv {
	st := state.New(kv.NewMemLevelDB())
	st.NewCheckpoint()

	tkn := token.New(lock.BytesToAddress([]byte("stake-token")), st)
	led := New(lock.BytesToAddress([]byte("lock-ledger")), st, tkn)
	require.NoError(t, led.Initialize(owner))

	for _, acc := range []lock.Address{alice, bob, carol} {
		require.NoError(t, tkn.Mint(acc, big.NewInt(initialBalance)))
		require.NoError(t, tkn.Approve(acc, led.Address(), big.NewInt(initialBalance)))
	}
	return &testEnv{st: st, token: tkn, ledger: led}
}

func (env *testEnv) balance(t *testing.T, acc lock.Address) *big.Int {
	b, err := env.token.BalanceOf(acc)
	require.NoError(t, err)
	return b
}

func TestInitialize(t *testing.T) {
	env := newTestEnv(t)

	got, err := env.ledger.Owner()
	require.NoError(t, err)
	assert.Equal(t, owner, got)

	assert.ErrorIs(t, env.ledger.Initialize(alice), reverts.ErrAlreadyInitialized)

	fresh := New(lock.BytesToAddress([]byte("other")), env.st, env.token)
	assert.ErrorIs(t, fresh.Initialize(lock.Address{}), reverts.ErrZeroAddress)
}

func TestDepositMovesTokensAndPower(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.ledger.Deposit(alice, carol, big.NewInt(100), tiers.Short, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), id)

	total, err := env.ledger.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), total)

	userTotal, err := env.ledger.TotalUserDeposits(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), userTotal)

	assert.Equal(t, big.NewInt(initialBalance-100), env.balance(t, alice))
	assert.Equal(t, big.NewInt(100), env.balance(t, env.ledger.Address()))

	d, err := env.ledger.GetDeposit(alice, id)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), d.Amount)
	assert.Equal(t, tiers.Short, d.Tier)
	assert.Equal(t, tiers.ShortDuration, d.UnlockTime)

	power, err := env.ledger.CurrentPower(carol)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), power)

	last, ok, err := env.ledger.LastDepositID(alice)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(0), last)

	active, err := env.ledger.ActiveDeposits(alice)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, active)

	require.Len(t, env.ledger.Events(), 2)
	assert.Equal(t,
		DepositMade{Account: alice, DepositID: 0, Amount: big.NewInt(100), Tier: tiers.Short},
		env.ledger.Events()[0])
	assert.Equal(t,
		DelegatePowerChanged{Account: alice, Delegate: carol, Delta: big.NewInt(100)},
		env.ledger.Events()[1])
}

func TestDepositValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.Deposit(alice, carol, big.NewInt(0), tiers.Short, 1, 0)
	assert.ErrorIs(t, err, reverts.ErrZeroAmount)

	_, err = env.ledger.Deposit(alice, carol, big.NewInt(1), tiers.Tier(9), 1, 0)
	assert.ErrorIs(t, err, reverts.ErrInvalidTier)

	_, err = env.ledger.Deposit(alice, lock.Address{}, big.NewInt(1), tiers.Short, 1, 0)
	assert.ErrorIs(t, err, reverts.ErrZeroAddress)

	_, err = env.ledger.Deposit(alice, carol, big.NewInt(100), tiers.Short, 1, 0)
	require.NoError(t, err)

	// conflicting delegate reverts with no trace
	_, err = env.ledger.Deposit(alice, dave, big.NewInt(50), tiers.Short, 2, 0)
	assert.ErrorIs(t, err, reverts.ErrDelegateConflict)

	total, err := env.ledger.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), total)
	assert.Equal(t, big.NewInt(initialBalance-100), env.balance(t, alice))
	assert.Len(t, env.ledger.Events(), 2)
}

func TestDepositCap(t *testing.T) {
	old := MaxDeposits
	MaxDeposits = 2
	defer func() { MaxDeposits = old }()

	env := newTestEnv(t)

	for i := 0; i < 2; i++ {
		_, err := env.ledger.Deposit(alice, alice, big.NewInt(1), tiers.Short, uint32(i), 0)
		require.NoError(t, err)
	}
	_, err := env.ledger.Deposit(alice, alice, big.NewInt(1), tiers.Short, 3, 0)
	assert.ErrorIs(t, err, reverts.ErrTooManyDeposits)
}

func TestDepositBonusRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	for i, tc := range []struct {
		tier  tiers.Tier
		bonus int64
	}{
		{tiers.Short, 1050},
		{tiers.Medium, 1150},
		{tiers.Long, 1350},
	} {
		id, err := env.ledger.Deposit(alice, alice, big.NewInt(1000), tc.tier, uint32(i), 0)
		require.NoError(t, err)

		bonus, err := env.ledger.DepositBonus(alice, id)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(tc.bonus), bonus, "tier %v", tc.tier)
	}
}

func TestWithdrawLockAndClamp(t *testing.T) {
	env := newTestEnv(t)

	unlock := uint64(tiers.ShortDuration)
	id, err := env.ledger.Deposit(alice, alice, big.NewInt(100), tiers.Short, 1, 0)
	require.NoError(t, err)

	_, err = env.ledger.Withdraw(alice, id, big.NewInt(10), 2, unlock-1)
	assert.ErrorIs(t, err, reverts.ErrDepositLocked)

	_, err = env.ledger.Withdraw(alice, id, big.NewInt(0), 2, unlock)
	assert.ErrorIs(t, err, reverts.ErrZeroAmount)

	withdrawn, err := env.ledger.Withdraw(alice, id, big.NewInt(30), 2, unlock)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(30), withdrawn)

	// over-specified amount clamps to the remaining balance
	withdrawn, err = env.ledger.Withdraw(alice, id, big.NewInt(1000), 3, unlock)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(70), withdrawn)

	assert.Equal(t, big.NewInt(initialBalance), env.balance(t, alice))

	power, err := env.ledger.CurrentPower(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0), power)

	_, err = env.ledger.Exit(alice, id, 4, unlock)
	assert.ErrorIs(t, err, reverts.ErrNoActiveDeposit)
}

func TestExit(t *testing.T) {
	env := newTestEnv(t)

	unlock := uint64(tiers.ShortDuration)
	id, err := env.ledger.Deposit(alice, alice, big.NewInt(250), tiers.Short, 1, 0)
	require.NoError(t, err)

	withdrawn, err := env.ledger.Exit(alice, id, 2, unlock)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(250), withdrawn)

	d, err := env.ledger.GetDeposit(alice, id)
	require.NoError(t, err)
	assert.False(t, d.Active())
}

func TestExitAll(t *testing.T) {
	env := newTestEnv(t)

	// the medium-tier deposit stays locked past the short unlock time
	_, err := env.ledger.Deposit(alice, alice, big.NewInt(100), tiers.Short, 1, 0)
	require.NoError(t, err)
	_, err = env.ledger.Deposit(alice, alice, big.NewInt(200), tiers.Medium, 1, 0)
	require.NoError(t, err)
	_, err = env.ledger.Deposit(alice, alice, big.NewInt(300), tiers.Short, 1, 0)
	require.NoError(t, err)
	env.ledger.ClearEvents()

	at := uint64(tiers.ShortDuration)
	total, err := env.ledger.ExitAll(alice, 2, at)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(400), total)

	// one withdrawal event per swept record plus one power reduction
	events := env.ledger.Events()
	require.Len(t, events, 3)
	assert.Equal(t, WithdrawalMade{Account: alice, DepositID: 0, Amount: big.NewInt(100), Tier: tiers.Short}, events[0])
	assert.Equal(t, WithdrawalMade{Account: alice, DepositID: 2, Amount: big.NewInt(300), Tier: tiers.Short}, events[1])
	assert.Equal(t, DelegatePowerChanged{Account: alice, Delegate: alice, Delta: big.NewInt(-400)}, events[2])

	remaining, err := env.ledger.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200), remaining)

	power, err := env.ledger.CurrentPower(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200), power)

	// nothing eligible: a second sweep is a harmless no-op
	env.ledger.ClearEvents()
	total, err = env.ledger.ExitAll(alice, 3, at)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0), total)
	assert.Empty(t, env.ledger.Events())
}

func TestPowerFollowsDeposits(t *testing.T) {
	env := newTestEnv(t)

	// two accounts delegate 30 and 70 to the same delegate
	_, err := env.ledger.Deposit(alice, carol, big.NewInt(30), tiers.Short, 1, 0)
	require.NoError(t, err)
	_, err = env.ledger.Deposit(bob, carol, big.NewInt(70), tiers.Short, 2, 0)
	require.NoError(t, err)

	power, err := env.ledger.CurrentPower(carol)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), power)

	// one account fully exits
	_, err = env.ledger.ExitAll(bob, 3, uint64(tiers.ShortDuration))
	require.NoError(t, err)

	power, err = env.ledger.CurrentPower(carol)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(30), power)

	// history is preserved at earlier ordinals
	power, err = env.ledger.VotePower(carol, 2)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), power)
}

func TestChangeDelegateHistory(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.Deposit(alice, carol, big.NewInt(500), tiers.Long, 10, 0)
	require.NoError(t, err)

	err = env.ledger.ChangeDelegate(alice, lock.Address{}, 20, 0)
	assert.ErrorIs(t, err, reverts.ErrZeroAddress)

	err = env.ledger.ChangeDelegate(bob, dave, 20, 0)
	assert.ErrorIs(t, err, reverts.ErrNoDelegation)

	env.ledger.ClearEvents()
	require.NoError(t, env.ledger.ChangeDelegate(alice, dave, 20, 0))

	events := env.ledger.Events()
	require.Len(t, events, 2)
	assert.Equal(t, DelegatePowerChanged{Account: alice, Delegate: carol, Delta: big.NewInt(-500)}, events[0])
	assert.Equal(t, DelegatePowerChanged{Account: alice, Delegate: dave, Delta: big.NewInt(500)}, events[1])

	for _, tc := range []struct {
		key     lock.Address
		ordinal uint32
		power   int64
	}{
		{carol, 15, 500},
		{carol, 25, 0},
		{dave, 15, 0},
		{dave, 25, 500},
	} {
		power, err := env.ledger.VotePower(tc.key, tc.ordinal)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(tc.power), power, "key %v ordinal %d", tc.key, tc.ordinal)
	}

	// re-pointing to the same delegate is a no-op
	env.ledger.ClearEvents()
	require.NoError(t, env.ledger.ChangeDelegate(alice, dave, 30, 0))
	assert.Empty(t, env.ledger.Events())

	// the new delegate sticks for future deposits
	_, err = env.ledger.Deposit(alice, carol, big.NewInt(1), tiers.Short, 31, 0)
	assert.ErrorIs(t, err, reverts.ErrDelegateConflict)
	_, err = env.ledger.Deposit(alice, dave, big.NewInt(1), tiers.Short, 31, 0)
	require.NoError(t, err)
}

func TestRewardsFlow(t *testing.T) {
	env := newTestEnv(t)

	// fund the ledger's reward collateral
	require.NoError(t, env.token.Mint(env.ledger.Address(), big.NewInt(10_000)))

	err := env.ledger.SetRewardsDuration(alice, 100, 0)
	assert.ErrorIs(t, err, reverts.ErrUnauthorized)
	require.NoError(t, env.ledger.SetRewardsDuration(owner, 100, 0))

	err = env.ledger.NotifyRewardAmount(alice, big.NewInt(1000), 0)
	assert.ErrorIs(t, err, reverts.ErrUnauthorized)
	require.NoError(t, env.ledger.NotifyRewardAmount(owner, big.NewInt(1000), 0))

	forDuration, err := env.ledger.RewardForDuration()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), forDuration)

	finish, err := env.ledger.PeriodFinish()
	require.NoError(t, err)
	assert.Equal(t, uint64(100), finish)

	// rate is 10/sec and alice is the only staker
	_, err = env.ledger.Deposit(alice, alice, big.NewInt(100), tiers.Short, 1, 0)
	require.NoError(t, err)

	earned, err := env.ledger.Earned(alice, 50)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), earned)

	env.ledger.ClearEvents()
	claimed, err := env.ledger.ClaimReward(alice, 50)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), claimed)
	assert.Equal(t, big.NewInt(initialBalance-100+500), env.balance(t, alice))

	require.Len(t, env.ledger.Events(), 1)
	assert.Equal(t, RewardPaid{Account: alice, Amount: big.NewInt(500)}, env.ledger.Events()[0])

	// claiming again right away yields nothing and emits nothing
	env.ledger.ClearEvents()
	claimed, err = env.ledger.ClaimReward(alice, 50)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0), claimed)
	assert.Empty(t, env.ledger.Events())
}

func TestExitAllClaimsReward(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.token.Mint(env.ledger.Address(), big.NewInt(10_000)))
	require.NoError(t, env.ledger.SetRewardsDuration(owner, 100, 0))
	require.NoError(t, env.ledger.NotifyRewardAmount(owner, big.NewInt(1000), 0))

	_, err := env.ledger.Deposit(alice, alice, big.NewInt(100), tiers.Short, 1, 0)
	require.NoError(t, err)

	// the period has long finished by the time the lock elapses
	at := uint64(tiers.ShortDuration)
	total, err := env.ledger.ExitAll(alice, 2, at)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), total)

	// principal plus the full emission came back
	assert.Equal(t, big.NewInt(initialBalance+1000), env.balance(t, alice))

	events := env.ledger.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, RewardPaid{Account: alice, Amount: big.NewInt(1000)}, events[len(events)-1])
}

func TestNotifyRewardCollateral(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.ledger.SetRewardsDuration(owner, 100, 0))

	// locked principal is not collateral
	_, err := env.ledger.Deposit(alice, alice, big.NewInt(5000), tiers.Short, 1, 0)
	require.NoError(t, err)

	err = env.ledger.NotifyRewardAmount(owner, big.NewInt(1000), 0)
	assert.ErrorIs(t, err, reverts.ErrRewardBalanceTooLow)

	require.NoError(t, env.token.Mint(env.ledger.Address(), big.NewInt(1000)))
	require.NoError(t, env.ledger.NotifyRewardAmount(owner, big.NewInt(1000), 0))
}

func TestPause(t *testing.T) {
	env := newTestEnv(t)

	assert.ErrorIs(t, env.ledger.Pause(alice), reverts.ErrUnauthorized)
	require.NoError(t, env.ledger.Pause(owner))

	paused, err := env.ledger.Paused()
	require.NoError(t, err)
	assert.True(t, paused)

	_, err = env.ledger.Deposit(alice, alice, big.NewInt(100), tiers.Short, 1, 0)
	assert.ErrorIs(t, err, reverts.ErrPaused)

	// pausing twice changes nothing and emits nothing
	env.ledger.ClearEvents()
	require.NoError(t, env.ledger.Pause(owner))
	assert.Empty(t, env.ledger.Events())

	require.NoError(t, env.ledger.Unpause(owner))
	id, err := env.ledger.Deposit(alice, alice, big.NewInt(100), tiers.Short, 1, 0)
	require.NoError(t, err)

	// every state-changing entry point halts while paused
	require.NoError(t, env.ledger.Pause(owner))
	unlock := uint64(tiers.ShortDuration)

	_, err = env.ledger.Withdraw(alice, id, big.NewInt(10), 2, unlock)
	assert.ErrorIs(t, err, reverts.ErrPaused)
	_, err = env.ledger.Exit(alice, id, 2, unlock)
	assert.ErrorIs(t, err, reverts.ErrPaused)
	_, err = env.ledger.ExitAll(alice, 2, unlock)
	assert.ErrorIs(t, err, reverts.ErrPaused)
	assert.ErrorIs(t, env.ledger.ChangeDelegate(alice, dave, 2, unlock), reverts.ErrPaused)
	_, err = env.ledger.ClaimReward(alice, unlock)
	assert.ErrorIs(t, err, reverts.ErrPaused)
	assert.ErrorIs(t, env.ledger.NotifyRewardAmount(owner, big.NewInt(1), unlock), reverts.ErrPaused)
	assert.ErrorIs(t, env.ledger.SetRewardsDuration(owner, 100, unlock), reverts.ErrPaused)
	assert.ErrorIs(t, env.ledger.RecoverToken(owner, env.token, big.NewInt(1)), reverts.ErrPaused)

	// nothing moved while paused
	total, err := env.ledger.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), total)
	assert.Equal(t, big.NewInt(100), env.balance(t, env.ledger.Address()))

	// reads stay available, and unpausing restores the entry points
	power, err := env.ledger.CurrentPower(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), power)

	require.NoError(t, env.ledger.Unpause(owner))
	withdrawn, err := env.ledger.ExitAll(alice, 2, unlock)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), withdrawn)
}

func TestRecoverToken(t *testing.T) {
	env := newTestEnv(t)

	// the deposit asset is protected
	err := env.ledger.RecoverToken(owner, env.token, big.NewInt(1))
	assert.ErrorIs(t, err, reverts.ErrProtectedToken)

	stray := token.New(lock.BytesToAddress([]byte("stray-token")), env.st)
	require.NoError(t, stray.Mint(env.ledger.Address(), big.NewInt(777)))

	err = env.ledger.RecoverToken(alice, stray, big.NewInt(777))
	assert.ErrorIs(t, err, reverts.ErrUnauthorized)

	env.ledger.ClearEvents()
	require.NoError(t, env.ledger.RecoverToken(owner, stray, big.NewInt(777)))

	recovered, err := stray.BalanceOf(owner)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(777), recovered)

	require.Len(t, env.ledger.Events(), 1)
	assert.Equal(t, TokenRecovered{Token: stray.Address(), Amount: big.NewInt(777)}, env.ledger.Events()[0])
}

func TestSupplyInvariant(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.Deposit(alice, alice, big.NewInt(100), tiers.Short, 1, 0)
	require.NoError(t, err)
	_, err = env.ledger.Deposit(bob, bob, big.NewInt(250), tiers.Medium, 1, 0)
	require.NoError(t, err)
	_, err = env.ledger.Deposit(carol, carol, big.NewInt(50), tiers.Long, 1, 0)
	require.NoError(t, err)

	total, err := env.ledger.TotalSupply()
	require.NoError(t, err)

	sum := new(big.Int)
	for _, acc := range []lock.Address{alice, bob, carol} {
		userTotal, err := env.ledger.TotalUserDeposits(acc)
		require.NoError(t, err)
		sum.Add(sum, userTotal)
	}
	assert.Equal(t, total, sum)
	assert.Equal(t, total, env.balance(t, env.ledger.Address()))
}
