// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package deposits

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
	"github.com/lockforge/lockledger/storage"
)

var acc = lock.BytesToAddress([]byte("acc1"))

func newService(maxDeposits uint32) *Service {
	st := state.New(kv.NewMemLevelDB())
	st.NewCheckpoint()
	return New(storage.NewContext(lock.BytesToAddress([]byte("ldgr")), st), maxDeposits)
}

func TestAddAndGet(t *testing.T) {
	svc := newService(10)

	id, err := svc.Add(acc, big.NewInt(100), tiers.Short, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), id)

	d, err := svc.Get(acc, id)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), d.Amount)
	assert.Equal(t, tiers.Short, d.Tier)
	assert.Equal(t, uint32(1000), d.UnlockTime)

	total, err := svc.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), total)

	accTotal, err := svc.AccountTotal(acc)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), accTotal)

	// unknown id reads as an empty record
	d, err = svc.Get(acc, 9)
	require.NoError(t, err)
	assert.False(t, d.Active())
}

func TestDepositCap(t *testing.T) {
	svc := newService(3)

	for i := 0; i < 3; i++ {
		_, err := svc.Add(acc, big.NewInt(1), tiers.Short, 10)
		require.NoError(t, err)
	}
	_, err := svc.Add(acc, big.NewInt(1), tiers.Short, 10)
	assert.ErrorIs(t, err, reverts.ErrTooManyDeposits)
}

func TestZeroedRecordKeepsSlot(t *testing.T) {
	svc := newService(2)

	id, err := svc.Add(acc, big.NewInt(100), tiers.Short, 10)
	require.NoError(t, err)

	_, _, err = svc.Withdraw(acc, id, big.NewInt(100), 20)
	require.NoError(t, err)

	_, err = svc.Add(acc, big.NewInt(1), tiers.Short, 10)
	require.NoError(t, err)

	// the zeroed slot still counts against the cap
	_, err = svc.Add(acc, big.NewInt(1), tiers.Short, 10)
	assert.ErrorIs(t, err, reverts.ErrTooManyDeposits)

	count, err := svc.Count(acc)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), count)
}

func TestWithdraw(t *testing.T) {
	svc := newService(10)

	id, err := svc.Add(acc, big.NewInt(100), tiers.Short, 50)
	require.NoError(t, err)

	// still locked
	_, _, err = svc.Withdraw(acc, id, big.NewInt(10), 49)
	assert.ErrorIs(t, err, reverts.ErrDepositLocked)

	// partial withdrawal at exactly the unlock time
	withdrawn, tier, err := svc.Withdraw(acc, id, big.NewInt(30), 50)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(30), withdrawn)
	assert.Equal(t, tiers.Short, tier)

	// over-specified amount clamps to the remaining balance
	withdrawn, _, err = svc.Withdraw(acc, id, big.NewInt(1000), 50)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(70), withdrawn)

	total, err := svc.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0), total)

	// drained record rejects further withdrawals
	_, _, err = svc.Withdraw(acc, id, big.NewInt(1), 50)
	assert.ErrorIs(t, err, reverts.ErrNoActiveDeposit)

	// unknown id
	_, _, err = svc.Withdraw(acc, 42, big.NewInt(1), 50)
	assert.ErrorIs(t, err, reverts.ErrNoActiveDeposit)
}

func TestExitAll(t *testing.T) {
	svc := newService(10)

	_, err := svc.Add(acc, big.NewInt(100), tiers.Short, 10)
	require.NoError(t, err)
	_, err = svc.Add(acc, big.NewInt(200), tiers.Medium, 99)
	require.NoError(t, err)
	_, err = svc.Add(acc, big.NewInt(300), tiers.Long, 20)
	require.NoError(t, err)

	// at time 50, the medium deposit is still locked and gets skipped
	total, swept, err := svc.ExitAll(acc, 50)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(400), total)
	require.Len(t, swept, 2)
	assert.Equal(t, uint32(0), swept[0].ID)
	assert.Equal(t, big.NewInt(100), swept[0].Amount)
	assert.Equal(t, uint32(2), swept[1].ID)
	assert.Equal(t, big.NewInt(300), swept[1].Amount)

	supply, err := svc.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200), supply)

	active, err := svc.Active(acc)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, active)

	// nothing eligible: aggregates unchanged, nothing swept
	total, swept, err = svc.ExitAll(acc, 50)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0), total)
	assert.Empty(t, swept)

	supply, err = svc.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200), supply)
}
