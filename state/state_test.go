// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockforge/lockledger/kv"
	"github.com/lockforge/lockledger/lock"
)

func TestStorage(t *testing.T) {
	db := kv.NewMemLevelDB()
	defer db.Close()
	st := New(db)

	addr := lock.BytesToAddress([]byte("addr"))
	key := lock.BytesToBytes32([]byte("key"))
	value := lock.BytesToBytes32([]byte("value"))

	st.NewCheckpoint()
	st.SetStorage(addr, key, value)

	got, err := st.GetStorage(addr, key)
	require.NoError(t, err)
	assert.Equal(t, value, got)

	// zero value clears the slot
	st.SetStorage(addr, key, lock.Bytes32{})
	got, err = st.GetStorage(addr, key)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestCheckpointRevert(t *testing.T) {
	db := kv.NewMemLevelDB()
	defer db.Close()
	st := New(db)

	addr := lock.BytesToAddress([]byte("addr"))
	key := lock.BytesToBytes32([]byte("key"))

	st.NewCheckpoint()
	st.SetStorage(addr, key, lock.BytesToBytes32([]byte{1}))

	cp := st.NewCheckpoint()
	st.SetStorage(addr, key, lock.BytesToBytes32([]byte{2}))

	got, err := st.GetStorage(addr, key)
	require.NoError(t, err)
	assert.Equal(t, lock.BytesToBytes32([]byte{2}), got)

	st.RevertTo(cp)
	got, err = st.GetStorage(addr, key)
	require.NoError(t, err)
	assert.Equal(t, lock.BytesToBytes32([]byte{1}), got)
}

func TestCommitAndReload(t *testing.T) {
	db := kv.NewMemLevelDB()
	defer db.Close()

	addr := lock.BytesToAddress([]byte("addr"))
	key := lock.BytesToBytes32([]byte("key"))
	value := lock.BytesToBytes32([]byte("value"))

	st := New(db)
	st.NewCheckpoint()
	st.SetStorage(addr, key, value)
	require.NoError(t, st.Commit())

	// a fresh state over the same store sees the committed value
	st2 := New(db)
	got, err := st2.GetStorage(addr, key)
	require.NoError(t, err)
	assert.Equal(t, value, got)
}
