// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	lru "github.com/hashicorp/golang-lru"

	"github.com/lockforge/lockledger/kv"
	"github.com/lockforge/lockledger/lock"
	"github.com/lockforge/lockledger/stackedmap"
)

const (
	storageKeyPrefix = "st"

	readCacheSize = 2048
)

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

type storageKey struct {
	addr lock.Address
	key  lock.Bytes32
}

func (k storageKey) persistent() []byte {
	b := make([]byte, 0, len(storageKeyPrefix)+lock.AddressLength+32)
	b = append(b, storageKeyPrefix...)
	b = append(b, k.addr.Bytes()...)
	return append(b, k.key.Bytes()...)
}

// State manages the ledger world state.
// All values are keyed by (address, key) and journaled, so that a range of
// mutations can be reverted as a whole before being committed to the backing store.
type State struct {
	db    kv.GetPutter
	sm    *stackedmap.StackedMap // keeps revisions of raw storage
	cache *lru.Cache             // read cache of persisted raw storage
}

// New creates a state object backed by the given kv store.
func New(db kv.GetPutter) *State {
	cache, _ := lru.New(readCacheSize)
	state := &State{
		db:    db,
		cache: cache,
	}
	state.sm = stackedmap.New(func(key any) (any, bool, error) {
		return state.loadStorage(key.(storageKey))
	})
	return state
}

// loadStorage reads raw storage through the cache from the backing store.
func (s *State) loadStorage(key storageKey) (any, bool, error) {
	pk := key.persistent()
	if v, ok := s.cache.Get(string(pk)); ok {
		return rlp.RawValue(v.([]byte)), true, nil
	}
	raw, err := s.db.Get(pk)
	if err != nil {
		if s.db.IsNotFound(err) {
			return rlp.RawValue(nil), true, nil
		}
		return nil, false, err
	}
	s.cache.Add(string(pk), raw)
	return rlp.RawValue(raw), true, nil
}

// GetRawStorage returns storage value in rlp raw for given address and key.
func (s *State) GetRawStorage(addr lock.Address, key lock.Bytes32) (rlp.RawValue, error) {
	data, _, err := s.sm.Get(storageKey{addr, key})
	if err != nil {
		return nil, &Error{err}
	}
	return data.(rlp.RawValue), nil
}

// SetRawStorage sets storage value in rlp raw.
func (s *State) SetRawStorage(addr lock.Address, key lock.Bytes32, raw rlp.RawValue) {
	s.sm.Put(storageKey{addr, key}, raw)
}

// GetStorage returns storage value for the given address and key.
func (s *State) GetStorage(addr lock.Address, key lock.Bytes32) (lock.Bytes32, error) {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return lock.Bytes32{}, err
	}
	if len(raw) == 0 {
		return lock.Bytes32{}, nil
	}
	kind, content, _, err := rlp.Split(raw)
	if err != nil {
		return lock.Bytes32{}, &Error{err}
	}
	if kind == rlp.List {
		// special case for rlp list, it should be customized storage value
		// return hash of raw data
		return lock.Blake2b(raw), nil
	}
	return lock.BytesToBytes32(content), nil
}

// SetStorage sets storage value for the given address and key.
func (s *State) SetStorage(addr lock.Address, key, value lock.Bytes32) {
	if value.IsZero() {
		s.SetRawStorage(addr, key, nil)
		return
	}
	v, _ := rlp.EncodeToBytes(bytes.TrimLeft(value[:], "\x00"))
	s.SetRawStorage(addr, key, v)
}

// EncodeStorage sets storage value encoded by given enc method.
func (s *State) EncodeStorage(addr lock.Address, key lock.Bytes32, enc func() ([]byte, error)) error {
	raw, err := enc()
	if err != nil {
		return &Error{err}
	}
	s.SetRawStorage(addr, key, raw)
	return nil
}

// DecodeStorage gets and decodes storage value.
func (s *State) DecodeStorage(addr lock.Address, key lock.Bytes32, dec func([]byte) error) error {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return err
	}
	if err := dec(raw); err != nil {
		return &Error{err}
	}
	return nil
}

// NewCheckpoint makes a checkpoint of current state.
// It returns revision of the checkpoint.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo reverts to checkpoint specified by revision.
func (s *State) RevertTo(revision int) {
	s.sm.PopTo(revision)
}

// Commit flattens the journal and writes it to the backing store in one batch.
// The journal is cleared afterwards.
func (s *State) Commit() error {
	flattened := make(map[storageKey]rlp.RawValue)
	s.sm.Journal(func(key, value any) bool {
		flattened[key.(storageKey)] = value.(rlp.RawValue)
		return true
	})

	batch := s.db.NewBatch()
	for key, raw := range flattened {
		pk := key.persistent()
		if len(raw) == 0 {
			if err := batch.Delete(pk); err != nil {
				return &Error{err}
			}
			s.cache.Remove(string(pk))
			continue
		}
		if err := batch.Put(pk, raw); err != nil {
			return &Error{err}
		}
		s.cache.Add(string(pk), []byte(raw))
	}
	if err := batch.Write(); err != nil {
		return &Error{err}
	}

	s.sm.PopTo(0)
	return nil
}
