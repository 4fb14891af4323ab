// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"encoding/binary"
	"reflect"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/lockforge/lockledger/lock"
)

// Array is an append-only growable sequence rooted at a slot position.
// The length lives at the root slot; element i lives at blake2b(basePos, i).
type Array[V any] struct {
	context *Context
	basePos lock.Bytes32
}

func NewArray[V any](context *Context, pos lock.Bytes32) *Array[V] {
	return &Array[V]{context: context, basePos: pos}
}

func (a *Array[V]) elementPos(index uint64) lock.Bytes32 {
	var ib [8]byte
	binary.BigEndian.PutUint64(ib[:], index)
	return lock.Blake2b(a.basePos.Bytes(), ib[:])
}

// Len returns the number of elements.
func (a *Array[V]) Len() (uint64, error) {
	storage, err := a.context.state.GetStorage(a.context.address, a.basePos)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(storage[24:]), nil
}

func (a *Array[V]) setLen(n uint64) {
	var b lock.Bytes32
	binary.BigEndian.PutUint64(b[24:], n)
	a.context.state.SetStorage(a.context.address, a.basePos, b)
}

// Get returns the element at index. Index must be < Len().
func (a *Array[V]) Get(index uint64) (value V, err error) {
	n, err := a.Len()
	if err != nil {
		return value, err
	}
	if index >= n {
		return value, errors.Errorf("array index %d out of range %d", index, n)
	}
	err = a.context.state.DecodeStorage(a.context.address, a.elementPos(index), func(raw []byte) error {
		if reflect.ValueOf(value).Kind() == reflect.Ptr {
			value = reflect.New(reflect.TypeOf(value).Elem()).Interface().(V)
		}
		if len(raw) == 0 {
			return nil
		}
		return rlp.DecodeBytes(raw, &value)
	})
	return
}

// Set overwrites the element at index. Index must be < Len().
func (a *Array[V]) Set(index uint64, value V) error {
	n, err := a.Len()
	if err != nil {
		return err
	}
	if index >= n {
		return errors.Errorf("array index %d out of range %d", index, n)
	}
	return a.context.state.EncodeStorage(a.context.address, a.elementPos(index), func() ([]byte, error) {
		return rlp.EncodeToBytes(value)
	})
}

// Append adds an element at the end and returns its index.
func (a *Array[V]) Append(value V) (uint64, error) {
	n, err := a.Len()
	if err != nil {
		return 0, err
	}
	if err := a.context.state.EncodeStorage(a.context.address, a.elementPos(n), func() ([]byte, error) {
		return rlp.EncodeToBytes(value)
	}); err != nil {
		return 0, err
	}
	a.setLen(n + 1)
	return n, nil
}
