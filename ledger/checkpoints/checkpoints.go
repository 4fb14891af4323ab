// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package checkpoints

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/lockforge/lockledger/lock"
	"github.com/lockforge/lockledger/storage"
)

// Checkpoint records a key's value as of an ordinal (block number).
type Checkpoint struct {
	Ordinal uint32
	Value   *big.Int
}

// Store keeps one append-only checkpoint sequence per key.
// Entries are never deleted or compacted: unbounded growth is the accepted
// price of point-in-time lookups without a pruning pass.
type Store struct {
	context *storage.Context
	basePos lock.Bytes32
}

func New(context *storage.Context, pos lock.Bytes32) *Store {
	return &Store{context: context, basePos: pos}
}

func (s *Store) sequence(key lock.Address) *storage.Array[*Checkpoint] {
	return storage.NewArray[*Checkpoint](s.context, lock.Blake2b(s.basePos.Bytes(), key.Bytes()))
}

// Len returns the number of checkpoints recorded for key.
func (s *Store) Len(key lock.Address) (uint64, error) {
	return s.sequence(key).Len()
}

// Push appends (ordinal, value) to the key's sequence. If the last entry
// carries the same ordinal it is overwritten in place, keeping at most one
// value per ordinal per key. Ordinals must be non-decreasing.
func (s *Store) Push(key lock.Address, ordinal uint32, value *big.Int) error {
	seq := s.sequence(key)
	n, err := seq.Len()
	if err != nil {
		return errors.Wrap(err, "failed to read checkpoint sequence")
	}
	if n > 0 {
		last, err := seq.Get(n - 1)
		if err != nil {
			return errors.Wrap(err, "failed to read last checkpoint")
		}
		if last.Ordinal > ordinal {
			return errors.Errorf("checkpoint ordinal %d behind last %d", ordinal, last.Ordinal)
		}
		if last.Ordinal == ordinal {
			return seq.Set(n-1, &Checkpoint{Ordinal: ordinal, Value: value})
		}
	}
	_, err = seq.Append(&Checkpoint{Ordinal: ordinal, Value: value})
	return err
}

// Find returns the value of the latest checkpoint with ordinal <= the queried
// ordinal, or zero if the sequence is empty or the ordinal predates the first entry.
func (s *Store) Find(key lock.Address, ordinal uint32) (*big.Int, error) {
	seq := s.sequence(key)
	n, err := seq.Len()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return new(big.Int), nil
	}

	// fast paths for the most recent and the pre-history cases
	last, err := seq.Get(n - 1)
	if err != nil {
		return nil, err
	}
	if last.Ordinal <= ordinal {
		return last.Value, nil
	}
	first, err := seq.Get(0)
	if err != nil {
		return nil, err
	}
	if first.Ordinal > ordinal {
		return new(big.Int), nil
	}

	// binary search for the greatest entry with Ordinal <= ordinal
	lo, hi := uint64(0), n-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		cp, err := seq.Get(mid)
		if err != nil {
			return nil, err
		}
		if cp.Ordinal <= ordinal {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	cp, err := seq.Get(lo)
	if err != nil {
		return nil, err
	}
	return cp.Value, nil
}

// Top returns the most recent checkpoint's value, or zero if the sequence is empty.
func (s *Store) Top(key lock.Address) (*big.Int, error) {
	seq := s.sequence(key)
	n, err := seq.Len()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return new(big.Int), nil
	}
	cp, err := seq.Get(n - 1)
	if err != nil {
		return nil, err
	}
	return cp.Value, nil
}
