// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stackedmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lockforge/lockledger/stackedmap"
)

func M(a ...any) []any {
	return a
}

func TestStackedMap(t *testing.T) {
	src := make(map[string]string)
	src["base"] = "from src"

	sm := stackedmap.New(func(key any) (any, bool, error) {
		v, ok := src[key.(string)]
		return v, ok, nil
	})

	tests := []struct {
		f         func()
		key       string
		expected  []any
		wantDepth int
	}{
		{func() { sm.Push() }, "base", M("from src", true, nil), 1},
		{func() { sm.Put("k1", "v1") }, "k1", M("v1", true, nil), 1},
		{func() { sm.Push() }, "k1", M("v1", true, nil), 2},
		{func() { sm.Put("k1", "v1.1") }, "k1", M("v1.1", true, nil), 2},
		{func() { sm.Pop() }, "k1", M("v1", true, nil), 1},
		{func() { sm.Put("base", "shadowed") }, "base", M("shadowed", true, nil), 1},
		{func() { sm.Pop() }, "base", M("from src", true, nil), 0},
	}

	for _, tt := range tests {
		tt.f()
		assert.Equal(t, tt.wantDepth, sm.Depth())
		assert.Equal(t, tt.expected, M(sm.Get(tt.key)))
	}
}

func TestStackedMapPopTo(t *testing.T) {
	sm := stackedmap.New(func(_ any) (any, bool, error) {
		return nil, false, nil
	})

	for i := 0; i < 10; i++ {
		sm.Push()
		sm.Put("key", i)
	}
	assert.Equal(t, 10, sm.Depth())

	sm.PopTo(3)
	assert.Equal(t, 3, sm.Depth())
	assert.Equal(t, M(2, true, nil), M(sm.Get("key")))
}

func TestJournal(t *testing.T) {
	sm := stackedmap.New(func(_ any) (any, bool, error) {
		return nil, false, nil
	})

	sm.Push()
	sm.Put("a", 1)
	sm.Push()
	sm.Put("b", 2)

	var keys []string
	sm.Journal(func(key, _ any) bool {
		keys = append(keys, key.(string))
		return true
	})
	assert.Equal(t, []string{"a", "b"}, keys)
}
