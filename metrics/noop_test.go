// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopDefault(t *testing.T) {
	// the default implementation is a no-op: meters are usable, handler is nil
	assert.Nil(t, HTTPHandler())

	assert.NotPanics(t, func() {
		Counter("count").Add(1)
		CounterVec("countVec", []string{"outcome"}).AddWithLabel(1, map[string]string{"outcome": "ok"})
		Gauge("gauge").Set(100)
		Gauge("gauge").Add(-1)
		Histogram("histogram", BucketHTTPReqs).Observe(5)
	})
}

func TestLazyLoad(t *testing.T) {
	calls := 0
	load := LazyLoad(func() int {
		calls++
		return 42
	})

	assert.Equal(t, 42, load())
	assert.Equal(t, 42, load())
	assert.Equal(t, 1, calls)
}
