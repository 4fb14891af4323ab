// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"github.com/lockforge/lockledger/lock"
	"github.com/lockforge/lockledger/state"
)

// Context binds typed slot accessors to the storage space of one ledger address.
type Context struct {
	address lock.Address
	state   *state.State
}

func NewContext(address lock.Address, state *state.State) *Context {
	return &Context{
		address: address,
		state:   state,
	}
}

func (c *Context) Address() lock.Address {
	return c.address
}

func (c *Context) State() *state.State {
	return c.state
}
