// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package token

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/lockforge/lockledger/lock"
	"github.com/lockforge/lockledger/state"
	"github.com/lockforge/lockledger/storage"
)

var (
	slotBalances    = lock.BytesToBytes32([]byte("balances"))
	slotAllowances  = lock.BytesToBytes32([]byte("allowances"))
	slotTotalSupply = lock.BytesToBytes32([]byte("total-supply"))

	ErrInsufficientBalance   = errors.New("insufficient token balance")
	ErrInsufficientAllowance = errors.New("insufficient token allowance")
)

// pairKey keys an allowance by (owner, spender).
type pairKey struct {
	owner, spender lock.Address
}

func (k pairKey) Bytes() []byte {
	return append(k.owner.Bytes(), k.spender.Bytes()...)
}

// Token is a state-backed fungible token with standard transfer/approval
// semantics. Each token instance owns the storage space of its own address.
type Token struct {
	addr lock.Address

	balances    *storage.Mapping[lock.Address, *big.Int]
	allowances  *storage.Mapping[pairKey, *big.Int]
	totalSupply *storage.Uint256
}

// New creates a token bound to the given address within state.
func New(addr lock.Address, st *state.State) *Token {
	sctx := storage.NewContext(addr, st)
	return &Token{
		addr:        addr,
		balances:    storage.NewMapping[lock.Address, *big.Int](sctx, slotBalances),
		allowances:  storage.NewMapping[pairKey, *big.Int](sctx, slotAllowances),
		totalSupply: storage.NewUint256(sctx, slotTotalSupply),
	}
}

// Address returns the token's own address.
func (t *Token) Address() lock.Address {
	return t.addr
}

// TotalSupply returns the minted supply.
func (t *Token) TotalSupply() (*big.Int, error) {
	return t.totalSupply.Get()
}

// BalanceOf returns the balance of an account.
func (t *Token) BalanceOf(account lock.Address) (*big.Int, error) {
	b, err := t.balances.Get(account)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get balance")
	}
	if b == nil {
		return new(big.Int), nil
	}
	return b, nil
}

// Mint creates amount tokens on the account.
func (t *Token) Mint(account lock.Address, amount *big.Int) error {
	b, err := t.BalanceOf(account)
	if err != nil {
		return err
	}
	if err := t.balances.Set(account, new(big.Int).Add(b, amount)); err != nil {
		return errors.Wrap(err, "failed to set balance")
	}
	return t.totalSupply.Add(amount)
}

// Transfer moves amount from one account to another.
func (t *Token) Transfer(from, to lock.Address, amount *big.Int) error {
	fromBalance, err := t.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := t.balances.Set(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return errors.Wrap(err, "failed to set balance")
	}
	toBalance, err := t.BalanceOf(to)
	if err != nil {
		return err
	}
	return t.balances.Set(to, new(big.Int).Add(toBalance, amount))
}

// Approve lets spender move up to amount from owner's balance.
func (t *Token) Approve(owner, spender lock.Address, amount *big.Int) error {
	return t.allowances.Set(pairKey{owner, spender}, new(big.Int).Set(amount))
}

// Allowance returns the remaining approval of (owner, spender).
func (t *Token) Allowance(owner, spender lock.Address) (*big.Int, error) {
	a, err := t.allowances.Get(pairKey{owner, spender})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get allowance")
	}
	if a == nil {
		return new(big.Int), nil
	}
	return a, nil
}

// TransferFrom moves amount from `from` to `to`, spending spender's allowance.
func (t *Token) TransferFrom(spender, from, to lock.Address, amount *big.Int) error {
	allowance, err := t.Allowance(from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := t.allowances.Set(pairKey{from, spender}, new(big.Int).Sub(allowance, amount)); err != nil {
		return errors.Wrap(err, "failed to set allowance")
	}
	return t.Transfer(from, to, amount)
}
