// Package bank is the fund custody primitive: per-principal balances kept in
// marketplace state. Escrow moves funds through it inside its own state
// update, so custody and escrow records commit together.
package bank

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"propchain/core/state"
	"propchain/core/types"
	"propchain/native/common"
)

var errNilState = errors.New("bank: state not configured")

type ledgerState interface {
	View(func(state.KV) error) error
	Update(func(state.KV) error) error
}

type storedBalance struct {
	Amount *big.Int
}

var balancePrefix = []byte("bank/balance/")

func balanceKey(addr types.Principal) []byte {
	return append(append([]byte{}, balancePrefix...), addr[:]...)
}

// Ledger tracks balances for principals and the escrow vault.
type Ledger struct {
	state ledgerState
}

func NewLedger(s ledgerState) *Ledger {
	return &Ledger{state: s}
}

func balanceOf(kv state.KV, addr types.Principal) (*big.Int, error) {
	var stored storedBalance
	ok, err := kv.KVGet(balanceKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok || stored.Amount == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(stored.Amount), nil
}

func putBalance(kv state.KV, addr types.Principal, amount *big.Int) error {
	if _, overflow := uint256.FromBig(amount); overflow {
		return fmt.Errorf("bank: balance: %w", common.ErrArithmeticOverflow)
	}
	return kv.KVPut(balanceKey(addr), &storedBalance{Amount: amount})
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("bank: amount must be non-negative: %w", common.ErrInvalidAmount)
	}
	return nil
}

// Balance returns the balance held by addr.
func (l *Ledger) Balance(addr types.Principal) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	var out *big.Int
	err := l.state.View(func(kv state.KV) error {
		var err error
		out, err = balanceOf(kv, addr)
		return err
	})
	return out, err
}

// Deposit credits addr with amount of externally sourced value.
func (l *Ledger) Deposit(addr types.Principal, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	return l.state.Update(func(kv state.KV) error {
		current, err := balanceOf(kv, addr)
		if err != nil {
			return err
		}
		return putBalance(kv, addr, current.Add(current, amount))
	})
}

// Transfer moves amount from one principal to another using the caller's
// state view. It fails with ErrInsufficientFunds when from cannot cover the
// amount.
func (l *Ledger) Transfer(kv state.KV, amount *big.Int, from, to types.Principal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	fromBal, err := balanceOf(kv, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("bank: %s holds %s, needs %s: %w", from.Hex(), fromBal, amount, common.ErrInsufficientFunds)
	}
	toBal, err := balanceOf(kv, to)
	if err != nil {
		return err
	}
	if err := putBalance(kv, from, fromBal.Sub(fromBal, amount)); err != nil {
		return err
	}
	return putBalance(kv, to, toBal.Add(toBal, amount))
}

// Move is Transfer in its own state update.
func (l *Ledger) Move(amount *big.Int, from, to types.Principal) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	return l.state.Update(func(kv state.KV) error {
		return l.Transfer(kv, amount, from, to)
	})
}
