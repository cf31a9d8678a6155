package bank

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"propchain/core/state"
	"propchain/core/types"
	"propchain/native/common"
	"propchain/storage"
)

func newTestAddress(fill byte) types.Principal {
	var addr types.Principal
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func TestDepositAndMove(t *testing.T) {
	ledger := NewLedger(state.NewManager(storage.NewMemDB()))
	alice, bob := newTestAddress(0x0A), newTestAddress(0x0B)

	require.NoError(t, ledger.Deposit(alice, big.NewInt(500)))
	require.NoError(t, ledger.Move(big.NewInt(200), alice, bob))

	aliceBal, err := ledger.Balance(alice)
	require.NoError(t, err)
	require.Equal(t, "300", aliceBal.String())
	bobBal, err := ledger.Balance(bob)
	require.NoError(t, err)
	require.Equal(t, "200", bobBal.String())
}

func TestMoveInsufficientFunds(t *testing.T) {
	ledger := NewLedger(state.NewManager(storage.NewMemDB()))
	alice, bob := newTestAddress(0x0A), newTestAddress(0x0B)
	require.NoError(t, ledger.Deposit(alice, big.NewInt(50)))

	err := ledger.Move(big.NewInt(51), alice, bob)
	require.ErrorIs(t, err, common.ErrInsufficientFunds)

	aliceBal, err := ledger.Balance(alice)
	require.NoError(t, err)
	require.Equal(t, "50", aliceBal.String())
	bobBal, err := ledger.Balance(bob)
	require.NoError(t, err)
	require.Equal(t, "0", bobBal.String())
}

func TestDepositRejectsNegative(t *testing.T) {
	ledger := NewLedger(state.NewManager(storage.NewMemDB()))
	require.ErrorIs(t, ledger.Deposit(newTestAddress(1), big.NewInt(-1)), common.ErrInvalidAmount)
}
