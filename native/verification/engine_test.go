package verification

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"propchain/core/events"
	"propchain/core/ids"
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

func newTestEngine(t *testing.T) (*Engine, *events.Recorder) {
	t.Helper()
	engine := NewEngine()
	engine.SetState(state.NewManager(storage.NewMemDB()))
	engine.SetAllocator(ids.NewSequence(t.Name()))
	rec := &events.Recorder{}
	engine.SetEmitter(rec)
	return engine, rec
}

func TestRegisterDeduplicatesVerifiers(t *testing.T) {
	engine, rec := newTestEngine(t)
	a, b := newTestAddress(0x0A), newTestAddress(0x0B)
	tx, err := engine.Register([]types.Principal{a, b, a})
	require.NoError(t, err)
	require.Equal(t, []types.Principal{a, b}, tx.Verifiers)
	require.False(t, tx.Verified)
	require.False(t, tx.Completed)
	require.Equal(t, []string{EventTypeTransactionRegistered}, rec.Types())

	_, err = engine.Register(nil)
	require.Error(t, err)
}

func TestCompleteRejectsUnknownVerifier(t *testing.T) {
	engine, rec := newTestEngine(t)
	tx, err := engine.Register([]types.Principal{newTestAddress(0x0A)})
	require.NoError(t, err)
	rec.Reset()

	outsider := newTestAddress(0x0F)
	_, err = engine.Complete(tx.ID, outsider, outsider)
	require.ErrorIs(t, err, common.ErrVerificationFailed)
	require.ErrorIs(t, err, common.ErrUnauthorized)

	stored, err := engine.Transaction(tx.ID)
	require.NoError(t, err)
	require.False(t, stored.Verified)
	require.Empty(t, rec.Events())
}

func TestCompleteIsIdempotent(t *testing.T) {
	engine, rec := newTestEngine(t)
	a, b := newTestAddress(0x0A), newTestAddress(0x0B)
	caller := newTestAddress(0x0C)
	tx, err := engine.Register([]types.Principal{a, b})
	require.NoError(t, err)
	rec.Reset()

	done, err := engine.Complete(tx.ID, a, caller)
	require.NoError(t, err)
	require.True(t, done.Verified)
	require.True(t, done.Completed)

	for _, v := range []types.Principal{a, b} {
		again, err := engine.Complete(tx.ID, v, v)
		require.NoError(t, err)
		require.True(t, again.Verified)
		require.True(t, again.Completed)
	}

	payloads := rec.Payloads()
	require.Len(t, payloads, 1)
	require.Equal(t, EventTypeTransactionCompleted, payloads[0].Type)
	require.Equal(t, a.Hex(), payloads[0].Attr("verifier"))
	require.Equal(t, caller.Hex(), payloads[0].Attr("caller"))
}
