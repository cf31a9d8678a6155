package observability

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"propchain/core/events"
	"propchain/core/types"
	"propchain/native/common"
)

func TestReasonLabels(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("lease: renew: %w", common.ErrUnauthorized), "unauthorized"},
		{fmt.Errorf("verification: %w", common.ErrVerificationFailed), "verification_failed"},
		{fmt.Errorf("escrow: %w", common.ErrFundsAlreadyReleased), "funds_already_released"},
		{fmt.Errorf("boom"), "internal"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Reason(tc.err), tc.err.Error())
	}
	require.Equal(t, "", Reason(nil))
}

func TestMarketplaceObserve(t *testing.T) {
	m := Marketplace()
	ok := m.OperationsVec().WithLabelValues("lease", "test_observe", "success")
	failed := m.OperationsVec().WithLabelValues("lease", "test_observe", "error")
	paused := m.FailuresVec().WithLabelValues("lease", "module_paused")
	beforeOK, beforeFailed, beforePaused := testutil.ToFloat64(ok), testutil.ToFloat64(failed), testutil.ToFloat64(paused)

	m.Observe("lease", "test_observe", time.Millisecond, nil)
	m.Observe("lease", "test_observe", time.Millisecond, common.ErrModulePaused)

	require.Equal(t, beforeOK+1, testutil.ToFloat64(ok))
	require.Equal(t, beforeFailed+1, testutil.ToFloat64(failed))
	require.Equal(t, beforePaused+1, testutil.ToFloat64(paused))
}

func TestEventMetricsTracksEscrowValue(t *testing.T) {
	m := Events()
	counter := m.EmittedVec().WithLabelValues("escrow.initiated")
	before := testutil.ToFloat64(counter)
	lockedBefore := testutil.ToFloat64(m.EscrowLockedGauge())

	m.Emit(events.Envelope{Payload: &types.Event{Type: "escrow.initiated", Attributes: map[string]string{"amount": "250"}}})
	require.Equal(t, before+1, testutil.ToFloat64(counter))
	require.Equal(t, lockedBefore+250, testutil.ToFloat64(m.EscrowLockedGauge()))

	m.Emit(events.Envelope{Payload: &types.Event{Type: "escrow.released", Attributes: map[string]string{"amount": "250"}}})
	require.Equal(t, lockedBefore, testutil.ToFloat64(m.EscrowLockedGauge()))
}
