package lease

import (
	"bytes"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"propchain/core/events"
	"propchain/core/ids"
	"propchain/core/state"
	"propchain/core/types"
	"propchain/native/common"
	"propchain/native/pricing"
	"propchain/storage"
)

func newTestAddress(fill byte) types.Principal {
	var addr types.Principal
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

type fixture struct {
	engine   *Engine
	rec      *events.Recorder
	owner    types.Principal
	tenant   types.Principal
	stranger types.Principal
	property types.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine := NewEngine()
	engine.SetState(state.NewManager(storage.NewMemDB()))
	engine.SetAllocator(ids.NewSequence(t.Name()))
	rec := &events.Recorder{}
	engine.SetEmitter(rec)
	var property types.ID
	property[0] = 0x42
	return &fixture{
		engine:   engine,
		rec:      rec,
		owner:    newTestAddress(0x01),
		tenant:   newTestAddress(0x02),
		stranger: newTestAddress(0x03),
		property: property,
	}
}

func (f *fixture) create(t *testing.T, rent int64, due uint64) *Agreement {
	t.Helper()
	agreement, err := f.engine.Create(f.property, f.tenant, big.NewInt(rent), due, f.owner)
	require.NoError(t, err)
	f.rec.Reset()
	return agreement
}

func TestCreateSetsOwnerAndActive(t *testing.T) {
	f := newFixture(t)
	agreement, err := f.engine.Create(f.property, f.tenant, big.NewInt(1000), 10, f.owner)
	require.NoError(t, err)
	require.Equal(t, f.owner, agreement.Owner)
	require.Equal(t, f.tenant, agreement.Tenant)
	require.True(t, agreement.Active)
	require.Equal(t, []string{EventTypeAgreementCreated}, f.rec.Types())

	stored, err := f.engine.Agreement(agreement.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stored.RentAmount.Cmp(big.NewInt(1000)))

	_, err = f.engine.Create(f.property, f.tenant, big.NewInt(-5), 10, f.owner)
	require.ErrorIs(t, err, common.ErrInvalidAmount)
}

func TestDiscountThenPenaltyScenario(t *testing.T) {
	f := newFixture(t)
	agreement := f.create(t, 1000, 10)

	discounted, err := f.engine.ApplyDiscount(agreement.ID, pricing.Reputation{Score: 85})
	require.NoError(t, err)
	require.Equal(t, "900", discounted.RentAmount.String())

	penalized, err := f.engine.ApplyLatePenalty(agreement.ID, 15)
	require.NoError(t, err)
	require.Equal(t, "990", penalized.RentAmount.String())

	require.Equal(t, []string{EventTypeAgreementDiscounted, EventTypeAgreementPenalized}, f.rec.Types())
	require.Equal(t, "10", f.rec.Payloads()[0].Attr("discountPercent"))
}

func TestDiscountCompoundsAndLowScoreIsNoop(t *testing.T) {
	f := newFixture(t)
	agreement := f.create(t, 1000, 10)

	unchanged, err := f.engine.ApplyDiscount(agreement.ID, pricing.Reputation{Score: 80})
	require.NoError(t, err)
	require.Equal(t, "1000", unchanged.RentAmount.String())
	require.Empty(t, f.rec.Events())

	_, err = f.engine.ApplyDiscount(agreement.ID, pricing.Reputation{Score: 90})
	require.NoError(t, err)
	second, err := f.engine.ApplyDiscount(agreement.ID, pricing.Reputation{Score: 90})
	require.NoError(t, err)
	require.Equal(t, "810", second.RentAmount.String())
}

func TestLatePenaltyNoopOnOrBeforeDueDate(t *testing.T) {
	f := newFixture(t)
	agreement := f.create(t, 1000, 10)

	for _, date := range []uint64{0, 9, 10} {
		got, err := f.engine.ApplyLatePenalty(agreement.ID, date)
		require.NoError(t, err)
		require.Equal(t, "1000", got.RentAmount.String(), "date %d", date)
	}
	require.Empty(t, f.rec.Events())

	got, err := f.engine.ApplyLatePenalty(agreement.ID, 11)
	require.NoError(t, err)
	require.Equal(t, "1100", got.RentAmount.String())
}

func TestRenewAuthorization(t *testing.T) {
	f := newFixture(t)
	agreement := f.create(t, 1000, 10)

	_, err := f.engine.Renew(agreement.ID, 40, big.NewInt(1200), f.stranger)
	require.ErrorIs(t, err, common.ErrUnauthorized)

	renewed, err := f.engine.Renew(agreement.ID, 40, big.NewInt(1200), f.tenant)
	require.NoError(t, err)
	require.Equal(t, uint64(40), renewed.DueDate)
	require.Equal(t, "1200", renewed.RentAmount.String())
	require.True(t, renewed.Active)

	_, err = f.engine.Renew(agreement.ID, 70, big.NewInt(1300), f.owner)
	require.NoError(t, err)
	require.Equal(t, []string{EventTypeAgreementRenewed, EventTypeAgreementRenewed}, f.rec.Types())
	require.Equal(t, f.owner.Hex(), f.rec.Payloads()[1].Attr("renewedBy"))
}

func TestRenewTerminatedAgreementFailsForAnyCaller(t *testing.T) {
	f := newFixture(t)
	agreement := f.create(t, 1000, 10)
	_, err := f.engine.Terminate(agreement.ID, "moving out", f.tenant)
	require.NoError(t, err)
	f.rec.Reset()

	for _, caller := range []types.Principal{f.owner, f.tenant, f.stranger} {
		_, err := f.engine.Renew(agreement.ID, 99, big.NewInt(1), caller)
		require.ErrorIs(t, err, common.ErrAgreementNotActive, "caller %s", caller.Hex())
	}
	stored, err := f.engine.Agreement(agreement.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(10), stored.DueDate)
	require.False(t, stored.Active)
	require.Empty(t, f.rec.Events())
}

func TestTerminate(t *testing.T) {
	f := newFixture(t)
	agreement := f.create(t, 1000, 10)

	_, err := f.engine.Terminate(agreement.ID, "no reason", f.stranger)
	require.ErrorIs(t, err, common.ErrUnauthorized)
	require.Empty(t, f.rec.Events())

	terminated, err := f.engine.Terminate(agreement.ID, " lease breach ", f.owner)
	require.NoError(t, err)
	require.False(t, terminated.Active)

	// A repeat termination is accepted and notifies again.
	_, err = f.engine.Terminate(agreement.ID, "again", f.tenant)
	require.NoError(t, err)

	payloads := f.rec.Payloads()
	require.Len(t, payloads, 2)
	first := payloads[0]
	require.Equal(t, EventTypeLeaseTerminated, first.Type)
	require.Equal(t, agreement.ID.Hex(), first.Attr("agreementId"))
	require.Equal(t, f.owner.Hex(), first.Attr("terminatedBy"))
	require.Equal(t, "lease breach", first.Attr("reason"))
	require.Equal(t, "true", first.Attr("success"))
	require.Equal(t, f.tenant.Hex(), payloads[1].Attr("terminatedBy"))
}

func TestPenaltyOverflowLeavesRecordUntouched(t *testing.T) {
	f := newFixture(t)
	maxU256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	agreement, err := f.engine.Create(f.property, f.tenant, maxU256, 1, f.owner)
	require.NoError(t, err)
	f.rec.Reset()

	_, err = f.engine.ApplyLatePenalty(agreement.ID, 2)
	require.True(t, errors.Is(err, common.ErrArithmeticOverflow), "got %v", err)
	stored, err := f.engine.Agreement(agreement.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stored.RentAmount.Cmp(maxU256))
	require.Empty(t, f.rec.Events())
}

func TestMissingAgreement(t *testing.T) {
	f := newFixture(t)
	var missing types.ID
	missing[31] = 1
	_, err := f.engine.Terminate(missing, "", f.owner)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestConcurrentPenaltiesDeliverInApplicationOrder(t *testing.T) {
	f := newFixture(t)
	agreement := f.create(t, 1_000_000, 1)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := f.engine.ApplyLatePenalty(agreement.ID, 5)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	payloads := f.rec.Payloads()
	require.Len(t, payloads, workers)
	prev := big.NewInt(1_000_000)
	for i, payload := range payloads {
		rent, ok := new(big.Int).SetString(payload.Attr("rentAmount"), 10)
		require.True(t, ok)
		require.Equal(t, 1, rent.Cmp(prev), "event %d rent %s delivered after %s", i, rent, prev)
		prev = rent
	}

	stored, err := f.engine.Agreement(agreement.ID)
	require.NoError(t, err)
	require.Equal(t, prev, stored.RentAmount)
}

func TestDiscountOnZeroRentIsNoop(t *testing.T) {
	f := newFixture(t)
	agreement := f.create(t, 0, 10)

	updated, err := f.engine.ApplyDiscount(agreement.ID, pricing.Reputation{Score: 95})
	require.NoError(t, err)
	require.Zero(t, updated.RentAmount.Sign())
	require.Empty(t, f.rec.Events())
}
