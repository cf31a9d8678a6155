package ownership

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

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

func newTestEngine(t *testing.T) (*Engine, *events.Recorder) {
	t.Helper()
	engine := NewEngine()
	engine.SetState(state.NewManager(storage.NewMemDB()))
	engine.SetAllocator(ids.NewSequence(t.Name()))
	rec := &events.Recorder{}
	engine.SetEmitter(rec)
	return engine, rec
}

func mustRegister(t *testing.T, e *Engine, owner types.Principal, price int64) *Property {
	t.Helper()
	prop, err := e.Register(owner, big.NewInt(price), owner)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return prop
}

func TestRegisterRequiresOwner(t *testing.T) {
	engine, rec := newTestEngine(t)
	owner := newTestAddress(0x01)
	if _, err := engine.Register(owner, big.NewInt(10), newTestAddress(0x02)); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if len(rec.Events()) != 0 {
		t.Fatalf("failed register must not emit")
	}
	prop := mustRegister(t, engine, owner, 1000)
	if prop.ForSale {
		t.Fatalf("new property must not be for sale")
	}
	hist, err := engine.History(prop.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if hist.Len() != 0 {
		t.Fatalf("new property history must be empty")
	}
}

func TestListForSale(t *testing.T) {
	engine, rec := newTestEngine(t)
	owner := newTestAddress(0x01)
	prop := mustRegister(t, engine, owner, 0)
	rec.Reset()

	if _, err := engine.ListForSale(prop.ID, big.NewInt(750), newTestAddress(0x09)); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	listed, err := engine.ListForSale(prop.ID, big.NewInt(750), owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !listed.ForSale || listed.Price.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("unexpected listing %+v", listed)
	}
	payloads := rec.Payloads()
	if len(payloads) != 1 || payloads[0].Type != EventTypePropertyListed || payloads[0].Attr("dynamic") != "false" {
		t.Fatalf("unexpected events %+v", payloads)
	}
	if _, err := engine.ListForSale(prop.ID, big.NewInt(-1), owner); !errors.Is(err, common.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestListWithDynamicPricing(t *testing.T) {
	engine, rec := newTestEngine(t)
	owner := newTestAddress(0x01)
	prop := mustRegister(t, engine, owner, 1000)

	listed, err := engine.ListWithDynamicPricing(prop.ID, pricing.Factor{Demand: 150, BasePrice: big.NewInt(500)}, owner)
	if err != nil {
		t.Fatalf("dynamic list: %v", err)
	}
	if listed.Price.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("high demand price: got %s want 1000", listed.Price)
	}
	listed, err = engine.ListWithDynamicPricing(prop.ID, pricing.Factor{Demand: 50, BasePrice: big.NewInt(500)}, owner)
	if err != nil {
		t.Fatalf("dynamic list: %v", err)
	}
	if listed.Price.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("low demand price: got %s want 500", listed.Price)
	}
	if last := rec.Payloads()[len(rec.Payloads())-1]; last.Attr("dynamic") != "true" {
		t.Fatalf("dynamic listing flag missing: %+v", last)
	}

	engine.SetPolicy(pricing.Policy{DemandThreshold: 10, DemandMultiplier: 3})
	listed, err = engine.ListWithDynamicPricing(prop.ID, pricing.Factor{Demand: 50, BasePrice: big.NewInt(500)}, owner)
	if err != nil {
		t.Fatalf("dynamic list: %v", err)
	}
	if listed.Price.Cmp(big.NewInt(1500)) != 0 {
		t.Fatalf("custom policy price: got %s want 1500", listed.Price)
	}
}

func TestTransferAppendsHistory(t *testing.T) {
	engine, rec := newTestEngine(t)
	alice := newTestAddress(0x0A)
	bob := newTestAddress(0x0B)
	carol := newTestAddress(0x0C)
	prop := mustRegister(t, engine, alice, 100)
	rec.Reset()

	if _, _, err := engine.Transfer(prop.ID, bob, bob); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	stored, _ := engine.Property(prop.ID)
	if stored.Owner != alice {
		t.Fatalf("failed transfer must not change owner")
	}
	if len(rec.Events()) != 0 {
		t.Fatalf("failed transfer must not emit")
	}

	updated, hist, err := engine.Transfer(prop.ID, bob, alice)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if updated.Owner != bob || hist.Len() != 1 || hist.PreviousOwners[0] != alice {
		t.Fatalf("unexpected transfer result owner=%s history=%v", updated.Owner.Hex(), hist.PreviousOwners)
	}
	if _, _, err := engine.Transfer(prop.ID, carol, bob); err != nil {
		t.Fatalf("second transfer: %v", err)
	}
	hist, err = engine.History(prop.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if hist.Len() != 2 || hist.PreviousOwners[0] != alice || hist.PreviousOwners[1] != bob {
		t.Fatalf("history out of order: %v", hist.PreviousOwners)
	}
	payloads := rec.Payloads()
	if len(payloads) != 2 {
		t.Fatalf("expected two transfer events, got %d", len(payloads))
	}
	if payloads[1].Attr("from") != bob.Hex() || payloads[1].Attr("to") != carol.Hex() || payloads[1].Attr("historyLength") != "2" {
		t.Fatalf("unexpected transfer payload %+v", payloads[1].Attributes)
	}
}

func TestTransferKeepsListing(t *testing.T) {
	engine, _ := newTestEngine(t)
	alice := newTestAddress(0x0A)
	prop := mustRegister(t, engine, alice, 100)
	if _, err := engine.ListForSale(prop.ID, big.NewInt(300), alice); err != nil {
		t.Fatalf("list: %v", err)
	}
	updated, _, err := engine.Transfer(prop.ID, newTestAddress(0x0B), alice)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !updated.ForSale || updated.Price.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("transfer must not touch listing fields: %+v", updated)
	}
}

func TestMissingProperty(t *testing.T) {
	engine, _ := newTestEngine(t)
	var missing types.ID
	missing[0] = 0xFF
	if _, _, err := engine.Transfer(missing, newTestAddress(1), newTestAddress(1)); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := engine.History(missing); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPausedModuleRejectsMutations(t *testing.T) {
	engine, _ := newTestEngine(t)
	owner := newTestAddress(0x01)
	prop := mustRegister(t, engine, owner, 1)
	engine.SetPauses(common.NewStaticPauses([]string{ModuleName}))
	if _, err := engine.ListForSale(prop.ID, big.NewInt(5), owner); !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("expected paused, got %v", err)
	}
	if _, err := engine.Property(prop.ID); err != nil {
		t.Fatalf("reads must stay available while paused: %v", err)
	}
}
