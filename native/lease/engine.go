package lease

import (
	"errors"
	"fmt"
	"math/big"

	"propchain/core/events"
	"propchain/core/ids"
	"propchain/core/state"
	"propchain/core/types"
	"propchain/native/common"
	"propchain/native/pricing"
)

// ModuleName identifies the lease manager for pause guards and metrics.
const ModuleName = "lease"

var errNilState = errors.New("lease engine: state not configured")

type engineState interface {
	View(func(state.KV) error) error
	Commit(func(state.KV) error, func()) error
}

// Engine drives the rental agreement lifecycle:
//
//	Active -> Active (renewed / discounted / penalized) -> Terminated
//
// Terminated agreements cannot be renewed.
type Engine struct {
	state   engineState
	emitter events.Emitter
	ids     ids.Allocator
	pauses  common.PauseView
	policy  pricing.Policy
}

// NewEngine creates a lease engine with a no-op emitter, random identifiers
// and the reference discount/penalty policy.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		ids:     ids.UUIDAllocator{},
		policy:  pricing.DefaultPolicy(),
	}
}

func (e *Engine) SetState(s engineState) { e.state = s }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetAllocator(alloc ids.Allocator) {
	if alloc == nil {
		e.ids = ids.UUIDAllocator{}
		return
	}
	e.ids = alloc
}

func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetPolicy replaces the discount and late penalty policy.
func (e *Engine) SetPolicy(p pricing.Policy) { e.policy = p }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(events.Envelope{Payload: event})
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return common.Guard(e.pauses, ModuleName)
}

func loadAgreement(kv state.KV, id types.ID) (*Agreement, error) {
	var a Agreement
	ok, err := kv.KVGet(agreementKey(id), &a)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lease: agreement %s: %w", id.Hex(), common.ErrNotFound)
	}
	return a.Clone(), nil
}

// mutate loads the agreement, applies fn and stores the result when fn
// reports a change. For changed agreements the event built by notify is
// emitted before the state lock is released.
func (e *Engine) mutate(id types.ID, fn func(*Agreement) (bool, error), notify func(*Agreement) *types.Event) (*Agreement, error) {
	var (
		updated *Agreement
		changed bool
	)
	err := e.state.Commit(func(kv state.KV) error {
		agreement, err := loadAgreement(kv, id)
		if err != nil {
			return err
		}
		changed, err = fn(agreement)
		if err != nil {
			return err
		}
		updated = agreement
		if !changed {
			return nil
		}
		return kv.KVPut(agreementKey(id), agreement)
	}, func() {
		if changed {
			e.emit(notify(updated))
		}
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Create opens an active agreement owned by caller.
func (e *Engine) Create(propertyID types.ID, tenant types.Principal, rent *big.Int, dueDate uint64, caller types.Principal) (*Agreement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := pricing.CheckAmount(rent); err != nil {
		return nil, err
	}
	id, err := e.ids.NewID(ModuleName)
	if err != nil {
		return nil, fmt.Errorf("lease: allocate id: %w", err)
	}
	agreement := (&Agreement{
		ID:         id,
		PropertyID: propertyID,
		Tenant:     tenant,
		Owner:      caller,
		RentAmount: rent,
		DueDate:    dueDate,
		Active:     true,
	}).Clone()
	err = e.state.Commit(func(kv state.KV) error {
		if ok, err := kv.KVGet(agreementKey(id), nil); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("lease: agreement %s already exists", id.Hex())
		}
		return kv.KVPut(agreementKey(id), agreement)
	}, func() { e.emit(NewCreatedEvent(agreement)) })
	if err != nil {
		return nil, err
	}
	return agreement.Clone(), nil
}

// ApplyDiscount reduces the rent by the reputation discount. Anyone may apply
// it. Each call compounds on the current rent; a zero discount is a no-op.
func (e *Engine) ApplyDiscount(id types.ID, rep pricing.Reputation) (*Agreement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	percent := e.policy.Discount(rep)
	updated, err := e.mutate(id, func(a *Agreement) (bool, error) {
		if percent == 0 {
			return false, nil
		}
		rent, err := pricing.Decrease(a.RentAmount, percent)
		if err != nil {
			return false, fmt.Errorf("lease: apply discount: %w", err)
		}
		if rent.Cmp(a.RentAmount) == 0 {
			return false, nil
		}
		a.RentAmount = rent
		return true, nil
	}, func(a *Agreement) *types.Event { return NewDiscountedEvent(a, percent) })
	if err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// ApplyLatePenalty raises the rent by the late penalty when currentDate is
// past the due date. On or before the due date nothing changes and nothing
// is emitted.
func (e *Engine) ApplyLatePenalty(id types.ID, currentDate uint64) (*Agreement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	updated, err := e.mutate(id, func(a *Agreement) (bool, error) {
		if currentDate <= a.DueDate {
			return false, nil
		}
		rent, err := pricing.Increase(a.RentAmount, e.policy.LatePenaltyPercent)
		if err != nil {
			return false, fmt.Errorf("lease: apply late penalty: %w", err)
		}
		a.RentAmount = rent
		return true, nil
	}, func(a *Agreement) *types.Event { return NewPenalizedEvent(a, currentDate) })
	if err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Renew overwrites the due date and rent of an active agreement. The active
// check runs before authorization, so a terminated agreement always reports
// ErrAgreementNotActive.
func (e *Engine) Renew(id types.ID, newDueDate uint64, newRent *big.Int, caller types.Principal) (*Agreement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := pricing.CheckAmount(newRent); err != nil {
		return nil, err
	}
	updated, err := e.mutate(id, func(a *Agreement) (bool, error) {
		if !a.Active {
			return false, fmt.Errorf("lease: renew: %w", common.ErrAgreementNotActive)
		}
		if !a.IsParty(caller) {
			return false, fmt.Errorf("lease: renew: %w", common.ErrUnauthorized)
		}
		a.DueDate = newDueDate
		if newRent == nil {
			a.RentAmount = big.NewInt(0)
		} else {
			a.RentAmount = new(big.Int).Set(newRent)
		}
		a.Active = true
		return true, nil
	}, func(a *Agreement) *types.Event { return NewRenewedEvent(a, caller) })
	if err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Terminate deactivates the agreement. Either party may terminate. A repeat
// termination succeeds and emits another notification.
func (e *Engine) Terminate(id types.ID, reason string, caller types.Principal) (*Agreement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	updated, err := e.mutate(id, func(a *Agreement) (bool, error) {
		if !a.IsParty(caller) {
			return false, fmt.Errorf("lease: terminate: %w", common.ErrUnauthorized)
		}
		a.Active = false
		return true, nil
	}, func(a *Agreement) *types.Event { return NewTerminatedEvent(a, caller, reason, true) })
	if err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Agreement returns the stored agreement.
func (e *Engine) Agreement(id types.ID) (*Agreement, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var agreement *Agreement
	err := e.state.View(func(kv state.KV) error {
		var err error
		agreement, err = loadAgreement(kv, id)
		return err
	})
	return agreement, err
}
