package ownership

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

// ModuleName identifies the ownership ledger for pause guards and metrics.
const ModuleName = "ownership"

var errNilState = errors.New("ownership engine: state not configured")

type engineState interface {
	View(func(state.KV) error) error
	Commit(func(state.KV) error, func()) error
}

// Engine owns Property records and their ownership histories. Listing
// operations read the pricing policy; every mutation is owner-gated.
type Engine struct {
	state   engineState
	emitter events.Emitter
	ids     ids.Allocator
	pauses  common.PauseView
	policy  pricing.Policy
}

// NewEngine creates an ownership engine with a no-op emitter, random
// identifiers and the reference pricing policy.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		ids:     ids.UUIDAllocator{},
		policy:  pricing.DefaultPolicy(),
	}
}

// SetState configures the state backend used by the engine.
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

// SetAllocator overrides the identifier allocator.
func (e *Engine) SetAllocator(alloc ids.Allocator) {
	if alloc == nil {
		e.ids = ids.UUIDAllocator{}
		return
	}
	e.ids = alloc
}

func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetPolicy replaces the dynamic pricing policy.
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

func loadProperty(kv state.KV, id types.ID) (*Property, error) {
	var p Property
	ok, err := kv.KVGet(propertyKey(id), &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("ownership: property %s: %w", id.Hex(), common.ErrNotFound)
	}
	return p.Clone(), nil
}

func loadHistory(kv state.KV, id types.ID) (*History, error) {
	var h History
	ok, err := kv.KVGet(historyKey(id), &h)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &History{PropertyID: id, PreviousOwners: []types.Principal{}}, nil
	}
	return h.Clone(), nil
}

// Register creates a property owned by owner together with its empty
// ownership history. Only the owner may register their own property.
func (e *Engine) Register(owner types.Principal, price *big.Int, caller types.Principal) (*Property, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if caller != owner {
		return nil, fmt.Errorf("ownership: register: %w", common.ErrUnauthorized)
	}
	if err := pricing.CheckAmount(price); err != nil {
		return nil, err
	}
	id, err := e.ids.NewID(ModuleName)
	if err != nil {
		return nil, fmt.Errorf("ownership: allocate id: %w", err)
	}
	prop := (&Property{ID: id, Owner: owner, Price: price}).Clone()
	err = e.state.Commit(func(kv state.KV) error {
		if ok, err := kv.KVGet(propertyKey(id), nil); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("ownership: property %s already exists", id.Hex())
		}
		if err := kv.KVPut(propertyKey(id), prop); err != nil {
			return err
		}
		return kv.KVPut(historyKey(id), &History{PropertyID: id, PreviousOwners: []types.Principal{}})
	}, func() { e.emit(NewRegisteredEvent(prop)) })
	if err != nil {
		return nil, err
	}
	return prop.Clone(), nil
}

// ListForSale marks the property for sale at price. Only the owner may list.
func (e *Engine) ListForSale(id types.ID, price *big.Int, caller types.Principal) (*Property, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := pricing.CheckAmount(price); err != nil {
		return nil, err
	}
	return e.list(id, caller, false, func() (*big.Int, error) { return price, nil })
}

// ListWithDynamicPricing lists the property at the price derived from factor
// under the engine's pricing policy.
func (e *Engine) ListWithDynamicPricing(id types.ID, factor pricing.Factor, caller types.Principal) (*Property, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.list(id, caller, true, func() (*big.Int, error) { return e.policy.ListingPrice(factor) })
}

func (e *Engine) list(id types.ID, caller types.Principal, dynamic bool, priceFn func() (*big.Int, error)) (*Property, error) {
	var updated *Property
	err := e.state.Commit(func(kv state.KV) error {
		prop, err := loadProperty(kv, id)
		if err != nil {
			return err
		}
		if caller != prop.Owner {
			return fmt.Errorf("ownership: list: %w", common.ErrUnauthorized)
		}
		price, err := priceFn()
		if err != nil {
			return err
		}
		if price == nil {
			price = big.NewInt(0)
		}
		prop.Price = new(big.Int).Set(price)
		prop.ForSale = true
		updated = prop
		return kv.KVPut(propertyKey(id), prop)
	}, func() { e.emit(NewListedEvent(updated, dynamic)) })
	if err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Delist withdraws the property from sale. The last price is retained.
func (e *Engine) Delist(id types.ID, caller types.Principal) (*Property, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var updated *Property
	err := e.state.Commit(func(kv state.KV) error {
		prop, err := loadProperty(kv, id)
		if err != nil {
			return err
		}
		if caller != prop.Owner {
			return fmt.Errorf("ownership: delist: %w", common.ErrUnauthorized)
		}
		prop.ForSale = false
		updated = prop
		return kv.KVPut(propertyKey(id), prop)
	}, func() { e.emit(NewDelistedEvent(updated)) })
	if err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Transfer hands the property to newOwner. The current owner is appended to
// the history and the owner field replaced in the same commit.
func (e *Engine) Transfer(id types.ID, newOwner types.Principal, caller types.Principal) (*Property, *History, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	var (
		updated  *Property
		history  *History
		previous types.Principal
	)
	err := e.state.Commit(func(kv state.KV) error {
		prop, err := loadProperty(kv, id)
		if err != nil {
			return err
		}
		if caller != prop.Owner {
			return fmt.Errorf("ownership: transfer: %w", common.ErrUnauthorized)
		}
		hist, err := loadHistory(kv, id)
		if err != nil {
			return err
		}
		previous = prop.Owner
		hist.PreviousOwners = append(hist.PreviousOwners, previous)
		prop.Owner = newOwner
		if err := kv.KVPut(historyKey(id), hist); err != nil {
			return err
		}
		if err := kv.KVPut(propertyKey(id), prop); err != nil {
			return err
		}
		updated, history = prop, hist
		return nil
	}, func() { e.emit(NewTransferredEvent(updated, previous, history)) })
	if err != nil {
		return nil, nil, err
	}
	return updated.Clone(), history.Clone(), nil
}

// Property returns the stored property.
func (e *Engine) Property(id types.ID) (*Property, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var prop *Property
	err := e.state.View(func(kv state.KV) error {
		var err error
		prop, err = loadProperty(kv, id)
		return err
	})
	return prop, err
}

// History returns the ownership history of the property, oldest owner first.
func (e *Engine) History(id types.ID) (*History, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var hist *History
	err := e.state.View(func(kv state.KV) error {
		if _, err := loadProperty(kv, id); err != nil {
			return err
		}
		var err error
		hist, err = loadHistory(kv, id)
		return err
	})
	return hist, err
}
