package escrow

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

// ModuleName identifies the escrow vault for pause guards and metrics.
const ModuleName = "escrow"

var (
	errNilState   = errors.New("escrow engine: state not configured")
	errNilCustody = errors.New("escrow engine: custody not configured")
	errNilVault   = errors.New("escrow engine: vault address not configured")
)

type engineState interface {
	View(func(state.KV) error) error
	Commit(func(state.KV) error, func()) error
}

// Custody moves value between principals. Transfers run against the state
// view of the enclosing escrow update so funds and escrow records commit
// together; implementations report shortfalls with common.ErrInsufficientFunds.
type Custody interface {
	Transfer(kv state.KV, amount *big.Int, from, to types.Principal) error
}

// Engine custodies funds between buyer and seller. An escrow goes
// Locked -> Released exactly once.
type Engine struct {
	state   engineState
	emitter events.Emitter
	ids     ids.Allocator
	pauses  common.PauseView
	custody Custody
	vault   types.Principal
}

// NewEngine creates an escrow engine with a no-op emitter. Callers must
// configure state, custody and the vault address before use.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		ids:     ids.UUIDAllocator{},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(s engineState) { e.state = s }

// SetCustody configures the fund custody collaborator.
func (e *Engine) SetCustody(c Custody) { e.custody = c }

// SetVault configures the principal that holds custodied funds.
func (e *Engine) SetVault(addr types.Principal) { e.vault = addr }

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
	if e.custody == nil {
		return errNilCustody
	}
	if e.vault == (types.Principal{}) {
		return errNilVault
	}
	return common.Guard(e.pauses, ModuleName)
}

func loadEscrow(kv state.KV, id types.ID) (*Escrow, error) {
	var esc Escrow
	ok, err := kv.KVGet(escrowKey(id), &esc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("escrow: %s: %w", id.Hex(), common.ErrNotFound)
	}
	return esc.Clone(), nil
}

// Initiate moves amount from caller into the vault and records a locked
// escrow for the sale of property from seller to buyer.
func (e *Engine) Initiate(propertyID types.ID, buyer, seller types.Principal, amount *big.Int, caller types.Principal) (*Escrow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := pricing.CheckAmount(amount); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() == 0 {
		return nil, fmt.Errorf("escrow: amount must be positive: %w", common.ErrInvalidAmount)
	}
	id, err := e.ids.NewID(ModuleName)
	if err != nil {
		return nil, fmt.Errorf("escrow: allocate id: %w", err)
	}
	esc := &Escrow{
		ID:         id,
		PropertyID: propertyID,
		Buyer:      buyer,
		Seller:     seller,
		Amount:     new(big.Int).Set(amount),
		Locked:     true,
	}
	err = e.state.Commit(func(kv state.KV) error {
		if ok, err := kv.KVGet(escrowKey(id), nil); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("escrow: %s already exists", id.Hex())
		}
		if err := e.custody.Transfer(kv, esc.Amount, caller, e.vault); err != nil {
			return fmt.Errorf("escrow: initiate: %w", err)
		}
		return kv.KVPut(escrowKey(id), esc)
	}, func() { e.emit(NewInitiatedEvent(esc, caller)) })
	if err != nil {
		return nil, err
	}
	return esc.Clone(), nil
}

// Release pays the full custodied amount to recipient and unlocks the escrow.
// Only the lock state is checked: any caller may release a locked escrow.
func (e *Engine) Release(id types.ID, recipient, caller types.Principal) (*Escrow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var released *Escrow
	err := e.state.Commit(func(kv state.KV) error {
		esc, err := loadEscrow(kv, id)
		if err != nil {
			return err
		}
		if !esc.Locked {
			return fmt.Errorf("escrow: release: %w", common.ErrFundsAlreadyReleased)
		}
		esc.Locked = false
		if err := kv.KVPut(escrowKey(id), esc); err != nil {
			return err
		}
		if err := e.custody.Transfer(kv, esc.Amount, e.vault, recipient); err != nil {
			return fmt.Errorf("escrow: release: %w", err)
		}
		released = esc
		return nil
	}, func() { e.emit(NewReleasedEvent(released, recipient, caller)) })
	if err != nil {
		return nil, err
	}
	return released.Clone(), nil
}

// Escrow returns the stored escrow record.
func (e *Engine) Escrow(id types.ID) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var esc *Escrow
	err := e.state.View(func(kv state.KV) error {
		var err error
		esc, err = loadEscrow(kv, id)
		return err
	})
	return esc, err
}
