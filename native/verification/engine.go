package verification

import (
	"errors"
	"fmt"

	"propchain/core/events"
	"propchain/core/ids"
	"propchain/core/state"
	"propchain/core/types"
	"propchain/native/common"
)

// ModuleName identifies the transaction verifier for pause guards and metrics.
const ModuleName = "verification"

var errNilState = errors.New("verification engine: state not configured")

type engineState interface {
	View(func(state.KV) error) error
	Commit(func(state.KV) error, func()) error
}

// Engine owns Transaction records and moves them through
// Unverified -> Verified -> Completed. A single authorized verifier is
// enough to complete a transaction.
type Engine struct {
	state   engineState
	emitter events.Emitter
	ids     ids.Allocator
	pauses  common.PauseView
}

func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		ids:     ids.UUIDAllocator{},
	}
}

func (e *Engine) SetState(s engineState) { e.state = s }

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
	return common.Guard(e.pauses, ModuleName)
}

func loadTransaction(kv state.KV, id types.ID) (*Transaction, error) {
	var t Transaction
	ok, err := kv.KVGet(transactionKey(id), &t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("verification: transaction %s: %w", id.Hex(), common.ErrNotFound)
	}
	return t.Clone(), nil
}

// Register creates a transaction with a fixed verifier set. Duplicate
// verifiers are collapsed, preserving first occurrence order.
func (e *Engine) Register(verifiers []types.Principal) (*Transaction, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if len(verifiers) == 0 {
		return nil, fmt.Errorf("verification: at least one verifier required")
	}
	seen := make(map[types.Principal]struct{}, len(verifiers))
	set := make([]types.Principal, 0, len(verifiers))
	for _, v := range verifiers {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		set = append(set, v)
	}
	id, err := e.ids.NewID(ModuleName)
	if err != nil {
		return nil, fmt.Errorf("verification: allocate id: %w", err)
	}
	tx := &Transaction{ID: id, Verifiers: set}
	err = e.state.Commit(func(kv state.KV) error {
		if ok, err := kv.KVGet(transactionKey(id), nil); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("verification: transaction %s already exists", id.Hex())
		}
		return kv.KVPut(transactionKey(id), tx)
	}, func() { e.emit(NewRegisteredEvent(tx)) })
	if err != nil {
		return nil, err
	}
	return tx.Clone(), nil
}

// Complete records verifier's approval. The first approval from any
// authorized verifier verifies and completes the transaction; later calls
// are no-ops and emit nothing.
func (e *Engine) Complete(id types.ID, verifier, caller types.Principal) (*Transaction, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var (
		updated   *Transaction
		completed bool
	)
	err := e.state.Commit(func(kv state.KV) error {
		tx, err := loadTransaction(kv, id)
		if err != nil {
			return err
		}
		if !tx.IsVerifier(verifier) {
			return fmt.Errorf("verification: complete: %w", common.ErrVerificationFailed)
		}
		updated = tx
		if tx.Completed {
			return nil
		}
		tx.Verified = true
		tx.Completed = true
		completed = true
		return kv.KVPut(transactionKey(id), tx)
	}, func() {
		if completed {
			e.emit(NewCompletedEvent(updated, verifier, caller))
		}
	})
	if err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Transaction returns the stored transaction.
func (e *Engine) Transaction(id types.ID) (*Transaction, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var tx *Transaction
	err := e.state.View(func(kv state.KV) error {
		var err error
		tx, err = loadTransaction(kv, id)
		return err
	})
	return tx, err
}
