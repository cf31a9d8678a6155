package state

import (
	"errors"
	"fmt"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"propchain/storage"
)

// KV is the record-level view handed to engines inside View and Update.
type KV interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Manager serialises every state mutation behind a single writer lock and
// commits each Update as one storage batch, so no reader ever observes a
// partially applied operation.
type Manager struct {
	mu sync.RWMutex
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var errNilManager = errors.New("state: manager not configured")

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// View runs fn against the committed state. Writes attempted through the view
// are rejected.
func (m *Manager) View(fn func(KV) error) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&readView{db: m.db})
}

// Update runs fn inside a write transaction. When fn returns nil every staged
// write is committed atomically; any error discards them all.
func (m *Manager) Update(fn func(KV) error) error {
	return m.Commit(fn, nil)
}

// Commit is Update followed by onCommit, which runs after the batch is
// written and before the writer lock is released. Work done in onCommit is
// therefore ordered exactly like the commits. onCommit is skipped when fn or
// the write fails, and it must not call back into the manager.
func (m *Manager) Commit(fn func(KV) error, onCommit func()) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &txView{readView: readView{db: m.db}, staged: make(map[string][]byte), deleted: make(map[string]struct{})}
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.staged) > 0 || len(tx.deleted) > 0 {
		batch := m.db.NewBatch()
		for key, value := range tx.staged {
			batch.Put([]byte(key), value)
		}
		for key := range tx.deleted {
			batch.Delete([]byte(key))
		}
		if err := batch.Write(); err != nil {
			return fmt.Errorf("state: commit: %w", err)
		}
	}
	if onCommit != nil {
		onCommit()
	}
	return nil
}

type readView struct {
	db storage.Database
}

func (v *readView) raw(hashed []byte) ([]byte, bool, error) {
	data, err := v.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, len(data) > 0, nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (v *readView) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := v.raw(kvKey(key))
	if err != nil || !ok {
		return false, err
	}
	return decode(data, out)
}

func (v *readView) KVPut([]byte, interface{}) error {
	return fmt.Errorf("kv: write in read-only view")
}

func (v *readView) KVDelete([]byte) error {
	return fmt.Errorf("kv: write in read-only view")
}

type txView struct {
	readView
	staged  map[string][]byte
	deleted map[string]struct{}
}

func (t *txView) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	hashed := string(kvKey(key))
	if _, gone := t.deleted[hashed]; gone {
		return false, nil
	}
	if data, ok := t.staged[hashed]; ok {
		return decode(data, out)
	}
	data, ok, err := t.raw([]byte(hashed))
	if err != nil || !ok {
		return false, err
	}
	return decode(data, out)
}

// KVPut stages the RLP encoding of value under the keccak256 hash of key.
func (t *txView) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	hashed := string(kvKey(key))
	delete(t.deleted, hashed)
	t.staged[hashed] = encoded
	return nil
}

func (t *txView) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := string(kvKey(key))
	delete(t.staged, hashed)
	t.deleted[hashed] = struct{}{}
	return nil
}

func decode(data []byte, out interface{}) (bool, error) {
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}
