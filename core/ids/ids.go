// Package ids provides identifier allocation for newly created records.
package ids

import (
	"encoding/binary"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"propchain/core/types"
)

// Allocator hands out fresh record identifiers. The namespace separates id
// spaces per record kind (e.g. "lease", "escrow").
type Allocator interface {
	NewID(namespace string) (types.ID, error)
}

// UUIDAllocator derives identifiers from random v4 UUIDs hashed together with
// the namespace.
type UUIDAllocator struct{}

func (UUIDAllocator) NewID(namespace string) (types.ID, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return types.ID{}, err
	}
	return types.ID(ethcrypto.Keccak256Hash([]byte(namespace), u[:])), nil
}

// Sequence is a deterministic allocator: keccak256(seed, namespace, counter).
// Useful for tests and replayable fixtures.
type Sequence struct {
	mu      sync.Mutex
	seed    []byte
	counter uint64
}

// NewSequence creates a deterministic allocator seeded with seed.
func NewSequence(seed string) *Sequence {
	return &Sequence{seed: []byte(seed)}
}

func (s *Sequence) NewID(namespace string) (types.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], s.counter)
	return types.ID(ethcrypto.Keccak256Hash(s.seed, []byte(namespace), buf[:])), nil
}
