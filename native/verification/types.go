package verification

import (
	"fmt"

	"propchain/core/types"
)

// Transaction is a multi-party deal awaiting verifier sign-off. Verified and
// Completed only ever move from false to true, and Completed implies Verified.
type Transaction struct {
	ID        types.ID
	Verifiers []types.Principal
	Verified  bool
	Completed bool
}

func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Verifiers = append([]types.Principal{}, t.Verifiers...)
	return &clone
}

// IsVerifier reports whether p belongs to the authorized verifier set.
func (t *Transaction) IsVerifier(p types.Principal) bool {
	if t == nil {
		return false
	}
	for _, v := range t.Verifiers {
		if v == p {
			return true
		}
	}
	return false
}

var transactionPrefix = []byte("verification/tx/")

func transactionKey(id types.ID) []byte {
	return []byte(fmt.Sprintf("%s%x", transactionPrefix, id[:]))
}
