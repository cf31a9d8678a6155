package escrow

import (
	"fmt"
	"math/big"

	"propchain/core/types"
)

// Escrow captures funds custodied between a buyer and a seller for a
// property sale. Locked flips from true to false exactly once, on release.
type Escrow struct {
	ID         types.ID
	PropertyID types.ID
	Buyer      types.Principal
	Seller     types.Principal
	Amount     *big.Int
	Locked     bool
}

// Clone returns a deep copy of the escrow object so callers can safely mutate
// the copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Amount != nil {
		clone.Amount = new(big.Int).Set(e.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

var escrowPrefix = []byte("escrow/record/")

func escrowKey(id types.ID) []byte {
	return []byte(fmt.Sprintf("%s%x", escrowPrefix, id[:]))
}
