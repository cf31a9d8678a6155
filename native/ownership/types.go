package ownership

import (
	"fmt"
	"math/big"

	"propchain/core/types"
)

// Property is a listed or unlisted real-estate record. Owner is always a
// single principal and changes only through Engine.Transfer.
type Property struct {
	ID      types.ID
	Owner   types.Principal
	Price   *big.Int
	ForSale bool
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (p *Property) Clone() *Property {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Price != nil {
		clone.Price = new(big.Int).Set(p.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// History is the append-only list of previous owners of a property, oldest
// first.
type History struct {
	PropertyID     types.ID
	PreviousOwners []types.Principal
}

func (h *History) Clone() *History {
	if h == nil {
		return nil
	}
	clone := &History{PropertyID: h.PropertyID}
	clone.PreviousOwners = append([]types.Principal{}, h.PreviousOwners...)
	return clone
}

// Len reports the number of recorded transfers.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.PreviousOwners)
}

var (
	propertyPrefix = []byte("ownership/property/")
	historyPrefix  = []byte("ownership/history/")
)

func propertyKey(id types.ID) []byte {
	return []byte(fmt.Sprintf("%s%x", propertyPrefix, id[:]))
}

func historyKey(id types.ID) []byte {
	return []byte(fmt.Sprintf("%s%x", historyPrefix, id[:]))
}
