package lease

import (
	"fmt"
	"math/big"

	"propchain/core/types"
)

// Agreement is a rental agreement between a property owner and a tenant.
// Owner and Tenant are fixed at creation; Active turns false only on
// termination.
type Agreement struct {
	ID         types.ID
	PropertyID types.ID
	Tenant     types.Principal
	Owner      types.Principal
	RentAmount *big.Int
	// DueDate is an ordinal time unit supplied by the caller (e.g. epoch day).
	DueDate uint64
	Active  bool
}

// Clone returns a deep copy of the agreement.
func (a *Agreement) Clone() *Agreement {
	if a == nil {
		return nil
	}
	clone := *a
	if a.RentAmount != nil {
		clone.RentAmount = new(big.Int).Set(a.RentAmount)
	} else {
		clone.RentAmount = big.NewInt(0)
	}
	return &clone
}

// IsParty reports whether p is the owner or tenant of the agreement.
func (a *Agreement) IsParty(p types.Principal) bool {
	return a != nil && (p == a.Owner || p == a.Tenant)
}

var agreementPrefix = []byte("lease/agreement/")

func agreementKey(id types.ID) []byte {
	return []byte(fmt.Sprintf("%s%x", agreementPrefix, id[:]))
}
