package rpc

import (
	"math/big"
	"strconv"

	"propchain/core/types"
	"propchain/native/escrow"
	"propchain/native/lease"
	"propchain/native/ownership"
	"propchain/native/verification"
	"propchain/storage/eventlog"
)

type propertyJSON struct {
	ID      string `json:"id"`
	Owner   string `json:"owner"`
	Price   string `json:"price"`
	ForSale bool   `json:"forSale"`
}

type historyJSON struct {
	PropertyID     string   `json:"propertyId"`
	PreviousOwners []string `json:"previousOwners"`
}

type agreementJSON struct {
	ID         string `json:"id"`
	PropertyID string `json:"propertyId"`
	Tenant     string `json:"tenant"`
	Owner      string `json:"owner"`
	RentAmount string `json:"rentAmount"`
	DueDate    uint64 `json:"dueDate"`
	Active     bool   `json:"active"`
}

type transactionJSON struct {
	ID        string   `json:"id"`
	Verifiers []string `json:"verifiers"`
	Verified  bool     `json:"verified"`
	Completed bool     `json:"completed"`
}

type escrowJSON struct {
	ID         string `json:"id"`
	PropertyID string `json:"propertyId"`
	Buyer      string `json:"buyer"`
	Seller     string `json:"seller"`
	Amount     string `json:"amount"`
	Locked     bool   `json:"locked"`
}

type balanceJSON struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type eventJSON struct {
	Seq        uint64            `json:"seq"`
	Type       string            `json:"type"`
	RecordID   string            `json:"recordId,omitempty"`
	Attributes map[string]string `json:"attributes"`
	Digest     string            `json:"digest"`
	CreatedAt  string            `json:"createdAt"`
}

func formatID(id types.ID) string { return "0x" + id.Hex() }

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatPrincipals(ps []types.Principal) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Hex()
	}
	return out
}

func formatProperty(p *ownership.Property) propertyJSON {
	return propertyJSON{ID: formatID(p.ID), Owner: p.Owner.Hex(), Price: formatAmount(p.Price), ForSale: p.ForSale}
}

func formatHistory(h *ownership.History) historyJSON {
	return historyJSON{PropertyID: formatID(h.PropertyID), PreviousOwners: formatPrincipals(h.PreviousOwners)}
}

func formatAgreement(a *lease.Agreement) agreementJSON {
	return agreementJSON{
		ID:         formatID(a.ID),
		PropertyID: formatID(a.PropertyID),
		Tenant:     a.Tenant.Hex(),
		Owner:      a.Owner.Hex(),
		RentAmount: formatAmount(a.RentAmount),
		DueDate:    a.DueDate,
		Active:     a.Active,
	}
}

func formatTransaction(t *verification.Transaction) transactionJSON {
	return transactionJSON{
		ID:        formatID(t.ID),
		Verifiers: formatPrincipals(t.Verifiers),
		Verified:  t.Verified,
		Completed: t.Completed,
	}
}

func formatEscrow(e *escrow.Escrow) escrowJSON {
	return escrowJSON{
		ID:         formatID(e.ID),
		PropertyID: formatID(e.PropertyID),
		Buyer:      e.Buyer.Hex(),
		Seller:     e.Seller.Hex(),
		Amount:     formatAmount(e.Amount),
		Locked:     e.Locked,
	}
}

func formatEntries(entries []eventlog.Entry) ([]eventJSON, error) {
	out := make([]eventJSON, 0, len(entries))
	for _, entry := range entries {
		payload, err := entry.Event()
		if err != nil {
			return nil, err
		}
		out = append(out, eventJSON{
			Seq:        entry.Seq,
			Type:       entry.Type,
			RecordID:   entry.RecordID,
			Attributes: payload.Attributes,
			Digest:     entry.Digest,
			CreatedAt:  entry.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return out, nil
}

func parseUint(raw string) (uint64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}
