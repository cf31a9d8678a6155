package ownership

import (
	"strconv"

	"propchain/core/types"
)

const (
	EventTypePropertyRegistered   = "ownership.registered"
	EventTypePropertyListed       = "ownership.listed"
	EventTypePropertyDelisted     = "ownership.delisted"
	EventTypeOwnershipTransferred = "ownership.transferred"
)

// NewRegisteredEvent returns the payload emitted when a property enters the
// ledger.
func NewRegisteredEvent(p *Property) *types.Event {
	return newPropertyEvent(EventTypePropertyRegistered, p)
}

// NewListedEvent returns the payload emitted when a property is listed for
// sale. dynamic marks prices computed from a pricing factor.
func NewListedEvent(p *Property, dynamic bool) *types.Event {
	evt := newPropertyEvent(EventTypePropertyListed, p)
	evt.Attributes["dynamic"] = strconv.FormatBool(dynamic)
	return evt
}

func NewDelistedEvent(p *Property) *types.Event {
	return newPropertyEvent(EventTypePropertyDelisted, p)
}

// NewTransferredEvent returns the payload emitted after an ownership transfer.
func NewTransferredEvent(p *Property, from types.Principal, h *History) *types.Event {
	evt := newPropertyEvent(EventTypeOwnershipTransferred, p)
	evt.Attributes["from"] = from.Hex()
	evt.Attributes["to"] = p.Owner.Hex()
	evt.Attributes["historyLength"] = strconv.Itoa(h.Len())
	return evt
}

func newPropertyEvent(eventType string, p *Property) *types.Event {
	attrs := make(map[string]string)
	if p == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["propertyId"] = p.ID.Hex()
	attrs["owner"] = p.Owner.Hex()
	attrs["price"] = p.Clone().Price.String()
	attrs["forSale"] = strconv.FormatBool(p.ForSale)
	return &types.Event{Type: eventType, Attributes: attrs}
}
