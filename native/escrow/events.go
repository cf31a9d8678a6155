package escrow

import (
	"strconv"

	"propchain/core/types"
)

const (
	EventTypeEscrowInitiated = "escrow.initiated"
	EventTypeEscrowReleased  = "escrow.released"
)

// NewInitiatedEvent returns the canonical event payload for a newly funded
// escrow.
func NewInitiatedEvent(e *Escrow, fundedBy types.Principal) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowInitiated, e)
	evt.Attributes["fundedBy"] = fundedBy.Hex()
	return evt
}

// NewReleasedEvent returns the canonical event payload for a release of escrow
// funds to recipient.
func NewReleasedEvent(e *Escrow, recipient, releasedBy types.Principal) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowReleased, e)
	evt.Attributes["recipient"] = recipient.Hex()
	evt.Attributes["releasedBy"] = releasedBy.Hex()
	return evt
}

func newEscrowEvent(eventType string, e *Escrow) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized := e.Clone()
	attrs["id"] = sanitized.ID.Hex()
	attrs["propertyId"] = sanitized.PropertyID.Hex()
	attrs["buyer"] = sanitized.Buyer.Hex()
	attrs["seller"] = sanitized.Seller.Hex()
	attrs["amount"] = sanitized.Amount.String()
	attrs["locked"] = strconv.FormatBool(sanitized.Locked)
	return &types.Event{Type: eventType, Attributes: attrs}
}
