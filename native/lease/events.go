package lease

import (
	"strconv"
	"strings"

	"propchain/core/types"
)

const (
	EventTypeAgreementCreated    = "lease.created"
	EventTypeAgreementDiscounted = "lease.discounted"
	EventTypeAgreementPenalized  = "lease.penalized"
	EventTypeAgreementRenewed    = "lease.renewed"
	EventTypeLeaseTerminated     = "lease.terminated"
)

func NewCreatedEvent(a *Agreement) *types.Event {
	return newAgreementEvent(EventTypeAgreementCreated, a)
}

// NewDiscountedEvent carries the applied discount percentage.
func NewDiscountedEvent(a *Agreement, percent uint64) *types.Event {
	evt := newAgreementEvent(EventTypeAgreementDiscounted, a)
	evt.Attributes["discountPercent"] = strconv.FormatUint(percent, 10)
	return evt
}

// NewPenalizedEvent carries the date the lateness was observed at.
func NewPenalizedEvent(a *Agreement, currentDate uint64) *types.Event {
	evt := newAgreementEvent(EventTypeAgreementPenalized, a)
	evt.Attributes["currentDate"] = strconv.FormatUint(currentDate, 10)
	return evt
}

func NewRenewedEvent(a *Agreement, renewedBy types.Principal) *types.Event {
	evt := newAgreementEvent(EventTypeAgreementRenewed, a)
	evt.Attributes["renewedBy"] = renewedBy.Hex()
	return evt
}

// NewTerminatedEvent returns the LeaseTerminated payload: agreement id,
// terminating principal, reason and success flag.
func NewTerminatedEvent(a *Agreement, terminatedBy types.Principal, reason string, success bool) *types.Event {
	attrs := make(map[string]string)
	if a != nil {
		attrs["agreementId"] = a.ID.Hex()
	}
	attrs["terminatedBy"] = terminatedBy.Hex()
	attrs["reason"] = strings.TrimSpace(reason)
	attrs["success"] = strconv.FormatBool(success)
	return &types.Event{Type: EventTypeLeaseTerminated, Attributes: attrs}
}

func newAgreementEvent(eventType string, a *Agreement) *types.Event {
	attrs := make(map[string]string)
	if a == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	clone := a.Clone()
	attrs["agreementId"] = clone.ID.Hex()
	attrs["propertyId"] = clone.PropertyID.Hex()
	attrs["owner"] = clone.Owner.Hex()
	attrs["tenant"] = clone.Tenant.Hex()
	attrs["rentAmount"] = clone.RentAmount.String()
	attrs["dueDate"] = strconv.FormatUint(clone.DueDate, 10)
	attrs["active"] = strconv.FormatBool(clone.Active)
	return &types.Event{Type: eventType, Attributes: attrs}
}
