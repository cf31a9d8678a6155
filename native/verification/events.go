package verification

import (
	"strconv"
	"strings"

	"propchain/core/types"
)

const (
	EventTypeTransactionRegistered = "transaction.registered"
	EventTypeTransactionCompleted  = "transaction.completed"
)

func NewRegisteredEvent(t *Transaction) *types.Event {
	return newTransactionEvent(EventTypeTransactionRegistered, t)
}

// NewCompletedEvent records the verifier that completed the transaction and
// the principal that submitted the call.
func NewCompletedEvent(t *Transaction, verifier, caller types.Principal) *types.Event {
	evt := newTransactionEvent(EventTypeTransactionCompleted, t)
	evt.Attributes["verifier"] = verifier.Hex()
	evt.Attributes["caller"] = caller.Hex()
	return evt
}

func newTransactionEvent(eventType string, t *Transaction) *types.Event {
	attrs := make(map[string]string)
	if t == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["transactionId"] = t.ID.Hex()
	verifiers := make([]string, len(t.Verifiers))
	for i, v := range t.Verifiers {
		verifiers[i] = v.Hex()
	}
	attrs["verifiers"] = strings.Join(verifiers, ",")
	attrs["verified"] = strconv.FormatBool(t.Verified)
	attrs["completed"] = strconv.FormatBool(t.Completed)
	return &types.Event{Type: eventType, Attributes: attrs}
}
