package escrow_test

import (
	"bytes"
	"math/big"
	"reflect"
	"testing"

	"propchain/core/types"
	escrowpkg "propchain/native/escrow"
)

func TestEscrowEventsHaveDeterministicPayload(t *testing.T) {
	var id, property types.ID
	copy(id[:], bytes.Repeat([]byte{0xAA}, 32))
	copy(property[:], bytes.Repeat([]byte{0xEE}, 32))
	var buyer, seller, other types.Principal
	copy(buyer[:], bytes.Repeat([]byte{0xBB}, 20))
	copy(seller[:], bytes.Repeat([]byte{0xCC}, 20))
	copy(other[:], bytes.Repeat([]byte{0xDD}, 20))

	def := &escrowpkg.Escrow{
		ID:         id,
		PropertyID: property,
		Buyer:      buyer,
		Seller:     seller,
		Amount:     big.NewInt(42_000),
		Locked:     true,
	}
	base := map[string]string{
		"id":         id.Hex(),
		"propertyId": property.Hex(),
		"buyer":      buyer.Hex(),
		"seller":     seller.Hex(),
		"amount":     "42000",
		"locked":     "true",
	}

	initiated := escrowpkg.NewInitiatedEvent(def, buyer)
	want := copyAttrs(base)
	want["fundedBy"] = buyer.Hex()
	if initiated.Type != escrowpkg.EventTypeEscrowInitiated || !reflect.DeepEqual(initiated.Attributes, want) {
		t.Fatalf("initiated payload mismatch:\n got %v\nwant %v", initiated.Attributes, want)
	}

	released := escrowpkg.NewReleasedEvent(def, seller, other)
	want = copyAttrs(base)
	want["recipient"] = seller.Hex()
	want["releasedBy"] = other.Hex()
	if released.Type != escrowpkg.EventTypeEscrowReleased || !reflect.DeepEqual(released.Attributes, want) {
		t.Fatalf("released payload mismatch:\n got %v\nwant %v", released.Attributes, want)
	}
}

func copyAttrs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
