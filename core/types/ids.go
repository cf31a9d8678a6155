package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Principal is an authenticated identity value. Engines only ever compare
// principals for equality; they never authenticate them.
type Principal = common.Address

// ID identifies a single record (property, agreement, transaction, escrow).
type ID [32]byte

// Hex returns the lowercase hex encoding without a 0x prefix.
func (id ID) Hex() string { return hex.EncodeToString(id[:]) }

func (id ID) String() string { return id.Hex() }

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool { return id == ID{} }

// MarshalText renders the id as 0x-prefixed hex.
func (id ID) MarshalText() ([]byte, error) {
	return []byte("0x" + id.Hex()), nil
}

// UnmarshalText accepts the forms ParseID does.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseID decodes a 32-byte hex identifier, accepting an optional 0x prefix.
func ParseID(s string) (ID, error) {
	var id ID
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != 64 {
		return id, fmt.Errorf("id must be 32 bytes (got %d hex chars)", len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return id, fmt.Errorf("decode id: %w", err)
	}
	copy(id[:], decoded)
	return id, nil
}

// ParsePrincipal decodes a hex address into a Principal.
func ParsePrincipal(s string) (Principal, error) {
	trimmed := strings.TrimSpace(s)
	if !common.IsHexAddress(trimmed) {
		return Principal{}, fmt.Errorf("invalid principal address %q", s)
	}
	return common.HexToAddress(trimmed), nil
}
