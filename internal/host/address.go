package host

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
)

// AddressKind distinguishes signing accounts from contract instances
type AddressKind uint8

const (
	KindAccount  AddressKind = 1 // ed25519 account (G...)
	KindContract AddressKind = 2 // contract instance (C...)
)

// String returns the kind name for logging
func (k AddressKind) String() string {
	switch k {
	case KindAccount:
		return "account"
	case KindContract:
		return "contract"
	default:
		return "unknown"
	}
}

// Address identifies an account or a contract on the ledger.
// The zero value is not a valid address. Addresses are comparable with ==.
type Address struct {
	kind AddressKind
	key  [32]byte
}

// AccountAddress builds an account address from an ed25519 public key
func AccountAddress(publicKey [32]byte) Address {
	return Address{kind: KindAccount, key: publicKey}
}

// ContractAddress builds a contract address from a 32-byte contract id
func ContractAddress(id [32]byte) Address {
	return Address{kind: KindContract, key: id}
}

// ParseAddress decodes a G... or C... strkey
func ParseAddress(s string) (Address, error) {
	version, err := strkey.Version(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}

	var kind AddressKind
	switch version {
	case strkey.VersionByteAccountID:
		kind = KindAccount
	case strkey.VersionByteContract:
		kind = KindContract
	default:
		return Address{}, fmt.Errorf("unsupported address type for %q", s)
	}

	raw, err := strkey.Decode(version, s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != 32 {
		return Address{}, fmt.Errorf("invalid address %q: expected 32 bytes, got %d", s, len(raw))
	}

	addr := Address{kind: kind}
	copy(addr.key[:], raw)
	return addr, nil
}

// MustParseAddress is ParseAddress for constants and tests
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// Kind returns the address kind
func (a Address) Kind() AddressKind {
	return a.kind
}

// Key returns the raw 32-byte key (public key or contract id)
func (a Address) Key() [32]byte {
	return a.key
}

// IsZero reports whether a is the zero Address
func (a Address) IsZero() bool {
	return a.kind == 0
}

// String encodes the address as a strkey, or "" for the zero value
func (a Address) String() string {
	var version strkey.VersionByte
	switch a.kind {
	case KindAccount:
		version = strkey.VersionByteAccountID
	case KindContract:
		version = strkey.VersionByteContract
	default:
		return ""
	}

	encoded, err := strkey.Encode(version, a.key[:])
	if err != nil {
		return ""
	}
	return encoded
}

// MarshalText implements encoding.TextMarshaler
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ScAddress converts the address to its XDR form.
// The value is decoded from its wire encoding, which keeps this independent of
// the Go field types generated for each ScAddress arm.
func (a Address) ScAddress() (xdr.ScAddress, error) {
	var buf bytes.Buffer
	switch a.kind {
	case KindAccount:
		_ = binary.Write(&buf, binary.BigEndian, int32(xdr.ScAddressTypeScAddressTypeAccount))
		_ = binary.Write(&buf, binary.BigEndian, int32(xdr.PublicKeyTypePublicKeyTypeEd25519))
	case KindContract:
		_ = binary.Write(&buf, binary.BigEndian, int32(xdr.ScAddressTypeScAddressTypeContract))
	default:
		return xdr.ScAddress{}, fmt.Errorf("zero address has no XDR form")
	}
	buf.Write(a.key[:])

	var out xdr.ScAddress
	if err := out.UnmarshalBinary(buf.Bytes()); err != nil {
		return xdr.ScAddress{}, fmt.Errorf("failed to build ScAddress: %w", err)
	}
	return out, nil
}

// MustScAddress is ScAddress for addresses known to be valid
func (a Address) MustScAddress() xdr.ScAddress {
	out, err := a.ScAddress()
	if err != nil {
		panic(err)
	}
	return out
}

// AddressFromScAddress converts an XDR address back into an Address.
// Only account and contract addresses are supported.
func AddressFromScAddress(sc xdr.ScAddress) (Address, error) {
	raw, err := sc.MarshalBinary()
	if err != nil {
		return Address{}, fmt.Errorf("failed to encode ScAddress: %w", err)
	}

	switch sc.Type {
	case xdr.ScAddressTypeScAddressTypeAccount:
		// type(4) + key type(4) + ed25519(32)
		if len(raw) != 40 {
			return Address{}, fmt.Errorf("unexpected account address length %d", len(raw))
		}
		var key [32]byte
		copy(key[:], raw[8:])
		return AccountAddress(key), nil
	case xdr.ScAddressTypeScAddressTypeContract:
		if len(raw) != 36 {
			return Address{}, fmt.Errorf("unexpected contract address length %d", len(raw))
		}
		var id [32]byte
		copy(id[:], raw[4:])
		return ContractAddress(id), nil
	default:
		return Address{}, fmt.Errorf("unsupported ScAddress type %s", sc.Type.String())
	}
}
