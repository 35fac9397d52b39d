// Package scval builds and reads the xdr.ScVal values passed across contract calls.
package scval

import (
	"fmt"
	"regexp"

	"deployer/internal/host"

	"github.com/stellar/go/xdr"
)

// Symbols follow Soroban's rules: up to 32 characters from [a-zA-Z0-9_]
var symbolPattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,32}$`)

// ValidSymbol reports whether s can be used as a function name or symbol value
func ValidSymbol(s string) bool {
	return symbolPattern.MatchString(s)
}

// Void returns the unit value
func Void() xdr.ScVal {
	return xdr.ScVal{Type: xdr.ScValTypeScvVoid}
}

// U32 wraps a uint32
func U32(v uint32) xdr.ScVal {
	u := xdr.Uint32(v)
	return xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &u}
}

// Symbol wraps a symbol
func Symbol(s string) xdr.ScVal {
	sym := xdr.ScSymbol(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym}
}

// Bytes wraps an opaque byte string
func Bytes(b []byte) xdr.ScVal {
	raw := xdr.ScBytes(append([]byte(nil), b...))
	return xdr.ScVal{Type: xdr.ScValTypeScvBytes, Bytes: &raw}
}

// Address wraps an address
func Address(addr host.Address) (xdr.ScVal, error) {
	sc, err := addr.ScAddress()
	if err != nil {
		return xdr.ScVal{}, err
	}
	return xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &sc}, nil
}

// Vec wraps an ordered list of values
func Vec(items []xdr.ScVal) xdr.ScVal {
	vec := xdr.ScVec(append([]xdr.ScVal{}, items...))
	ptr := &vec
	return xdr.ScVal{Type: xdr.ScValTypeScvVec, Vec: &ptr}
}

// ToU32 reads a uint32
func ToU32(v xdr.ScVal) (uint32, error) {
	u, ok := v.GetU32()
	if !ok {
		return 0, fmt.Errorf("%w: expected u32, got %s", host.ErrInvalidArguments, v.Type.String())
	}
	return uint32(u), nil
}

// ToSymbol reads a symbol
func ToSymbol(v xdr.ScVal) (string, error) {
	sym, ok := v.GetSym()
	if !ok {
		return "", fmt.Errorf("%w: expected symbol, got %s", host.ErrInvalidArguments, v.Type.String())
	}
	return string(sym), nil
}

// ToBytes32 reads a 32-byte value (BytesN<32>)
func ToBytes32(v xdr.ScVal) ([32]byte, error) {
	var out [32]byte
	b, ok := v.GetBytes()
	if !ok {
		return out, fmt.Errorf("%w: expected bytes, got %s", host.ErrInvalidArguments, v.Type.String())
	}
	if len(b) != 32 {
		return out, fmt.Errorf("%w: expected 32 bytes, got %d", host.ErrInvalidArguments, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// ToAddress reads an address
func ToAddress(v xdr.ScVal) (host.Address, error) {
	sc, ok := v.GetAddress()
	if !ok {
		return host.Address{}, fmt.Errorf("%w: expected address, got %s", host.ErrInvalidArguments, v.Type.String())
	}
	addr, err := host.AddressFromScAddress(sc)
	if err != nil {
		return host.Address{}, fmt.Errorf("%w: %v", host.ErrInvalidArguments, err)
	}
	return addr, nil
}

// ToVec reads a list of values
func ToVec(v xdr.ScVal) ([]xdr.ScVal, error) {
	vec, ok := v.GetVec()
	if !ok || vec == nil {
		return nil, fmt.Errorf("%w: expected vec, got %s", host.ErrInvalidArguments, v.Type.String())
	}
	return []xdr.ScVal(*vec), nil
}

// Equal compares two values by their XDR encoding
func Equal(a, b xdr.ScVal) bool {
	ra, errA := a.MarshalBinary()
	rb, errB := b.MarshalBinary()
	if errA != nil || errB != nil {
		return false
	}
	return string(ra) == string(rb)
}
