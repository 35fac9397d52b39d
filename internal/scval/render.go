package scval

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/stellar/go/xdr"
)

// ToInterface converts an ScVal to a plain Go value for JSON rendering
func ToInterface(val xdr.ScVal) interface{} {
	switch val.Type {
	case xdr.ScValTypeScvBool:
		return val.MustB()
	case xdr.ScValTypeScvVoid:
		return nil
	case xdr.ScValTypeScvU32:
		return uint32(val.MustU32())
	case xdr.ScValTypeScvI32:
		return int32(val.MustI32())
	case xdr.ScValTypeScvU64:
		return uint64(val.MustU64())
	case xdr.ScValTypeScvI64:
		return int64(val.MustI64())
	case xdr.ScValTypeScvU128:
		u128 := val.MustU128()
		return map[string]interface{}{
			"hi":  uint64(u128.Hi),
			"lo":  uint64(u128.Lo),
			"hex": fmt.Sprintf("%016x%016x", u128.Hi, u128.Lo),
		}
	case xdr.ScValTypeScvI128:
		i128 := val.MustI128()
		return map[string]interface{}{
			"hi":  int64(i128.Hi),
			"lo":  uint64(i128.Lo),
			"hex": fmt.Sprintf("%016x%016x", i128.Hi, i128.Lo),
		}
	case xdr.ScValTypeScvSymbol:
		return string(val.MustSym())
	case xdr.ScValTypeScvString:
		return string(val.MustStr())
	case xdr.ScValTypeScvAddress:
		str, _ := val.MustAddress().String()
		return str
	case xdr.ScValTypeScvBytes:
		return hex.EncodeToString(val.MustBytes())
	case xdr.ScValTypeScvVec:
		vec := *val.MustVec()
		result := make([]interface{}, len(vec))
		for i, element := range vec {
			result[i] = ToInterface(element)
		}
		return result
	case xdr.ScValTypeScvMap:
		scMap := *val.MustMap()
		result := make(map[string]interface{})
		for _, entry := range scMap {
			result[ToString(entry.Key)] = ToInterface(entry.Val)
		}
		return result
	default:
		return val.Type.String()
	}
}

// ToString converts an ScVal to a short string, used for map keys and logs
func ToString(val xdr.ScVal) string {
	switch val.Type {
	case xdr.ScValTypeScvBool:
		if val.MustB() {
			return "true"
		}
		return "false"
	case xdr.ScValTypeScvVoid:
		return "void"
	case xdr.ScValTypeScvU32:
		return fmt.Sprintf("%d", val.MustU32())
	case xdr.ScValTypeScvI32:
		return fmt.Sprintf("%d", val.MustI32())
	case xdr.ScValTypeScvU64:
		return fmt.Sprintf("%d", val.MustU64())
	case xdr.ScValTypeScvI64:
		return fmt.Sprintf("%d", val.MustI64())
	case xdr.ScValTypeScvSymbol:
		return string(val.MustSym())
	case xdr.ScValTypeScvString:
		return string(val.MustStr())
	case xdr.ScValTypeScvAddress:
		str, _ := val.MustAddress().String()
		return str
	case xdr.ScValTypeScvBytes:
		return hex.EncodeToString(val.MustBytes())
	default:
		return fmt.Sprintf("<%s>", val.Type.String())
	}
}

// EncodeBase64 returns the base64 XDR encoding of a value
func EncodeBase64(val xdr.ScVal) (string, error) {
	raw, err := val.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to marshal ScVal: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeBase64 parses a base64 XDR encoded value
func DecodeBase64(s string) (xdr.ScVal, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return xdr.ScVal{}, fmt.Errorf("invalid base64: %w", err)
	}
	var val xdr.ScVal
	if err := val.UnmarshalBinary(raw); err != nil {
		return xdr.ScVal{}, fmt.Errorf("invalid ScVal XDR: %w", err)
	}
	return val, nil
}
