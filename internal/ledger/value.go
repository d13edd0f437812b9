package ledger

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
)

// Kind enumerates the closed set of field value variants the schema can
// produce. Decoding never yields a value outside this set.
type Kind int

const (
	KindAddress Kind = iota
	KindUint
	KindInt
	KindBool
	KindString
	KindBytes
)

// Value is a decoded event field. Exactly one payload field is meaningful,
// selected by Kind. Numeric values stay in big.Int form end to end so u64/u128
// amounts never pass through a float.
type Value struct {
	Kind  Kind
	Addr  string
	Num   *big.Int
	Flag  bool
	Str   string
	Bytes []byte
}

func addressValue(s string) Value { return Value{Kind: KindAddress, Addr: s} }
func uintValue(n *big.Int) Value  { return Value{Kind: KindUint, Num: n} }
func intValue(n *big.Int) Value   { return Value{Kind: KindInt, Num: n} }
func boolValue(b bool) Value      { return Value{Kind: KindBool, Flag: b} }
func stringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func bytesValue(b []byte) Value   { return Value{Kind: KindBytes, Bytes: b} }

// Address returns the base58 address, or "" if the value is not an address.
func (v Value) Address() string {
	if v.Kind != KindAddress {
		return ""
	}
	return v.Addr
}

// Decimal returns the numeric value as a decimal string, or "" for
// non-numeric values. Lossless for the full u128 range.
func (v Value) Decimal() string {
	if (v.Kind != KindUint && v.Kind != KindInt) || v.Num == nil {
		return ""
	}
	return v.Num.String()
}

// String returns the string payload, or "" for non-string values.
func (v Value) String() string {
	if v.Kind != KindString {
		return ""
	}
	return v.Str
}

// MarshalJSON renders values losslessly: numbers as decimal strings (a u128
// does not fit a JSON number), bytes as base64.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindAddress:
		return json.Marshal(v.Addr)
	case KindUint, KindInt:
		if v.Num == nil {
			return json.Marshal("0")
		}
		return json.Marshal(v.Num.String())
	case KindBool:
		return json.Marshal(v.Flag)
	case KindString:
		return json.Marshal(v.Str)
	case KindBytes:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.Bytes))
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

// Event is one named event decoded from a transaction's log batch.
type Event struct {
	Name   string
	Fields map[string]Value
}
