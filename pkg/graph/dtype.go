package graph

import (
	"fmt"
	"strings"
)

// DType is the element type of a tensor flowing through the graph.
type DType uint8

const (
	DTypeUnknown DType = iota
	Float32
	Uint8
	Int16
	Int32
	Int64
	Bool
)

var dtypeNames = [...]string{
	DTypeUnknown: "unknown",
	Float32:      "float32",
	Uint8:        "uint8",
	Int16:        "int16",
	Int32:        "int32",
	Int64:        "int64",
	Bool:         "bool",
}

func (d DType) String() string {
	if int(d) < len(dtypeNames) {
		return dtypeNames[d]
	}
	return fmt.Sprintf("dtype(%d)", uint8(d))
}

// Size returns the element width in bytes, or 0 for unknown types.
func (d DType) Size() int {
	switch d {
	case Uint8, Bool:
		return 1
	case Int16:
		return 2
	case Float32, Int32:
		return 4
	case Int64:
		return 8
	default:
		return 0
	}
}

// IsFloat reports whether d is a floating-point type.
func (d DType) IsFloat() bool { return d == Float32 }

// ParseDType accepts the canonical names plus the short forms used by
// converter tooling (u8, s16, s32, s64, f32).
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float32", "f32", "fp32":
		return Float32, nil
	case "uint8", "u8":
		return Uint8, nil
	case "int16", "s16", "i16":
		return Int16, nil
	case "int32", "s32", "i32":
		return Int32, nil
	case "int64", "s64", "i64":
		return Int64, nil
	case "bool":
		return Bool, nil
	default:
		return DTypeUnknown, fmt.Errorf("graph: unknown dtype %q", s)
	}
}

func (d DType) MarshalText() ([]byte, error) {
	if d == DTypeUnknown || int(d) >= len(dtypeNames) {
		return nil, fmt.Errorf("graph: cannot encode dtype %d", uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *DType) UnmarshalText(b []byte) error {
	v, err := ParseDType(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
