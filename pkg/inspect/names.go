package inspect

import (
	"fmt"
	"strings"

	"github.com/modbus-tools/mbshm-go/pkg/address"
)

// Type is the value type a path reads or writes.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeBool
	TypeInt8
	TypeUint8
	TypeInt16
	TypeUint16
	TypeInt32
	TypeUint32
	TypeInt64
	TypeUint64
	TypeFloat32
	TypeFloat64
	TypeString
)

// typeNames maps names, including the IEC-61131 elementary type names, to
// types. Lookup is case-insensitive.
var typeNames = map[string]Type{
	"bool":    TypeBool,
	"int8":    TypeInt8,
	"sint":    TypeInt8,
	"uint8":   TypeUint8,
	"usint":   TypeUint8,
	"byte":    TypeUint8,
	"int16":   TypeInt16,
	"int":     TypeInt16,
	"uint16":  TypeUint16,
	"uint":    TypeUint16,
	"word":    TypeUint16,
	"int32":   TypeInt32,
	"dint":    TypeInt32,
	"uint32":  TypeUint32,
	"udint":   TypeUint32,
	"dword":   TypeUint32,
	"int64":   TypeInt64,
	"lint":    TypeInt64,
	"uint64":  TypeUint64,
	"ulint":   TypeUint64,
	"lword":   TypeUint64,
	"float32": TypeFloat32,
	"real":    TypeFloat32,
	"float64": TypeFloat64,
	"lreal":   TypeFloat64,
	"string":  TypeString,
}

// ParseType resolves a type name (case-insensitive).
func ParseType(name string) (Type, error) {
	if t, ok := typeNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t, nil
	}
	return TypeInvalid, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// String returns the canonical type name.
func (t Type) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt8:
		return "int8"
	case TypeUint8:
		return "uint8"
	case TypeInt16:
		return "int16"
	case TypeUint16:
		return "uint16"
	case TypeInt32:
		return "int32"
	case TypeUint32:
		return "uint32"
	case TypeInt64:
		return "int64"
	case TypeUint64:
		return "uint64"
	case TypeFloat32:
		return "float32"
	case TypeFloat64:
		return "float64"
	case TypeString:
		return "string"
	default:
		return fmt.Sprintf("type(%d)", t)
	}
}

// Bits returns the width of fixed-size types, 0 for strings.
func (t Type) Bits() int {
	switch t {
	case TypeBool:
		return 1
	case TypeInt8, TypeUint8:
		return 8
	case TypeInt16, TypeUint16:
		return 16
	case TypeInt32, TypeUint32, TypeFloat32:
		return 32
	case TypeInt64, TypeUint64, TypeFloat64:
		return 64
	default:
		return 0
	}
}

// DefaultType is the type used when a path names none: bool for bit
// banks, uint16 for register banks.
func DefaultType(bank address.Bank) Type {
	if bank.BitAddressed() {
		return TypeBool
	}
	return TypeUint16
}

// TypeNames returns the canonical type names in declaration order.
func TypeNames() []string {
	var out []string
	for t := TypeBool; t <= TypeString; t++ {
		out = append(out, t.String())
	}
	return out
}
