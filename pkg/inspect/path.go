// Package inspect reads and writes a device image by textual path and
// formats the results for display.
//
// A path is an address in any notation, optionally followed by a type and,
// for strings, a byte length:
//
//	400001
//	%MW10:float32
//	%MW0000h:string:16
//	17:int8
//
// Without a type, bit banks read bool and register banks read uint16.
package inspect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/modbus-tools/mbshm-go/pkg/address"
)

// Path errors.
var (
	ErrEmptyPath   = errors.New("empty path")
	ErrInvalidPath = errors.New("invalid path format")
	ErrUnknownType = errors.New("unknown type")
)

// DefaultStringLength is the byte length of a string path without one.
const DefaultStringLength = 16

// Path is a parsed inspection path.
type Path struct {
	// Address is the first element addressed.
	Address address.Address

	// Type is the value type.
	Type Type

	// Length is the byte length of string values.
	Length int

	// Raw stores the original input string.
	Raw string
}

// ParsePath parses "address[:type[:length]]".
func ParsePath(input string) (*Path, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyPath
	}

	parts := strings.Split(input, ":")
	if len(parts) > 3 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, input)
	}

	a, err := address.Parse(parts[0])
	if err != nil {
		return nil, err
	}
	p := &Path{Address: a, Type: DefaultType(a.Bank()), Raw: input}

	if len(parts) >= 2 {
		if p.Type, err = ParseType(parts[1]); err != nil {
			return nil, err
		}
	}
	if p.Type == TypeString {
		p.Length = DefaultStringLength
	}
	if len(parts) == 3 {
		if p.Type != TypeString {
			return nil, fmt.Errorf("%w: length only applies to strings", ErrInvalidPath)
		}
		n, err := strconv.Atoi(parts[2])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: bad length %q", ErrInvalidPath, parts[2])
		}
		p.Length = n
	}
	return p, nil
}

// String formats the path in notation n. Default types are omitted.
func (p *Path) String(n address.Notation) string {
	var sb strings.Builder
	sb.WriteString(p.Address.Format(n))
	if p.Type != DefaultType(p.Address.Bank()) {
		sb.WriteString(":")
		sb.WriteString(p.Type.String())
	}
	if p.Type == TypeString && p.Length != DefaultStringLength {
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(p.Length))
	}
	return sb.String()
}

// IsValidPath reports whether ParsePath accepts input.
func IsValidPath(input string) bool {
	_, err := ParsePath(input)
	return err == nil
}
