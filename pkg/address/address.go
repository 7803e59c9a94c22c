package address

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Address errors.
var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidBank    = errors.New("invalid memory bank")
	ErrOffsetRange    = errors.New("offset out of range [0:65535]")
)

// MaxOffset is the largest offset a bank can be addressed with.
const MaxOffset = 65535

// bankFactor separates the bank code from the number in Modbus notation.
const bankFactor = 100000

// Notation selects the textual form of an address.
type Notation uint8

const (
	// NotationDefault is the same as NotationModbus.
	NotationDefault Notation = iota
	// NotationModbus is the numeric form, e.g. "400001".
	NotationModbus
	// NotationIEC61131 is the decimal IEC-61131 form, e.g. "%MW0".
	NotationIEC61131
	// NotationIEC61131Hex is the hex IEC-61131 form, e.g. "%MW0000h".
	NotationIEC61131Hex
)

// String returns the notation name.
func (n Notation) String() string {
	switch n {
	case NotationDefault:
		return "default"
	case NotationModbus:
		return "modbus"
	case NotationIEC61131:
		return "iec61131"
	case NotationIEC61131Hex:
		return "iec61131hex"
	default:
		return "unknown"
	}
}

// ParseNotation parses a notation name as written by Notation.String.
func ParseNotation(s string) (Notation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return NotationDefault, nil
	case "modbus":
		return NotationModbus, nil
	case "iec61131", "iec":
		return NotationIEC61131, nil
	case "iec61131hex", "iechex":
		return NotationIEC61131Hex, nil
	}
	return NotationDefault, fmt.Errorf("unknown notation %q (supported: modbus, iec61131, iec61131hex)", s)
}

// IEC-61131 prefixes.
const (
	PrefixCoil            = "%Q"
	PrefixDiscreteInput   = "%I"
	PrefixInputRegister   = "%IW"
	PrefixHoldingRegister = "%MW"

	// SuffixHex terminates the hex IEC-61131 form.
	SuffixHex = 'h'
)

// prefixes is ordered longest first so "%IW" is not taken for "%I".
var prefixes = []struct {
	prefix string
	bank   Bank
}{
	{PrefixInputRegister, BankInputRegister},
	{PrefixHoldingRegister, BankHoldingRegister},
	{PrefixCoil, BankCoil},
	{PrefixDiscreteInput, BankDiscreteInput},
}

// Address is a Modbus data address. The zero value is invalid.
type Address struct {
	bank   Bank
	offset uint16
}

// New returns the address of offset within bank.
func New(bank Bank, offset int) (Address, error) {
	if !bank.Valid() {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidBank, bank)
	}
	if offset < 0 || offset > MaxOffset {
		return Address{}, fmt.Errorf("%w: %d", ErrOffsetRange, offset)
	}
	return Address{bank: bank, offset: uint16(offset)}, nil
}

// FromInt converts the Modbus numeric form (bank*100000 + offset + 1).
// For example 400001 is the first holding register and 1 the first coil.
func FromInt(v int) (Address, error) {
	if v < 0 {
		return Address{}, fmt.Errorf("%w: %d", ErrInvalidAddress, v)
	}
	number := v % bankFactor
	if number < 1 || number > MaxOffset+1 {
		return Address{}, fmt.Errorf("%w: number part %d of %d must be [1:65536]", ErrInvalidAddress, number, v)
	}
	bank, err := BankFromCode(v / bankFactor)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %d: %w", ErrInvalidAddress, v, err)
	}
	return Address{bank: bank, offset: uint16(number - 1)}, nil
}

// Parse converts any of the three textual notations.
func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty string", ErrInvalidAddress)
	}
	if s[0] != '%' {
		v, err := accumulate(s, 10)
		if err != nil {
			return Address{}, fmt.Errorf("%w: %q", err, s)
		}
		return FromInt(v)
	}

	bank := BankUnknown
	body := ""
	for _, p := range prefixes {
		if strings.HasPrefix(s, p.prefix) {
			bank = p.bank
			body = s[len(p.prefix):]
			break
		}
	}
	if bank == BankUnknown {
		return Address{}, fmt.Errorf("%w: unknown prefix in %q", ErrInvalidAddress, s)
	}

	base := 10
	if strings.HasSuffix(body, string(SuffixHex)) {
		base = 16
		body = body[:len(body)-1]
	}
	offset, err := accumulate(body, base)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q", err, s)
	}
	a, err := New(bank, offset)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return a, nil
}

// accumulate reads an unsigned number digit by digit. Any character that is
// not a digit of base invalidates the whole input.
func accumulate(s string, base int) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: no digits", ErrInvalidAddress)
	}
	limit := bankFactor*10 - 1
	if base == 16 {
		limit = MaxOffset
	}
	acc := 0
	for i := 0; i < len(s); i++ {
		d := digit(s[i], base)
		if d < 0 {
			return 0, fmt.Errorf("%w: bad digit %q", ErrInvalidAddress, s[i])
		}
		acc = acc*base + d
		if acc > limit {
			return 0, fmt.Errorf("%w: %w", ErrInvalidAddress, ErrOffsetRange)
		}
	}
	return acc, nil
}

func digit(c byte, base int) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case base == 16 && c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case base == 16 && c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return -1
	}
}

// Resolve turns an int, a string or an Address into an Address.
func Resolve(v any) (Address, error) {
	switch a := v.(type) {
	case Address:
		if !a.Valid() {
			return Address{}, ErrInvalidAddress
		}
		return a, nil
	case *Address:
		if a == nil || !a.Valid() {
			return Address{}, ErrInvalidAddress
		}
		return *a, nil
	case string:
		return Parse(a)
	case int:
		return FromInt(a)
	case int32:
		return FromInt(int(a))
	case int64:
		return FromInt(int(a))
	case uint32:
		return FromInt(int(a))
	default:
		return Address{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidAddress, v)
	}
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Valid reports whether the address refers to a bank.
func (a Address) Valid() bool {
	return a.bank.Valid()
}

// Bank returns the memory bank, BankUnknown for an invalid address.
func (a Address) Bank() Bank {
	return a.bank
}

// Offset returns the zero-based offset within the bank.
func (a Address) Offset() int {
	return int(a.offset)
}

// Number returns the one-based number (offset + 1).
func (a Address) Number() int {
	return int(a.offset) + 1
}

// Int returns the Modbus numeric form, or -1 for an invalid address.
func (a Address) Int() int {
	if !a.Valid() {
		return -1
	}
	return a.bank.Code()*bankFactor + a.Number()
}

// Add returns the address n elements further into the same bank.
func (a Address) Add(n int) (Address, error) {
	return New(a.bank, int(a.offset)+n)
}

// Sub returns the address n elements earlier in the same bank.
func (a Address) Sub(n int) (Address, error) {
	return New(a.bank, int(a.offset)-n)
}

// Compare orders addresses by their Modbus numeric form.
func (a Address) Compare(b Address) int {
	switch x, y := a.Int(), b.Int(); {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// Less reports whether a sorts before b.
func (a Address) Less(b Address) bool {
	return a.Compare(b) < 0
}

// String returns the Modbus notation.
func (a Address) String() string {
	return a.Format(NotationDefault)
}

// Format returns the address in the given notation. Modbus notation is
// zero-padded to six digits; IEC-61131 hex always uses four hex digits.
func (a Address) Format(n Notation) string {
	if !a.Valid() {
		return "invalid address"
	}
	switch n {
	case NotationIEC61131:
		return iecPrefix(a.bank) + strconv.Itoa(int(a.offset))
	case NotationIEC61131Hex:
		return fmt.Sprintf("%s%04X%c", iecPrefix(a.bank), a.offset, SuffixHex)
	default:
		return fmt.Sprintf("%06d", a.Int())
	}
}

func iecPrefix(b Bank) string {
	switch b {
	case BankCoil:
		return PrefixCoil
	case BankDiscreteInput:
		return PrefixDiscreteInput
	case BankInputRegister:
		return PrefixInputRegister
	case BankHoldingRegister:
		return PrefixHoldingRegister
	default:
		return ""
	}
}

// MarshalText encodes the address in Modbus notation.
func (a Address) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return []byte{}, nil
	}
	return []byte(a.Format(NotationModbus)), nil
}

// UnmarshalText accepts any notation. Empty text yields the zero Address.
func (a *Address) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = Address{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
