package memory

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// ByteOrder is the order of the two bytes inside a 16-bit register.
type ByteOrder int32

const (
	// ByteOrderDefault leaves the choice to the device; treated as little.
	ByteOrderDefault ByteOrder = -1
	// ByteOrderLittle stores the low byte first.
	ByteOrderLittle ByteOrder = 0
	// ByteOrderBig stores the high byte first.
	ByteOrderBig ByteOrder = 1
)

// String returns the byte order name.
func (o ByteOrder) String() string {
	switch o {
	case ByteOrderDefault:
		return "DEFAULT"
	case ByteOrderLittle:
		return "LITTLE"
	case ByteOrderBig:
		return "BIG"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(o)) + ")"
	}
}

// Effective returns the order a device actually uses: ByteOrderDefault is
// little.
func (o ByteOrder) Effective() ByteOrder {
	if o == ByteOrderDefault {
		return ByteOrderLittle
	}
	return o
}

// Big reports whether bytes inside each register are swapped.
func (o ByteOrder) Big() bool {
	return o == ByteOrderBig
}

// ParseByteOrder accepts "little", "big", "default", their short forms
// ("le", "be") or the numeric codes.
func ParseByteOrder(s string) (ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default", "-1":
		return ByteOrderDefault, nil
	case "little", "le", "0":
		return ByteOrderLittle, nil
	case "big", "be", "1":
		return ByteOrderBig, nil
	}
	return ByteOrderDefault, fmt.Errorf("unknown byte order %q (supported: little, big, default)", s)
}

// RegisterOrder is the order of the 16-bit registers making up a 32- or
// 64-bit value. Names list the registers from the lowest address, R0 being
// the least significant register of the value.
type RegisterOrder int32

const (
	// RegisterOrderDefault leaves the choice to the device; treated as
	// R0R1R2R3.
	RegisterOrderDefault RegisterOrder = -1
	// R0R1R2R3 keeps the least significant register first.
	R0R1R2R3 RegisterOrder = 0
	// R3R2R1R0 reverses the registers.
	R3R2R1R0 RegisterOrder = 1
	// R1R0R3R2 swaps adjacent registers.
	R1R0R3R2 RegisterOrder = 2
	// R2R3R0R1 swaps the two register pairs of a 64-bit value.
	R2R3R0R1 RegisterOrder = 3
)

// String returns the register order name.
func (o RegisterOrder) String() string {
	switch o {
	case RegisterOrderDefault:
		return "DEFAULT"
	case R0R1R2R3:
		return "R0R1R2R3"
	case R3R2R1R0:
		return "R3R2R1R0"
	case R1R0R3R2:
		return "R1R0R3R2"
	case R2R3R0R1:
		return "R2R3R0R1"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(o)) + ")"
	}
}

// Effective returns the order a device actually uses: RegisterOrderDefault
// is R0R1R2R3.
func (o RegisterOrder) Effective() RegisterOrder {
	if o == RegisterOrderDefault {
		return R0R1R2R3
	}
	return o
}

// ParseRegisterOrder accepts the register order names (case-insensitive),
// "default" or the numeric codes.
func ParseRegisterOrder(s string) (RegisterOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "DEFAULT", "-1":
		return RegisterOrderDefault, nil
	case "R0R1R2R3", "0":
		return R0R1R2R3, nil
	case "R3R2R1R0", "1":
		return R3R2R1R0, nil
	case "R1R0R3R2", "2":
		return R1R0R3R2, nil
	case "R2R3R0R1", "3":
		return R2R3R0R1, nil
	}
	return RegisterOrderDefault, fmt.Errorf("unknown register order %q (supported: R0R1R2R3, R3R2R1R0, R1R0R3R2, R2R3R0R1, default)", s)
}

// Word permutations, indexed by the number of 16-bit words. Entry i names
// the source word of output word i.
var (
	perm4 = map[RegisterOrder][4]int{
		R3R2R1R0: {3, 2, 1, 0},
		R1R0R3R2: {1, 0, 3, 2},
		R2R3R0R1: {2, 3, 0, 1},
	}
	perm2 = map[RegisterOrder][2]int{
		R3R2R1R0: {1, 0},
		R1R0R3R2: {1, 0},
		R2R3R0R1: {0, 1},
	}
)

// Order is the combined byte and register order of a device.
type Order struct {
	Byte     ByteOrder
	Register RegisterOrder
}

// Native reports whether raw memory already is a little-endian value, so
// no reordering is needed.
func (o Order) Native() bool {
	return !o.Byte.Big() && (o.Register == R0R1R2R3 || o.Register == RegisterOrderDefault)
}

// Effective resolves both default orders.
func (o Order) Effective() Order {
	return Order{Byte: o.Byte.Effective(), Register: o.Register.Effective()}
}

// String implements fmt.Stringer.
func (o Order) String() string {
	return o.Byte.String() + "/" + o.Register.String()
}

// Reorder converts between memory and little-endian value layout. It
// splits b into 16-bit words, swaps the bytes of each word for big byte
// order and permutes the words by register order. 2-byte input only gets
// the byte swap. Reorder is its own inverse. A trailing odd byte is kept.
func (o Order) Reorder(b []byte) []byte {
	out := make([]byte, len(b))
	words := len(b) / 2
	src := func(i int) int { return i }
	switch words {
	case 4:
		if p, ok := perm4[o.Register]; ok {
			src = func(i int) int { return p[i] }
		}
	case 2:
		if p, ok := perm2[o.Register]; ok {
			src = func(i int) int { return p[i] }
		}
	}
	big := o.Byte.Big()
	for i := 0; i < words; i++ {
		w := src(i)
		lo, hi := b[2*w], b[2*w+1]
		if big {
			lo, hi = hi, lo
		}
		out[2*i], out[2*i+1] = lo, hi
	}
	if len(b)%2 == 1 {
		out[len(b)-1] = b[len(b)-1]
	}
	return out
}

// decode interprets 1, 2, 4 or 8 bytes of memory as an unsigned value.
func (o Order) decode(raw []byte) uint64 {
	if len(raw) > 1 && !o.Native() {
		raw = o.Reorder(raw)
	}
	switch len(raw) {
	case 1:
		return uint64(raw[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(raw))
	case 4:
		return uint64(binary.LittleEndian.Uint32(raw))
	case 8:
		return binary.LittleEndian.Uint64(raw)
	default:
		return 0
	}
}

// encode lays out the low size bytes of v as memory.
func (o Order) encode(v uint64, size int) []byte {
	raw := make([]byte, size)
	switch size {
	case 1:
		raw[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(raw, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(raw, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(raw, v)
	}
	if size > 1 && !o.Native() {
		raw = o.Reorder(raw)
	}
	return raw
}

// swapText swaps adjacent byte pairs for big byte order. Strings are never
// register-permuted.
func (o Order) swapText(b []byte) []byte {
	out := append([]byte(nil), b...)
	if !o.Byte.Big() {
		return out
	}
	for i := 0; i+1 < len(out); i += 2 {
		out[i], out[i+1] = out[i+1], out[i]
	}
	return out
}
