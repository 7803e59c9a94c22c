package memory

import (
	"fmt"
	"math"
)

// RegBlock is the typed view of a word-addressed bank. Offsets count
// 16-bit registers, except for the 8-bit accessors which take a byte
// offset into the bank.
type RegBlock struct {
	blk   *Block
	count int
	order Order
}

// NewRegBlock returns a view of count registers, limited to what blk holds.
func NewRegBlock(blk *Block, count int, order Order) *RegBlock {
	if limit := blk.Size() / 2; count > limit {
		count = limit
	}
	if count < 0 {
		count = 0
	}
	return &RegBlock{blk: blk, count: count, order: order}
}

// Count returns the number of registers.
func (v *RegBlock) Count() int { return v.count }

// Block returns the underlying codec.
func (v *RegBlock) Block() *Block { return v.blk }

// Order returns the byte and register order used for multi-byte values.
func (v *RegBlock) Order() Order { return v.order }

func (v *RegBlock) inRange(off, words int) bool {
	return off >= 0 && words > 0 && off+words <= v.count
}

func (v *RegBlock) get(off, words int) uint64 {
	if !v.inRange(off, words) {
		return 0
	}
	raw := v.blk.GetBytes(off*2, words*2)
	if len(raw) != words*2 {
		return 0
	}
	return v.order.decode(raw)
}

func (v *RegBlock) set(off, words int, val uint64) {
	if !v.inRange(off, words) {
		return
	}
	v.blk.SetBytes(off*2, v.order.encode(val, words*2))
}

// Uint8 returns the byte at byte offset off.
func (v *RegBlock) Uint8(off int) uint8 {
	if off < 0 || off >= v.count*2 {
		return 0
	}
	b := v.blk.GetBytes(off, 1)
	if len(b) != 1 {
		return 0
	}
	return b[0]
}

// Int8 returns the byte at byte offset off.
func (v *RegBlock) Int8(off int) int8 { return int8(v.Uint8(off)) }

// SetUint8 writes the byte at byte offset off.
func (v *RegBlock) SetUint8(off int, x uint8) {
	if off < 0 || off >= v.count*2 {
		return
	}
	v.blk.SetBytes(off, []byte{x})
}

// SetInt8 writes the byte at byte offset off.
func (v *RegBlock) SetInt8(off int, x int8) { v.SetUint8(off, uint8(x)) }

// Uint16 through Int64 read one, two or four registers starting at
// register off. 16-bit values only swap bytes for big byte order; wider
// values also follow the register order. Out of range reads return 0.
func (v *RegBlock) Uint16(off int) uint16 { return uint16(v.get(off, 1)) }
func (v *RegBlock) Int16(off int) int16   { return int16(v.get(off, 1)) }
func (v *RegBlock) Uint32(off int) uint32 { return uint32(v.get(off, 2)) }
func (v *RegBlock) Int32(off int) int32   { return int32(v.get(off, 2)) }
func (v *RegBlock) Uint64(off int) uint64 { return v.get(off, 4) }
func (v *RegBlock) Int64(off int) int64   { return int64(v.get(off, 4)) }

// Float32 reads an IEEE 754 single from two registers at off.
func (v *RegBlock) Float32(off int) float32 {
	return math.Float32frombits(uint32(v.get(off, 2)))
}

// Float64 reads an IEEE 754 double from four registers at off.
func (v *RegBlock) Float64(off int) float64 {
	return math.Float64frombits(v.get(off, 4))
}

// SetUint16 through SetInt64 write x into the registers starting at off,
// ordered as the getters read them. Out of range writes are dropped.
func (v *RegBlock) SetUint16(off int, x uint16) { v.set(off, 1, uint64(x)) }
func (v *RegBlock) SetInt16(off int, x int16)   { v.set(off, 1, uint64(uint16(x))) }
func (v *RegBlock) SetUint32(off int, x uint32) { v.set(off, 2, uint64(x)) }
func (v *RegBlock) SetInt32(off int, x int32)   { v.set(off, 2, uint64(uint32(x))) }
func (v *RegBlock) SetUint64(off int, x uint64) { v.set(off, 4, x) }
func (v *RegBlock) SetInt64(off int, x int64)   { v.set(off, 4, uint64(x)) }

// SetFloat32 writes x into two registers at off.
func (v *RegBlock) SetFloat32(off int, x float32) {
	v.set(off, 2, uint64(math.Float32bits(x)))
}

// SetFloat64 writes x into four registers at off.
func (v *RegBlock) SetFloat64(off int, x float64) {
	v.set(off, 4, math.Float64bits(x))
}

// At returns register i, failing if i is out of range.
func (v *RegBlock) At(i int) (uint16, error) {
	if !v.inRange(i, 1) {
		return 0, fmt.Errorf("%w: register %d of %d", ErrIndexOutOfRange, i, v.count)
	}
	return v.Uint16(i), nil
}

// SetAt writes register i, failing if i is out of range.
func (v *RegBlock) SetAt(i int, x uint16) error {
	if !v.inRange(i, 1) {
		return fmt.Errorf("%w: register %d of %d", ErrIndexOutOfRange, i, v.count)
	}
	v.SetUint16(i, x)
	return nil
}

// Text reads n bytes of UTF-8 text starting at register off, up to the
// first NUL. Big byte order swaps each byte pair.
func (v *RegBlock) Text(off, n int) string {
	if off < 0 || n <= 0 || off*2+n > v.count*2 {
		return ""
	}
	return cutText(v.order.swapText(v.blk.GetBytes(off*2, n)))
}

// SetText writes s starting at register off. The whole string must fit.
func (v *RegBlock) SetText(off int, s string) {
	if off < 0 || len(s) == 0 || off*2+len(s) > v.count*2 {
		return
	}
	v.blk.SetBytes(off*2, v.order.swapText([]byte(s)))
}
