package memory

import (
	"bytes"
	"fmt"
	"math"
)

// BitBlock is the typed view of a bit-addressed bank. Offsets count bits;
// a value of width W occupies bits [off, off+W).
type BitBlock struct {
	blk   *Block
	count int
	order Order
}

// NewBitBlock returns a view of count bits, limited to what blk holds.
func NewBitBlock(blk *Block, count int, order Order) *BitBlock {
	if limit := blk.Size() * 8; count > limit {
		count = limit
	}
	if count < 0 {
		count = 0
	}
	return &BitBlock{blk: blk, count: count, order: order}
}

// Count returns the number of bits.
func (v *BitBlock) Count() int { return v.count }

// Block returns the underlying codec.
func (v *BitBlock) Block() *Block { return v.blk }

// Order returns the byte and register order used for multi-byte values.
func (v *BitBlock) Order() Order { return v.order }

func (v *BitBlock) inRange(off, width int) bool {
	return off >= 0 && width > 0 && off+width <= v.count
}

func (v *BitBlock) get(off, width int) uint64 {
	if !v.inRange(off, width) {
		return 0
	}
	raw := v.blk.GetBitRange(off, width)
	if raw == nil {
		return 0
	}
	return v.order.decode(raw)
}

func (v *BitBlock) set(off, width int, val uint64) {
	if !v.inRange(off, width) {
		return
	}
	v.blk.SetBitRange(off, width, v.order.encode(val, width/8))
}

// Bool returns bit off.
func (v *BitBlock) Bool(off int) bool {
	if !v.inRange(off, 1) {
		return false
	}
	return v.blk.Bit(off)
}

// SetBool sets bit off.
func (v *BitBlock) SetBool(off int, val bool) {
	if !v.inRange(off, 1) {
		return
	}
	v.blk.SetBit(off, val)
}

// At returns bit i, failing if i is out of range.
func (v *BitBlock) At(i int) (bool, error) {
	if !v.inRange(i, 1) {
		return false, fmt.Errorf("%w: bit %d of %d", ErrIndexOutOfRange, i, v.count)
	}
	return v.blk.Bit(i), nil
}

// SetAt sets bit i, failing if i is out of range.
func (v *BitBlock) SetAt(i int, val bool) error {
	if !v.inRange(i, 1) {
		return fmt.Errorf("%w: bit %d of %d", ErrIndexOutOfRange, i, v.count)
	}
	v.blk.SetBit(i, val)
	return nil
}

// Uint8 through Int64 read a value of the type's width starting at bit
// off. Values wider than 16 bits follow the register order. Out of range
// reads return 0.
func (v *BitBlock) Uint8(off int) uint8   { return uint8(v.get(off, 8)) }
func (v *BitBlock) Int8(off int) int8     { return int8(v.get(off, 8)) }
func (v *BitBlock) Uint16(off int) uint16 { return uint16(v.get(off, 16)) }
func (v *BitBlock) Int16(off int) int16   { return int16(v.get(off, 16)) }
func (v *BitBlock) Uint32(off int) uint32 { return uint32(v.get(off, 32)) }
func (v *BitBlock) Int32(off int) int32   { return int32(v.get(off, 32)) }
func (v *BitBlock) Uint64(off int) uint64 { return v.get(off, 64) }
func (v *BitBlock) Int64(off int) int64   { return int64(v.get(off, 64)) }

// Float32 reads an IEEE 754 single from 32 bits starting at bit off.
func (v *BitBlock) Float32(off int) float32 {
	return math.Float32frombits(uint32(v.get(off, 32)))
}

// Float64 reads an IEEE 754 double from 64 bits starting at bit off.
func (v *BitBlock) Float64(off int) float64 {
	return math.Float64frombits(v.get(off, 64))
}

// SetUint8 through SetInt64 write x over the type's width starting at bit
// off. Neighbouring bits are kept; out of range writes are dropped.
func (v *BitBlock) SetUint8(off int, x uint8)   { v.set(off, 8, uint64(x)) }
func (v *BitBlock) SetInt8(off int, x int8)     { v.set(off, 8, uint64(uint8(x))) }
func (v *BitBlock) SetUint16(off int, x uint16) { v.set(off, 16, uint64(x)) }
func (v *BitBlock) SetInt16(off int, x int16)   { v.set(off, 16, uint64(uint16(x))) }
func (v *BitBlock) SetUint32(off int, x uint32) { v.set(off, 32, uint64(x)) }
func (v *BitBlock) SetInt32(off int, x int32)   { v.set(off, 32, uint64(uint32(x))) }
func (v *BitBlock) SetUint64(off int, x uint64) { v.set(off, 64, x) }
func (v *BitBlock) SetInt64(off int, x int64)   { v.set(off, 64, uint64(x)) }

// SetFloat32 writes x as 32 bits starting at bit off.
func (v *BitBlock) SetFloat32(off int, x float32) {
	v.set(off, 32, uint64(math.Float32bits(x)))
}

// SetFloat64 writes x as 64 bits starting at bit off.
func (v *BitBlock) SetFloat64(off int, x float64) {
	v.set(off, 64, math.Float64bits(x))
}

// Text reads n bytes of UTF-8 text starting at bit off, up to the first
// NUL. Big byte order swaps each byte pair.
func (v *BitBlock) Text(off, n int) string {
	if !v.inRange(off, n*8) {
		return ""
	}
	raw := v.blk.GetBitRange(off, n*8)
	return cutText(v.order.swapText(raw))
}

// SetText writes s starting at bit off. The whole string must fit.
func (v *BitBlock) SetText(off int, s string) {
	if len(s) == 0 || !v.inRange(off, len(s)*8) {
		return
	}
	v.blk.SetBitRange(off, len(s)*8, v.order.swapText([]byte(s)))
}

func cutText(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
