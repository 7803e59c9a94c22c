package memory

import (
	"time"

	"github.com/modbus-tools/mbshm-go/pkg/address"
	"github.com/modbus-tools/mbshm-go/pkg/layout"
	"github.com/modbus-tools/mbshm-go/pkg/log"
	"github.com/modbus-tools/mbshm-go/pkg/segment"
)

// BlockConfig configures a Block.
type BlockConfig struct {
	// Bank is the memory bank the segment holds.
	Bank address.Bank

	// Bytes is the requested number of data bytes. The usable size is
	// limited by what the segment can hold next to its header and mask.
	Bytes int

	// Logger receives an access event for every write.
	// If nil, logging is disabled.
	Logger log.Logger

	// SessionID and Device are copied into every event.
	SessionID string
	Device    string
}

// Block is the byte and bit codec over one bank segment:
//
//	[0:16)            change header
//	[16:16+n)         data
//	[16+n:16+2n)      mask, one bit per data bit this side wrote
//
// Every method takes the segment lock exactly once. Out-of-range reads
// return nil or false and out-of-range writes do nothing.
type Block struct {
	seg       segment.Segment
	bank      address.Bank
	size      int
	logger    log.Logger
	sessionID string
	device    string
}

// NewBlock wraps an attached bank segment.
func NewBlock(seg segment.Segment, cfg BlockConfig) *Block {
	return &Block{
		seg:       seg,
		bank:      cfg.Bank,
		size:      layout.BankDataSize(cfg.Bytes, seg.Size()),
		logger:    log.OrNoop(cfg.Logger),
		sessionID: cfg.SessionID,
		device:    cfg.Device,
	}
}

// Bank returns the memory bank.
func (b *Block) Bank() address.Bank { return b.bank }

// Size returns the number of usable data bytes.
func (b *Block) Size() int { return b.size }

// Segment returns the underlying segment.
func (b *Block) Segment() segment.Segment { return b.seg }

// view is the locked segment split into its regions.
type view struct {
	hdr  []byte
	data []byte
	mask []byte
}

// locked runs fn with the segment locked. It reports false if the lock
// could not be taken.
func (b *Block) locked(fn func(v view)) bool {
	if err := b.seg.Lock(); err != nil {
		b.logError(err, "lock")
		return false
	}
	defer func() {
		if err := b.seg.Unlock(); err != nil {
			b.logError(err, "unlock")
		}
	}()
	buf := b.seg.Bytes()
	if len(buf) < layout.HeaderSize+2*b.size {
		return false
	}
	d := layout.HeaderSize
	fn(view{
		hdr:  buf[:d],
		data: buf[d : d+b.size],
		mask: buf[d+b.size : d+2*b.size],
	})
	return true
}

// clip limits [off, off+n) to the data region. It returns n == 0 when
// nothing is left.
func (b *Block) clip(off, n int) (int, int) {
	if off < 0 || n <= 0 || off >= b.size {
		return off, 0
	}
	if n > b.size-off {
		n = b.size - off
	}
	return off, n
}

// GetBytes returns a copy of n data bytes at off, clipped to the end of
// the data. It returns nil if nothing is in range.
func (b *Block) GetBytes(off, n int) []byte {
	off, n = b.clip(off, n)
	if n == 0 {
		return nil
	}
	var out []byte
	b.locked(func(v view) {
		out = append([]byte(nil), v.data[off:off+n]...)
	})
	return out
}

// SetBytes writes p at off, clipped to the end of the data, and returns
// the number of bytes written.
func (b *Block) SetBytes(off int, p []byte) int {
	return b.writeBytes(off, p, log.OpWrite)
}

// Restore is SetBytes for snapshot restores; only the logged operation
// differs.
func (b *Block) Restore(off int, p []byte) int {
	return b.writeBytes(off, p, log.OpRestore)
}

func (b *Block) writeBytes(off int, p []byte, op log.Op) int {
	off, n := b.clip(off, len(p))
	if n == 0 {
		return 0
	}
	var ev log.Event
	ok := b.locked(func(v view) {
		copy(v.data[off:off+n], p[:n])
		for i := off; i < off+n; i++ {
			v.mask[i] = 0xFF
		}
		ev = b.commit(v, op, off, n)
	})
	if !ok {
		return 0
	}
	b.logger.Log(ev)
	return n
}

// GetBitRange returns bitCount bits starting at bit bitOff, realigned to
// bit 0 of the first returned byte. Bits past bitCount in the last byte
// are zero.
func (b *Block) GetBitRange(bitOff, bitCount int) []byte {
	if bitCount <= 0 || bitOff < 0 || bitOff+bitCount > b.size*8 {
		return nil
	}
	first := bitOff / 8
	last := (bitOff + bitCount - 1) / 8
	shift := uint(bitOff % 8)
	out := make([]byte, (bitCount+7)/8)

	ok := b.locked(func(v view) {
		span := v.data[first : last+1]
		for i := range out {
			x := span[i] >> shift
			if shift > 0 && i+1 < len(span) {
				x |= span[i+1] << (8 - shift)
			}
			out[i] = x
		}
	})
	if !ok {
		return nil
	}
	if rem := bitCount % 8; rem != 0 {
		out[len(out)-1] &= byte(1)<<rem - 1
	}
	return out
}

// SetBitRange writes the low bitCount bits of src starting at bit bitOff.
// Neighbouring bits in the boundary bytes are preserved. Missing bytes of
// src count as zero. It reports whether the range was written.
func (b *Block) SetBitRange(bitOff, bitCount int, src []byte) bool {
	if bitCount <= 0 || bitOff < 0 || bitOff+bitCount > b.size*8 {
		return false
	}
	first := bitOff / 8
	last := (bitOff + bitCount - 1) / 8
	shift := uint(bitOff % 8)
	n := (bitCount + 7) / 8
	tmp := make([]byte, n)
	copy(tmp, src)

	var ev log.Event
	ok := b.locked(func(v view) {
		for i := 0; i < n; i++ {
			bits := 8
			if i == n-1 && bitCount%8 != 0 {
				bits = bitCount % 8
			}
			keep := uint16(1)<<bits - 1
			m := keep << shift
			x := uint16(tmp[i]) & keep << shift

			j := first + i
			v.data[j] = v.data[j]&^byte(m) | byte(x)
			v.mask[j] |= byte(m)
			if m>>8 != 0 {
				v.data[j+1] = v.data[j+1]&^byte(m>>8) | byte(x>>8)
				v.mask[j+1] |= byte(m >> 8)
			}
		}
		ev = b.commit(v, log.OpWrite, first, last-first+1)
	})
	if ok {
		b.logger.Log(ev)
	}
	return ok
}

// Bit returns bit off.
func (b *Block) Bit(off int) bool {
	if off < 0 || off >= b.size*8 {
		return false
	}
	var set bool
	b.locked(func(v view) {
		set = v.data[off/8]&(1<<uint(off%8)) != 0
	})
	return set
}

// SetBit sets or clears bit off.
func (b *Block) SetBit(off int, val bool) {
	if off < 0 || off >= b.size*8 {
		return
	}
	i, m := off/8, byte(1)<<uint(off%8)
	var ev log.Event
	ok := b.locked(func(v view) {
		if val {
			v.data[i] |= m
		} else {
			v.data[i] &^= m
		}
		v.mask[i] |= m
		ev = b.commit(v, log.OpWrite, i, 1)
	})
	if ok {
		b.logger.Log(ev)
	}
}

// Header returns the current change header.
func (b *Block) Header() layout.ChangeHeader {
	var h layout.ChangeHeader
	b.locked(func(v view) {
		h, _ = layout.DecodeChangeHeader(v.hdr)
	})
	return h
}

// Mask returns a copy of n mask bytes at off, clipped like GetBytes. The
// mask is diagnostic only.
func (b *Block) Mask(off, n int) []byte {
	off, n = b.clip(off, n)
	if n == 0 {
		return nil
	}
	var out []byte
	b.locked(func(v view) {
		out = append([]byte(nil), v.mask[off:off+n]...)
	})
	return out
}

// commit merges a write of n bytes at off into the header and returns the
// access event for it. Called with the lock held; the event is logged after
// Unlock.
func (b *Block) commit(v view, op log.Op, off, n int) log.Event {
	h, _ := layout.DecodeChangeHeader(v.hdr)
	h.Merge(uint32(off), uint32(n))
	_ = h.Encode(v.hdr)

	ev := b.event(log.CategoryAccess)
	ev.Access = &log.AccessEvent{
		Op:          op,
		Bank:        b.bank,
		ByteOffset:  uint32(off),
		ByteCount:   uint32(n),
		Revision:    h.Revision,
		DirtyStart:  h.DirtyStart,
		DirtyLength: h.DirtyLength,
	}
	ev.Access.Capture(v.data[off : off+n])
	return ev
}

func (b *Block) event(c log.Category) log.Event {
	return log.Event{
		Timestamp: time.Now(),
		SessionID: b.sessionID,
		Device:    b.device,
		Segment:   b.seg.Name(),
		Category:  c,
	}
}

func (b *Block) logError(err error, context string) {
	ev := b.event(log.CategoryError)
	ev.Error = &log.ErrorEventData{Message: err.Error(), Context: context}
	b.logger.Log(ev)
}
