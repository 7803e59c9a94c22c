package memory

import (
	"github.com/modbus-tools/mbshm-go/pkg/layout"
	"github.com/modbus-tools/mbshm-go/pkg/log"
)

// Change is a copy of the dirty part of a bank, taken by Consume.
type Change struct {
	// Revision is the change counter at the time of the copy.
	Revision uint32

	// Offset is the data byte offset of Data and Mask.
	Offset int

	// Data and Mask are the dirty bytes and their write mask. Both are
	// empty if nothing changed.
	Data []byte
	Mask []byte
}

// Empty reports whether the change carries no bytes.
func (c Change) Empty() bool {
	return len(c.Data) == 0
}

// Consume is the owner side of the change protocol: it copies the dirty
// range with its mask, clears the mask there and resets the header so the
// next write starts a new range. Accessors never call it.
func (b *Block) Consume() Change {
	var c Change
	var ev *log.Event
	b.locked(func(v view) {
		h, _ := layout.DecodeChangeHeader(v.hdr)
		c.Revision = h.Revision
		if h.IsReset() {
			return
		}
		off, n := b.clip(int(h.DirtyStart), int(h.DirtyLength))
		if n > 0 {
			c.Offset = off
			c.Data = append([]byte(nil), v.data[off:off+n]...)
			c.Mask = append([]byte(nil), v.mask[off:off+n]...)
			clear(v.mask[off : off+n])
		}
		h.Reset()
		_ = h.Encode(v.hdr)

		e := b.event(log.CategoryAccess)
		e.Access = &log.AccessEvent{
			Op:          log.OpConsume,
			Bank:        b.bank,
			ByteOffset:  uint32(off),
			ByteCount:   uint32(n),
			Revision:    h.Revision,
			DirtyStart:  h.DirtyStart,
			DirtyLength: h.DirtyLength,
		}
		ev = &e
	})
	if ev != nil {
		b.logger.Log(*ev)
	}
	return c
}

// ResetHeader puts the header into the reset state without copying
// anything. Owners call it once after creating a segment.
func (b *Block) ResetHeader() {
	b.locked(func(v view) {
		h, _ := layout.DecodeChangeHeader(v.hdr)
		h.Reset()
		_ = h.Encode(v.hdr)
	})
}
