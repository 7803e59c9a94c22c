// Package layout defines the binary records shared between the segment
// owner and its scripts.
//
// All multi-byte fields are little-endian. Records are decoded field by
// field with encoding/binary; the struct types only mirror the layout and
// are checked against the expected sizes at compile time.
package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"
)

// Segment name suffixes.
const (
	SuffixDevice = "device"
	SuffixScript = "python"
)

// Record sizes in bytes.
const (
	HeaderSize      = 16
	DeviceBlockSize = 44
	ScriptBlockSize = 4
)

// ResetOffset is the dirty start of a header with nothing recorded.
const ResetOffset = 0xFFFFFFFF

// Layout errors.
var (
	ErrShortBuffer = errors.New("buffer too short")
)

// Compile-time size checks: an index out of range fails the build when a
// struct drifts from its record size.
var (
	_ = [1]struct{}{}[unsafe.Sizeof(ChangeHeader{})-HeaderSize]
	_ = [1]struct{}{}[unsafe.Sizeof(DeviceBlock{})-DeviceBlockSize]
	_ = [1]struct{}{}[unsafe.Sizeof(ScriptBlock{})-ScriptBlockSize]
)

// SegmentName joins a device prefix and a segment suffix ("plc1.mem4x").
func SegmentName(prefix, suffix string) string {
	return prefix + "." + suffix
}

// BankSegmentSize returns the segment size holding n data bytes: the
// change header, the data and the mask region.
func BankSegmentSize(n int) int {
	return HeaderSize + 2*n
}

// BankDataSize returns how many data bytes fit a bank segment of size
// segSize, limited to requested.
func BankDataSize(requested, segSize int) int {
	avail := (segSize - HeaderSize) / 2
	if avail < 0 {
		avail = 0
	}
	if requested < avail {
		return requested
	}
	return avail
}

// ChangeHeader heads every bank segment. It tracks a revision counter and
// the coalesced byte range written since the owner last consumed it.
type ChangeHeader struct {
	Revision    uint32
	DirtyStart  uint32
	DirtyLength uint32
	Reserved    uint32
}

// ResetHeader returns a header with nothing recorded.
func ResetHeader() ChangeHeader {
	return ChangeHeader{DirtyStart: ResetOffset}
}

// DecodeChangeHeader reads a header from the first HeaderSize bytes of b.
func DecodeChangeHeader(b []byte) (ChangeHeader, error) {
	if len(b) < HeaderSize {
		return ChangeHeader{}, fmt.Errorf("change header: %w (%d < %d)", ErrShortBuffer, len(b), HeaderSize)
	}
	return ChangeHeader{
		Revision:    binary.LittleEndian.Uint32(b[0:]),
		DirtyStart:  binary.LittleEndian.Uint32(b[4:]),
		DirtyLength: binary.LittleEndian.Uint32(b[8:]),
		Reserved:    binary.LittleEndian.Uint32(b[12:]),
	}, nil
}

// Encode writes the header into the first HeaderSize bytes of b.
func (h ChangeHeader) Encode(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("change header: %w (%d < %d)", ErrShortBuffer, len(b), HeaderSize)
	}
	binary.LittleEndian.PutUint32(b[0:], h.Revision)
	binary.LittleEndian.PutUint32(b[4:], h.DirtyStart)
	binary.LittleEndian.PutUint32(b[8:], h.DirtyLength)
	binary.LittleEndian.PutUint32(b[12:], h.Reserved)
	return nil
}

// Merge records a write of n bytes at off and bumps the revision.
//
// The recorded range only grows: if the write starts left of the recorded
// start the start moves left and the length stretches to keep the old right
// edge; if it ends right of the recorded end the length stretches to reach
// it. A header in the reset state takes the write range as is.
func (h *ChangeHeader) Merge(off, n uint32) {
	right := off + n
	if h.DirtyStart > off {
		if h.DirtyLength == 0 {
			h.DirtyLength = right - off
		} else {
			h.DirtyLength += h.DirtyStart - off
		}
		h.DirtyStart = off
	}
	if h.DirtyStart+h.DirtyLength < right {
		h.DirtyLength = right - h.DirtyStart
	}
	h.Revision++
}

// Reset clears the dirty range. The revision is kept.
func (h *ChangeHeader) Reset() {
	h.DirtyStart = ResetOffset
	h.DirtyLength = 0
}

// IsReset reports whether no write was recorded since the last reset.
func (h ChangeHeader) IsReset() bool {
	return h.DirtyLength == 0
}

// End returns the first byte past the dirty range.
func (h ChangeHeader) End() uint32 {
	if h.IsReset() {
		return 0
	}
	return h.DirtyStart + h.DirtyLength
}

// Covers reports whether [off, off+n) lies inside the dirty range.
func (h ChangeHeader) Covers(off, n uint32) bool {
	if n == 0 {
		return true
	}
	if h.IsReset() {
		return false
	}
	return off >= h.DirtyStart && off+n <= h.End()
}

// String implements fmt.Stringer.
func (h ChangeHeader) String() string {
	if h.IsReset() {
		return fmt.Sprintf("rev=%d clean", h.Revision)
	}
	return fmt.Sprintf("rev=%d dirty=[%d,%d)", h.Revision, h.DirtyStart, h.End())
}
