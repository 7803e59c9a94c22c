package memory

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/modbus-tools/mbshm-go/pkg/address"
	"github.com/modbus-tools/mbshm-go/pkg/layout"
	"github.com/modbus-tools/mbshm-go/pkg/log"
	"github.com/modbus-tools/mbshm-go/pkg/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// recordingLogger keeps every event.
type recordingLogger struct {
	events []log.Event
}

func (r *recordingLogger) Log(e log.Event) { r.events = append(r.events, e) }

func newTestBlock(t *testing.T, bank address.Bank, n int, logger log.Logger) *Block {
	t.Helper()
	store := segment.NewMemoryStore()
	seg, err := store.Create("test."+bank.Suffix(), layout.BankSegmentSize(n))
	require.NoError(t, err)
	t.Cleanup(func() { _ = seg.Close() })

	b := NewBlock(seg, BlockConfig{Bank: bank, Bytes: n, Logger: logger, SessionID: "s-1", Device: "test"})
	b.ResetHeader()
	return b
}

func bitAt(b []byte, i int) bool {
	return b[i/8]&(1<<uint(i%8)) != 0
}

func TestBlockSize(t *testing.T) {
	store := segment.NewMemoryStore()
	seg, err := store.Create("small.mem4x", layout.BankSegmentSize(10))
	require.NoError(t, err)

	assert.Equal(t, 10, NewBlock(seg, BlockConfig{Bytes: 100}).Size(), "limited by segment")
	assert.Equal(t, 4, NewBlock(seg, BlockConfig{Bytes: 4}).Size(), "limited by request")

	tiny, err := store.Create("tiny.mem4x", 8)
	require.NoError(t, err)
	b := NewBlock(tiny, BlockConfig{Bytes: 4})
	assert.Equal(t, 0, b.Size())
	assert.Nil(t, b.GetBytes(0, 1))
	assert.Equal(t, 0, b.SetBytes(0, []byte{1}))
}

func TestBytesClipping(t *testing.T) {
	b := newTestBlock(t, address.BankHoldingRegister, 10, nil)

	tests := []struct {
		name    string
		off     int
		data    []byte
		written int
	}{
		{name: "inside", off: 2, data: []byte{1, 2, 3}, written: 3},
		{name: "clipped at end", off: 8, data: []byte{4, 5, 6, 7}, written: 2},
		{name: "at end", off: 10, data: []byte{1}, written: 0},
		{name: "negative", off: -1, data: []byte{1}, written: 0},
		{name: "empty", off: 0, data: nil, written: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.written, b.SetBytes(tt.off, tt.data))
		})
	}

	assert.Equal(t, []byte{0, 0, 1, 2, 3, 0, 0, 0, 4, 5}, b.GetBytes(0, 10))
	assert.Equal(t, []byte{4, 5}, b.GetBytes(8, 100), "read clipped at end")
	assert.Nil(t, b.GetBytes(10, 1))
	assert.Nil(t, b.GetBytes(-1, 2))
	assert.Nil(t, b.GetBytes(0, 0))

	assert.Equal(t, uint32(2), b.Header().Revision, "only effective writes count")
}

func TestGetBytesReturnsCopy(t *testing.T) {
	b := newTestBlock(t, address.BankHoldingRegister, 4, nil)
	b.SetBytes(0, []byte{1, 2})
	got := b.GetBytes(0, 2)
	got[0] = 99
	assert.Equal(t, []byte{1, 2}, b.GetBytes(0, 2))
}

func TestDirtyRangeCoversGap(t *testing.T) {
	b := newTestBlock(t, address.BankHoldingRegister, 100, nil)

	b.SetBytes(5, []byte{0xAA})
	b.SetBytes(2, []byte{0xBB})

	h := b.Header()
	assert.Equal(t, uint32(2), h.DirtyStart)
	assert.Equal(t, uint32(4), h.DirtyLength, "dirty range must be [2,6)")
	assert.Equal(t, uint32(2), h.Revision)
}

func TestRevisionCountsWrites(t *testing.T) {
	b := newTestBlock(t, address.BankCoil, 16, nil)
	rng := rand.New(rand.NewSource(3))

	type span struct{ off, n int }
	var written []span
	for i := 0; i < 200; i++ {
		switch i % 3 {
		case 0:
			off := rng.Intn(16)
			b.SetBytes(off, []byte{byte(i)})
			written = append(written, span{off, 1})
		case 1:
			bit := rng.Intn(128)
			b.SetBit(bit, i%2 == 0)
			written = append(written, span{bit / 8, 1})
		case 2:
			bit := rng.Intn(100)
			cnt := rng.Intn(28) + 1
			require.True(t, b.SetBitRange(bit, cnt, []byte{0xFF, 0xFF, 0xFF, 0xFF}))
			written = append(written, span{bit / 8, (bit+cnt-1)/8 - bit/8 + 1})
		}

		h := b.Header()
		require.Equal(t, uint32(i+1), h.Revision)
		for _, w := range written {
			require.True(t, h.Covers(uint32(w.off), uint32(w.n)), "step %d: %v not in %s", i, w, h)
		}
	}
}

func TestBitRangeRoundTrip(t *testing.T) {
	const nBytes = 16
	const nBits = nBytes * 8
	b := newTestBlock(t, address.BankCoil, nBytes, nil)
	rng := rand.New(rand.NewSource(1))

	for off := 0; off < nBits; off++ {
		for cnt := 1; cnt <= 64 && off+cnt <= nBits; cnt++ {
			background := make([]byte, nBytes)
			rng.Read(background)
			require.Equal(t, nBytes, b.SetBytes(0, background))

			val := make([]byte, (cnt+7)/8)
			rng.Read(val)
			if rem := cnt % 8; rem != 0 {
				val[len(val)-1] &= byte(1)<<uint(rem) - 1
			}

			require.True(t, b.SetBitRange(off, cnt, val))
			got := b.GetBitRange(off, cnt)
			require.Equal(t, val, got, "off=%d cnt=%d", off, cnt)

			after := b.GetBytes(0, nBytes)
			for i := 0; i < nBits; i++ {
				if i >= off && i < off+cnt {
					continue
				}
				require.Equal(t, bitAt(background, i), bitAt(after, i), "off=%d cnt=%d clobbered bit %d", off, cnt, i)
			}
		}
	}
}

func TestGetBitRangeKnownValues(t *testing.T) {
	b := newTestBlock(t, address.BankCoil, 4, nil)
	b.SetBytes(0, []byte{0xF0, 0x0F, 0xAA, 0x55})

	tests := []struct {
		off, cnt int
		want     []byte
	}{
		{off: 0, cnt: 8, want: []byte{0xF0}},
		{off: 4, cnt: 8, want: []byte{0xFF}},
		{off: 4, cnt: 4, want: []byte{0x0F}},
		{off: 12, cnt: 8, want: []byte{0xA0}},
		{off: 4, cnt: 12, want: []byte{0xFF, 0x00}},
		{off: 3, cnt: 13, want: []byte{0xFE, 0x01}},
		{off: 28, cnt: 4, want: []byte{0x05}},
		{off: 30, cnt: 2, want: []byte{0x01}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.GetBitRange(tt.off, tt.cnt), "off=%d cnt=%d", tt.off, tt.cnt)
	}

	assert.Nil(t, b.GetBitRange(30, 3), "past end")
	assert.Nil(t, b.GetBitRange(-1, 3))
	assert.Nil(t, b.GetBitRange(0, 0))
	assert.False(t, b.SetBitRange(30, 3, []byte{0}))
}

func TestSetBitRangeMask(t *testing.T) {
	b := newTestBlock(t, address.BankCoil, 4, nil)

	require.True(t, b.SetBitRange(6, 5, []byte{0x1F}))
	assert.Equal(t, []byte{0xC0, 0x07, 0x00, 0x00}, b.GetBytes(0, 4))
	assert.Equal(t, []byte{0xC0, 0x07, 0x00, 0x00}, b.Mask(0, 4), "mask covers written bits only")

	h := b.Header()
	assert.Equal(t, uint32(0), h.DirtyStart)
	assert.Equal(t, uint32(2), h.DirtyLength)
}

func TestSetBitRangeShortSource(t *testing.T) {
	b := newTestBlock(t, address.BankCoil, 4, nil)
	b.SetBytes(0, []byte{0xFF, 0xFF, 0xFF, 0xFF})
	require.True(t, b.SetBitRange(4, 16, []byte{0x00}))
	assert.Equal(t, []byte{0x0F, 0x00, 0xF0, 0xFF}, b.GetBytes(0, 4), "missing source bytes are zero")
}

func TestSeventeenBitCoilBank(t *testing.T) {
	b := newTestBlock(t, address.BankCoil, 3, nil)
	v := NewBitBlock(b, 17, Order{})

	v.SetBool(16, true)
	assert.True(t, v.Bool(16))
	assert.False(t, v.Bool(15))
	assert.Equal(t, []byte{0, 0, 1}, b.GetBytes(0, 3))
}

func TestBitAccess(t *testing.T) {
	b := newTestBlock(t, address.BankCoil, 2, nil)

	b.SetBit(9, true)
	assert.True(t, b.Bit(9))
	assert.Equal(t, []byte{0x00, 0x02}, b.Mask(0, 2))

	b.SetBit(9, false)
	assert.False(t, b.Bit(9))
	assert.Equal(t, []byte{0x00, 0x02}, b.Mask(0, 2), "mask records clears too")

	b.SetBit(16, true)
	assert.False(t, b.Bit(16))
	assert.False(t, b.Bit(-1))
	assert.Equal(t, uint32(2), b.Header().Revision)
}

func TestConsume(t *testing.T) {
	b := newTestBlock(t, address.BankHoldingRegister, 20, nil)

	c := b.Consume()
	assert.True(t, c.Empty())
	assert.Equal(t, uint32(0), c.Revision)

	b.SetBytes(4, []byte{1, 2})
	b.SetBytes(8, []byte{3})

	c = b.Consume()
	assert.Equal(t, uint32(2), c.Revision)
	assert.Equal(t, 4, c.Offset)
	assert.Equal(t, []byte{1, 2, 0, 0, 3}, c.Data)
	assert.Equal(t, []byte{0xFF, 0xFF, 0, 0, 0xFF}, c.Mask)

	h := b.Header()
	assert.True(t, h.IsReset())
	assert.Equal(t, uint32(layout.ResetOffset), h.DirtyStart)
	assert.Equal(t, make([]byte, 20), b.Mask(0, 20), "mask cleared")
	assert.Equal(t, []byte{1, 2}, b.GetBytes(4, 2), "data kept")

	b.SetBytes(0, []byte{9})
	c = b.Consume()
	assert.Equal(t, 0, c.Offset)
	assert.Equal(t, []byte{9}, c.Data)
	assert.Equal(t, uint32(3), c.Revision)
}

func TestWriteEvents(t *testing.T) {
	rec := &recordingLogger{}
	b := newTestBlock(t, address.BankHoldingRegister, 8, rec)

	b.SetBytes(2, []byte{0xAB, 0xCD})
	b.Restore(0, []byte{1})
	b.Consume()
	_ = b.GetBytes(0, 8)

	require.Len(t, rec.events, 3, "reads are not logged")

	w := rec.events[0]
	assert.Equal(t, log.CategoryAccess, w.Category)
	assert.Equal(t, "s-1", w.SessionID)
	assert.Equal(t, "test", w.Device)
	assert.Equal(t, "test.mem4x", w.Segment)
	require.NotNil(t, w.Access)
	assert.Equal(t, log.OpWrite, w.Access.Op)
	assert.Equal(t, address.BankHoldingRegister, w.Access.Bank)
	assert.Equal(t, uint32(2), w.Access.ByteOffset)
	assert.Equal(t, uint32(2), w.Access.ByteCount)
	assert.Equal(t, uint32(1), w.Access.Revision)
	assert.Equal(t, []byte{0xAB, 0xCD}, w.Access.Data)

	assert.Equal(t, log.OpRestore, rec.events[1].Access.Op)
	assert.Equal(t, uint32(0), rec.events[1].Access.DirtyStart)
	assert.Equal(t, uint32(4), rec.events[1].Access.DirtyLength)

	c := rec.events[2]
	assert.Equal(t, log.OpConsume, c.Access.Op)
	assert.Equal(t, uint32(4), c.Access.ByteCount)
	assert.Equal(t, uint32(0), c.Access.DirtyLength)
}

// heldSegment tracks whether its lock is taken.
type heldSegment struct {
	segment.Segment
	held bool
}

func (s *heldSegment) Lock() error {
	err := s.Segment.Lock()
	s.held = err == nil
	return err
}

func (s *heldSegment) Unlock() error {
	s.held = false
	return s.Segment.Unlock()
}

// heldAtLogLogger records whether the segment lock was held for each event.
type heldAtLogLogger struct {
	seg  *heldSegment
	held []bool
}

func (l *heldAtLogLogger) Log(log.Event) { l.held = append(l.held, l.seg.held) }

func TestEventsLoggedAfterUnlock(t *testing.T) {
	store := segment.NewMemoryStore()
	raw, err := store.Create("test.mem0x", layout.BankSegmentSize(8))
	require.NoError(t, err)
	seg := &heldSegment{Segment: raw}
	defer seg.Close()

	l := &heldAtLogLogger{seg: seg}
	b := NewBlock(seg, BlockConfig{Bank: address.BankCoil, Bytes: 8, Logger: l})
	b.ResetHeader()

	b.SetBytes(0, []byte{1, 2})
	b.Restore(2, []byte{3})
	b.SetBitRange(3, 10, []byte{0xFF, 0x03})
	b.SetBit(40, true)
	b.Consume()

	require.Len(t, l.held, 5)
	for i, held := range l.held {
		assert.False(t, held, "event %d logged with the segment locked", i)
	}
	assert.False(t, seg.held)
}

// stubSegment is a Segment whose lock calls are recorded.
type stubSegment struct {
	mock.Mock
	buf []byte
}

func (s *stubSegment) Name() string  { return "stub.mem4x" }
func (s *stubSegment) Size() int     { return len(s.buf) }
func (s *stubSegment) Bytes() []byte { return s.buf }
func (s *stubSegment) Lock() error   { return s.Called().Error(0) }
func (s *stubSegment) Unlock() error { return s.Called().Error(0) }
func (s *stubSegment) Close() error  { return nil }

func TestOneLockPerAccessor(t *testing.T) {
	seg := &stubSegment{buf: make([]byte, layout.BankSegmentSize(16))}
	seg.On("Lock").Return(nil)
	seg.On("Unlock").Return(nil)

	blk := NewBlock(seg, BlockConfig{Bank: address.BankHoldingRegister, Bytes: 16})
	regs := NewRegBlock(blk, 8, Order{Byte: ByteOrderBig, Register: R3R2R1R0})

	calls := []func(){
		func() { regs.SetUint64(0, 0x0102030405060708) },
		func() { _ = regs.Uint64(0) },
		func() { regs.SetFloat32(4, 1.5) },
		func() { _ = regs.Float32(4) },
		func() { regs.SetText(6, "ab") },
		func() { _ = regs.Text(6, 2) },
		func() { _ = blk.SetBitRange(3, 20, []byte{1, 2, 3}) },
		func() { _ = blk.GetBitRange(3, 20) },
	}
	for i, call := range calls {
		call()
		seg.AssertNumberOfCalls(t, "Lock", i+1)
		seg.AssertNumberOfCalls(t, "Unlock", i+1)
	}

	// Out of range: no lock taken at all.
	regs.SetUint64(6, 1)
	_ = regs.Uint32(7)
	seg.AssertNumberOfCalls(t, "Lock", len(calls))
}

func TestLockFailure(t *testing.T) {
	seg := &stubSegment{buf: make([]byte, layout.BankSegmentSize(4))}
	seg.On("Lock").Return(errors.New("lock broken"))

	rec := &recordingLogger{}
	blk := NewBlock(seg, BlockConfig{Bank: address.BankCoil, Bytes: 4, Logger: rec})

	assert.Equal(t, 0, blk.SetBytes(0, []byte{1}))
	assert.Nil(t, blk.GetBytes(0, 1))
	assert.False(t, blk.SetBitRange(0, 3, []byte{7}))
	seg.AssertNotCalled(t, "Unlock")
	assert.Equal(t, make([]byte, 4), seg.buf[layout.HeaderSize:layout.HeaderSize+4])

	require.Len(t, rec.events, 3)
	assert.Equal(t, log.CategoryError, rec.events[0].Category)
	assert.Equal(t, "lock broken", rec.events[0].Error.Message)
	assert.Equal(t, "lock", rec.events[0].Error.Context)
}
