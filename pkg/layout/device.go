package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Field offsets inside the device block.
const (
	offFlags              = 0
	offCycle              = 4
	offCount0x            = 8
	offCount1x            = 12
	offCount3x            = 16
	offCount4x            = 20
	offExceptionStatusRef = 24
	offByteOrder          = 28
	offRegisterOrder      = 32
	offStoDeviceName      = 36
	offStringTableSize    = 40
)

// CycleOffset is the byte offset of the cycle counter in the device segment.
// The owner rewrites it every pass.
const CycleOffset = offCycle

// FlagsOffset is the byte offset of the device flags.
const FlagsOffset = offFlags

// DeviceBlock is the fixed part of the device segment. A string table of
// StringTableSize bytes follows it.
type DeviceBlock struct {
	Flags              uint32
	Cycle              uint32
	Count0x            uint32
	Count1x            uint32
	Count3x            uint32
	Count4x            uint32
	ExceptionStatusRef uint32
	ByteOrder          int32
	RegisterOrder      int32
	StoDeviceName      uint32
	StringTableSize    uint32
}

// DecodeDeviceBlock reads the fixed part of a device segment.
func DecodeDeviceBlock(b []byte) (DeviceBlock, error) {
	if len(b) < DeviceBlockSize {
		return DeviceBlock{}, fmt.Errorf("device block: %w (%d < %d)", ErrShortBuffer, len(b), DeviceBlockSize)
	}
	le := binary.LittleEndian
	return DeviceBlock{
		Flags:              le.Uint32(b[offFlags:]),
		Cycle:              le.Uint32(b[offCycle:]),
		Count0x:            le.Uint32(b[offCount0x:]),
		Count1x:            le.Uint32(b[offCount1x:]),
		Count3x:            le.Uint32(b[offCount3x:]),
		Count4x:            le.Uint32(b[offCount4x:]),
		ExceptionStatusRef: le.Uint32(b[offExceptionStatusRef:]),
		ByteOrder:          int32(le.Uint32(b[offByteOrder:])),
		RegisterOrder:      int32(le.Uint32(b[offRegisterOrder:])),
		StoDeviceName:      le.Uint32(b[offStoDeviceName:]),
		StringTableSize:    le.Uint32(b[offStringTableSize:]),
	}, nil
}

// Encode writes the fixed part into b.
func (d DeviceBlock) Encode(b []byte) error {
	if len(b) < DeviceBlockSize {
		return fmt.Errorf("device block: %w (%d < %d)", ErrShortBuffer, len(b), DeviceBlockSize)
	}
	le := binary.LittleEndian
	le.PutUint32(b[offFlags:], d.Flags)
	le.PutUint32(b[offCycle:], d.Cycle)
	le.PutUint32(b[offCount0x:], d.Count0x)
	le.PutUint32(b[offCount1x:], d.Count1x)
	le.PutUint32(b[offCount3x:], d.Count3x)
	le.PutUint32(b[offCount4x:], d.Count4x)
	le.PutUint32(b[offExceptionStatusRef:], d.ExceptionStatusRef)
	le.PutUint32(b[offByteOrder:], uint32(d.ByteOrder))
	le.PutUint32(b[offRegisterOrder:], uint32(d.RegisterOrder))
	le.PutUint32(b[offStoDeviceName:], d.StoDeviceName)
	le.PutUint32(b[offStringTableSize:], d.StringTableSize)
	return nil
}

// StringTable returns the string table following the fixed block in a
// device segment, clipped to the segment.
func (d DeviceBlock) StringTable(seg []byte) []byte {
	if len(seg) <= DeviceBlockSize {
		return nil
	}
	end := DeviceBlockSize + int(d.StringTableSize)
	if end > len(seg) || end < DeviceBlockSize {
		end = len(seg)
	}
	return seg[DeviceBlockSize:end]
}

// TableString reads the null-terminated string at off in a string table.
// An offset past the table yields "".
func TableString(table []byte, off uint32) string {
	if uint64(off) >= uint64(len(table)) {
		return ""
	}
	s := table[off:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}

// BuildStringTable packs strs into a string table, returning the table and
// each string's offset.
func BuildStringTable(strs ...string) ([]byte, []uint32) {
	var buf bytes.Buffer
	offs := make([]uint32, len(strs))
	for i, s := range strs {
		offs[i] = uint32(buf.Len())
		buf.WriteString(s)
		buf.WriteByte(0)
	}
	return buf.Bytes(), offs
}

// ScriptBlock is the scripting segment: a heartbeat the script bumps once
// per pass.
type ScriptBlock struct {
	PyCycle uint32
}

// DecodeScriptBlock reads the scripting segment.
func DecodeScriptBlock(b []byte) (ScriptBlock, error) {
	if len(b) < ScriptBlockSize {
		return ScriptBlock{}, fmt.Errorf("script block: %w (%d < %d)", ErrShortBuffer, len(b), ScriptBlockSize)
	}
	return ScriptBlock{PyCycle: binary.LittleEndian.Uint32(b)}, nil
}

// Encode writes the scripting block into b.
func (s ScriptBlock) Encode(b []byte) error {
	if len(b) < ScriptBlockSize {
		return fmt.Errorf("script block: %w (%d < %d)", ErrShortBuffer, len(b), ScriptBlockSize)
	}
	binary.LittleEndian.PutUint32(b, s.PyCycle)
	return nil
}
