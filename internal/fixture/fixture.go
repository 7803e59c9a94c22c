// Package fixture builds device images the way the owning process lays
// them out. Tests and the create command use it to stand in for the owner.
package fixture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/modbus-tools/mbshm-go/pkg/address"
	"github.com/modbus-tools/mbshm-go/pkg/layout"
	"github.com/modbus-tools/mbshm-go/pkg/memory"
	"github.com/modbus-tools/mbshm-go/pkg/segment"
)

// Image describes a device image to build.
type Image struct {
	// Prefix names the segments.
	Prefix string

	// Name is stored in the string table.
	Name string

	Flags uint32
	Cycle uint32

	// Element counts: bits for coils and discrete inputs, registers
	// otherwise.
	Coils            int
	DiscreteInputs   int
	InputRegisters   int
	HoldingRegisters int

	ByteOrder     memory.ByteOrder
	RegisterOrder memory.RegisterOrder

	// ExceptionStatusRef is the Modbus numeric address of the exception
	// status byte (e.g. 400001). Zero leaves it unset.
	ExceptionStatusRef uint32
}

// DefaultImage returns a small little-endian image.
func DefaultImage(prefix string) Image {
	return Image{
		Prefix:             prefix,
		Name:               prefix,
		Coils:              64,
		DiscreteInputs:     64,
		InputRegisters:     32,
		HoldingRegisters:   32,
		ByteOrder:          memory.ByteOrderLittle,
		RegisterOrder:      memory.R0R1R2R3,
		ExceptionStatusRef: 1,
	}
}

// Count returns the element count configured for bank.
func (img Image) Count(bank address.Bank) int {
	switch bank {
	case address.BankCoil:
		return img.Coils
	case address.BankDiscreteInput:
		return img.DiscreteInputs
	case address.BankInputRegister:
		return img.InputRegisters
	case address.BankHoldingRegister:
		return img.HoldingRegisters
	default:
		return 0
	}
}

// Owner holds the segments of a built image.
type Owner struct {
	img     Image
	creator segment.Creator

	mu     sync.Mutex
	device segment.Segment
	script segment.Segment
	banks  map[address.Bank]segment.Segment
}

// Create lays out every segment of img in c. Existing segments of the same
// name are replaced.
func Create(c segment.Creator, img Image) (*Owner, error) {
	if img.Prefix == "" {
		return nil, errors.New("fixture: prefix required")
	}
	o := &Owner{img: img, creator: c, banks: make(map[address.Bank]segment.Segment)}
	if err := o.build(); err != nil {
		o.Close()
		return nil, fmt.Errorf("fixture %s: %w", img.Prefix, err)
	}
	return o, nil
}

func (o *Owner) build() error {
	img := o.img
	table, offs := layout.BuildStringTable(img.Name)
	info := layout.DeviceBlock{
		Flags:              img.Flags,
		Cycle:              img.Cycle,
		Count0x:            uint32(img.Coils),
		Count1x:            uint32(img.DiscreteInputs),
		Count3x:            uint32(img.InputRegisters),
		Count4x:            uint32(img.HoldingRegisters),
		ExceptionStatusRef: img.ExceptionStatusRef,
		ByteOrder:          int32(img.ByteOrder),
		RegisterOrder:      int32(img.RegisterOrder),
		StoDeviceName:      offs[0],
		StringTableSize:    uint32(len(table)),
	}

	var err error
	o.device, err = o.creator.Create(layout.SegmentName(img.Prefix, layout.SuffixDevice), layout.DeviceBlockSize+len(table))
	if err != nil {
		return err
	}
	buf := o.device.Bytes()
	if err := info.Encode(buf); err != nil {
		return err
	}
	copy(buf[layout.DeviceBlockSize:], table)

	o.script, err = o.creator.Create(layout.SegmentName(img.Prefix, layout.SuffixScript), layout.ScriptBlockSize)
	if err != nil {
		return err
	}

	for _, bank := range address.Banks {
		n := img.Count(bank)
		if bank.BitAddressed() {
			n = (n + 7) / 8
		} else {
			n *= 2
		}
		seg, err := o.creator.Create(layout.SegmentName(img.Prefix, bank.Suffix()), layout.BankSegmentSize(n))
		if err != nil {
			return err
		}
		o.banks[bank] = seg
		if err := layout.ResetHeader().Encode(seg.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// Image returns the description the owner was built from.
func (o *Owner) Image() Image { return o.img }

// Bank returns the owner's handle on a bank segment.
func (o *Owner) Bank(bank address.Bank) segment.Segment {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.banks[bank]
}

// SetCycle stores the owner's cycle counter.
func (o *Owner) SetCycle(v uint32) error {
	return o.putDeviceWord(layout.CycleOffset, v)
}

// SetFlags stores the device flags.
func (o *Owner) SetFlags(v uint32) error {
	return o.putDeviceWord(layout.FlagsOffset, v)
}

func (o *Owner) putDeviceWord(off int, v uint32) error {
	if err := o.device.Lock(); err != nil {
		return err
	}
	defer o.device.Unlock()
	info, err := layout.DecodeDeviceBlock(o.device.Bytes())
	if err != nil {
		return err
	}
	switch off {
	case layout.CycleOffset:
		info.Cycle = v
	case layout.FlagsOffset:
		info.Flags = v
	}
	return info.Encode(o.device.Bytes())
}

// Close releases the owner's handles. The segments stay in place.
func (o *Owner) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var errs []error
	for _, seg := range o.segments() {
		if err := seg.Close(); err != nil && !errors.Is(err, segment.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Remove closes the handles and deletes every segment of the image.
func (o *Owner) Remove() error {
	return errors.Join(o.Close(), Remove(o.creator, o.img.Prefix))
}

// Remove deletes every segment of the image named prefix. Missing
// segments are skipped.
func Remove(c segment.Creator, prefix string) error {
	names := []string{
		layout.SegmentName(prefix, layout.SuffixDevice),
		layout.SegmentName(prefix, layout.SuffixScript),
	}
	for _, bank := range address.Banks {
		names = append(names, layout.SegmentName(prefix, bank.Suffix()))
	}
	var errs []error
	for _, name := range names {
		if err := c.Remove(name); err != nil && !errors.Is(err, segment.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o *Owner) segments() []segment.Segment {
	var out []segment.Segment
	for _, seg := range []segment.Segment{o.device, o.script} {
		if seg != nil {
			out = append(out, seg)
		}
	}
	for _, bank := range address.Banks {
		if seg := o.banks[bank]; seg != nil {
			out = append(out, seg)
		}
	}
	return out
}
