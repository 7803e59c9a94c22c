package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/modbus-tools/mbshm-go/pkg/address"
	"github.com/modbus-tools/mbshm-go/pkg/device"
	"github.com/modbus-tools/mbshm-go/pkg/inspect"
)

// RunInfo prints the device summary.
func RunInfo(opts Options, w io.Writer) error {
	return opts.withDevice(func(d *device.Device) error {
		tree := inspect.NewInspector(d).InspectDevice()
		fmt.Fprint(w, opts.Formatter().FormatDeviceTree(tree))
		return nil
	})
}

// RunGet reads every path and prints one "path = value" line each.
func RunGet(opts Options, paths []string, w io.Writer) error {
	if len(paths) == 0 {
		return inspect.ErrEmptyPath
	}
	return opts.withDevice(func(d *device.Device) error {
		return Get(inspect.NewInspector(d), opts.Formatter(), paths, w)
	})
}

// Get reads paths through insp. It stops at the first failure.
func Get(insp *inspect.Inspector, f *inspect.Formatter, paths []string, w io.Writer) error {
	for _, raw := range paths {
		p, v, err := insp.ReadPath(raw)
		if err != nil {
			return fmt.Errorf("get %s: %w", raw, err)
		}
		fmt.Fprintf(w, "%s = %s\n", p.String(f.Notation), f.FormatValue(v))
	}
	return nil
}

// RunSet writes value to path and echoes the value read back.
func RunSet(opts Options, path, value string, w io.Writer) error {
	return opts.withDevice(func(d *device.Device) error {
		return Set(inspect.NewInspector(d), opts.Formatter(), path, value, w)
	})
}

// Set writes value to path through insp.
func Set(insp *inspect.Inspector, f *inspect.Formatter, path, value string, w io.Writer) error {
	p, err := insp.WritePath(path, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	v, err := insp.Read(p)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	fmt.Fprintf(w, "%s = %s\n", p.String(f.Notation), f.FormatValue(v))
	return nil
}

// DefaultDumpCount is the number of elements dump lists without a count.
const DefaultDumpCount = 16

// RunDump lists n elements of a bank starting at off.
func RunDump(opts Options, bank string, off, n int, w io.Writer) error {
	b, err := address.ParseBank(bank)
	if err != nil {
		return err
	}
	return opts.withDevice(func(d *device.Device) error {
		return Dump(inspect.NewInspector(d), opts.Formatter(), b, off, n, w)
	})
}

// Dump lists n elements of bank through insp.
func Dump(insp *inspect.Inspector, f *inspect.Formatter, bank address.Bank, off, n int, w io.Writer) error {
	if n <= 0 {
		n = DefaultDumpCount
	}
	cells, err := insp.ReadRange(bank, off, n)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s [%d,%d) of %d\n", bank, off, off+len(cells), insp.Device().Count(bank))
	fmt.Fprint(w, f.FormatCells(cells))
	return nil
}

// RunMemDump prints a hex dump of the device segment.
func RunMemDump(opts Options, off, n int, w io.Writer) error {
	return opts.withDevice(func(d *device.Device) error {
		return MemDump(d, off, n, w)
	})
}

// MemDump prints n bytes of the device segment of d at off.
func MemDump(d *device.Device, off, n int, w io.Writer) error {
	b := d.MemDump(off, n)
	if len(b) == 0 {
		return fmt.Errorf("%w: device segment offset %d", inspect.ErrOutOfRange, off)
	}
	fmt.Fprint(w, inspect.FormatHexDump(off, b))
	return nil
}

// RunBeat advances the scripting heartbeat once and prints the new value.
func RunBeat(opts Options, w io.Writer) error {
	return opts.withDevice(func(d *device.Device) error {
		fmt.Fprintln(w, strconv.FormatUint(uint64(d.Beat()), 10))
		return nil
	})
}
