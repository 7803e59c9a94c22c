package inspect

import (
	"fmt"
	"strings"

	"github.com/modbus-tools/mbshm-go/pkg/address"
	"github.com/modbus-tools/mbshm-go/pkg/layout"
	"github.com/modbus-tools/mbshm-go/pkg/memory"
)

// Formatter formats inspection output.
type Formatter struct {
	// Notation selects how addresses are printed.
	Notation address.Notation

	// Hex prints integers in hexadecimal.
	Hex bool

	// IndentWidth is the number of spaces per indent level
	IndentWidth int
}

// NewFormatter creates a new Formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{
		Notation:    address.NotationModbus,
		IndentWidth: 2,
	}
}

// Indent returns the content with indentation.
func (f *Formatter) Indent(depth int, content string) string {
	width := f.IndentWidth
	if width == 0 {
		width = 2
	}
	indent := strings.Repeat(" ", depth*width)
	return indent + content
}

// FormatAddress formats an address in the configured notation.
func (f *Formatter) FormatAddress(a address.Address) string {
	return a.Format(f.Notation)
}

// FormatValue formats a value for display.
func (f *Formatter) FormatValue(value any) string {
	if value == nil {
		return "null"
	}

	switch v := value.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"

	case string:
		return fmt.Sprintf("%q", v)

	case int8:
		return f.formatInt(int64(v), 8)
	case int16:
		return f.formatInt(int64(v), 16)
	case int32:
		return f.formatInt(int64(v), 32)
	case int64:
		return f.formatInt(v, 64)

	case uint8:
		return f.formatUint(uint64(v), 8)
	case uint16:
		return f.formatUint(uint64(v), 16)
	case uint32:
		return f.formatUint(uint64(v), 32)
	case uint64:
		return f.formatUint(v, 64)

	case float32:
		return fmt.Sprintf("%g", v)
	case float64:
		return fmt.Sprintf("%g", v)

	case []byte:
		return fmt.Sprintf("0x%x", v)

	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatInt prints negative values in hex as their two's complement.
func (f *Formatter) formatInt(v int64, bits int) string {
	if !f.Hex {
		return fmt.Sprintf("%d", v)
	}
	u := uint64(v)
	if bits < 64 {
		u &= 1<<bits - 1
	}
	return f.formatUint(u, bits)
}

func (f *Formatter) formatUint(v uint64, bits int) string {
	if !f.Hex {
		return fmt.Sprintf("%d", v)
	}
	return fmt.Sprintf("0x%0*X", bits/4, v)
}

// FormatHeader formats a change header.
func FormatHeader(h layout.ChangeHeader) string {
	return h.String()
}

// FormatOrder formats a byte and register order pair.
func FormatOrder(o memory.Order) string {
	s := o.String()
	if o.Native() {
		s += " (native)"
	}
	return s
}

// FormatFlags formats the device flags bitmask.
func FormatFlags(flags uint32) string {
	if flags == 0 {
		return "0x0 (none)"
	}
	return fmt.Sprintf("0x%08x", flags)
}

// FormatDeviceTree renders the device summary.
func (f *Formatter) FormatDeviceTree(tree *DeviceTree) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Device %s", tree.Prefix)
	if tree.Name != "" {
		fmt.Fprintf(&sb, " (%s)", tree.Name)
	}
	sb.WriteString("\n")

	line := func(label, value string) {
		sb.WriteString(f.Indent(1, fmt.Sprintf("%-17s %s\n", label+":", value)))
	}
	line("session", tree.SessionID)
	line("order", FormatOrder(tree.Order))
	line("flags", FormatFlags(tree.Flags))
	line("cycle", fmt.Sprintf("%d", tree.Cycle))
	line("heartbeat", fmt.Sprintf("%d", tree.Heartbeat))
	line("exception status", fmt.Sprintf("%s = %s",
		f.FormatAddress(tree.ExceptionStatus), f.FormatValue(tree.ExceptionValue)))

	sb.WriteString(f.Indent(1, "banks:\n"))
	for _, b := range tree.Banks {
		unit := "registers"
		if b.Bank.BitAddressed() {
			unit = "bits"
		}
		sb.WriteString(f.Indent(2, fmt.Sprintf("%-17s %d %s, %d bytes, %s\n",
			b.Bank.String()+":", b.Count, unit, b.Bytes, FormatHeader(b.Header))))
	}
	return sb.String()
}

// FormatCells formats a bank listing, one element per line.
func (f *Formatter) FormatCells(cells []Cell) string {
	if len(cells) == 0 {
		return f.Indent(1, "(empty)")
	}

	var sb strings.Builder
	for _, c := range cells {
		sb.WriteString(f.Indent(1, fmt.Sprintf("%s: %s\n", f.FormatAddress(c.Address), f.FormatValue(c.Value))))
	}
	return sb.String()
}

// FormatHexDump formats b as a hex dump, 16 bytes per line, labelled from
// offset base.
func FormatHexDump(base int, b []byte) string {
	var sb strings.Builder
	for i := 0; i < len(b); i += 16 {
		end := min(i+16, len(b))
		fmt.Fprintf(&sb, "%04x  ", base+i)
		for j := i; j < i+16; j++ {
			if j < end {
				fmt.Fprintf(&sb, "%02x ", b[j])
			} else {
				sb.WriteString("   ")
			}
			if j == i+7 {
				sb.WriteString(" ")
			}
		}
		sb.WriteString(" |")
		for _, c := range b[i:end] {
			if c >= 0x20 && c < 0x7f {
				sb.WriteByte(c)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteString("|\n")
	}
	return sb.String()
}

// FormatChange formats a consumed change of bank.
func FormatChange(bank address.Bank, c memory.Change) string {
	if c.Empty() {
		return fmt.Sprintf("%s: no change", bank)
	}
	return fmt.Sprintf("%s: rev=%d bytes [%d,%d) % x",
		bank, c.Revision, c.Offset, c.Offset+len(c.Data), c.Data)
}
