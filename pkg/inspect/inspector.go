package inspect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/modbus-tools/mbshm-go/pkg/address"
	"github.com/modbus-tools/mbshm-go/pkg/device"
	"github.com/modbus-tools/mbshm-go/pkg/layout"
	"github.com/modbus-tools/mbshm-go/pkg/memory"
)

// Inspector errors.
var (
	ErrOutOfRange   = errors.New("address out of range")
	ErrInvalidValue = errors.New("invalid value")
)

// Inspector reads and writes a device image by path. Unlike the device
// accessors, it reports out-of-range access as an error.
type Inspector struct {
	device *device.Device
}

// NewInspector creates a new Inspector for the given device.
func NewInspector(d *device.Device) *Inspector {
	return &Inspector{device: d}
}

// Device returns the underlying device.
func (i *Inspector) Device() *device.Device {
	return i.device
}

// DeviceTree summarises a device image for display.
type DeviceTree struct {
	Prefix          string
	Name            string
	SessionID       string
	Order           memory.Order
	Flags           uint32
	Cycle           uint32
	Heartbeat       uint32
	ExceptionStatus address.Address
	ExceptionValue  uint8
	Banks           []BankInfo
}

// BankInfo describes one bank.
type BankInfo struct {
	Bank   address.Bank
	Count  int
	Bytes  int
	Header layout.ChangeHeader
}

// InspectDevice returns a summary of the device.
func (i *Inspector) InspectDevice() *DeviceTree {
	d := i.device
	tree := &DeviceTree{
		Prefix:          d.Prefix(),
		Name:            d.Name(),
		SessionID:       d.SessionID(),
		Order:           d.Order(),
		Flags:           d.Flags(),
		Cycle:           d.Cycle(),
		Heartbeat:       d.Heartbeat(),
		ExceptionStatus: d.ExceptionStatusAddress(),
		ExceptionValue:  d.ExceptionStatus(),
	}
	for _, bank := range address.Banks {
		blk := d.Block(bank)
		tree.Banks = append(tree.Banks, BankInfo{
			Bank:   bank,
			Count:  d.Count(bank),
			Bytes:  blk.Size(),
			Header: blk.Header(),
		})
	}
	return tree
}

// checkRange fails if p does not fit its bank.
func (i *Inspector) checkRange(p *Path) error {
	bank := p.Address.Bank()
	count := i.device.Count(bank)
	off := p.Address.Offset()

	var ok bool
	switch {
	case bank.BitAddressed() && p.Type == TypeString:
		ok = off+p.Length*8 <= count
	case bank.BitAddressed():
		ok = off+p.Type.Bits() <= count
	case p.Type == TypeString:
		ok = off*2+p.Length <= count*2
	case p.Type.Bits() <= 16:
		ok = off < count
	default:
		ok = off+p.Type.Bits()/16 <= count
	}
	if !ok {
		return fmt.Errorf("%w: %s %s (bank holds %d)", ErrOutOfRange, p.Address, p.Type, count)
	}
	return nil
}

// Read returns the value at p.
func (i *Inspector) Read(p *Path) (any, error) {
	if p == nil {
		return nil, ErrEmptyPath
	}
	if err := i.checkRange(p); err != nil {
		return nil, err
	}
	d, a := i.device, p.Address
	switch p.Type {
	case TypeBool:
		return d.Bool(a)
	case TypeInt8:
		return d.Int8(a)
	case TypeUint8:
		return d.Uint8(a)
	case TypeInt16:
		return d.Int16(a)
	case TypeUint16:
		return d.Uint16(a)
	case TypeInt32:
		return d.Int32(a)
	case TypeUint32:
		return d.Uint32(a)
	case TypeInt64:
		return d.Int64(a)
	case TypeUint64:
		return d.Uint64(a)
	case TypeFloat32:
		return d.Float32(a)
	case TypeFloat64:
		return d.Float64(a)
	case TypeString:
		return d.Text(a, p.Length)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, p.Type)
	}
}

// ReadPath parses input and reads it.
func (i *Inspector) ReadPath(input string) (*Path, any, error) {
	p, err := ParsePath(input)
	if err != nil {
		return nil, nil, err
	}
	v, err := i.Read(p)
	return p, v, err
}

// Write parses text as a value of p's type and stores it.
func (i *Inspector) Write(p *Path, text string) error {
	if p == nil {
		return ErrEmptyPath
	}
	v, err := ParseValue(p.Type, text)
	if err != nil {
		return err
	}
	if p.Type == TypeString {
		s := v.(string)
		if len(s) > p.Length {
			return fmt.Errorf("%w: %d bytes do not fit in %d", ErrInvalidValue, len(s), p.Length)
		}
		if len(s) == 0 {
			return fmt.Errorf("%w: empty string", ErrInvalidValue)
		}
	}
	if err := i.checkRange(p); err != nil {
		return err
	}
	return i.store(p, v)
}

func (i *Inspector) store(p *Path, v any) error {
	d, a := i.device, p.Address
	switch x := v.(type) {
	case bool:
		return d.SetBool(a, x)
	case int8:
		return d.SetInt8(a, x)
	case uint8:
		return d.SetUint8(a, x)
	case int16:
		return d.SetInt16(a, x)
	case uint16:
		return d.SetUint16(a, x)
	case int32:
		return d.SetInt32(a, x)
	case uint32:
		return d.SetUint32(a, x)
	case int64:
		return d.SetInt64(a, x)
	case uint64:
		return d.SetUint64(a, x)
	case float32:
		return d.SetFloat32(a, x)
	case float64:
		return d.SetFloat64(a, x)
	case string:
		return d.SetText(a, x)
	default:
		return fmt.Errorf("%w: %T", ErrInvalidValue, v)
	}
}

// WritePath parses input and writes text to it.
func (i *Inspector) WritePath(input, text string) (*Path, error) {
	p, err := ParsePath(input)
	if err != nil {
		return nil, err
	}
	return p, i.Write(p, text)
}

// ParseValue converts text to a Go value of type t. Integers accept a 0x
// prefix; bool accepts true/false, on/off and 1/0.
func ParseValue(t Type, text string) (any, error) {
	s := strings.TrimSpace(text)
	wrap := func(err error) error {
		return fmt.Errorf("%w: %q as %s: %w", ErrInvalidValue, text, t, err)
	}

	switch t {
	case TypeBool:
		switch strings.ToLower(s) {
		case "true", "on", "1":
			return true, nil
		case "false", "off", "0":
			return false, nil
		}
		return nil, wrap(errors.New("not a bool"))
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		v, err := strconv.ParseInt(s, 0, t.Bits())
		if err != nil {
			return nil, wrap(err)
		}
		switch t {
		case TypeInt8:
			return int8(v), nil
		case TypeInt16:
			return int16(v), nil
		case TypeInt32:
			return int32(v), nil
		}
		return v, nil
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		v, err := strconv.ParseUint(s, 0, t.Bits())
		if err != nil {
			return nil, wrap(err)
		}
		switch t {
		case TypeUint8:
			return uint8(v), nil
		case TypeUint16:
			return uint16(v), nil
		case TypeUint32:
			return uint32(v), nil
		}
		return v, nil
	case TypeFloat32:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, wrap(err)
		}
		return float32(v), nil
	case TypeFloat64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, wrap(err)
		}
		return v, nil
	case TypeString:
		return text, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
}

// Cell is one element of a bank listing.
type Cell struct {
	Address address.Address
	// Value is a bool for bit banks and a uint16 for register banks.
	Value any
}

// ReadRange lists n elements of a bank starting at offset off, clipped to
// the bank.
func (i *Inspector) ReadRange(bank address.Bank, off, n int) ([]Cell, error) {
	count := i.device.Count(bank)
	if off < 0 || off >= count {
		return nil, fmt.Errorf("%w: %s offset %d (bank holds %d)", ErrOutOfRange, bank, off, count)
	}
	n = min(n, count-off)

	cells := make([]Cell, 0, max(n, 0))
	for k := off; k < off+n; k++ {
		a, err := address.New(bank, k)
		if err != nil {
			return cells, err
		}
		var v any
		if bank.BitAddressed() {
			v, _ = i.device.Bool(a)
		} else {
			v, _ = i.device.Uint16(a)
		}
		cells = append(cells, Cell{Address: a, Value: v})
	}
	return cells, nil
}
