package device

import (
	"github.com/modbus-tools/mbshm-go/pkg/address"
	"github.com/modbus-tools/mbshm-go/pkg/memory"
)

// Resolve converts an int, a string or an Address into an Address.
func (d *Device) Resolve(addr any) (address.Address, error) {
	return address.Resolve(addr)
}

// target is a resolved address bound to its view.
type target struct {
	bits *memory.BitBlock
	regs *memory.RegBlock
	off  int
}

func (d *Device) target(addr any) (target, error) {
	a, err := address.Resolve(addr)
	if err != nil {
		return target{}, err
	}
	t := target{off: a.Offset()}
	switch a.Bank() {
	case address.BankCoil:
		t.bits = d.coils
	case address.BankDiscreteInput:
		t.bits = d.discrete
	case address.BankInputRegister:
		t.regs = d.input
	case address.BankHoldingRegister:
		t.regs = d.holding
	default:
		return target{}, address.ErrInvalidBank
	}
	return t, nil
}

// Bool reads a bit. On a register bank it reports whether the register
// is non-zero.
func (d *Device) Bool(addr any) (bool, error) {
	t, err := d.target(addr)
	if err != nil {
		return false, err
	}
	if t.bits != nil {
		return t.bits.Bool(t.off), nil
	}
	return t.regs.Uint16(t.off) != 0, nil
}

// SetBool writes a bit. On a register bank it writes 1 or 0.
func (d *Device) SetBool(addr any, v bool) error {
	t, err := d.target(addr)
	if err != nil {
		return err
	}
	if t.bits != nil {
		t.bits.SetBool(t.off, v)
		return nil
	}
	var x uint16
	if v {
		x = 1
	}
	t.regs.SetUint16(t.off, x)
	return nil
}

// Uint8 reads a byte. On a register bank it reads the first byte of the
// addressed register.
func (d *Device) Uint8(addr any) (uint8, error) {
	t, err := d.target(addr)
	if err != nil {
		return 0, err
	}
	if t.bits != nil {
		return t.bits.Uint8(t.off), nil
	}
	return t.regs.Uint8(t.off * 2), nil
}

func (d *Device) SetUint8(addr any, v uint8) error {
	t, err := d.target(addr)
	if err != nil {
		return err
	}
	if t.bits != nil {
		t.bits.SetUint8(t.off, v)
	} else {
		t.regs.SetUint8(t.off*2, v)
	}
	return nil
}

func (d *Device) Int8(addr any) (int8, error) {
	v, err := d.Uint8(addr)
	return int8(v), err
}

func (d *Device) SetInt8(addr any, v int8) error {
	return d.SetUint8(addr, uint8(v))
}

func (d *Device) Uint16(addr any) (uint16, error) {
	t, err := d.target(addr)
	if err != nil {
		return 0, err
	}
	if t.bits != nil {
		return t.bits.Uint16(t.off), nil
	}
	return t.regs.Uint16(t.off), nil
}

func (d *Device) SetUint16(addr any, v uint16) error {
	t, err := d.target(addr)
	if err != nil {
		return err
	}
	if t.bits != nil {
		t.bits.SetUint16(t.off, v)
	} else {
		t.regs.SetUint16(t.off, v)
	}
	return nil
}

func (d *Device) Int16(addr any) (int16, error) {
	v, err := d.Uint16(addr)
	return int16(v), err
}

func (d *Device) SetInt16(addr any, v int16) error {
	return d.SetUint16(addr, uint16(v))
}

func (d *Device) Uint32(addr any) (uint32, error) {
	t, err := d.target(addr)
	if err != nil {
		return 0, err
	}
	if t.bits != nil {
		return t.bits.Uint32(t.off), nil
	}
	return t.regs.Uint32(t.off), nil
}

func (d *Device) SetUint32(addr any, v uint32) error {
	t, err := d.target(addr)
	if err != nil {
		return err
	}
	if t.bits != nil {
		t.bits.SetUint32(t.off, v)
	} else {
		t.regs.SetUint32(t.off, v)
	}
	return nil
}

func (d *Device) Int32(addr any) (int32, error) {
	v, err := d.Uint32(addr)
	return int32(v), err
}

func (d *Device) SetInt32(addr any, v int32) error {
	return d.SetUint32(addr, uint32(v))
}

func (d *Device) Uint64(addr any) (uint64, error) {
	t, err := d.target(addr)
	if err != nil {
		return 0, err
	}
	if t.bits != nil {
		return t.bits.Uint64(t.off), nil
	}
	return t.regs.Uint64(t.off), nil
}

func (d *Device) SetUint64(addr any, v uint64) error {
	t, err := d.target(addr)
	if err != nil {
		return err
	}
	if t.bits != nil {
		t.bits.SetUint64(t.off, v)
	} else {
		t.regs.SetUint64(t.off, v)
	}
	return nil
}

func (d *Device) Int64(addr any) (int64, error) {
	v, err := d.Uint64(addr)
	return int64(v), err
}

func (d *Device) SetInt64(addr any, v int64) error {
	return d.SetUint64(addr, uint64(v))
}

func (d *Device) Float32(addr any) (float32, error) {
	t, err := d.target(addr)
	if err != nil {
		return 0, err
	}
	if t.bits != nil {
		return t.bits.Float32(t.off), nil
	}
	return t.regs.Float32(t.off), nil
}

func (d *Device) SetFloat32(addr any, v float32) error {
	t, err := d.target(addr)
	if err != nil {
		return err
	}
	if t.bits != nil {
		t.bits.SetFloat32(t.off, v)
	} else {
		t.regs.SetFloat32(t.off, v)
	}
	return nil
}

func (d *Device) Float64(addr any) (float64, error) {
	t, err := d.target(addr)
	if err != nil {
		return 0, err
	}
	if t.bits != nil {
		return t.bits.Float64(t.off), nil
	}
	return t.regs.Float64(t.off), nil
}

func (d *Device) SetFloat64(addr any, v float64) error {
	t, err := d.target(addr)
	if err != nil {
		return err
	}
	if t.bits != nil {
		t.bits.SetFloat64(t.off, v)
	} else {
		t.regs.SetFloat64(t.off, v)
	}
	return nil
}

// Text reads up to n bytes of text at addr.
func (d *Device) Text(addr any, n int) (string, error) {
	t, err := d.target(addr)
	if err != nil {
		return "", err
	}
	if t.bits != nil {
		return t.bits.Text(t.off, n), nil
	}
	return t.regs.Text(t.off, n), nil
}

// SetText writes s at addr. Text that does not fit is not written.
func (d *Device) SetText(addr any, s string) error {
	t, err := d.target(addr)
	if err != nil {
		return err
	}
	if t.bits != nil {
		t.bits.SetText(t.off, s)
	} else {
		t.regs.SetText(t.off, s)
	}
	return nil
}
