// Package device attaches to the shared register image of one Modbus
// device and resolves addresses to its banks.
//
// A device image is six segments named after a common prefix: the device
// block with its string table, the scripting heartbeat and one segment per
// memory bank. Attach maps all of them; Close releases them.
package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modbus-tools/mbshm-go/pkg/address"
	"github.com/modbus-tools/mbshm-go/pkg/layout"
	"github.com/modbus-tools/mbshm-go/pkg/log"
	"github.com/modbus-tools/mbshm-go/pkg/memory"
	"github.com/modbus-tools/mbshm-go/pkg/segment"
)

// Device errors.
var (
	ErrAttach   = errors.New("attach failed")
	ErrClosed   = errors.New("device closed")
	ErrNoPrefix = errors.New("segment prefix required")
)

// Config configures Attach.
type Config struct {
	// Prefix names the segments ("<prefix>.device", "<prefix>.mem4x", ...).
	Prefix string

	// Opener attaches the segments.
	Opener segment.Opener

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// AccessLogger receives session and write events.
	// If nil, access logging is disabled.
	AccessLogger log.Logger
}

// Device is an attached device image.
type Device struct {
	prefix    string
	sessionID string
	logger    *slog.Logger
	access    log.Logger

	devSeg    segment.Segment
	scriptSeg segment.Segment
	bankSegs  []segment.Segment

	info  layout.DeviceBlock
	name  string
	order memory.Order

	coils    *memory.BitBlock
	discrete *memory.BitBlock
	input    *memory.RegBlock
	holding  *memory.RegBlock

	exception address.Address

	mu     sync.Mutex
	beat   uint32
	closed bool
}

// Attach maps every segment of the device image. Any failure is fatal:
// segments already mapped are released and an ErrAttach error is returned.
func Attach(cfg Config) (*Device, error) {
	if cfg.Prefix == "" {
		return nil, fmt.Errorf("%w: %w", ErrAttach, ErrNoPrefix)
	}
	if cfg.Opener == nil {
		return nil, fmt.Errorf("%w: no segment opener", ErrAttach)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	d := &Device{
		prefix:    cfg.Prefix,
		sessionID: uuid.New().String(),
		logger:    logger.With("device", cfg.Prefix),
		access:    log.OrNoop(cfg.AccessLogger),
	}
	if err := d.attach(cfg.Opener); err != nil {
		d.release()
		return nil, fmt.Errorf("%w: %s: %w", ErrAttach, cfg.Prefix, err)
	}

	d.logger.Debug("attached",
		"name", d.name,
		"session", d.sessionID,
		"order", d.order.String(),
		"coils", d.coils.Count(),
		"discrete_inputs", d.discrete.Count(),
		"input_registers", d.input.Count(),
		"holding_registers", d.holding.Count(),
		"exception_status", d.exception.String(),
	)
	d.logSession(log.SessionAttached, "")
	return d, nil
}

func (d *Device) attach(opener segment.Opener) error {
	var err error
	d.devSeg, err = opener.Open(layout.SegmentName(d.prefix, layout.SuffixDevice))
	if err != nil {
		return err
	}
	if err := d.readDeviceBlock(); err != nil {
		return err
	}

	d.scriptSeg, err = opener.Open(layout.SegmentName(d.prefix, layout.SuffixScript))
	if err != nil {
		return err
	}
	if d.scriptSeg.Size() < layout.ScriptBlockSize {
		return fmt.Errorf("%s: %w", d.scriptSeg.Name(), layout.ErrShortBuffer)
	}
	d.beat = d.Heartbeat()

	blocks := make(map[address.Bank]*memory.Block, len(address.Banks))
	for _, bank := range address.Banks {
		seg, err := opener.Open(layout.SegmentName(d.prefix, bank.Suffix()))
		if err != nil {
			return err
		}
		d.bankSegs = append(d.bankSegs, seg)
		blocks[bank] = memory.NewBlock(seg, memory.BlockConfig{
			Bank:      bank,
			Bytes:     bankBytes(bank, d.declaredCount(bank)),
			Logger:    d.access,
			SessionID: d.sessionID,
			Device:    d.prefix,
		})
	}

	d.coils = memory.NewBitBlock(blocks[address.BankCoil], d.declaredCount(address.BankCoil), d.order)
	d.discrete = memory.NewBitBlock(blocks[address.BankDiscreteInput], d.declaredCount(address.BankDiscreteInput), d.order)
	d.input = memory.NewRegBlock(blocks[address.BankInputRegister], d.declaredCount(address.BankInputRegister), d.order)
	d.holding = memory.NewRegBlock(blocks[address.BankHoldingRegister], d.declaredCount(address.BankHoldingRegister), d.order)

	d.exception = exceptionAddress(d.info.ExceptionStatusRef)
	return nil
}

func (d *Device) readDeviceBlock() error {
	if err := d.devSeg.Lock(); err != nil {
		return err
	}
	defer d.devSeg.Unlock()

	buf := d.devSeg.Bytes()
	info, err := layout.DecodeDeviceBlock(buf)
	if err != nil {
		return fmt.Errorf("%s: %w", d.devSeg.Name(), err)
	}
	d.info = info
	d.name = layout.TableString(info.StringTable(buf), info.StoDeviceName)
	d.order = memory.Order{
		Byte:     memory.ByteOrder(info.ByteOrder),
		Register: memory.RegisterOrder(info.RegisterOrder),
	}
	return nil
}

// exceptionAddress decodes the exception status reference. An unusable
// reference falls back to the first coil.
func exceptionAddress(ref uint32) address.Address {
	a, err := address.FromInt(int(ref))
	if err != nil {
		a, _ = address.New(address.BankCoil, 0)
	}
	return a
}

// bankBytes returns the data size of a bank holding count elements.
func bankBytes(bank address.Bank, count int) int {
	if bank.BitAddressed() {
		return (count + 7) / 8
	}
	return count * 2
}

func (d *Device) declaredCount(bank address.Bank) int {
	switch bank {
	case address.BankCoil:
		return int(d.info.Count0x)
	case address.BankDiscreteInput:
		return int(d.info.Count1x)
	case address.BankInputRegister:
		return int(d.info.Count3x)
	case address.BankHoldingRegister:
		return int(d.info.Count4x)
	default:
		return 0
	}
}

// Prefix returns the segment name prefix.
func (d *Device) Prefix() string { return d.prefix }

// SessionID identifies this attachment in access logs.
func (d *Device) SessionID() string { return d.sessionID }

// Name returns the device name read from the string table at attach.
func (d *Device) Name() string { return d.name }

// Order returns the configured byte and register order.
func (d *Device) Order() memory.Order { return d.order }

// ByteOrder returns the configured byte order.
func (d *Device) ByteOrder() memory.ByteOrder { return d.order.Byte }

// RegisterOrder returns the configured register order.
func (d *Device) RegisterOrder() memory.RegisterOrder { return d.order.Register }

// Info returns the device block as read at attach.
func (d *Device) Info() layout.DeviceBlock { return d.info }

// Flags re-reads the device flags.
func (d *Device) Flags() uint32 {
	return d.deviceWord(layout.FlagsOffset)
}

// Cycle re-reads the owner's cycle counter.
func (d *Device) Cycle() uint32 {
	return d.deviceWord(layout.CycleOffset)
}

func (d *Device) deviceWord(off int) uint32 {
	if err := d.devSeg.Lock(); err != nil {
		return 0
	}
	defer d.devSeg.Unlock()
	buf := d.devSeg.Bytes()
	if len(buf) < off+4 {
		return 0
	}
	return binary.LittleEndian.Uint32(buf[off:])
}

// Count returns the number of usable elements of a bank: bits for coil
// and discrete input banks, registers otherwise.
func (d *Device) Count(bank address.Bank) int {
	switch bank {
	case address.BankCoil:
		return d.coils.Count()
	case address.BankDiscreteInput:
		return d.discrete.Count()
	case address.BankInputRegister:
		return d.input.Count()
	case address.BankHoldingRegister:
		return d.holding.Count()
	default:
		return 0
	}
}

func (d *Device) Coils() *memory.BitBlock            { return d.coils }
func (d *Device) DiscreteInputs() *memory.BitBlock   { return d.discrete }
func (d *Device) InputRegisters() *memory.RegBlock   { return d.input }
func (d *Device) HoldingRegisters() *memory.RegBlock { return d.holding }

// Block returns the byte codec of a bank, or nil for an invalid bank.
func (d *Device) Block(bank address.Bank) *memory.Block {
	switch bank {
	case address.BankCoil:
		return d.coils.Block()
	case address.BankDiscreteInput:
		return d.discrete.Block()
	case address.BankInputRegister:
		return d.input.Block()
	case address.BankHoldingRegister:
		return d.holding.Block()
	default:
		return nil
	}
}

// ExceptionStatusAddress returns where the exception status byte lives.
func (d *Device) ExceptionStatusAddress() address.Address { return d.exception }

// ExceptionStatus reads the exception status byte.
func (d *Device) ExceptionStatus() uint8 {
	v, _ := d.Uint8(d.exception)
	return v
}

// SetExceptionStatus writes the exception status byte.
func (d *Device) SetExceptionStatus(v uint8) {
	_ = d.SetUint8(d.exception, v)
}

// Heartbeat reads the scripting heartbeat counter.
func (d *Device) Heartbeat() uint32 {
	if err := d.scriptSeg.Lock(); err != nil {
		return 0
	}
	defer d.scriptSeg.Unlock()
	s, err := layout.DecodeScriptBlock(d.scriptSeg.Bytes())
	if err != nil {
		return 0
	}
	return s.PyCycle
}

// Beat advances the scripting heartbeat by one and returns the new value.
// Scripts call it once per pass so the owner can tell they are alive.
func (d *Device) Beat() uint32 {
	d.mu.Lock()
	d.beat++
	v := d.beat
	d.mu.Unlock()

	if err := d.scriptSeg.Lock(); err != nil {
		return v
	}
	defer d.scriptSeg.Unlock()
	_ = layout.ScriptBlock{PyCycle: v}.Encode(d.scriptSeg.Bytes())
	return v
}

// MemDump returns a copy of n bytes of the device segment at off, clipped
// to the segment.
func (d *Device) MemDump(off, n int) []byte {
	if off < 0 || n <= 0 {
		return nil
	}
	if err := d.devSeg.Lock(); err != nil {
		return nil
	}
	defer d.devSeg.Unlock()
	buf := d.devSeg.Bytes()
	if off >= len(buf) {
		return nil
	}
	if n > len(buf)-off {
		n = len(buf) - off
	}
	return append([]byte(nil), buf[off:off+n]...)
}

// Close releases every segment. It must be called exactly once.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	d.mu.Unlock()

	d.logSession(log.SessionDetached, "closed")
	err := d.release()
	d.logger.Debug("detached", "session", d.sessionID, "err", err)
	return err
}

func (d *Device) release() error {
	var errs []error
	for _, seg := range append([]segment.Segment{d.devSeg, d.scriptSeg}, d.bankSegs...) {
		if seg == nil {
			continue
		}
		if err := seg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", seg.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (d *Device) logSession(state log.SessionState, reason string) {
	d.access.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: d.sessionID,
		Device:    d.prefix,
		Category:  log.CategorySession,
		Session: &log.SessionEvent{
			State:      state,
			DeviceName: d.name,
			Reason:     reason,
		},
	})
}
