package log

import (
	"time"

	"github.com/modbus-tools/mbshm-go/pkg/address"
)

// MaxDataCapture is the number of written bytes an AccessEvent keeps.
const MaxDataCapture = 64

// Event represents an access log event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the attachment that produced the event (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Device is the segment name prefix of the device image.
	Device string `cbor:"3,keyasint,omitempty"`

	// Segment is the full segment name ("plc1.mem4x").
	Segment string `cbor:"4,keyasint,omitempty"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Type-specific payload (one of these will be set).
	Access  *AccessEvent    `cbor:"6,keyasint,omitempty"`
	Session *SessionEvent   `cbor:"7,keyasint,omitempty"`
	Error   *ErrorEventData `cbor:"8,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryAccess indicates a byte range access.
	CategoryAccess Category = 0
	// CategorySession indicates an attach or detach.
	CategorySession Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryAccess:
		return "ACCESS"
	case CategorySession:
		return "SESSION"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory parses a category name as returned by String.
func ParseCategory(s string) (Category, bool) {
	for _, c := range []Category{CategoryAccess, CategorySession, CategoryError} {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// Op is the kind of access.
type Op uint8

const (
	// OpWrite is a write through an accessor.
	OpWrite Op = 0
	// OpConsume is an owner-side copy-out and header reset.
	OpConsume Op = 1
	// OpRestore is a write from a snapshot.
	OpRestore Op = 2
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpWrite:
		return "WRITE"
	case OpConsume:
		return "CONSUME"
	case OpRestore:
		return "RESTORE"
	default:
		return "UNKNOWN"
	}
}

// ParseOp parses an operation name as returned by String.
func ParseOp(s string) (Op, bool) {
	for _, o := range []Op{OpWrite, OpConsume, OpRestore} {
		if o.String() == s {
			return o, true
		}
	}
	return 0, false
}

// AccessEvent captures one byte range access to a bank segment.
type AccessEvent struct {
	// Op is the kind of access.
	Op Op `cbor:"1,keyasint"`

	// Bank is the memory bank of the segment.
	Bank address.Bank `cbor:"2,keyasint"`

	// ByteOffset is the first data byte touched.
	ByteOffset uint32 `cbor:"3,keyasint"`

	// ByteCount is the number of data bytes touched.
	ByteCount uint32 `cbor:"4,keyasint"`

	// Revision is the change counter after the access.
	Revision uint32 `cbor:"5,keyasint"`

	// DirtyStart and DirtyLength are the recorded dirty range after the
	// access.
	DirtyStart  uint32 `cbor:"6,keyasint"`
	DirtyLength uint32 `cbor:"7,keyasint"`

	// Data is the written bytes (may be truncated to MaxDataCapture).
	Data []byte `cbor:"8,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"9,keyasint,omitempty"`
}

// Capture sets Data from b, truncating to MaxDataCapture bytes.
func (a *AccessEvent) Capture(b []byte) {
	n := len(b)
	if n > MaxDataCapture {
		n = MaxDataCapture
		a.Truncated = true
	}
	a.Data = append([]byte(nil), b[:n]...)
}

// SessionState is the lifecycle state recorded by a SessionEvent.
type SessionState uint8

const (
	// SessionAttached indicates a device image was attached.
	SessionAttached SessionState = 0
	// SessionDetached indicates a device image was released.
	SessionDetached SessionState = 1
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case SessionAttached:
		return "ATTACHED"
	case SessionDetached:
		return "DETACHED"
	default:
		return "UNKNOWN"
	}
}

// SessionEvent captures attachment lifecycle.
type SessionEvent struct {
	// State is the new state.
	State SessionState `cbor:"1,keyasint"`

	// DeviceName is the name read from the device string table.
	DeviceName string `cbor:"2,keyasint,omitempty"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`
}
