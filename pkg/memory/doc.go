// Package memory provides typed access to the bank segments of a shared
// register image.
//
// Block is the byte and bit codec over one segment. It keeps the change
// header current on every write. BitBlock and RegBlock are the typed views
// for bit-addressed (coil, discrete input) and word-addressed (input and
// holding register) banks. Multi-byte values go through Order, which
// applies the device's byte order and register order.
//
// Named accessors (Uint16, SetFloat32, ...) never fail: out-of-range reads
// return the zero value and out-of-range writes are dropped. Indexed
// accessors (At, SetAt) return ErrIndexOutOfRange instead.
package memory

import "errors"

// ErrIndexOutOfRange is returned by indexed accessors.
var ErrIndexOutOfRange = errors.New("index out of range")
