// Package segment provides named shared-memory segments.
//
// A Segment is a fixed-size byte region shared with other processes and
// guarded by one process-shared, non-reentrant lock. Callers bracket every
// access to Bytes with Lock and Unlock. Each handle owns its mapping and
// must be closed exactly once.
//
// Two stores are provided: FileStore maps files (by default under
// /dev/shm) and guards them with flock; MemoryStore keeps segments in the
// current process, which is what tests and dry runs use.
package segment

import "errors"

// Segment errors.
var (
	ErrNotFound    = errors.New("segment not found")
	ErrClosed      = errors.New("segment closed")
	ErrInvalidSize = errors.New("invalid segment size")
	ErrInvalidName = errors.New("invalid segment name")
)

// Segment is an attached shared-memory region.
type Segment interface {
	// Name returns the segment name the handle was opened with.
	Name() string

	// Size returns the mapped size in bytes.
	Size() int

	// Bytes returns the mapped region. Access it only while holding the
	// lock. The slice is invalid after Close.
	Bytes() []byte

	// Lock acquires the segment lock, blocking until it is free.
	Lock() error

	// Unlock releases the segment lock.
	Unlock() error

	// Close releases the mapping.
	Close() error
}

// Opener attaches existing segments.
type Opener interface {
	Open(name string) (Segment, error)
}

// Creator allocates segments. It is the owner side.
type Creator interface {
	Opener

	// Create allocates a zeroed segment of size bytes, replacing any
	// segment of the same name.
	Create(name string, size int) (Segment, error)

	// Remove deletes a segment. Open handles stay valid.
	Remove(name string) error
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' || name[i] == 0 {
			return false
		}
	}
	return true
}
