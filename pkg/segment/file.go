package segment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultDir is where POSIX shared memory objects live on Linux.
const DefaultDir = "/dev/shm"

// FileStore maps segments from files in Dir. The segment lock is an
// exclusive flock on the handle's file. A flock is held per open file, so
// goroutines sharing one handle are serialised by a mutex first.
type FileStore struct {
	Dir string
}

// NewFileStore returns a store rooted at dir, or DefaultDir if dir is "".
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultDir
	}
	return &FileStore{Dir: dir}
}

func (s *FileStore) path(name string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	dir := s.Dir
	if dir == "" {
		dir = DefaultDir
	}
	return filepath.Join(dir, name), nil
}

// Open maps an existing segment with its full size.
func (s *FileStore) Open(name string) (Segment, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(p, os.O_RDWR, 0)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("open segment %s: %w", name, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat segment %s: %w", name, err)
	}
	return mapFile(name, f, int(fi.Size()))
}

// Create allocates a zero-filled segment of size bytes.
func (s *FileStore) Create(name string, size int) (Segment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("create segment %s: %w", name, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("size segment %s: %w", name, err)
	}
	return mapFile(name, f, size)
}

// Remove deletes the segment file.
func (s *FileStore) Remove(name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return err
	}
	return nil
}

func mapFile(name string, f *os.File, size int) (Segment, error) {
	if size <= 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidSize, name)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("map segment %s: %w", name, err)
	}
	return &fileSegment{name: name, f: f, data: data}, nil
}

type fileSegment struct {
	name string
	f    *os.File

	// mu serialises lock holders within the process.
	mu sync.Mutex

	stateMu sync.Mutex
	data    []byte
	closed  bool
}

var _ Segment = (*fileSegment)(nil)

func (s *fileSegment) Name() string { return s.name }

func (s *fileSegment) Size() int { return len(s.data) }

func (s *fileSegment) Bytes() []byte {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.data
}

func (s *fileSegment) isClosed() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.closed
}

func (s *fileSegment) Lock() error {
	s.mu.Lock()
	if s.isClosed() {
		s.mu.Unlock()
		return ErrClosed
	}
	if err := flock(s.f, unix.LOCK_EX); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("lock segment %s: %w", s.name, err)
	}
	return nil
}

func (s *fileSegment) Unlock() error {
	defer s.mu.Unlock()
	if err := flock(s.f, unix.LOCK_UN); err != nil {
		return fmt.Errorf("unlock segment %s: %w", s.name, err)
	}
	return nil
}

// Close waits for the current lock holder before unmapping.
func (s *fileSegment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	err := unix.Munmap(s.data)
	s.data = nil
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

func flock(f *os.File, how int) error {
	for {
		err := unix.Flock(int(f.Fd()), how)
		if err != unix.EINTR {
			return err
		}
	}
}
