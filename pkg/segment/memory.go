package segment

import (
	"fmt"
	"sync"
)

// MemoryStore keeps segments in process memory. Handles opened on the same
// name share one buffer and one lock, like mappings of one shared object.
type MemoryStore struct {
	mu   sync.Mutex
	objs map[string]*memObject
}

type memObject struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objs: make(map[string]*memObject)}
}

// Open attaches an existing segment.
func (s *MemoryStore) Open(name string) (Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return &memSegment{name: name, obj: obj}, nil
}

// Create allocates a zeroed segment.
func (s *MemoryStore) Create(name string, size int) (Segment, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objs == nil {
		s.objs = make(map[string]*memObject)
	}
	obj := &memObject{data: make([]byte, size)}
	s.objs[name] = obj
	return &memSegment{name: name, obj: obj}, nil
}

// Remove forgets a segment.
func (s *MemoryStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objs[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(s.objs, name)
	return nil
}

// Names returns the names of all segments in the store.
func (s *MemoryStore) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.objs))
	for n := range s.objs {
		names = append(names, n)
	}
	return names
}

type memSegment struct {
	name string
	obj  *memObject

	stateMu sync.Mutex
	closed  bool
}

var _ Segment = (*memSegment)(nil)

func (s *memSegment) Name() string { return s.name }

func (s *memSegment) Size() int { return len(s.obj.data) }

func (s *memSegment) Bytes() []byte {
	if s.isClosed() {
		return nil
	}
	return s.obj.data
}

func (s *memSegment) isClosed() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.closed
}

func (s *memSegment) Lock() error {
	if s.isClosed() {
		return ErrClosed
	}
	s.obj.mu.Lock()
	return nil
}

func (s *memSegment) Unlock() error {
	s.obj.mu.Unlock()
	return nil
}

func (s *memSegment) Close() error {
	s.obj.mu.Lock()
	defer s.obj.mu.Unlock()
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	return nil
}
