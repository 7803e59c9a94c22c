package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/modbus-tools/mbshm-go/pkg/address"
	"github.com/modbus-tools/mbshm-go/pkg/device"
	"github.com/modbus-tools/mbshm-go/pkg/memory"
	"github.com/modbus-tools/mbshm-go/pkg/version"
)

// Snapshot errors.
var (
	ErrIncompatible = errors.New("incompatible snapshot")
	ErrNoSnapshot   = errors.New("no snapshot")
)

// Snapshot is the saved content of one device image.
type Snapshot struct {
	// Version is the snapshot format version.
	Version string `json:"version"`

	// SavedAt is when the snapshot was taken.
	SavedAt time.Time `json:"saved_at"`

	// Prefix and Name identify the device the snapshot was taken from.
	Prefix string `json:"prefix"`
	Name   string `json:"name,omitempty"`

	// ByteOrder and RegisterOrder record the layout the bytes were written
	// in. A restore into a device with a different layout is refused.
	ByteOrder     string `json:"byte_order"`
	RegisterOrder string `json:"register_order"`

	// Banks holds the data bytes of each bank.
	Banks []BankImage `json:"banks"`
}

// BankImage is the data of one bank.
type BankImage struct {
	Bank  address.Bank `json:"-"`
	Name  string       `json:"bank"`
	Count int          `json:"count"`
	Data  []byte       `json:"data"`
}

// Bank returns the image of bank, or nil.
func (s *Snapshot) Bank(bank address.Bank) *BankImage {
	for i := range s.Banks {
		if s.Banks[i].Bank == bank {
			return &s.Banks[i]
		}
	}
	return nil
}

// Order parses the recorded byte and register order.
func (s *Snapshot) Order() (memory.Order, error) {
	b, err := memory.ParseByteOrder(s.ByteOrder)
	if err != nil {
		return memory.Order{}, err
	}
	r, err := memory.ParseRegisterOrder(s.RegisterOrder)
	if err != nil {
		return memory.Order{}, err
	}
	return memory.Order{Byte: b, Register: r}, nil
}

// Capture copies the current content of every bank of d.
func Capture(d *device.Device) *Snapshot {
	s := &Snapshot{
		Version:       version.Current,
		SavedAt:       time.Now(),
		Prefix:        d.Prefix(),
		Name:          d.Name(),
		ByteOrder:     d.ByteOrder().String(),
		RegisterOrder: d.RegisterOrder().String(),
	}
	for _, bank := range address.Banks {
		blk := d.Block(bank)
		s.Banks = append(s.Banks, BankImage{
			Bank:  bank,
			Name:  bank.String(),
			Count: d.Count(bank),
			Data:  blk.GetBytes(0, blk.Size()),
		})
	}
	return s
}

// Restore writes the snapshot's banks into d and returns the number of
// bytes written. Banks are clipped to what d holds.
func Restore(d *device.Device, s *Snapshot) (int, error) {
	if s == nil {
		return 0, ErrNoSnapshot
	}
	if err := version.CheckCompatible(s.Version); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIncompatible, err)
	}
	order, err := s.Order()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIncompatible, err)
	}
	if order.Effective() != d.Order().Effective() {
		return 0, fmt.Errorf("%w: snapshot order %s, device %s",
			ErrIncompatible, order, d.Order())
	}

	total := 0
	for _, img := range s.Banks {
		blk := d.Block(img.Bank)
		if blk == nil {
			return total, fmt.Errorf("%w: bank %q", ErrIncompatible, img.Name)
		}
		total += blk.Restore(0, img.Data)
	}
	return total, nil
}

// SnapshotStore manages one snapshot file.
type SnapshotStore struct {
	mu   sync.Mutex
	path string
}

// NewSnapshotStore creates a store for the snapshot at path.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Path returns the snapshot file path.
func (s *SnapshotStore) Path() string { return s.path }

// Save writes the snapshot to disk.
func (s *SnapshotStore) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure parent directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if snap.Version == "" {
		snap.Version = version.Current
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}

// Load reads the snapshot from disk.
// Returns nil, nil if the file doesn't exist.
func (s *SnapshotStore) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, err
	}
	for i := range snap.Banks {
		bank, err := address.ParseBank(snap.Banks[i].Name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.path, err)
		}
		snap.Banks[i].Bank = bank
	}

	return snap, nil
}

// Clear removes the snapshot file.
func (s *SnapshotStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// DefaultPath returns the snapshot file for prefix inside dir.
func DefaultPath(dir, prefix string) string {
	return filepath.Join(dir, prefix+".snapshot.json")
}
