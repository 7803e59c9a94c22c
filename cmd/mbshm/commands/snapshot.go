package commands

import (
	"fmt"
	"io"

	"github.com/modbus-tools/mbshm-go/pkg/device"
	"github.com/modbus-tools/mbshm-go/pkg/persistence"
)

// snapshotPath returns path, or the default snapshot file of the device.
func (o Options) snapshotPath(path string) string {
	if path != "" {
		return path
	}
	cfg := o.config()
	return persistence.DefaultPath(cfg.SnapshotDir, cfg.Prefix)
}

// RunSave captures every bank of the device into a snapshot file. An empty
// path selects the default file in the snapshot directory.
func RunSave(opts Options, path string, w io.Writer) error {
	return opts.withDevice(func(d *device.Device) error {
		store := persistence.NewSnapshotStore(opts.snapshotPath(path))
		snap := persistence.Capture(d)
		if err := store.Save(snap); err != nil {
			return fmt.Errorf("failed to save snapshot: %w", err)
		}
		total := 0
		for _, b := range snap.Banks {
			total += len(b.Data)
		}
		fmt.Fprintf(w, "Saved %d bytes of %s to %s\n", total, d.Prefix(), store.Path())
		return nil
	})
}

// RunRestore writes a snapshot file back into the device.
func RunRestore(opts Options, path string, w io.Writer) error {
	store := persistence.NewSnapshotStore(opts.snapshotPath(path))
	snap, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	if snap == nil {
		return fmt.Errorf("%w: %s", persistence.ErrNoSnapshot, store.Path())
	}
	return opts.withDevice(func(d *device.Device) error {
		n, err := persistence.Restore(d, snap)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Restored %d bytes into %s from %s\n", n, d.Prefix(), store.Path())
		return nil
	})
}
