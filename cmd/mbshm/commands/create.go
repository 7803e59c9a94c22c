package commands

import (
	"fmt"
	"io"

	"github.com/modbus-tools/mbshm-go/internal/fixture"
)

// RunCreate lays out a new device image the way the owning process does.
// The image replaces any image of the same prefix.
func RunCreate(opts Options, img fixture.Image, w io.Writer) error {
	if img.Prefix == "" {
		img.Prefix = opts.config().Prefix
	}
	if img.Prefix == "" {
		return ErrNoPrefix
	}
	if img.Name == "" {
		img.Name = img.Prefix
	}
	owner, err := fixture.Create(opts.store(), img)
	if err != nil {
		return err
	}
	if err := owner.Close(); err != nil {
		return err
	}
	fmt.Fprintf(w, "Created %s: %d coils, %d discrete inputs, %d input registers, %d holding registers\n",
		img.Prefix, img.Coils, img.DiscreteInputs, img.InputRegisters, img.HoldingRegisters)
	return nil
}

// RunDestroy removes every segment of the configured device image.
func RunDestroy(opts Options, w io.Writer) error {
	prefix := opts.config().Prefix
	if prefix == "" {
		return ErrNoPrefix
	}
	if err := fixture.Remove(opts.store(), prefix); err != nil {
		return err
	}
	fmt.Fprintf(w, "Removed %s\n", prefix)
	return nil
}
