// Package commands implements the mbshm CLI commands.
package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/modbus-tools/mbshm-go/pkg/config"
	"github.com/modbus-tools/mbshm-go/pkg/device"
	"github.com/modbus-tools/mbshm-go/pkg/inspect"
	"github.com/modbus-tools/mbshm-go/pkg/log"
	"github.com/modbus-tools/mbshm-go/pkg/segment"
)

// ErrNoPrefix is returned when neither the configuration nor the command
// line names a device image.
var ErrNoPrefix = errors.New("device prefix required (-prefix or prefix in the config file)")

// Options carries what every device command needs.
type Options struct {
	// Config holds the merged file and flag settings.
	Config *config.Config

	// Logger is the operational logger. If nil, logging is disabled.
	Logger *slog.Logger

	// AccessLogger receives the access events of the attached device.
	// If nil, access logging is disabled.
	AccessLogger log.Logger

	// Store overrides the segment store. If nil, a FileStore on
	// Config.SegmentDir is used.
	Store segment.Creator

	// Hex prints integers in hexadecimal.
	Hex bool
}

func (o Options) config() *config.Config {
	if o.Config == nil {
		return config.Default()
	}
	return o.Config
}

// store returns the segment store the options select.
func (o Options) store() segment.Creator {
	if o.Store != nil {
		return o.Store
	}
	return segment.NewFileStore(o.config().SegmentDir)
}

// Attach attaches the configured device image.
func (o Options) Attach() (*device.Device, error) {
	cfg := o.config()
	if cfg.Prefix == "" {
		return nil, ErrNoPrefix
	}
	return device.Attach(device.Config{
		Prefix:       cfg.Prefix,
		Opener:       o.store(),
		Logger:       o.Logger,
		AccessLogger: o.AccessLogger,
	})
}

// Formatter returns a formatter for the configured notation.
func (o Options) Formatter() *inspect.Formatter {
	f := inspect.NewFormatter()
	f.Notation = o.config().AddressNotation()
	f.Hex = o.Hex
	return f
}

// withDevice attaches, runs fn and detaches.
func (o Options) withDevice(fn func(d *device.Device) error) (err error) {
	d, err := o.Attach()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := d.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to detach: %w", cerr)
		}
	}()
	return fn(d)
}
