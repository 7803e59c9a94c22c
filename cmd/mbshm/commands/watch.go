package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/modbus-tools/mbshm-go/pkg/device"
	"github.com/modbus-tools/mbshm-go/pkg/inspect"
)

// DefaultWatchInterval is the polling interval of watch.
const DefaultWatchInterval = 100 * time.Millisecond

// RunWatch prints the changes recorded in every bank until ctx is done.
// Watching consumes the changes, acting as the owner would.
func RunWatch(ctx context.Context, opts Options, interval time.Duration, w io.Writer) error {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return opts.withDevice(func(d *device.Device) error {
		fmt.Fprintf(w, "Watching %s every %s\n", d.Prefix(), interval)
		return inspect.Watch(ctx, d, interval, func(c inspect.BankChange) {
			printChange(w, c)
		})
	})
}

// PollOnce consumes and prints the pending changes of d. It returns the
// number of banks that changed.
func PollOnce(d *device.Device, w io.Writer) int {
	changes := inspect.Poll(d)
	for _, c := range changes {
		printChange(w, c)
	}
	return len(changes)
}

func printChange(w io.Writer, c inspect.BankChange) {
	fmt.Fprintf(w, "%s %s\n", time.Now().Format("15:04:05.000"), inspect.FormatChange(c.Bank, c.Change))
}
