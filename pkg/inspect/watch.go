package inspect

import (
	"context"
	"errors"
	"time"

	"github.com/modbus-tools/mbshm-go/pkg/address"
	"github.com/modbus-tools/mbshm-go/pkg/device"
	"github.com/modbus-tools/mbshm-go/pkg/memory"
)

// BankChange is a change consumed from one bank.
type BankChange struct {
	Bank   address.Bank
	Change memory.Change
}

// Poll consumes pending changes from every bank of d, acting as the owner
// would. Banks without changes are left out.
func Poll(d *device.Device) []BankChange {
	var out []BankChange
	for _, bank := range address.Banks {
		if c := d.Block(bank).Consume(); !c.Empty() {
			out = append(out, BankChange{Bank: bank, Change: c})
		}
	}
	return out
}

// Watch calls fn for every change found by polling d each interval, until
// ctx is done. It returns nil when ctx is cancelled.
func Watch(ctx context.Context, d *device.Device, interval time.Duration, fn func(BankChange)) error {
	if interval <= 0 {
		return errors.New("watch interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, c := range Poll(d) {
			fn(c)
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
