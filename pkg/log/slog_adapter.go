package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes access events to an slog.Logger.
// Useful for development when you want to see writes in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level. Error events are
// logged at Warn level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session", event.SessionID),
		slog.String("category", event.Category.String()),
	}
	if event.Device != "" {
		attrs = append(attrs, slog.String("device", event.Device))
	}
	if event.Segment != "" {
		attrs = append(attrs, slog.String("segment", event.Segment))
	}

	level := slog.LevelDebug
	switch {
	case event.Access != nil:
		attrs = append(attrs,
			slog.String("op", event.Access.Op.String()),
			slog.String("bank", event.Access.Bank.String()),
			slog.Uint64("offset", uint64(event.Access.ByteOffset)),
			slog.Uint64("count", uint64(event.Access.ByteCount)),
			slog.Uint64("revision", uint64(event.Access.Revision)),
		)
	case event.Session != nil:
		attrs = append(attrs, slog.String("state", event.Session.State.String()))
		if event.Session.DeviceName != "" {
			attrs = append(attrs, slog.String("name", event.Session.DeviceName))
		}
		if event.Session.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Session.Reason))
		}
	case event.Error != nil:
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), level, "access", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
