// Package commands implements the mbshm-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/modbus-tools/mbshm-go/pkg/address"
	"github.com/modbus-tools/mbshm-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Category *log.Category
	Op       *log.Op
	Bank     *address.Bank
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [session:id] CATEGORY segment
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	session := shortenSessionID(event.SessionID)

	label := event.Category.String()
	if event.Access != nil {
		label = event.Access.Op.String()
	}
	target := event.Segment
	if target == "" {
		target = event.Device
	}

	fmt.Fprintf(w, "%s [session:%s] %-8s %s\n", ts, session, label, target)

	switch {
	case event.Access != nil:
		formatAccessDetails(w, event.Access)
	case event.Session != nil:
		formatSessionDetails(w, event.Session)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenSessionID returns the first 8 characters of the session ID.
func shortenSessionID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatAccessDetails(w io.Writer, a *log.AccessEvent) {
	fmt.Fprintf(w, "  Bank: %s\n", a.Bank)
	fmt.Fprintf(w, "  Bytes: [%d,%d)\n", a.ByteOffset, a.ByteOffset+a.ByteCount)
	fmt.Fprintf(w, "  Revision: %d  Dirty: start=%d len=%d\n", a.Revision, a.DirtyStart, a.DirtyLength)
	if len(a.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(a.Data))
		if a.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatSessionDetails(w io.Writer, s *log.SessionEvent) {
	fmt.Fprintf(w, "  -> %s\n", s.State)
	if s.DeviceName != "" {
		fmt.Fprintf(w, "  Device: %s\n", s.DeviceName)
	}
	if s.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", s.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	c, ok := log.ParseCategory(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("invalid category: %s (must be access, session, or error)", s)
	}
	return c, nil
}

// ParseOpFlag parses an operation string from command-line flag (case-insensitive).
func ParseOpFlag(s string) (log.Op, error) {
	o, ok := log.ParseOp(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("invalid op: %s (must be write, consume, or restore)", s)
	}
	return o, nil
}

// ParseBankFlag parses a bank string from command-line flag.
func ParseBankFlag(s string) (address.Bank, error) {
	return address.ParseBank(s)
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, log.Filter{
		Category: filter.Category,
		Op:       filter.Op,
		Bank:     filter.Bank,
	})
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
