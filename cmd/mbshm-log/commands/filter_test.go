package commands

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modbus-tools/mbshm-go/pkg/address"
	"github.com/modbus-tools/mbshm-go/pkg/log"
)

func readEvents(t *testing.T, path string) []log.Event {
	t.Helper()
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer reader.Close()

	var events []log.Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		events = append(events, event)
	}
	return events
}

func TestFilterBySessionID(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 15, 32, 0, time.UTC)
	events := []log.Event{
		writeEvent(ts, "sess-1", address.BankCoil, 0, 1),
		writeEvent(ts, "sess-2", address.BankCoil, 0, 1),
		writeEvent(ts, "sess-1", address.BankHoldingRegister, 2, 2),
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.alog")

	var buf bytes.Buffer
	err := RunFilter(path, FilterOptions{Output: outPath, SessionID: "sess-1"}, &buf)
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	got := readEvents(t, outPath)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	for _, e := range got {
		if e.SessionID != "sess-1" {
			t.Errorf("expected sess-1, got %s", e.SessionID)
		}
	}
	if !strings.Contains(buf.String(), "Filtered 2 events") {
		t.Errorf("unexpected summary: %s", buf.String())
	}
}

func TestFilterByTimeRange(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		writeEvent(base, "s", address.BankCoil, 0, 1),
		writeEvent(base.Add(time.Hour), "s", address.BankCoil, 1, 1),
		writeEvent(base.Add(2*time.Hour), "s", address.BankCoil, 2, 1),
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.alog")

	err := RunFilter(path, FilterOptions{
		Output:    outPath,
		TimeStart: base.Add(30 * time.Minute).Format(time.RFC3339),
		TimeEnd:   base.Add(90 * time.Minute).Format(time.RFC3339),
	}, io.Discard)
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	got := readEvents(t, outPath)
	if len(got) != 1 || got[0].Access.ByteOffset != 1 {
		t.Errorf("expected only the middle event, got %+v", got)
	}
}

func TestFilterByOpAndBank(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	restore := writeEvent(ts, "s", address.BankHoldingRegister, 0, 8)
	restore.Access.Op = log.OpRestore
	events := []log.Event{
		writeEvent(ts, "s", address.BankHoldingRegister, 0, 2),
		restore,
		writeEvent(ts, "s", address.BankInputRegister, 0, 2),
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.alog")

	err := RunFilter(path, FilterOptions{Output: outPath, Op: "write", Bank: "holding"}, io.Discard)
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	got := readEvents(t, outPath)
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Access.Op != log.OpWrite || got[0].Access.Bank != address.BankHoldingRegister {
		t.Errorf("unexpected event %+v", got[0].Access)
	}
}

func TestFilterInvalidOptions(t *testing.T) {
	path := createTestLogFile(t, nil)
	outPath := filepath.Join(t.TempDir(), "filtered.alog")

	tests := []struct {
		name string
		opts FilterOptions
	}{
		{"time-start", FilterOptions{Output: outPath, TimeStart: "yesterday"}},
		{"time-end", FilterOptions{Output: outPath, TimeEnd: "2026-13-01"}},
		{"category", FilterOptions{Output: outPath, Category: "frame"}},
		{"op", FilterOptions{Output: outPath, Op: "read"}},
		{"bank", FilterOptions{Output: outPath, Bank: "5x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := RunFilter(path, tt.opts, io.Discard); err == nil {
				t.Error("expected error")
			}
		})
	}
}
