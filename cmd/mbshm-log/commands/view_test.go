package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modbus-tools/mbshm-go/pkg/address"
	"github.com/modbus-tools/mbshm-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.alog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func writeEvent(ts time.Time, session string, bank address.Bank, off, n uint32) log.Event {
	return log.Event{
		Timestamp: ts,
		SessionID: session,
		Device:    "plc1",
		Segment:   "plc1." + bank.Suffix(),
		Category:  log.CategoryAccess,
		Access: &log.AccessEvent{
			Op:          log.OpWrite,
			Bank:        bank,
			ByteOffset:  off,
			ByteCount:   n,
			Revision:    1,
			DirtyStart:  off,
			DirtyLength: n,
		},
	}
}

func TestFormatAccessEvent(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 15, 32, 123456000, time.UTC)
	event := writeEvent(ts, "0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0", address.BankHoldingRegister, 4, 2)
	event.Access.Data = []byte{0xde, 0xad}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "2026-03-02T10:15:32.123456Z") {
		t.Errorf("expected timestamp, got: %s", output)
	}
	if !strings.Contains(output, "[session:0f1e2d3c]") {
		t.Errorf("expected shortened session ID, got: %s", output)
	}
	if !strings.Contains(output, "WRITE") {
		t.Errorf("expected WRITE label, got: %s", output)
	}
	if !strings.Contains(output, "plc1.mem4x") {
		t.Errorf("expected segment name, got: %s", output)
	}
	if !strings.Contains(output, "Bytes: [4,6)") {
		t.Errorf("expected byte range, got: %s", output)
	}
	if !strings.Contains(output, "Data: dead") {
		t.Errorf("expected data, got: %s", output)
	}
	if strings.Contains(output, "truncated") {
		t.Errorf("unexpected truncation marker, got: %s", output)
	}
}

func TestFormatAccessEventTruncated(t *testing.T) {
	event := writeEvent(time.Now(), "s", address.BankCoil, 0, 100)
	event.Access.Capture(make([]byte, 100))

	var buf bytes.Buffer
	formatEvent(&buf, event)
	if !strings.Contains(buf.String(), "(truncated)") {
		t.Errorf("expected truncation marker, got: %s", buf.String())
	}
}

func TestFormatSessionEvent(t *testing.T) {
	event := log.Event{
		Timestamp: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		SessionID: "abc",
		Device:    "plc1",
		Category:  log.CategorySession,
		Session: &log.SessionEvent{
			State:      log.SessionDetached,
			DeviceName: "Boiler PLC",
			Reason:     "closed",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "[session:abc]") {
		t.Errorf("expected short session ID kept whole, got: %s", output)
	}
	if !strings.Contains(output, "SESSION") {
		t.Errorf("expected SESSION label, got: %s", output)
	}
	if !strings.Contains(output, "-> DETACHED") {
		t.Errorf("expected state, got: %s", output)
	}
	if !strings.Contains(output, "Device: Boiler PLC") {
		t.Errorf("expected device name, got: %s", output)
	}
	if !strings.Contains(output, "Reason: closed") {
		t.Errorf("expected reason, got: %s", output)
	}
}

func TestFormatErrorEvent(t *testing.T) {
	event := log.Event{
		Timestamp: time.Now(),
		Category:  log.CategoryError,
		Error:     &log.ErrorEventData{Message: "lock failed", Context: "write"},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "Message: lock failed") {
		t.Errorf("expected message, got: %s", output)
	}
	if !strings.Contains(output, "Context: write") {
		t.Errorf("expected context, got: %s", output)
	}
}

func TestRunViewFilters(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	consume := writeEvent(ts, "s1", address.BankCoil, 0, 1)
	consume.Access.Op = log.OpConsume
	events := []log.Event{
		writeEvent(ts, "s1", address.BankCoil, 0, 1),
		writeEvent(ts, "s1", address.BankHoldingRegister, 0, 2),
		consume,
		{Timestamp: ts, SessionID: "s1", Category: log.CategorySession, Session: &log.SessionEvent{State: log.SessionAttached}},
	}
	path := createTestLogFile(t, events)

	tests := []struct {
		name   string
		filter func() ViewFilter
		want   int
	}{
		{"all", func() ViewFilter { return ViewFilter{} }, 4},
		{"category", func() ViewFilter {
			c := log.CategorySession
			return ViewFilter{Category: &c}
		}, 1},
		{"op", func() ViewFilter {
			o := log.OpWrite
			return ViewFilter{Op: &o}
		}, 2},
		{"bank", func() ViewFilter {
			b := address.BankCoil
			return ViewFilter{Bank: &b}
		}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := RunView(path, tt.filter(), &buf); err != nil {
				t.Fatalf("RunView failed: %v", err)
			}
			got := strings.Count(buf.String(), "[session:")
			if got != tt.want {
				t.Errorf("expected %d events, got %d:\n%s", tt.want, got, buf.String())
			}
		})
	}
}

func TestRunViewMissingFile(t *testing.T) {
	var buf bytes.Buffer
	err := RunView(filepath.Join(t.TempDir(), "absent.alog"), ViewFilter{}, &buf)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseFlags(t *testing.T) {
	if c, err := ParseCategoryFlag("access"); err != nil || c != log.CategoryAccess {
		t.Errorf("ParseCategoryFlag(access) = %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("message"); err == nil {
		t.Error("expected error for unknown category")
	}
	if o, err := ParseOpFlag("Restore"); err != nil || o != log.OpRestore {
		t.Errorf("ParseOpFlag(Restore) = %v, %v", o, err)
	}
	if _, err := ParseOpFlag("read"); err == nil {
		t.Error("expected error for unknown op")
	}
	if b, err := ParseBankFlag("4x"); err != nil || b != address.BankHoldingRegister {
		t.Errorf("ParseBankFlag(4x) = %v, %v", b, err)
	}
}
