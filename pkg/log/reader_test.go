package log

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modbus-tools/mbshm-go/pkg/address"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.alog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var read []Event
	for {
		event, err := r.Next()
		if err == io.EOF {
			return read
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		read = append(read, event)
	}
}

func access(session string, op Op, bank address.Bank) Event {
	return Event{
		Timestamp: time.Now(),
		SessionID: session,
		Segment:   "plc1." + bank.Suffix(),
		Category:  CategoryAccess,
		Access:    &AccessEvent{Op: op, Bank: bank},
	}
}

func TestReaderIteratesEvents(t *testing.T) {
	path := createTestLogFile(t, []Event{
		access("s-1", OpWrite, address.BankCoil),
		access("s-2", OpWrite, address.BankHoldingRegister),
		{Timestamp: time.Now(), SessionID: "s-3", Category: CategorySession, Session: &SessionEvent{State: SessionAttached}},
	})

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	read := readAll(t, reader)
	if len(read) != 3 {
		t.Fatalf("got %d events, want 3", len(read))
	}
	for i, want := range []string{"s-1", "s-2", "s-3"} {
		if read[i].SessionID != want {
			t.Errorf("event %d: SessionID = %q, want %q", i, read[i].SessionID, want)
		}
	}
}

func TestReaderHandlesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.alog")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReaderHandlesTruncatedFile(t *testing.T) {
	path := createTestLogFile(t, []Event{access("s-1", OpWrite, address.BankCoil)})
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:len(data)-3], 0644); err != nil {
		t.Fatal(err)
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	if _, err := reader.Next(); err == nil || err == io.EOF {
		t.Errorf("expected a decode error, got %v", err)
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "nope.alog")); err == nil {
		t.Error("expected error")
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		access("s-1", OpWrite, address.BankCoil),
		access("s-1", OpConsume, address.BankHoldingRegister),
		access("s-2", OpWrite, address.BankHoldingRegister),
		{SessionID: "s-2", Category: CategorySession, Session: &SessionEvent{State: SessionDetached}},
		{SessionID: "s-2", Category: CategoryError, Error: &ErrorEventData{Message: "boom"}},
	}
	for i := range events {
		events[i].Timestamp = base.Add(time.Duration(i) * time.Second)
	}
	path := createTestLogFile(t, events)

	write := OpWrite
	holding := address.BankHoldingRegister
	sessionCat := CategorySession
	start := base.Add(1 * time.Second)
	end := base.Add(3 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   []int
	}{
		{name: "none", filter: Filter{}, want: []int{0, 1, 2, 3, 4}},
		{name: "session", filter: Filter{SessionID: "s-1"}, want: []int{0, 1}},
		{name: "segment", filter: Filter{Segment: "plc1.mem0x"}, want: []int{0}},
		{name: "op", filter: Filter{Op: &write}, want: []int{0, 2}},
		{name: "bank", filter: Filter{Bank: &holding}, want: []int{1, 2}},
		{name: "category", filter: Filter{Category: &sessionCat}, want: []int{3}},
		{name: "time range", filter: Filter{TimeStart: &start, TimeEnd: &end}, want: []int{1, 2}},
		{name: "combined", filter: Filter{SessionID: "s-2", Op: &write, Bank: &holding}, want: []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			defer reader.Close()

			read := readAll(t, reader)
			if len(read) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(read), len(tt.want))
			}
			for i, idx := range tt.want {
				if !read[i].Timestamp.Equal(events[idx].Timestamp) {
					t.Errorf("event %d: got timestamp %v, want event %d", i, read[i].Timestamp, idx)
				}
			}
		})
	}
}
