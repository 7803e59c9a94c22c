package interactive

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/modbus-tools/mbshm-go/internal/fixture"
	"github.com/modbus-tools/mbshm-go/pkg/device"
	"github.com/modbus-tools/mbshm-go/pkg/memory"
	"github.com/modbus-tools/mbshm-go/pkg/segment"
)

func newTestShell(t *testing.T) (*Shell, *bytes.Buffer) {
	t.Helper()
	store := segment.NewMemoryStore()
	img := fixture.DefaultImage("plc1")
	img.ByteOrder = memory.ByteOrderBig
	img.RegisterOrder = memory.R3R2R1R0
	if _, err := fixture.Create(store, img); err != nil {
		t.Fatalf("failed to create image: %v", err)
	}
	d, err := device.Attach(device.Config{Prefix: "plc1", Opener: store})
	if err != nil {
		t.Fatalf("failed to attach: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	var buf bytes.Buffer
	return newShell(d, nil, &buf), &buf
}

func exec(t *testing.T, s *Shell, buf *bytes.Buffer, line string) string {
	t.Helper()
	buf.Reset()
	if !s.Exec(context.Background(), line) {
		t.Fatalf("%q ended the shell", line)
	}
	return buf.String()
}

func TestShellSetAndGet(t *testing.T) {
	s, buf := newTestShell(t)

	out := exec(t, s, buf, "set 400001:uint32 0xDEADBEEF")
	if out != "400001:uint32 = 3735928559\n" {
		t.Errorf("unexpected set output %q", out)
	}

	out = exec(t, s, buf, "get 400001 400002")
	if out != "400001 = 57005\n400002 = 48879\n" {
		t.Errorf("unexpected get output %q", out)
	}
}

func TestShellSetStringWithSpaces(t *testing.T) {
	s, buf := newTestShell(t)

	out := exec(t, s, buf, `set 400010:string:8 pump  12`)
	if out != "400010:string:8 = \"pump  12\"\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestShellErrorsAreReported(t *testing.T) {
	s, buf := newTestShell(t)

	tests := []struct {
		line string
		want string
	}{
		{"get", "Usage: get"},
		{"set 400001", "Usage: set"},
		{"get 499999", "Error:"},
		{"set 400001 nope", "Error:"},
		{"dump", "Usage: dump"},
		{"dump 7x", "Error:"},
		{"dump holding x", "Error: invalid number"},
		{"mem 999999", "Error:"},
		{"watch -1", "Invalid duration"},
		{"hex maybe", "Usage: hex"},
		{"notation roman", "Error:"},
		{"frobnicate", "Unknown command: frobnicate"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			out := exec(t, s, buf, tt.line)
			if !strings.Contains(out, tt.want) {
				t.Errorf("expected %q in output %q", tt.want, out)
			}
		})
	}
}

func TestShellDisplaySettings(t *testing.T) {
	s, buf := newTestShell(t)
	exec(t, s, buf, "set 400002 255")

	if out := exec(t, s, buf, "hex on"); out != "hex on\n" {
		t.Errorf("unexpected output %q", out)
	}
	if out := exec(t, s, buf, "notation iec61131"); out != "notation iec61131\n" {
		t.Errorf("unexpected output %q", out)
	}
	if out := exec(t, s, buf, "get %MW1"); out != "%MW1 = 0x00FF\n" {
		t.Errorf("unexpected output %q", out)
	}
	if out := exec(t, s, buf, "hex"); out != "hex on\n" {
		t.Errorf("hex without argument should report the setting, got %q", out)
	}
}

func TestShellDumpAndInfo(t *testing.T) {
	s, buf := newTestShell(t)
	exec(t, s, buf, "set 3 true")

	out := exec(t, s, buf, "dump coil 0 4")
	if !strings.Contains(out, "COIL [0,4) of 64") || !strings.Contains(out, "000003: true") {
		t.Errorf("unexpected dump output:\n%s", out)
	}

	out = exec(t, s, buf, "info")
	if !strings.Contains(out, "BIG/R3R2R1R0") {
		t.Errorf("expected order in info output:\n%s", out)
	}

	out = exec(t, s, buf, "mem 0 16")
	if !strings.HasPrefix(out, "0000  ") {
		t.Errorf("unexpected mem output %q", out)
	}
}

func TestShellPollAndBeat(t *testing.T) {
	s, buf := newTestShell(t)

	if out := exec(t, s, buf, "poll"); out != "No changes\n" {
		t.Errorf("unexpected output %q", out)
	}

	exec(t, s, buf, "set 400001 1")
	out := exec(t, s, buf, "poll")
	if !strings.Contains(out, "HOLDING_REGISTER: rev=1 bytes [0,2)") {
		t.Errorf("unexpected poll output %q", out)
	}
	if out := exec(t, s, buf, "p"); out != "No changes\n" {
		t.Errorf("changes should be consumed, got %q", out)
	}

	if out := exec(t, s, buf, "beat"); out != "heartbeat = 1\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestShellWatchTimesOut(t *testing.T) {
	s, buf := newTestShell(t)
	exec(t, s, buf, "set 300001:uint16 5")

	out := exec(t, s, buf, "watch 0.05")
	if !strings.Contains(out, "1 changes") {
		t.Errorf("unexpected watch output %q", out)
	}
}

func TestShellQuit(t *testing.T) {
	s, _ := newTestShell(t)
	for _, line := range []string{"quit", "exit", "q"} {
		if s.Exec(context.Background(), line) {
			t.Errorf("%q should end the shell", line)
		}
	}
	if !s.Exec(context.Background(), "   ") {
		t.Error("blank line should not end the shell")
	}
}
