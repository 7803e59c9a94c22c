// Package interactive provides the interactive shell of mbshm.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/modbus-tools/mbshm-go/cmd/mbshm/commands"
	"github.com/modbus-tools/mbshm-go/pkg/address"
	"github.com/modbus-tools/mbshm-go/pkg/device"
	"github.com/modbus-tools/mbshm-go/pkg/inspect"
)

// Shell handles interactive mode for one attached device.
type Shell struct {
	device    *device.Device
	inspector *inspect.Inspector
	formatter *inspect.Formatter
	rl        *readline.Instance
	out       io.Writer
}

// New creates a shell on d. It owns a readline instance until Run returns.
func New(d *device.Device, f *inspect.Formatter) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          d.Prefix() + "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := newShell(d, f, rl.Stdout())
	s.rl = rl
	return s, nil
}

func newShell(d *device.Device, f *inspect.Formatter, out io.Writer) *Shell {
	if f == nil {
		f = inspect.NewFormatter()
	}
	return &Shell{
		device:    d,
		inspector: inspect.NewInspector(d),
		formatter: f,
		out:       out,
	}
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if !s.Exec(ctx, line) {
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Exec runs one command line. It returns false when the shell should exit.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "info", "i":
		fmt.Fprint(s.out, s.formatter.FormatDeviceTree(s.inspector.InspectDevice()))

	case "get", "read", "r":
		s.cmdGet(args)

	case "set", "write", "w":
		s.cmdSet(input, args)

	case "dump", "d":
		s.cmdDump(args)

	case "mem":
		s.cmdMem(args)

	case "poll", "p":
		if commands.PollOnce(s.device, s.out) == 0 {
			fmt.Fprintln(s.out, "No changes")
		}

	case "watch":
		s.cmdWatch(ctx, args)

	case "beat":
		fmt.Fprintf(s.out, "heartbeat = %d\n", s.device.Beat())

	case "hex":
		s.cmdHex(args)

	case "notation":
		s.cmdNotation(args)

	case "quit", "exit", "q":
		return false

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Register Image Commands:
  Inspection:
    info                 - Show device summary
    get <path>...        - Read values
    set <path> <value>   - Write a value (strings may contain spaces)
    dump <bank> [off] [n] - List elements of a bank
    mem [off] [n]        - Hex dump of the device segment

  Changes:
    poll                 - Consume and show pending changes once
    watch [seconds]      - Consume and show changes for a while (default 5)
    beat                 - Advance the scripting heartbeat

  Display:
    hex on|off           - Print integers in hexadecimal
    notation <name>      - Address notation (modbus, iec61131, iec61131hex)

  General:
    help                 - Show this help
    quit                 - Exit shell

  Path Format:
    address[:type[:length]] - e.g. 400001, 400001:float32, %MW10:string:8
    Banks: 0xxxxx/%Q coils, 1xxxxx/%I discrete inputs,
           3xxxxx/%IW input registers, 4xxxxx/%MW holding registers`)
}

func (s *Shell) cmdGet(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: get <path>...")
		fmt.Fprintln(s.out, "  Example: get 400001:float32")
		return
	}
	if err := commands.Get(s.inspector, s.formatter, args, s.out); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

// cmdSet keeps the value text as typed after the path.
func (s *Shell) cmdSet(input string, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: set <path> <value>")
		fmt.Fprintln(s.out, "  Example: set 400001:uint16 0x1234")
		return
	}
	rest := strings.TrimSpace(input[strings.Index(input, args[0])+len(args[0]):])
	if err := commands.Set(s.inspector, s.formatter, args[0], rest, s.out); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

func (s *Shell) cmdDump(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: dump <bank> [offset] [count]")
		fmt.Fprintln(s.out, "  Example: dump holding 0 8")
		return
	}
	bank, err := address.ParseBank(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	nums, err := parseInts(args[1:])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	off, n := 0, commands.DefaultDumpCount
	if len(nums) > 0 {
		off = nums[0]
	}
	if len(nums) > 1 {
		n = nums[1]
	}
	if err := commands.Dump(s.inspector, s.formatter, bank, off, n, s.out); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

func (s *Shell) cmdMem(args []string) {
	nums, err := parseInts(args)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	off, n := 0, 64
	if len(nums) > 0 {
		off = nums[0]
	}
	if len(nums) > 1 {
		n = nums[1]
	}
	if err := commands.MemDump(s.device, off, n, s.out); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

func (s *Shell) cmdWatch(ctx context.Context, args []string) {
	secs := 5.0
	if len(args) > 0 {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil || v <= 0 {
			fmt.Fprintf(s.out, "Invalid duration: %s\n", args[0])
			return
		}
		secs = v
	}
	wctx, cancel := context.WithTimeout(ctx, time.Duration(secs*float64(time.Second)))
	defer cancel()

	n := 0
	err := inspect.Watch(wctx, s.device, commands.DefaultWatchInterval, func(c inspect.BankChange) {
		n++
		fmt.Fprintln(s.out, inspect.FormatChange(c.Bank, c.Change))
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "%d changes\n", n)
}

func (s *Shell) cmdHex(args []string) {
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "on", "true", "1":
			s.formatter.Hex = true
		case "off", "false", "0":
			s.formatter.Hex = false
		default:
			fmt.Fprintln(s.out, "Usage: hex on|off")
			return
		}
	}
	fmt.Fprintf(s.out, "hex %s\n", onOff(s.formatter.Hex))
}

func (s *Shell) cmdNotation(args []string) {
	if len(args) > 0 {
		n, err := address.ParseNotation(args[0])
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return
		}
		s.formatter.Notation = n
	}
	fmt.Fprintf(s.out, "notation %s\n", s.formatter.Notation)
}

func parseInts(args []string) ([]int, error) {
	out := make([]int, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseInt(a, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", a)
		}
		out = append(out, int(v))
	}
	return out, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
