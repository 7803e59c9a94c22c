// Command mbshm inspects and edits the shared-memory register image of a
// Modbus device.
//
// A register image is a set of segments named after a prefix, by default
// under /dev/shm: plc1.device, plc1.python, plc1.mem0x, plc1.mem1x,
// plc1.mem3x and plc1.mem4x.
//
// Usage:
//
//	mbshm <command> [flags] [args]
//
// Commands:
//
//	info      Show the device summary
//	get       Read values
//	set       Write a value
//	dump      List the elements of a bank
//	mem       Hex dump of the device segment
//	watch     Show changes as they are written
//	monitor   Full-screen view of the bank values
//	beat      Advance the scripting heartbeat
//	save      Save every bank to a snapshot file
//	restore   Write a snapshot file back
//	create    Create a new register image
//	destroy   Remove a register image
//	shell     Interactive shell
//
// Examples:
//
//	# Create a test image and look at it
//	mbshm create -prefix plc1 -holding 100
//	mbshm info -prefix plc1
//
//	# Read a float from two holding registers
//	mbshm get -prefix plc1 400001:float32
//
//	# Write a string in IEC notation
//	mbshm set -prefix plc1 %MW10:string:8 "pump 1"
//
//	# Follow writes, logging them to a file
//	mbshm watch -prefix plc1 -access-log plc1.alog
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/modbus-tools/mbshm-go/cmd/mbshm/commands"
	"github.com/modbus-tools/mbshm-go/cmd/mbshm/interactive"
	"github.com/modbus-tools/mbshm-go/cmd/mbshm/monitor"
	"github.com/modbus-tools/mbshm-go/internal/fixture"
	"github.com/modbus-tools/mbshm-go/pkg/config"
	"github.com/modbus-tools/mbshm-go/pkg/log"
	"github.com/modbus-tools/mbshm-go/pkg/memory"
)

const usage = `mbshm - Modbus Shared-Memory Register Image Tool

Usage:
  mbshm <command> [flags] [args]

Commands:
  info      Show the device summary
  get       Read values (path = address[:type[:length]])
  set       Write a value
  dump      List the elements of a bank
  mem       Hex dump of the device segment
  watch     Show changes as they are written
  monitor   Full-screen view of the bank values
  beat      Advance the scripting heartbeat
  save      Save every bank to a snapshot file
  restore   Write a snapshot file back
  create    Create a new register image
  destroy   Remove a register image
  shell     Interactive shell

Use "mbshm <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "info":
		runInfo(args)
	case "get":
		runGet(args)
	case "set":
		runSet(args)
	case "dump":
		runDump(args)
	case "mem":
		runMem(args)
	case "watch":
		runWatch(args)
	case "monitor":
		runMonitor(args)
	case "beat":
		runBeat(args)
	case "save":
		runSave(args)
	case "restore":
		runRestore(args)
	case "create":
		runCreate(args)
	case "destroy":
		runDestroy(args)
	case "shell":
		runShell(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// common holds the flags every command accepts.
type common struct {
	configPath string
	prefix     string
	dir        string
	notation   string
	logLevel   string
	accessLog  string
	hex        bool
}

func addCommonFlags(fs *flag.FlagSet) *common {
	c := &common{}
	fs.StringVar(&c.configPath, "config", config.DefaultPath(), "Configuration file")
	fs.StringVar(&c.prefix, "prefix", "", "Segment name prefix of the device image")
	fs.StringVar(&c.dir, "dir", "", "Segment directory (default /dev/shm)")
	fs.StringVar(&c.notation, "notation", "", "Address notation: modbus, iec61131, iec61131hex")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&c.accessLog, "access-log", "", "Append access events to this CBOR file")
	fs.BoolVar(&c.hex, "hex", false, "Print integers in hexadecimal")
	return c
}

// options merges the configuration file and the flags. The returned
// function closes the access log.
func (c *common) options() (commands.Options, func()) {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			fatal(err)
		}
	}

	if c.prefix != "" {
		cfg.Prefix = c.prefix
	}
	if c.dir != "" {
		cfg.SegmentDir = c.dir
	}
	if c.notation != "" {
		cfg.Notation = c.notation
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if c.accessLog != "" {
		cfg.AccessLog = c.accessLog
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	opts := commands.Options{
		Config: cfg,
		Logger: logger,
		Hex:    c.hex,
	}

	var loggers []log.Logger
	if cfg.Level() <= slog.LevelDebug {
		loggers = append(loggers, log.NewSlogAdapter(logger))
	}
	cleanup := func() {}
	if cfg.AccessLog != "" {
		fl, err := log.NewFileLogger(cfg.AccessLog)
		if err != nil {
			fatal(fmt.Errorf("failed to open access log: %w", err))
		}
		loggers = append(loggers, fl)
		cleanup = func() {
			if n := fl.Dropped(); n > 0 {
				logger.Warn("access events dropped", "count", n)
			}
			fl.Close()
		}
	}
	if len(loggers) > 0 {
		opts.AccessLogger = log.NewMultiLogger(loggers...)
	}
	return opts, cleanup
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// newFlagSet builds a flag set with the common flags and a usage text.
func newFlagSet(name, synopsis, args string) (*flag.FlagSet, *common) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `mbshm %s - %s

Usage:
  mbshm %s [flags] %s

Flags:
`, name, synopsis, name, args)
		fs.PrintDefaults()
	}
	return fs, addCommonFlags(fs)
}

func parse(fs *flag.FlagSet, args []string, minArgs int) {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < minArgs {
		fmt.Fprintln(os.Stderr, "Error: missing arguments")
		fs.Usage()
		os.Exit(1)
	}
}

func intArg(fs *flag.FlagSet, i, def int) int {
	if fs.NArg() <= i {
		return def
	}
	v, err := strconv.ParseInt(fs.Arg(i), 0, 32)
	if err != nil {
		fatal(fmt.Errorf("invalid number %q", fs.Arg(i)))
	}
	return int(v)
}

func run(c *common, fn func(opts commands.Options) error) {
	opts, cleanup := c.options()
	err := fn(opts)
	cleanup()
	if err != nil {
		fatal(err)
	}
}

func runInfo(args []string) {
	fs, c := newFlagSet("info", "Show the device summary", "")
	parse(fs, args, 0)
	run(c, func(opts commands.Options) error {
		return commands.RunInfo(opts, os.Stdout)
	})
}

func runGet(args []string) {
	fs, c := newFlagSet("get", "Read values", "<path>...")
	parse(fs, args, 1)
	run(c, func(opts commands.Options) error {
		return commands.RunGet(opts, fs.Args(), os.Stdout)
	})
}

func runSet(args []string) {
	fs, c := newFlagSet("set", "Write a value", "<path> <value>")
	parse(fs, args, 2)
	run(c, func(opts commands.Options) error {
		return commands.RunSet(opts, fs.Arg(0), fs.Arg(1), os.Stdout)
	})
}

func runDump(args []string) {
	fs, c := newFlagSet("dump", "List the elements of a bank", "<bank> [offset] [count]")
	parse(fs, args, 1)
	off := intArg(fs, 1, 0)
	n := intArg(fs, 2, commands.DefaultDumpCount)
	run(c, func(opts commands.Options) error {
		return commands.RunDump(opts, fs.Arg(0), off, n, os.Stdout)
	})
}

func runMem(args []string) {
	fs, c := newFlagSet("mem", "Hex dump of the device segment", "[offset] [count]")
	parse(fs, args, 0)
	off := intArg(fs, 0, 0)
	n := intArg(fs, 1, 256)
	run(c, func(opts commands.Options) error {
		return commands.RunMemDump(opts, off, n, os.Stdout)
	})
}

func runWatch(args []string) {
	fs, c := newFlagSet("watch", "Show changes as they are written", "")
	interval := fs.Duration("interval", commands.DefaultWatchInterval, "Polling interval")
	parse(fs, args, 0)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	run(c, func(opts commands.Options) error {
		return commands.RunWatch(ctx, opts, *interval, os.Stdout)
	})
}

func runMonitor(args []string) {
	fs, c := newFlagSet("monitor", "Full-screen view of the bank values", "")
	interval := fs.Duration("interval", monitor.DefaultInterval, "Refresh interval")
	parse(fs, args, 0)
	run(c, func(opts commands.Options) error {
		d, err := opts.Attach()
		if err != nil {
			return err
		}
		defer d.Close()
		return monitor.Run(d, opts.Formatter(), *interval)
	})
}

func runBeat(args []string) {
	fs, c := newFlagSet("beat", "Advance the scripting heartbeat", "")
	parse(fs, args, 0)
	run(c, func(opts commands.Options) error {
		return commands.RunBeat(opts, os.Stdout)
	})
}

func runSave(args []string) {
	fs, c := newFlagSet("save", "Save every bank to a snapshot file", "[file]")
	parse(fs, args, 0)
	run(c, func(opts commands.Options) error {
		return commands.RunSave(opts, fs.Arg(0), os.Stdout)
	})
}

func runRestore(args []string) {
	fs, c := newFlagSet("restore", "Write a snapshot file back", "[file]")
	parse(fs, args, 0)
	run(c, func(opts commands.Options) error {
		return commands.RunRestore(opts, fs.Arg(0), os.Stdout)
	})
}

func runCreate(args []string) {
	fs, c := newFlagSet("create", "Create a new register image", "")
	img := fixture.DefaultImage("")
	fs.StringVar(&img.Name, "name", "", "Device name (default: the prefix)")
	fs.IntVar(&img.Coils, "coils", img.Coils, "Number of coils")
	fs.IntVar(&img.DiscreteInputs, "discrete", img.DiscreteInputs, "Number of discrete inputs")
	fs.IntVar(&img.InputRegisters, "input", img.InputRegisters, "Number of input registers")
	fs.IntVar(&img.HoldingRegisters, "holding", img.HoldingRegisters, "Number of holding registers")
	byteOrder := fs.String("byte-order", "little", "Byte order: little, big, default")
	regOrder := fs.String("register-order", "R0R1R2R3", "Register order: R0R1R2R3, R3R2R1R0, R1R0R3R2, R2R3R0R1, default")
	exception := fs.Uint("exception-status", uint(img.ExceptionStatusRef), "Modbus address of the exception status byte (0: unset)")
	parse(fs, args, 0)

	var err error
	if img.ByteOrder, err = memory.ParseByteOrder(*byteOrder); err != nil {
		fatal(err)
	}
	if img.RegisterOrder, err = memory.ParseRegisterOrder(*regOrder); err != nil {
		fatal(err)
	}
	img.ExceptionStatusRef = uint32(*exception)

	run(c, func(opts commands.Options) error {
		img.Prefix = opts.Config.Prefix
		return commands.RunCreate(opts, img, os.Stdout)
	})
}

func runDestroy(args []string) {
	fs, c := newFlagSet("destroy", "Remove a register image", "")
	parse(fs, args, 0)
	run(c, func(opts commands.Options) error {
		return commands.RunDestroy(opts, os.Stdout)
	})
}

func runShell(args []string) {
	fs, c := newFlagSet("shell", "Interactive shell", "")
	parse(fs, args, 0)

	opts, cleanup := c.options()
	defer cleanup()

	d, err := opts.Attach()
	if err != nil {
		fatal(err)
	}
	defer d.Close()

	sh, err := interactive.New(d, opts.Formatter())
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	sh.Run(ctx, cancel)
	opts.Logger.Debug("shell closed", "prefix", d.Prefix(), "duration", time.Since(start).Round(time.Millisecond))
}
