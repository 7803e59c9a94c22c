// Package config loads the YAML configuration of the mbshm tools.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/modbus-tools/mbshm-go/pkg/address"
	"github.com/modbus-tools/mbshm-go/pkg/segment"
)

// Config holds the tool settings. Every field has a usable default.
type Config struct {
	// Prefix names the device image ("<prefix>.device", ...).
	Prefix string `yaml:"prefix"`

	// SegmentDir is where the segment files live.
	SegmentDir string `yaml:"segment_dir"`

	// Notation is the address notation used for output: modbus, iec61131
	// or iec61131hex.
	Notation string `yaml:"notation"`

	// LogLevel is the slog level: debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// AccessLog is the path of the CBOR access log. Empty disables it.
	AccessLog string `yaml:"access_log"`

	// SnapshotDir is where save and restore keep snapshot files.
	SnapshotDir string `yaml:"snapshot_dir"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		SegmentDir:  segment.DefaultDir,
		Notation:    address.NotationModbus.String(),
		LogLevel:    "info",
		SnapshotDir: ".",
	}
}

// DefaultPath returns the per-user configuration file, or "" if the user
// configuration directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "mbshm", "config.yaml")
}

// LoadError describes a configuration file that could not be used.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Line is the line number where the error occurred (0 if unknown).
	Line int

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			b.WriteString(":" + strconv.Itoa(e.Line))
		}
		b.WriteString(": ")
	} else if e.Line > 0 {
		b.WriteString("line " + strconv.Itoa(e.Line) + ": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": " + e.Cause.Error())
	}
	return b.String()
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// fieldError is a validation failure of one key.
type fieldError struct {
	key string
	err error
}

func (e *fieldError) Error() string { return e.key + ": " + e.err.Error() }
func (e *fieldError) Unwrap() error { return e.err }

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&root); err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if len(root.Content) > 0 {
		doc := root.Content[0]
		if doc.Kind != yaml.MappingNode {
			return nil, &LoadError{Line: doc.Line, Message: "configuration must be a mapping"}
		}
		if err := checkKeys(doc); err != nil {
			return nil, err
		}
		if err := doc.Decode(cfg); err != nil {
			return nil, &LoadError{Line: doc.Line, Message: "invalid value", Cause: err}
		}
	}

	if err := cfg.Validate(); err != nil {
		le := &LoadError{Message: "invalid configuration", Cause: err}
		var fe *fieldError
		if errors.As(err, &fe) && len(root.Content) > 0 {
			le.Line = keyLine(root.Content[0], fe.key)
		}
		return nil, le
	}
	return cfg, nil
}

// Load reads path and parses it. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return cfg, nil
}

var knownKeys = map[string]bool{
	"prefix":       true,
	"segment_dir":  true,
	"notation":     true,
	"log_level":    true,
	"access_log":   true,
	"snapshot_dir": true,
}

func checkKeys(m *yaml.Node) error {
	for i := 0; i+1 < len(m.Content); i += 2 {
		k := m.Content[i]
		if !knownKeys[k.Value] {
			return &LoadError{Line: k.Line, Message: fmt.Sprintf("unknown key %q", k.Value)}
		}
	}
	return nil
}

func keyLine(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i].Line
		}
	}
	return 0
}

// Validate checks every field.
func (c *Config) Validate() error {
	if c.SegmentDir == "" {
		return &fieldError{"segment_dir", errors.New("must not be empty")}
	}
	if _, err := address.ParseNotation(c.Notation); err != nil {
		return &fieldError{"notation", err}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return &fieldError{"log_level", err}
	}
	if strings.ContainsAny(c.Prefix, "/\x00") {
		return &fieldError{"prefix", fmt.Errorf("%q must not contain '/'", c.Prefix)}
	}
	return nil
}

// AddressNotation returns the configured notation.
func (c *Config) AddressNotation() address.Notation {
	n, _ := address.ParseNotation(c.Notation)
	return n
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel parses a slog level name.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
