// Package log provides structured access logging for shared register images.
//
// This package defines the Logger interface and Event types for capturing
// what a session did to the shared segments: attachments, writes and
// owner-side change consumption. It is separate from operational logging
// (slog) - the access trace is a complete machine-readable record for
// debugging interplay with the segment owner.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	dev, _ := device.Attach(device.Config{
//		Prefix:       "plc1",
//		Opener:       segment.NewFileStore(""),
//		AccessLogger: log.NewSlogAdapter(slog.Default()),
//	})
//
//	// For production: write to binary file
//	fl, _ := log.NewFileLogger("/var/log/mbshm/plc1.alog")
//
//	// Both: use MultiLogger
//	l := log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Event Types
//
// Events fall in three categories:
//   - Access: a write or consume of a byte range (AccessEvent)
//   - Session: attach/detach of a device image (SessionEvent)
//   - Error: a failed lock or segment operation (ErrorEventData)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys. The
// mbshm-log tool views, exports and filters them.
package log
