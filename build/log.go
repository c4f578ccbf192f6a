// Package build provides the rotating, multi-subsystem log writer shared by
// every package in this module. Packages never log directly to a
// btclog.Logger of their own creation; they accept one via a UseLogger(...)
// call wired up by build.SetSubLogger.
package build

import (
	"io"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// LogType describes where non-file-tagged builds send log output.
type LogType int

const (
	// LogTypeNone discards all logging output.
	LogTypeNone LogType = iota

	// LogTypeStdOut logs to stdout.
	LogTypeStdOut

	// LogTypeStdErr logs to stderr.
	LogTypeStdErr
)

// LoggingType is the default log sink, overridden by the filelog build tag.
const LoggingType = LogTypeStdOut

// LogWriter is an io.Writer wrapping a rotator.Rotator alongside whatever
// LoggingType selects, so log lines always reach both the rotated file and
// (unless the filelog tag is active) the console.
type LogWriter struct {
	RotatorPipe *io.PipeWriter
}

// RotatingLogWriter keeps track of all registered sub-system loggers and
// allows them to be replaced uniformly once the root log file is known, the
// same two-phase init as the lnd-style logger registry (log.go's
// lndPkgLoggers / SetupLoggers pair).
type RotatingLogWriter struct {
	rotator    *rotator.Rotator
	subLoggers map[string]btclog.Logger
}

// NewRotatingLogWriter returns a writer with no rotation configured yet.
// InitLogRotator must be called before any logger produces output that
// should reach disk.
func NewRotatingLogWriter() *RotatingLogWriter {
	return &RotatingLogWriter{
		subLoggers: make(map[string]btclog.Logger),
	}
}

// InitLogRotator initializes the log rotation system to write logs to
// logFile and create roll files in the same directory. It must be called
// before the various instances of btclog.Logger are created.
func (r *RotatingLogWriter) InitLogRotator(logFile string, maxRolls int) error {
	logDir, _ := splitDir(logFile)
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return err
	}

	rot, err := rotator.New(logFile, 10*1024, false, maxRolls)
	if err != nil {
		return err
	}

	r.rotator = rot
	return nil
}

// GenSubLogger creates a new sub-logger writer that writes to both the
// standard out, if it's enabled, and the log rotator, if it's enabled.
func (r *RotatingLogWriter) GenSubLogger() btclog.Logger {
	return btclog.NewBackend(r).Logger("")
}

// Write implements io.Writer, satisfied by handing off to the rotator when
// one is configured and to stdout otherwise (or both, for the default
// non-filelog build).
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	if r.rotator != nil {
		_, _ = r.rotator.Write(b)
	}
	if LoggingType == LogTypeStdOut {
		return os.Stdout.Write(b)
	}
	return len(b), nil
}

// RegisterSubLogger stores the logger for subsystem so it is reachable by
// name later (e.g. for runtime log-level adjustment).
func (r *RotatingLogWriter) RegisterSubLogger(subsystem string, logger btclog.Logger) {
	r.subLoggers[subsystem] = logger
}

// SubLogger returns the previously registered logger for subsystem, or nil.
func (r *RotatingLogWriter) SubLogger(subsystem string) btclog.Logger {
	return r.subLoggers[subsystem]
}

// NewSubLogger creates a new logger for a particular subsystem. If genLogger
// is nil a disabled logger is returned; otherwise genLogger is asked to
// build a fresh backend logger tagged with subsystem.
func NewSubLogger(subsystem string, genLogger func() btclog.Logger) btclog.Logger {
	var logger btclog.Logger
	if genLogger == nil {
		logger = btclog.Disabled
	} else {
		logger = genLogger()
	}
	logger.SetLevel(btclog.LevelInfo)
	return logger
}

func splitDir(path string) (dir, file string) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i], path[i+1:]
		}
	}
	return ".", path
}
