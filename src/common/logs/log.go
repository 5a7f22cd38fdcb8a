// Package logs provides a common logging facility for the xowl packaging tools.
// It supports output to stderr, stdout or systemd journald based on configuration.
package logs

import (
	"io"
	"os"
	"os/exec"

	"github.com/charmbracelet/log"
)

// LogOutput defines the output destination for logs
type LogOutput string

const (
	// OutputStderr sends logs to standard error, keeping stdout for command output
	OutputStderr LogOutput = "stderr"
	// OutputStdout sends logs to standard output
	OutputStdout LogOutput = "stdout"
	// OutputJournald sends logs to systemd journald
	OutputJournald LogOutput = "journald"
	// OutputAuto selects journald when running under systemd, otherwise stderr
	OutputAuto LogOutput = "auto"
)

// Logger wraps the charm log.Logger with additional configuration
type Logger struct {
	*log.Logger
	output LogOutput
}

// Config holds the configuration for the logger
type Config struct {
	// Output specifies where logs should be sent (stderr, stdout, journald, auto)
	Output LogOutput
	// Level sets the minimum log level (debug, info, warn, error)
	Level string
	// Prefix sets a prefix for all log messages
	Prefix string
	// Writer overrides Output when set
	Writer io.Writer
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Output: OutputAuto,
		Level:  "info",
		Prefix: "",
	}
}

// journaldAvailable reports whether the process runs under systemd with journald reachable.
// Interactive shells keep logging to stderr.
func journaldAvailable() bool {
	if os.Getenv("JOURNAL_STREAM") == "" && os.Getenv("INVOCATION_ID") == "" {
		return false
	}
	if _, err := exec.LookPath("systemd-cat"); err != nil {
		return false
	}
	if _, err := os.Stat("/run/systemd/journal/socket"); err != nil {
		return false
	}
	return true
}

// parseLevel converts a string level to log.Level
func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// New creates a new Logger with the given configuration
func New(cfg Config) *Logger {
	var writer io.Writer
	var output LogOutput

	switch {
	case cfg.Writer != nil:
		writer = cfg.Writer
		output = cfg.Output
	case cfg.Output == OutputStdout:
		writer = os.Stdout
		output = OutputStdout
	case cfg.Output == OutputJournald || cfg.Output == OutputAuto:
		if journaldAvailable() {
			writer = newJournaldWriter()
			output = OutputJournald
		} else {
			writer = os.Stderr
			output = OutputStderr
		}
	default:
		writer = os.Stderr
		output = OutputStderr
	}

	logger := log.NewWithOptions(writer, log.Options{
		Level:           parseLevel(cfg.Level),
		Prefix:          cfg.Prefix,
		ReportTimestamp: true,
		ReportCaller:    false,
	})

	return &Logger{
		Logger: logger,
		output: output,
	}
}

// NewDefault creates a new Logger with default configuration
func NewDefault() *Logger {
	return New(DefaultConfig())
}

// Output returns the current output destination
func (l *Logger) Output() LogOutput {
	return l.output
}

// journaldWriter implements io.Writer for journald
type journaldWriter struct {
	identifier string
}

// newJournaldWriter creates a writer that sends output to journald
func newJournaldWriter() *journaldWriter {
	return &journaldWriter{
		identifier: "xowlpack",
	}
}

// Write implements io.Writer for journald.
// It uses systemd-cat to send messages to journald.
func (w *journaldWriter) Write(p []byte) (n int, err error) {
	cmd := exec.Command("systemd-cat", "-t", w.identifier)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return os.Stderr.Write(p)
	}

	if err := cmd.Start(); err != nil {
		return os.Stderr.Write(p)
	}

	n, err = stdin.Write(p)
	stdin.Close()

	// The message was handed over even if systemd-cat exits non-zero
	_ = cmd.Wait()

	return n, err
}
