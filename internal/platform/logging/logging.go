// Package logging builds the process logger: one timestamped line per event,
// written to a size-rotated file under the user's log directory and mirrored
// to the console.
//
// The logger is constructed once by the command and passed to every component
// that logs; nothing in this package installs a global default.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	timeLayout   = "2006-01-02 15:04:05"
	megabyte     = 1024 * 1024
	defaultDir   = ".cams_mcp"
	defaultLogs  = "logs"
	fileMode     = 0o755
	logFileMode  = 0o644
	discardLevel = slog.LevelError + 4
	defaultLevel = slog.LevelInfo
)

// Config mirrors the LOG_* environment surface.
type Config struct {
	Level       string `env:"LOG_LEVEL" envDefault:"INFO"`
	File        string `env:"LOG_FILE" envDefault:"cams_mcp.log"`
	Dir         string `env:"LOG_DIR"`
	MaxBytes    int64  `env:"LOG_MAX_BYTES" envDefault:"10485760"`
	BackupCount int    `env:"LOG_BACKUP_COUNT" envDefault:"5"`
}

// Validate reports configuration that cannot produce a working logger.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	if strings.TrimSpace(c.File) == "" {
		return errors.New("LOG_FILE is required")
	}
	if c.MaxBytes < 0 {
		return fmt.Errorf("LOG_MAX_BYTES must be non-negative, got %d", c.MaxBytes)
	}
	if c.BackupCount < 0 {
		return fmt.Errorf("LOG_BACKUP_COUNT must be non-negative, got %d", c.BackupCount)
	}
	return nil
}

// Logger owns the rotating file behind a slog.Logger.
type Logger struct {
	*slog.Logger
	path   string
	closer io.Closer
}

// Path returns the active log file path.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// New creates the log directory and returns a logger writing to the rotating
// file and to console. Console is normally stderr: stdout carries the stdio
// protocol and must stay clean.
func New(cfg Config, console io.Writer) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := ParseLevel(cfg.Level)

	dir, err := resolveDir(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, fileMode); err != nil {
		return nil, fmt.Errorf("create log directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, cfg.File)
	file, err := openFile(path, cfg)
	if err != nil {
		return nil, err
	}

	var out io.Writer = file
	if console != nil {
		out = io.MultiWriter(file, console)
	}

	logger := &Logger{
		Logger: slog.New(NewHandler(out, level)),
		path:   path,
		closer: file,
	}
	logger.Info("logging configured", "log_file", path, "level", level.String())
	return logger, nil
}

// NewHandler returns the text handler used for every sink.
func NewHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) == 0 && attr.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, attr.Value.Time().Format(timeLayout))
			}
			return attr
		},
	})
}

// Discard returns a logger that drops everything. Components fall back to it
// when no logger is injected.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: discardLevel}))
}

// ParseLevel accepts slog level names plus WARNING and CRITICAL.
func ParseLevel(value string) (slog.Level, error) {
	name := strings.ToUpper(strings.TrimSpace(value))
	switch name {
	case "":
		return defaultLevel, nil
	case "WARNING":
		return slog.LevelWarn, nil
	case "CRITICAL", "FATAL":
		return slog.LevelError, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return defaultLevel, fmt.Errorf("unknown LOG_LEVEL %q", value)
	}
	return level, nil
}

func resolveDir(dir string) (string, error) {
	if strings.TrimSpace(dir) != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, defaultDir, defaultLogs), nil
}

// openFile returns the log sink. A zero byte budget disables rotation and
// appends to a plain file.
func openFile(path string, cfg Config) (io.WriteCloser, error) {
	if cfg.MaxBytes == 0 {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFileMode)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		return file, nil
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB(cfg.MaxBytes),
		MaxBackups: cfg.BackupCount,
	}, nil
}

// maxSizeMB converts a byte budget to lumberjack's megabyte granularity,
// rounding up.
func maxSizeMB(maxBytes int64) int {
	if maxBytes <= 0 {
		return 0
	}
	return int((maxBytes + megabyte - 1) / megabyte)
}
