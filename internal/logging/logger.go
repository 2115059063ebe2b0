package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"agmerge/internal/config"
)

// LogFileName is the file written under the configured log directory.
const LogFileName = "agmerge.log"

// Options describes logger construction parameters.
type Options struct {
	// Level is one of debug, info, warn or error. Anything else means info.
	Level string
	// Format is console or json.
	Format string
	// Console receives every record. Nil means stderr unless Files is set.
	Console io.Writer
	// Files are appended to, creating parent directories as needed.
	Files []string
	// AddSource records the caller. Debug logging always does.
	AddSource bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))
	addSource := opts.AddSource || levelVar.Level() <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	if format != "console" && format != "json" {
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	sinks, err := openSinks(opts.Console, opts.Files)
	if err != nil {
		return nil, err
	}
	if format == "json" {
		return slog.New(newJSONHandler(sinks, levelVar, addSource)), nil
	}
	return slog.New(newPrettyHandler(sinks, levelVar, addSource)), nil
}

// NewFromConfig creates a logger using application config defaults. Log lines
// go to stderr, keeping stdout free for graph and report output, and to
// agmerge.log under the configured log directory.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Console: os.Stderr})
	}
	opts := Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Console: os.Stderr,
	}
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		opts.Files = []string{filepath.Join(dir, LogFileName)}
	}
	return New(opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openSinks combines the console writer with the log files. Duplicate file
// paths are opened once.
func openSinks(console io.Writer, files []string) (io.Writer, error) {
	var sinks []io.Writer
	if console != nil {
		sinks = append(sinks, console)
	}
	seen := make(map[string]bool, len(files))
	for _, path := range files {
		path = strings.TrimSpace(path)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("ensure log directory: %w", err)
			}
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		sinks = append(sinks, file)
	}
	switch len(sinks) {
	case 0:
		return os.Stderr, nil
	case 1:
		return sinks[0], nil
	default:
		return io.MultiWriter(sinks...), nil
	}
}
