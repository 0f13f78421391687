// Package logging builds the zap loggers used across the server.
package logging

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var ErrInvalidOptions = errors.New("invalid logging options")

// Supported encodings.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options selects level, encoding and destination.
type Options struct {
	Level       string // debug, info, warn, error
	Format      string // json or console
	Development bool
	// Output is a zap sink such as "stdout", "stderr" or a file path.
	// The MCP stdio mode must log to stderr since stdout carries the protocol.
	Output string
}

// ParseLevel converts a level name into a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return l, fmt.Errorf("%w: level %q", ErrInvalidOptions, level)
	}
	return l, nil
}

// ValidFormat reports whether format is a supported encoding.
func ValidFormat(format string) bool {
	return format == "" || format == FormatJSON || format == FormatConsole
}

// New builds a logger from opts.
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if !ValidFormat(opts.Format) {
		return nil, fmt.Errorf("%w: format %q", ErrInvalidOptions, opts.Format)
	}

	format := opts.Format
	if format == "" {
		format = FormatJSON
	}
	output := opts.Output
	if output == "" {
		output = "stdout"
	}

	encoder := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if format == FormatConsole {
		encoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config := zap.Config{
		Encoding:         format,
		Level:            zap.NewAtomicLevelAt(level),
		Development:      opts.Development,
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    encoder,
	}

	log, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log, nil
}
