// Package logging provides structured logging for the analyzer.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig selects the log sinks and level. Sizes are in megabytes and
// MaxAge in days.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "warn",
		Console:    true,
		File:       false,
		FilePath:   filepath.Join(home, ".config", "breakeven-analyzer", "logs", "breakeven.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger returns a logger built from DefaultLogConfig.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// levelTags colors the console level column.
var levelTags = map[string]string{
	zerolog.LevelDebugValue: "\033[36mDBG\033[0m",
	zerolog.LevelInfoValue:  "\033[32mINF\033[0m",
	zerolog.LevelWarnValue:  "\033[33mWRN\033[0m",
	zerolog.LevelErrorValue: "\033[31mERR\033[0m",
}

// NewLoggerWithConfig builds a logger writing to stderr, a rotated file,
// or both. It also sets the global level from cfg.Level.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, consoleWriter(os.Stderr))
	}
	if cfg.File {
		if w, err := rotatingFile(cfg); err == nil {
			writers = append(writers, w)
		}
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}
	return zerolog.New(out).With().Timestamp().Caller().Logger()
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		FormatLevel: func(i interface{}) string {
			name, _ := i.(string)
			if tag, ok := levelTags[name]; ok {
				return tag
			}
			return name
		},
	}
}

// rotatingFile opens the log file through lumberjack, creating its
// directory first.
func rotatingFile(cfg LogConfig) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, err
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}, nil
}

// parseLevel accepts debug, info, warn and error. Anything else is info.
func parseLevel(level string) zerolog.Level {
	switch l, err := zerolog.ParseLevel(level); {
	case err != nil, level == "":
		return zerolog.InfoLevel
	case l < zerolog.DebugLevel, l > zerolog.ErrorLevel:
		return zerolog.InfoLevel
	default:
		return l
	}
}

// SetDebugLevel lowers the global level to debug, for --debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogAnalysis logs a completed strategy analysis.
func LogAnalysis(logger zerolog.Logger, strategy, method string, legs int, breakevens []float64) {
	logger.Info().
		Str("event", "analysis").
		Str("strategy", strategy).
		Str("method", method).
		Int("legs", legs).
		Floats64("breakevens", breakevens).
		Msg("Strategy analyzed")
}

// LogIV logs an implied volatility solve.
func LogIV(logger zerolog.Logger, symbol string, strike float64, optionType string, iv float64, converged bool) {
	logger.Info().
		Str("event", "implied_volatility").
		Str("symbol", symbol).
		Float64("strike", strike).
		Str("option_type", optionType).
		Float64("iv_percent", iv).
		Bool("converged", converged).
		Msg("Implied volatility solved")
}

// LogAdjustment logs an adjustment search.
func LogAdjustment(logger zerolog.Logger, symbol string, target float64, results int, duration time.Duration) {
	logger.Info().
		Str("event", "adjustment").
		Str("symbol", symbol).
		Float64("target", target).
		Int("results", results).
		Dur("duration", duration).
		Msg("Adjustment search completed")
}

// LogAPICall logs a broker API round trip at debug level, or at warn
// level when it failed.
func LogAPICall(logger zerolog.Logger, method, endpoint string, duration time.Duration, err error) {
	event := logger.Debug()
	if err != nil {
		event = logger.Warn().Err(err)
	}
	event.Str("event", "api_call").
		Str("method", method).
		Str("endpoint", endpoint).
		Dur("duration", duration).
		Msg("Kite API call")
}
