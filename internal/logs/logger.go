package logs

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/outclash/outclash-go/internal/config"
)

// Level names accepted in the log configuration.
const (
	LogLevelTrace = "trace"
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// DefaultLogConfig logs at info to the console and to a rotated
// outclash.log in Dir (10 MB per file, 5 backups, 30 days).
func DefaultLogConfig() *config.LogConfig {
	return &config.LogConfig{
		Level:         LogLevelInfo,
		EnableFile:    true,
		EnableConsole: true,
		Filename:      "outclash.log",
		MaxSize:       10,
		MaxBackups:    5,
		MaxAge:        30,
		Compress:      true,
	}
}

// ParseLevel maps a configured level name to a zap level. Unknown names map to info.
func ParseLevel(name string) zapcore.Level {
	switch strings.ToLower(name) {
	case LogLevelTrace, LogLevelDebug:
		return zap.DebugLevel
	case LogLevelWarn, "warning":
		return zap.WarnLevel
	case LogLevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// SetupLogger builds the application logger: a console core on stderr and a
// lumberjack-rotated file core, either of which may be disabled.
func SetupLogger(cfg *config.LogConfig) (*zap.Logger, error) {
	if cfg == nil {
		cfg = DefaultLogConfig()
	}
	level := ParseLevel(cfg.Level)

	var cores []zapcore.Core
	if cfg.EnableConsole {
		enc := newEncoder(formatConsole, term.IsTerminal(int(os.Stderr.Fd())))
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level))
	}
	if cfg.EnableFile {
		path, err := FilePath(cfg.LogDir, cfg.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create file core: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		format := formatFile
		if cfg.JSONFormat {
			format = formatJSON
		}
		cores = append(cores, zapcore.NewCore(newEncoder(format, false), zapcore.AddSync(rotator), level))
	}
	if len(cores) == 0 {
		return nil, errors.New("no log outputs configured")
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

type encoderFormat int

const (
	formatConsole encoderFormat = iota
	formatFile
	formatJSON
)

// newEncoder returns the encoder for format. color only affects the console.
func newEncoder(format encoderFormat, color bool) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeCaller = zapcore.ShortCallerEncoder

	switch format {
	case formatJSON:
		ec.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
		ec.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(ec)
	case formatFile:
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		ec.ConsoleSeparator = " | "
		return zapcore.NewConsoleEncoder(ec)
	default:
		ec = zap.NewDevelopmentEncoderConfig()
		ec.EncodeCaller = zapcore.ShortCallerEncoder
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		if color {
			ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		return zapcore.NewConsoleEncoder(ec)
	}
}
