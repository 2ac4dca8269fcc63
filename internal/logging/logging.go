// Package logging initializes the process-wide zap logger. Callers get
// a subsystem-scoped logger via With rather than threading a
// context.Context through the tick loop — the room processor is
// single-threaded and synchronous, so there's no request-scoped value to
// carry.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	once   sync.Once
)

// Initialize builds the global logger. dev selects human-readable,
// colorized console output suitable for a terminal; its opposite is
// JSON output suitable for a log aggregator. quiet raises the minimum
// level to Warn regardless of dev, unless logLevel names a level
// explicitly. logFile, if non-empty, appends a file sink alongside
// stdout.
func Initialize(dev, quiet bool, logFile, logLevel string) error {
	var err error
	once.Do(func() {
		var cfg zap.Config
		if dev {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			cfg = zap.NewProductionConfig()
			cfg.EncoderConfig.TimeKey = "timestamp"
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}
		if quiet {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		if logLevel != "" {
			var lvl zapcore.Level
			if lvlErr := lvl.UnmarshalText([]byte(logLevel)); lvlErr == nil {
				cfg.Level = zap.NewAtomicLevelAt(lvl)
			}
		}

		cfg.OutputPaths = []string{"stdout"}
		if logFile != "" {
			cfg.OutputPaths = append(cfg.OutputPaths, logFile)
		}
		cfg.ErrorOutputPaths = []string{"stderr"}

		logger, err = cfg.Build()
	})
	return err
}

// L returns the global logger, falling back to a development logger if
// Initialize was never called (tests, or a bare library use).
func L() *zap.Logger {
	if logger == nil {
		l, _ := zap.NewDevelopment()
		return l
	}
	return logger
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}

// Room returns a logger scoped to a single room.
func Room(roomID uint64, roomName string) *zap.Logger {
	return L().With(zap.Uint64("room_id", roomID), zap.String("room_name", roomName))
}

// User returns a logger scoped to a single user.
func User(userID uint64, userName string) *zap.Logger {
	return L().With(zap.Uint64("user_id", userID), zap.String("user_name", userName))
}

// Conn returns a logger scoped to a single not-yet-admitted connection,
// keyed by the correlation id assigned at accept time.
func Conn(connID string, addr string) *zap.Logger {
	return L().With(zap.String("conn_id", connID), zap.String("addr", addr))
}
