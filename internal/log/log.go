// Package log provides the process-wide zap logger, optionally teed into a
// rotating log file.
package log

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the log file
const (
	maxFileSizeMB  = 50
	maxFileBackups = 5
	maxFileAgeDays = 28
)

var (
	mu   sync.RWMutex
	base *zap.Logger
)

// Init logs to stderr only
func Init(debug bool) error {
	return InitWithFile(debug, "")
}

// InitWithFile logs to stderr and, when path is set, as JSON to a
// lumberjack-rotated file at path
func InitWithFile(debug bool, path string) error {
	l, err := build(debug, path)
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}
	swap(l)
	return nil
}

func build(debug bool, path string) (*zap.Logger, error) {
	if path == "" {
		if debug {
			return zap.NewDevelopment()
		}
		return zap.NewProduction()
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	console := zap.NewProductionEncoderConfig()
	if debug {
		level.SetLevel(zapcore.DebugLevel)
		console = zap.NewDevelopmentEncoderConfig()
	}
	file := zap.NewProductionEncoderConfig()
	file.EncodeTime = zapcore.ISO8601TimeEncoder

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxFileSizeMB,
		MaxBackups: maxFileBackups,
		MaxAge:     maxFileAgeDays,
		Compress:   true,
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(console), zapcore.Lock(os.Stderr), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(file), zapcore.AddSync(rotator), level),
	)
	return zap.New(core, zap.AddCaller()), nil
}

// swap installs l, flushing the logger it replaces
func swap(l *zap.Logger) {
	mu.Lock()
	old := base
	base = l
	mu.Unlock()
	if old != nil {
		_ = old.Sync()
	}
}

func current() *zap.Logger {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l != nil {
		return l
	}

	// Fallback logger if not initialized
	l, _ = zap.NewProduction()
	swap(l)
	return l
}

// GetSugaredLogger returns the logger handed to components
func GetSugaredLogger() *zap.SugaredLogger {
	return current().Sugar()
}

// Sync flushes any buffered log entries
func Sync() {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}

// pkg returns a sugared logger that reports the caller of the package-level
// helpers below
func pkg() *zap.SugaredLogger {
	return current().WithOptions(zap.AddCallerSkip(1)).Sugar()
}

func Warnf(template string, args ...interface{}) {
	pkg().Warnf(template, args...)
}

func Errorf(template string, args ...interface{}) {
	pkg().Errorf(template, args...)
}

// Fatalf logs and exits the process
func Fatalf(template string, args ...interface{}) {
	pkg().Fatalf(template, args...)
}
