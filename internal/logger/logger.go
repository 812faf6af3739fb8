// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger is the structured logging facade used by every other
// package in this tree. It never logs with the bare "log" package so that
// severity filtering and log-file rotation are configured in one place.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity levels, ordered most to least verbose so they sit alongside the
// standard slog levels without colliding with them.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(12)
)

// Severity name strings accepted by SetLoggingLevel, matching the config
// layer's cfgfs.LoggingConfig.Severity values.
const (
	Trace   = "TRACE"
	Debug   = "DEBUG"
	Info    = "INFO"
	Warning = "WARNING"
	Error   = "ERROR"
	Off     = "OFF"
)

// RotateConfig controls lumberjack log-file rotation.
type RotateConfig struct {
	MaxFileSizeMB  int
	BackupFileCount int
	Compress        bool
}

// DefaultRotateConfig mirrors the defaults a freshly-formatted image ships
// with: 512MB per file, keep one backup, compress rotated files.
func DefaultRotateConfig() RotateConfig {
	return RotateConfig{MaxFileSizeMB: 512, BackupFileCount: 1, Compress: true}
}

type loggerFactory struct {
	file      *lumberjack.Logger
	sysWriter io.Writer // used when logging to stderr instead of a file
	level     string
	format    string // "text" or "json"; anything other than "json" behaves like "text"
	rotate    RotateConfig
	prefix    string
}

var (
	defaultLoggerFactory = &loggerFactory{
		level:  Info,
		format: "text",
		rotate: DefaultRotateConfig(),
	}
	defaultLogger = slog.New(defaultLoggerFactory.handler(new(slog.LevelVar)))
)

func setLoggingLevel(level string, programLevel *slog.LevelVar) {
	switch level {
	case Trace:
		programLevel.Set(LevelTrace)
	case Debug:
		programLevel.Set(LevelDebug)
	case Info:
		programLevel.Set(LevelInfo)
	case Warning:
		programLevel.Set(LevelWarn)
	case Error:
		programLevel.Set(LevelError)
	case Off:
		programLevel.Set(LevelOff)
	default:
		programLevel.Set(LevelInfo)
	}
}

// handler builds the slog.Handler matching the factory's current format.
func (f *loggerFactory) handler(lv *slog.LevelVar) slog.Handler {
	var w io.Writer = os.Stderr
	if f.file != nil {
		w = f.file
	} else if f.sysWriter != nil {
		w = f.sysWriter
	}
	return f.createJSONOrTextHandler(w, lv, f.prefix)
}

// createJSONOrTextHandler builds a handler that renders the custom severity
// names instead of slog's built-in DEBUG/INFO/WARN/ERROR four-level scheme.
func (f *loggerFactory) createJSONOrTextHandler(w io.Writer, lv *slog.LevelVar, prefix string) slog.Handler {
	replace := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.LevelKey {
			a.Key = "severity"
			a.Value = slog.StringValue(severityName(a.Value.Any().(slog.Level)))
		}
		if a.Key == slog.MessageKey && prefix != "" {
			a.Value = slog.StringValue(prefix + a.Value.String())
		}
		return a
	}

	opts := &slog.HandlerOptions{Level: lv, ReplaceAttr: replace}
	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func severityName(l slog.Level) string {
	switch {
	case l <= LevelTrace:
		return "TRACE"
	case l <= LevelDebug:
		return "DEBUG"
	case l <= LevelInfo:
		return "INFO"
	case l <= LevelWarn:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// SetLogFormat switches the active logger between "text" and "json" output.
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format
	lv := new(slog.LevelVar)
	setLoggingLevel(defaultLoggerFactory.level, lv)
	defaultLogger = slog.New(defaultLoggerFactory.handler(lv))
}

// SetLoggingLevel changes the severity threshold of the active logger.
func SetLoggingLevel(level string) {
	defaultLoggerFactory.level = level
	lv := new(slog.LevelVar)
	setLoggingLevel(level, lv)
	defaultLogger = slog.New(defaultLoggerFactory.handler(lv))
}

// InitLogFile points the default logger at a rotating log file on disk.
func InitLogFile(path string, severity string, format string, rotate RotateConfig) error {
	if path == "" {
		return fmt.Errorf("InitLogFile: empty path")
	}

	defaultLoggerFactory = &loggerFactory{
		file: &lumberjack.Logger{
			Filename: path,
			MaxSize:  rotate.MaxFileSizeMB,
			MaxBackups: rotate.BackupFileCount,
			Compress:   rotate.Compress,
		},
		level:  severity,
		format: format,
		rotate: rotate,
	}

	lv := new(slog.LevelVar)
	setLoggingLevel(severity, lv)
	defaultLogger = slog.New(defaultLoggerFactory.handler(lv))
	return nil
}

func log(ctx context.Context, level slog.Level, format string, v ...interface{}) {
	if !defaultLogger.Enabled(ctx, level) {
		return
	}
	defaultLogger.Log(ctx, level, fmt.Sprintf(format, v...))
}

func Tracef(format string, v ...interface{}) { log(context.Background(), LevelTrace, format, v...) }
func Debugf(format string, v ...interface{}) { log(context.Background(), LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { log(context.Background(), LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { log(context.Background(), LevelWarn, format, v...) }
func Errorf(format string, v ...interface{}) { log(context.Background(), LevelError, format, v...) }
