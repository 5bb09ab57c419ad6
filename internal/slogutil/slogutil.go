// Package slogutil configures structured logging for the engine: console
// output with optional rotated file output, runtime level changes and
// context-carried attributes.
package slogutil

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/javi11/mediahook/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup configures slog with log rotation using lumberjack.
// If logConfig.File is empty, it logs to console only; otherwise it logs
// to both console and file. The returned leveler can change the level at
// runtime (config reload).
func Setup(logConfig config.LogConfig) (*slog.Logger, *DynamicLeveler) {
	var writer io.Writer = os.Stdout

	if logConfig.File != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   logConfig.File,
			MaxSize:    logConfig.MaxSize,    // MB
			MaxBackups: logConfig.MaxBackups, // number of old files
			MaxAge:     logConfig.MaxAge,     // days
			Compress:   logConfig.Compress,
		}
		writer = io.MultiWriter(os.Stdout, fileWriter)
	}

	leveler := &DynamicLeveler{}
	leveler.SetLevel(parseLevel(logConfig.Level))

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level: leveler,
	})

	return slog.New(WrapHandler(handler)), leveler
}
