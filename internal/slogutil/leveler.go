package slogutil

import (
	"log/slog"
	"sync/atomic"
)

// DynamicLeveler is a slog.Leveler whose level can change while the
// process runs, so a config reload adjusts verbosity without a restart.
type DynamicLeveler struct {
	level atomic.Value
}

// Level returns the current logging level.
func (dl *DynamicLeveler) Level() slog.Level {
	if v, ok := dl.level.Load().(slog.Level); ok {
		return v
	}
	return slog.LevelInfo
}

// SetLevel updates the logging level.
func (dl *DynamicLeveler) SetLevel(level slog.Level) {
	dl.level.Store(level)
}

// SetLevelString parses and applies a level name.
func (dl *DynamicLeveler) SetLevelString(level string) {
	dl.SetLevel(parseLevel(level))
}
