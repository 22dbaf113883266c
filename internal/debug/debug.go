// Package debug holds flag guarded debug output on the global zap logger.
package debug

import (
	"time"

	"go.uber.org/zap"
)

// DebugOutput writes formatted debug output if debugging is enabled
func DebugOutput(enabled bool, format string, args ...interface{}) {
	if enabled {
		zap.S().Debugf(format, args...)
	}
}

// DebugTiming measures and logs execution time if debugging is enabled
func DebugTiming(enabled bool, operation string) func() {
	if !enabled {
		return func() {}
	}

	start := time.Now()
	DebugOutput(enabled, "Starting: %s", operation)

	return func() {
		DebugOutput(enabled, "Completed: %s (took %v)", operation, time.Since(start))
	}
}
