package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns the number of workers to use for parallel frame
// processing. GOMAXPROCS already reflects container CPU limits
// (Go 1.19+), so one worker per schedulable CPU is the baseline.
//
// The limit parameter caps the count; a render of N frames never needs
// more than N workers. Use 0 for no cap.
//
// RENDER_WORKERS overrides the calculation when set to a positive
// integer.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv("RENDER_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns the worker count for CPU-bound work such as palette
// quantization (1 per CPU, capped at limit).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns the worker count for I/O-bound work such as blob
// copies during a library sweep (2 per CPU, capped at limit).
func ForIO(limit int) int {
	return Count(2.0, limit)
}
