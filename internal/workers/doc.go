/*
Package workers determines worker pool sizes for parallel render work
in containerized environments.

Go 1.19+ sets GOMAXPROCS from container CPU limits, while
runtime.NumCPU() still reports the host machine. Sizing pools from
NumCPU on a limited pod spawns far more workers than the cgroup will
schedule, which costs context switches and triggers CPU throttling.
These helpers size pools from GOMAXPROCS instead.

# Usage

	import "clip-studio/internal/workers"

	// CPU-bound work (palette quantization, frame encoding):
	// one worker per schedulable CPU, never more than frameCount.
	n := workers.ForCPU(frameCount)

	// I/O-bound work (blob copies during a library sweep):
	// two workers per CPU.
	n := workers.ForIO(16)

	// Custom ratio with a cap.
	n := workers.Count(3.0, 24)

# Override

RENDER_WORKERS overrides the calculation when set to a positive
integer, still capped by the limit argument:

	env:
	- name: RENDER_WORKERS
	  value: "4"

# Guidance

Always pass a cap sized to the actual work: a GIF with 12 frames gains
nothing from a 64-worker palette pool, and ForCPU(len(frames)) keeps
the pool bounded by useful parallelism. All functions are safe for
concurrent use.
*/
package workers
