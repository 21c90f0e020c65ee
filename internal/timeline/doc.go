// Package timeline holds the non-destructive edit model: the segment
// timeline, the editor parameter state, and the derived crop/placement
// layout used by the export pipelines. It performs no I/O.
package timeline
