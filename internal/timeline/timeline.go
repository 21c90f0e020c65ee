package timeline

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// MinSegmentWidth is the smallest span in seconds a segment may be trimmed
// to. Trims that would shrink a segment below this width are clamped.
const MinSegmentWidth = 0.1

// Segment is a contiguous interval of the source media retained in the
// edited output. Times are in seconds relative to the source start.
type Segment struct {
	ID    string  `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Timeline is the non-destructive edit model over a recorded clip. Segments
// are kept sorted ascending by start and never overlap; gaps between them
// are regions edited out of the output. The set never becomes empty.
type Timeline struct {
	total    float64
	segments []Segment
}

// New creates a timeline covering the full source duration with one segment.
func New(totalDuration float64) (*Timeline, error) {
	if totalDuration <= 0 {
		return nil, fmt.Errorf("total duration must be positive, got %v", totalDuration)
	}
	return &Timeline{
		total: totalDuration,
		segments: []Segment{
			{ID: uuid.NewString(), Start: 0, End: totalDuration},
		},
	}, nil
}

// Segments returns a copy of the segment set in start order.
func (tl *Timeline) Segments() []Segment {
	out := make([]Segment, len(tl.segments))
	copy(out, tl.segments)
	return out
}

// SourceDuration returns the duration of the underlying source clip.
func (tl *Timeline) SourceDuration() float64 {
	return tl.total
}

// TotalDuration returns the summed duration of all retained segments.
func (tl *Timeline) TotalDuration() float64 {
	var sum float64
	for _, s := range tl.segments {
		sum += s.Duration()
	}
	return sum
}

// SegmentAt returns the segment containing t, treating the end as exclusive.
func (tl *Timeline) SegmentAt(t float64) (Segment, bool) {
	for _, s := range tl.segments {
		if t >= s.Start && t < s.End {
			return s, true
		}
	}
	return Segment{}, false
}

// Split cuts the segment containing at into two contiguous segments. It is a
// no-op when at falls in a gap, or when either half would be degenerate.
func (tl *Timeline) Split(at float64) bool {
	for i, s := range tl.segments {
		if at <= s.Start || at >= s.End {
			continue
		}
		if at-s.Start < MinSegmentWidth || s.End-at < MinSegmentWidth {
			return false
		}
		left := Segment{ID: s.ID, Start: s.Start, End: at}
		right := Segment{ID: uuid.NewString(), Start: at, End: s.End}
		tl.segments = append(tl.segments[:i], append([]Segment{left, right}, tl.segments[i+1:]...)...)
		return true
	}
	return false
}

// Trim moves a segment's boundaries. Bounds are clamped so the segment stays
// inside [0, total], does not cross its neighbors, and keeps the minimum
// width. Neighboring segments are never merged or reordered.
func (tl *Timeline) Trim(id string, newStart, newEnd float64) bool {
	idx := tl.index(id)
	if idx < 0 {
		return false
	}

	lo := 0.0
	if idx > 0 {
		lo = tl.segments[idx-1].End
	}
	hi := tl.total
	if idx < len(tl.segments)-1 {
		hi = tl.segments[idx+1].Start
	}

	start := clampFloat(newStart, lo, hi-MinSegmentWidth)
	end := clampFloat(newEnd, start+MinSegmentWidth, hi)
	if end-start < MinSegmentWidth {
		end = start + MinSegmentWidth
		if end > hi {
			end = hi
			start = end - MinSegmentWidth
		}
	}

	tl.segments[idx].Start = start
	tl.segments[idx].End = end
	return true
}

// Delete removes a segment. The last remaining segment is never removed.
func (tl *Timeline) Delete(id string) bool {
	if len(tl.segments) <= 1 {
		return false
	}
	idx := tl.index(id)
	if idx < 0 {
		return false
	}
	tl.segments = append(tl.segments[:idx], tl.segments[idx+1:]...)
	return true
}

// SeekClamp maps a playback time to a valid position: a time inside a
// segment is returned unchanged, a time in a gap snaps to the start of the
// next segment, and a time past the final segment snaps to the first
// segment's start. Playback never dwells in an edited-out region.
func (tl *Timeline) SeekClamp(t float64) float64 {
	if _, ok := tl.SegmentAt(t); ok {
		return t
	}
	for _, s := range tl.segments {
		if s.Start > t {
			return s.Start
		}
	}
	return tl.segments[0].Start
}

// Validate checks the structural invariants. It is used by tests and as a
// guard before rendering.
func (tl *Timeline) Validate() error {
	if len(tl.segments) == 0 {
		return fmt.Errorf("timeline has no segments")
	}
	if !sort.SliceIsSorted(tl.segments, func(i, j int) bool {
		return tl.segments[i].Start < tl.segments[j].Start
	}) {
		return fmt.Errorf("segments are not sorted by start")
	}
	for i, s := range tl.segments {
		if s.Start >= s.End {
			return fmt.Errorf("segment %s has start %v >= end %v", s.ID, s.Start, s.End)
		}
		if s.Start < 0 || s.End > tl.total {
			return fmt.Errorf("segment %s [%v,%v] outside source bounds [0,%v]", s.ID, s.Start, s.End, tl.total)
		}
		if i > 0 && s.Start < tl.segments[i-1].End {
			return fmt.Errorf("segment %s overlaps its predecessor", s.ID)
		}
	}
	return nil
}

func (tl *Timeline) index(id string) int {
	for i, s := range tl.segments {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
