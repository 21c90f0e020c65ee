package progress

import "sync"

// Func receives a completion fraction in [0,1].
type Func func(fraction float64)

// Reporter normalizes progress reporting: values are clamped to [0,1] and
// never move backwards, so consumers can drive a progress bar directly.
type Reporter struct {
	mu   sync.Mutex
	last float64
	fn   Func
}

// NewReporter wraps fn in a Reporter. A nil fn is allowed; reports are then
// tracked but not delivered.
func NewReporter(fn Func) *Reporter {
	return &Reporter{fn: fn}
}

// Start emits the initial zero report.
func (r *Reporter) Start() {
	r.Report(0)
}

// Report delivers a progress fraction. Out-of-range values are clamped and
// regressions are suppressed.
func (r *Reporter) Report(fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	r.mu.Lock()
	if fraction < r.last {
		fraction = r.last
	}
	r.last = fraction
	fn := r.fn
	r.mu.Unlock()

	if fn != nil {
		fn(fraction)
	}
}

// Finish emits the terminal report with value 1.
func (r *Reporter) Finish() {
	r.Report(1)
}

// Fraction returns the last reported value.
func (r *Reporter) Fraction() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
