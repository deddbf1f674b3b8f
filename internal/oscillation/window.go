package oscillation

// Sample is a single timestamped reading. Timestamps are seconds on an
// arbitrary, monotonically increasing clock.
type Sample struct {
	T     float64 `json:"t"`
	Value float64 `json:"value"`
}

// Window is a fixed-capacity circular buffer of samples ordered oldest to
// newest. Pushing onto a full window evicts the oldest sample. The backing
// array is allocated once at construction; Push never allocates.
type Window struct {
	buf  []Sample
	head int // index of the oldest sample
	size int
}

// NewWindow creates an empty window holding at most capacity samples.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]Sample, capacity)}
}

// Push appends s, evicting the oldest sample when the window is full.
func (w *Window) Push(s Sample) {
	if w.size < len(w.buf) {
		w.buf[(w.head+w.size)%len(w.buf)] = s
		w.size++
		return
	}
	w.buf[w.head] = s
	w.head = (w.head + 1) % len(w.buf)
}

// Len returns the number of samples currently held.
func (w *Window) Len() int { return w.size }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Full reports whether the window holds Cap samples.
func (w *Window) Full() bool { return w.size == len(w.buf) }

// At returns the i-th sample, 0 being the oldest. It panics when i is out of
// range, like a slice index.
func (w *Window) At(i int) Sample {
	if i < 0 || i >= w.size {
		panic("oscillation: window index out of range")
	}
	return w.buf[(w.head+i)%len(w.buf)]
}

// Latest returns the newest sample and true, or the zero sample and false if
// the window is empty.
func (w *Window) Latest() (Sample, bool) {
	if w.size == 0 {
		return Sample{}, false
	}
	return w.At(w.size - 1), true
}

// Centre returns the index of the centre element of a full window.
func (w *Window) Centre() int { return (len(w.buf) - 1) / 2 }

// Samples returns a copy of the window contents, oldest first.
func (w *Window) Samples() []Sample {
	out := make([]Sample, w.size)
	for i := range out {
		out[i] = w.At(i)
	}
	return out
}

// Reset empties the window without releasing its storage.
func (w *Window) Reset() {
	w.head = 0
	w.size = 0
}
