package oscillation

// ZeroCrossingTracker estimates the period of a signal centred on zero by
// timing its upward zero crossings. Crossings closer than half the expected
// period to the previous one are treated as wobble and ignored. It is a
// cheap cross-check for the adaptive Tracker on recordings.
type ZeroCrossingTracker struct {
	expected float64

	last     float64
	hasLast  bool
	first    float64
	latest   float64
	hasFirst bool
	count    int
}

// NewZeroCrossingTracker returns a tracker that debounces crossings using
// expectedPeriod.
func NewZeroCrossingTracker(expectedPeriod float64) *ZeroCrossingTracker {
	return &ZeroCrossingTracker{expected: expectedPeriod}
}

// Add consumes one sample.
func (z *ZeroCrossingTracker) Add(t, v float64) {
	if z.hasLast && z.last <= 0 && v > 0 {
		switch {
		case !z.hasFirst:
			z.first, z.latest, z.hasFirst = t, t, true
		case t-z.latest > z.expected/2:
			z.latest = t
			z.count++
		}
	}
	z.last, z.hasLast = v, true
}

// Period returns the mean time between counted crossings and false until at
// least one full cycle has been seen.
func (z *ZeroCrossingTracker) Period() (float64, bool) {
	if z.count == 0 {
		return 0, false
	}
	return (z.latest - z.first) / float64(z.count), true
}

// Cycles returns the number of complete cycles counted.
func (z *ZeroCrossingTracker) Cycles() int { return z.count }
