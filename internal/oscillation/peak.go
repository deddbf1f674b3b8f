package oscillation

import "fmt"

// Extremum classifies the centre of a detection window.
type Extremum int

const (
	Neither Extremum = iota
	Peak
	Nadir
)

func (e Extremum) String() string {
	switch e {
	case Peak:
		return "peak"
	case Nadir:
		return "nadir"
	default:
		return "neither"
	}
}

// MarshalText encodes the extremum as its name.
func (e Extremum) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText parses a name produced by MarshalText.
func (e *Extremum) UnmarshalText(b []byte) error {
	v, err := ParseExtremum(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// ParseExtremum converts a name produced by String back into an Extremum.
func ParseExtremum(s string) (Extremum, error) {
	switch s {
	case "peak":
		return Peak, nil
	case "nadir":
		return Nadir, nil
	case "neither", "":
		return Neither, nil
	}
	return Neither, fmt.Errorf("unknown extremum %q", s)
}

// Detection is the outcome of classifying a window. Index and Sample refer to
// the window centre and are only meaningful when Kind is not Neither.
type Detection struct {
	Kind   Extremum
	Index  int
	Sample Sample
}

// Classify reports whether the centre of a full window is a strict local
// maximum (values strictly rise up to the centre and strictly fall after it)
// or a strict local minimum. Windows that are not yet full, or whose
// capacity is even or below three, are never classified.
//
// Equal adjacent values anywhere in the window break both the rising and the
// falling runs, so plateaus are never reported as extrema. Sensor noise
// almost never produces an exact tie.
func Classify(w *Window) Detection {
	if w == nil || !w.Full() || w.Len() < 3 || w.Len()%2 == 0 {
		return Detection{}
	}
	n := w.Len()
	c := (n - 1) / 2
	isPeak, isNadir := true, true
	prev := w.At(0).Value
	for i := 1; i < n; i++ {
		v := w.At(i).Value
		rising := v > prev
		falling := v < prev
		if i <= c {
			isPeak = isPeak && rising
			isNadir = isNadir && falling
		} else {
			isPeak = isPeak && falling
			isNadir = isNadir && rising
		}
		if !isPeak && !isNadir {
			return Detection{}
		}
		prev = v
	}
	d := Detection{Index: c, Sample: w.At(c)}
	switch {
	case isPeak:
		d.Kind = Peak
	case isNadir:
		d.Kind = Nadir
	default:
		return Detection{}
	}
	return d
}
