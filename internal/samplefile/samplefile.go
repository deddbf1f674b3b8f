// Package samplefile reads and writes swing recordings: plain text with one
// reading per line, a timestamp in seconds followed by the accelerometer
// value, separated by a tab (commas and spaces are also accepted). The same
// line format is what the accelerometer board streams over serial; the board
// may also omit the timestamp and send the value alone.
package samplefile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/swing.report/internal/oscillation"
)

// ErrSkipLine is returned by ParseReading for blank, comment and header lines.
var ErrSkipLine = errors.New("line carries no reading")

// Reading is one parsed line. HasT is false when the line carried only a
// value and the receiver must stamp it.
type Reading struct {
	T     float64
	HasT  bool
	Value float64
}

func splitFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == '\t' || r == ',' || r == ' ' || r == ';'
	})
}

// ParseReading parses a single line. Only the first two fields are used so
// that prediction output files can be read back as input.
func ParseReading(line string) (Reading, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Reading{}, ErrSkipLine
	}
	fields := splitFields(line)
	if len(fields) == 0 {
		return Reading{}, ErrSkipLine
	}

	first, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		// a header such as "t\tmeasuredXAcc\tpredictedXAcc"
		if isHeader(fields[0]) {
			return Reading{}, ErrSkipLine
		}
		return Reading{}, fmt.Errorf("failed to parse %q: %w", fields[0], err)
	}
	if len(fields) == 1 {
		return Reading{Value: first}, nil
	}

	value, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Reading{}, fmt.Errorf("failed to parse value %q: %w", fields[1], err)
	}
	return Reading{T: first, HasT: true, Value: value}, nil
}

func isHeader(field string) bool {
	if field == "" {
		return false
	}
	c := field[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Reader yields timestamped samples from a recording.
type Reader struct {
	scan *bufio.Scanner
	line int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{scan: bufio.NewScanner(r)}
}

// Next returns the next sample, or io.EOF when the input is exhausted. Lines
// without a timestamp are an error in a recording.
func (r *Reader) Next() (oscillation.Sample, error) {
	for r.scan.Scan() {
		r.line++
		rd, err := ParseReading(r.scan.Text())
		if errors.Is(err, ErrSkipLine) {
			continue
		}
		if err != nil {
			return oscillation.Sample{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		if !rd.HasT {
			return oscillation.Sample{}, fmt.Errorf("line %d: missing timestamp", r.line)
		}
		return oscillation.Sample{T: rd.T, Value: rd.Value}, nil
	}
	if err := r.scan.Err(); err != nil {
		return oscillation.Sample{}, err
	}
	return oscillation.Sample{}, io.EOF
}

// ReadAll reads every sample from r.
func ReadAll(r io.Reader) ([]oscillation.Sample, error) {
	rd := NewReader(r)
	var out []oscillation.Sample
	for {
		s, err := rd.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
}

// Writer writes tab separated recordings.
type Writer struct {
	w       *bufio.Writer
	results bool
	wrote   bool
}

// NewSampleWriter returns a writer for raw "t\tvalue" recordings.
func NewSampleWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// NewResultWriter returns a writer for tracker output with the columns
// t, measured, filtered, predicted and event.
func NewResultWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w), results: true}
}

func (w *Writer) header() error {
	if w.wrote || !w.results {
		w.wrote = true
		return nil
	}
	w.wrote = true
	_, err := w.w.WriteString("t\tmeasured\tfiltered\tpredicted\tevent\n")
	return err
}

// WriteSample writes one raw reading.
func (w *Writer) WriteSample(s oscillation.Sample) error {
	if err := w.header(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w.w, "%.3f\t%.4f\n", s.T, s.Value)
	return err
}

// WriteResult writes one tracker result.
func (w *Writer) WriteResult(r oscillation.Result) error {
	if err := w.header(); err != nil {
		return err
	}
	event := "-"
	if r.Event != oscillation.Neither {
		event = r.Event.String()
	}
	_, err := fmt.Fprintf(w.w, "%.3f\t%.4f\t%.4f\t%.4f\t%s\n", r.T, r.Raw, r.Filtered, r.Predicted, event)
	return err
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
