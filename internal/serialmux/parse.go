package serialmux

import (
	"strings"
)

// LineKind is the coarse classification of a line received from the board.
type LineKind int

const (
	// LineReading is a numeric sample, with or without a timestamp.
	LineReading LineKind = iota
	// LineStatus is a JSON status or configuration response.
	LineStatus
	// LineUnknown is anything else, such as boot banners.
	LineUnknown
)

func (k LineKind) String() string {
	switch k {
	case LineReading:
		return "reading"
	case LineStatus:
		return "status"
	default:
		return "unknown"
	}
}

// ClassifyLine inspects a line and returns its kind. The check is
// deliberately shallow; readings are fully parsed by the ingest pipeline.
func ClassifyLine(line string) LineKind {
	line = strings.TrimSpace(line)
	if line == "" {
		return LineUnknown
	}
	if strings.HasPrefix(line, "{") {
		return LineStatus
	}
	switch c := line[0]; {
	case c >= '0' && c <= '9', c == '-', c == '+', c == '.':
		return LineReading
	}
	return LineUnknown
}
