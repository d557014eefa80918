package delivery

import (
	"errors"
	"strconv"
	"strings"
)

// ErrRangeNotSatisfiable is returned for malformed or out-of-bounds ranges
var ErrRangeNotSatisfiable = errors.New("range not satisfiable")

// ParseRange parses a single "bytes=<start>-<end?>" range against a file of
// size bytes and returns the inclusive window to send. end defaults to, and
// is clamped to, size-1. Suffix ranges, range lists and other units are
// reported as unsatisfiable.
func ParseRange(header string, size int64) (start, end int64, err error) {
	rangeSpec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok || strings.Contains(rangeSpec, ",") {
		return 0, 0, ErrRangeNotSatisfiable
	}

	startStr, endStr, ok := strings.Cut(rangeSpec, "-")
	if !ok {
		return 0, 0, ErrRangeNotSatisfiable
	}

	start, err = parseOffset(startStr)
	if err != nil || start >= size {
		return 0, 0, ErrRangeNotSatisfiable
	}

	end = size - 1
	if endStr = strings.TrimSpace(endStr); endStr != "" {
		end, err = parseOffset(endStr)
		if errors.Is(err, strconv.ErrRange) && allDigits(endStr) {
			// past int64 is past the end of any file
			end, err = size-1, nil
		}
		if err != nil || end < start {
			return 0, 0, ErrRangeNotSatisfiable
		}
		if end > size-1 {
			end = size - 1
		}
	}

	return start, end, nil
}

func parseOffset(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s[0] < '0' || s[0] > '9' {
		return 0, ErrRangeNotSatisfiable
	}
	return strconv.ParseInt(s, 10, 64)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
