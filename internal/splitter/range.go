package splitter

import (
	"fmt"
	"strconv"
	"strings"
)

// Interval is a zero-based, inclusive page interval.
type Interval struct {
	Start int
	End   int
}

// Len returns the number of pages covered.
func (iv Interval) Len() int { return iv.End - iv.Start + 1 }

// String renders the interval with 1-based page numbers, e.g. "3-5".
func (iv Interval) String() string {
	return fmt.Sprintf("%d-%d", iv.Start+1, iv.End+1)
}

// Parse converts a user-supplied range like "3-7" or "5" into a zero-based
// inclusive Interval for a document with pageCount pages.
func Parse(rangeText string, pageCount int) (Interval, error) {
	parts := strings.Split(strings.TrimSpace(rangeText), "-")

	var start, end int
	var err error
	switch len(parts) {
	case 1:
		if start, err = atoi(parts[0]); err != nil {
			return Interval{}, &FormatError{Input: rangeText, Err: err}
		}
		end = start
	case 2:
		if start, err = atoi(parts[0]); err != nil {
			return Interval{}, &FormatError{Input: rangeText, Err: err}
		}
		if end, err = atoi(parts[1]); err != nil {
			return Interval{}, &FormatError{Input: rangeText, Err: err}
		}
	default:
		return Interval{}, &FormatError{Input: rangeText}
	}

	if start < 1 || start > pageCount || end < 1 || end > pageCount {
		return Interval{}, &RangeError{Input: rangeText, Start: start, End: end, PageCount: pageCount, Reason: ReasonOutOfBounds}
	}
	if start > end {
		return Interval{}, &RangeError{Input: rangeText, Start: start, End: end, PageCount: pageCount, Reason: ReasonStartAfterEnd}
	}
	return Interval{Start: start - 1, End: end - 1}, nil
}

// atoi converts one range token; blanks around the number are ignored.
func atoi(tok string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(tok))
}
