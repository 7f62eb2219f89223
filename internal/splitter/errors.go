package splitter

import (
	"errors"
	"fmt"
)

// Kind classifies the failures surfaced by the splitter and its collaborators.
type Kind int

const (
	KindUnknown Kind = iota
	KindFormat
	KindRange
	KindDocumentLoad
	KindWrite
)

func (k Kind) String() string {
	switch k {
	case KindFormat:
		return "format_error"
	case KindRange:
		return "range_error"
	case KindDocumentLoad:
		return "document_load_error"
	case KindWrite:
		return "write_error"
	default:
		return "unknown"
	}
}

// Reason tells why a numerically valid range was rejected.
type Reason int

const (
	ReasonOutOfBounds Reason = iota + 1
	ReasonStartAfterEnd
)

// FormatError reports a range string that is neither "N" nor "A-B".
type FormatError struct {
	Input string
	Err   error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid range format: %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("invalid range format: %q", e.Input)
}

func (e *FormatError) Unwrap() error { return e.Err }

// RangeError reports 1-based endpoints that do not fit the document.
type RangeError struct {
	Input     string
	Start     int
	End       int
	PageCount int
	Reason    Reason
}

func (e *RangeError) Error() string {
	if e.Reason == ReasonStartAfterEnd {
		return fmt.Sprintf("start page %d is after end page %d", e.Start, e.End)
	}
	return fmt.Sprintf("page numbers must be within the document length (1-%d), got %q", e.PageCount, e.Input)
}

// DocumentLoadError reports a source document that could not be opened.
type DocumentLoadError struct {
	Path string
	Err  error
}

func (e *DocumentLoadError) Error() string {
	return fmt.Sprintf("failed to load document %s: %v", e.Path, e.Err)
}

func (e *DocumentLoadError) Unwrap() error { return e.Err }

// WriteError reports a slice that could not be serialized or stored.
// Slice is the 1-based slice number, 0 when unknown.
type WriteError struct {
	Slice int
	Err   error
}

func (e *WriteError) Error() string {
	if e.Slice > 0 {
		return fmt.Sprintf("write slice #%d: %v", e.Slice, e.Err)
	}
	return fmt.Sprintf("write slice: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// KindOf returns the kind of the first typed error found in err's chain.
func KindOf(err error) Kind {
	var (
		fe *FormatError
		re *RangeError
		le *DocumentLoadError
		we *WriteError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &fe):
		return KindFormat
	case errors.As(err, &re):
		return KindRange
	case errors.As(err, &le):
		return KindDocumentLoad
	case errors.As(err, &we):
		return KindWrite
	default:
		return KindUnknown
	}
}

// Recoverable reports whether err only invalidates a single user entry.
func Recoverable(err error) bool {
	k := KindOf(err)
	return k == KindFormat || k == KindRange
}
