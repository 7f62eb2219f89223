package splitter

import "io"

// Page is an opaque handle to a single page of a loaded Document.
type Page interface{}

// Document is a loaded, read-only source document.
type Document interface {
	PageCount() int
	// PageAt returns the page at a zero-based index. Implementations panic
	// when the index is out of range.
	PageAt(i int) Page
}

// Slice is a new document made of an ordered run of source pages.
type Slice struct {
	Pages []Page
}

// Len returns the number of pages in the slice.
func (s *Slice) Len() int { return len(s.Pages) }

// Writer serializes a Slice.
type Writer interface {
	Write(w io.Writer, s *Slice) error
}

// Extract copies the pages covered by iv out of src, preserving their order.
// iv must already be valid for src; it is not checked again.
func Extract(src Document, iv Interval) *Slice {
	s := &Slice{Pages: make([]Page, 0, iv.Len())}
	for i := iv.Start; i <= iv.End; i++ {
		s.Pages = append(s.Pages, src.PageAt(i))
	}
	return s
}
