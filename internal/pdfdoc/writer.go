package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfslicer/internal/splitter"
)

// Writer serializes slices of a Document with pdfcpu.
type Writer struct{}

// Write trims the slice's source document down to the slice's pages and
// writes the result to w. All pages must come from the same Document.
func (Writer) Write(w io.Writer, s *splitter.Slice) error {
	if s == nil || len(s.Pages) == 0 {
		return &splitter.WriteError{Err: errors.New("empty slice")}
	}

	var doc *Document
	selected := make([]string, 0, len(s.Pages))
	for _, p := range s.Pages {
		pg, ok := p.(page)
		if !ok {
			return &splitter.WriteError{Err: fmt.Errorf("unsupported page type %T", p)}
		}
		if doc == nil {
			doc = pg.doc
		} else if pg.doc != doc {
			return &splitter.WriteError{Err: errors.New("slice mixes pages from different documents")}
		}
		selected = append(selected, strconv.Itoa(pg.nr))
	}

	if err := api.Trim(bytes.NewReader(doc.raw), w, selected, doc.opts.configuration()); err != nil {
		return &splitter.WriteError{Err: fmt.Errorf("pdfcpu trim failed: %w", err)}
	}
	log.Debug().Str("file", doc.name).Int("pages", len(selected)).Msg("wrote slice")
	return nil
}
