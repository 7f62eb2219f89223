package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfslicer/internal/splitter"
)

const pdfMIME = "application/pdf"

// pdfcpu locates startxref by seeking this far back from EOF.
const minReadSize = 512

func init() {
	// keep pdfcpu from installing its config dir under the user's home
	api.DisableConfigDir()
}

// Options controls how pdfcpu reads the source document.
type Options struct {
	UserPassword  string
	OwnerPassword string
	Strict        bool
}

func (o Options) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.UserPW = o.UserPassword
	conf.OwnerPW = o.OwnerPassword
	if o.Strict {
		conf.ValidationMode = model.ValidationStrict
	} else {
		conf.ValidationMode = model.ValidationRelaxed
	}
	return conf
}

// Document is a PDF held in memory together with its page count.
// It implements splitter.Document.
type Document struct {
	name  string
	raw   []byte
	pages int
	opts  Options
}

// page identifies a page by its 1-based number inside one Document.
type page struct {
	doc *Document
	nr  int
}

// Open reads and validates the PDF at path.
func Open(path string, opts Options) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &splitter.DocumentLoadError{Path: path, Err: err}
	}
	doc, err := Load(filepath.Base(path), raw, opts)
	if err != nil {
		var le *splitter.DocumentLoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, err
	}
	return doc, nil
}

// Load validates raw as a PDF and determines its page count.
func Load(name string, raw []byte, opts Options) (*Document, error) {
	mtype := mimetype.Detect(raw)
	if !mtype.Is(pdfMIME) {
		return nil, &splitter.DocumentLoadError{Path: name, Err: fmt.Errorf("not a PDF document (detected %s)", mtype.String())}
	}

	raw = padTail(raw)
	n, err := api.PageCount(bytes.NewReader(raw), opts.configuration())
	if err != nil {
		return nil, &splitter.DocumentLoadError{Path: name, Err: fmt.Errorf("pdf page count failed: %w", err)}
	}
	if n <= 0 {
		return nil, &splitter.DocumentLoadError{Path: name, Err: errors.New("document has no pages")}
	}

	log.Debug().Str("file", name).Int("pages", n).Int("bytes", len(raw)).Msg("loaded pdf")
	return &Document{name: name, raw: raw, pages: n, opts: opts}, nil
}

// padTail returns raw extended with trailing newlines up to minReadSize.
// Whitespace after %%EOF is ignored by readers.
func padTail(raw []byte) []byte {
	if len(raw) >= minReadSize {
		return raw
	}
	p := make([]byte, minReadSize)
	copy(p, raw)
	for i := len(raw); i < minReadSize; i++ {
		p[i] = '\n'
	}
	return p
}

// Name returns the base name the document was loaded under.
func (d *Document) Name() string { return d.name }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return d.pages }

// PageAt returns a handle to the page at zero-based index i.
func (d *Document) PageAt(i int) splitter.Page {
	if i < 0 || i >= d.pages {
		panic(fmt.Sprintf("pdfdoc: page index %d out of range [0,%d)", i, d.pages))
	}
	return page{doc: d, nr: i + 1}
}
