package preview

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultWidth is used when a non-positive width is passed to Snippet.
const DefaultWidth = 60

// Doc abstracts a document whose pages can be read as text.
type Doc interface {
	NumPage() int
	Text(i int) (string, error)
	Close() error
}

// Opener abstracts opening a PDF path into a Doc.
type Opener interface {
	Open(path string) (Doc, error)
}

// defaultOpener is provided in open_fitz.go using go-fitz.
var defaultOpener Opener

// setDefaultOpener allows swapping the backend, useful for tests.
func setDefaultOpener(o Opener) { defaultOpener = o }

// Previewer produces short text snippets of pages.
type Previewer struct {
	doc Doc
}

// Open prepares previews for the PDF at path.
func Open(path string) (*Previewer, error) {
	if defaultOpener == nil {
		return nil, errors.New("no PDF opener configured")
	}
	d, err := defaultOpener.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return &Previewer{doc: d}, nil
}

// Snippet returns the first non-blank line of the page at zero-based index i,
// shortened to width runes. Pages without text yield "".
func (p *Previewer) Snippet(i, width int) (string, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	if i < 0 || i >= p.doc.NumPage() {
		return "", fmt.Errorf("page %d out of range (document has %d pages)", i+1, p.doc.NumPage())
	}
	text, err := p.doc.Text(i)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			return truncate(line, width), nil
		}
	}
	return "", nil
}

// Close releases the underlying document.
func (p *Previewer) Close() error { return p.doc.Close() }

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	return string(r[:width-1]) + "…"
}
