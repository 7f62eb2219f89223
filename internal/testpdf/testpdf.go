// Package testpdf builds small PDF fixtures for tests.
package testpdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// PageWidth returns the MediaBox width Minimal gives the page at zero-based
// index i, so tests can tell pages apart after a round trip.
func PageWidth(i int) float64 { return float64(100 + i) }

// Minimal returns an uncompressed PDF with n blank pages. Page i is
// PageWidth(i) points wide. The output is always larger than 512 bytes,
// the window pdfcpu scans backwards for startxref.
func Minimal(n int) []byte { return build(n, true) }

// Compact is Minimal without the padding comment. Files with one or two
// pages come out below 512 bytes.
func Compact(n int) []byte { return build(n, false) }

func build(n int, pad bool) []byte {
	var b bytes.Buffer
	var offsets []int
	obj := func(s string) {
		offsets = append(offsets, b.Len())
		b.WriteString(s)
	}

	b.WriteString("%PDF-1.4\n")
	if pad {
		b.WriteString("%" + strings.Repeat("-", 600) + "\n")
	}
	kids := ""
	for i := 0; i < n; i++ {
		kids += fmt.Sprintf("%d 0 R ", 3+i)
	}
	obj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	obj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", kids, n))
	for i := 0; i < n; i++ {
		obj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d 792] /Resources << >> >>\nendobj\n", 3+i, 100+i))
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(offsets)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return b.Bytes()
}

// WriteFile writes a Minimal PDF with n pages as dir/name and returns its path.
func WriteFile(t testing.TB, dir, name string, n int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, Minimal(n), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}
