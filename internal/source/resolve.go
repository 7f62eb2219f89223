// Package source turns a user-entered document reference into a local file.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfslicer/internal/splitter"
	"github.com/local/pdfslicer/internal/storage"
)

// Downloader fetches objects from S3.
type Downloader interface {
	Download(ctx context.Context, bucket, key, password string) ([]byte, *storage.FileMetadata, error)
}

// Resolver resolves references of the forms:
//   - absolute/relative filesystem paths, with "~" expanded
//   - file://path
//   - http(s):// URLs (downloaded to a temp file)
//   - s3://bucket/key (downloaded to a temp file)
type Resolver struct {
	// NewS3 is called at most once, on the first s3:// reference.
	NewS3      func(ctx context.Context) (Downloader, error)
	S3Password string
	HTTPClient *http.Client
	Timeout    time.Duration

	s3 Downloader
}

// Resolved is a local copy of a source document.
type Resolved struct {
	Ref    string
	Path   string // local file to read
	Name   string // display name, e.g. "report.pdf"
	Dir    string // directory of a local source; empty for remote ones
	Remote bool

	tmp string
}

// Stem returns Name without its extension. A dot that starts or ends the
// name does not begin an extension, so ".pdf" is its own stem.
func (r *Resolved) Stem() string {
	i := strings.LastIndex(r.Name, ".")
	if i <= 0 || i == len(r.Name)-1 {
		return r.Name
	}
	return r.Name[:i]
}

// Close removes any temp file created for a remote source.
func (r *Resolved) Close() error {
	if r.tmp == "" {
		return nil
	}
	err := os.Remove(r.tmp)
	r.tmp = ""
	return err
}

// Resolve returns a local file for ref. Failures are *splitter.DocumentLoadError.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Resolved, error) {
	ref = Clean(ref)
	if ref == "" {
		return nil, &splitter.DocumentLoadError{Path: ref, Err: errors.New("empty path")}
	}

	var (
		res *Resolved
		err error
	)
	switch {
	case strings.HasPrefix(ref, "s3://"):
		res, err = r.fetchS3(ctx, ref)
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		res, err = r.fetchHTTP(ctx, ref)
	default:
		res, err = resolveLocal(strings.TrimPrefix(ref, "file://"))
	}
	if err != nil {
		return nil, &splitter.DocumentLoadError{Path: ref, Err: err}
	}
	res.Ref = ref
	return res, nil
}

// Clean trims whitespace and one pair of matching quotes, as left behind by
// terminals when a file is dragged in.
func Clean(ref string) string {
	ref = strings.TrimSpace(ref)
	if len(ref) >= 2 {
		if q := ref[0]; (q == '"' || q == '\'') && ref[len(ref)-1] == q {
			ref = strings.TrimSpace(ref[1 : len(ref)-1])
		}
	}
	return ref
}

func resolveLocal(p string) (*Resolved, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("expand ~: %w", err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("file not found: %s", abs)
	}
	return &Resolved{Path: abs, Name: filepath.Base(abs), Dir: filepath.Dir(abs)}, nil
}

func (r *Resolver) fetchHTTP(ctx context.Context, ref string) (*Resolved, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	tmp, err := writeTemp(resp.Body)
	if err != nil {
		return nil, err
	}
	log.Info().Str("url", u.Redacted()).Str("file", filepath.Base(tmp)).Msg("downloaded pdf to temp")
	return &Resolved{Path: tmp, Name: remoteName(path.Base(u.Path)), Remote: true, tmp: tmp}, nil
}

func (r *Resolver) fetchS3(ctx context.Context, ref string) (*Resolved, error) {
	bucket, key, err := storage.ParseURL(ref)
	if err != nil {
		return nil, err
	}
	if r.s3 == nil {
		if r.NewS3 == nil {
			return nil, errors.New("s3 sources are not configured")
		}
		cli, err := r.NewS3(ctx)
		if err != nil {
			return nil, err
		}
		r.s3 = cli
	}

	data, meta, err := r.s3.Download(ctx, bucket, key, r.S3Password)
	if err != nil {
		return nil, err
	}
	tmp, err := writeTemp(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	name := path.Base(key)
	if meta != nil && meta.OriginalName != "" {
		name = meta.OriginalName
	}
	return &Resolved{Path: tmp, Name: remoteName(name), Remote: true, tmp: tmp}, nil
}

func writeTemp(r io.Reader) (string, error) {
	f, err := os.CreateTemp("", "pdfslicer-*.pdf")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func remoteName(base string) string {
	if base == "" || base == "." || base == "/" {
		return "document.pdf"
	}
	return base
}
