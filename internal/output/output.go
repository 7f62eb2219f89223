package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfslicer/internal/splitter"
	"github.com/local/pdfslicer/internal/storage"
)

// SliceFileName names the n-th (1-based) slice of stem covering iv.
func SliceFileName(stem string, n int, iv splitter.Interval) string {
	return fmt.Sprintf("%s_slice_%d_pages_%d-%d.pdf", stem, n, iv.Start+1, iv.End+1)
}

// SliceDir is the directory holding the slices of stem.
func SliceDir(parent, stem string) string {
	return filepath.Join(parent, stem+"_slices")
}

// Sink stores one serialized slice and returns where it ended up.
type Sink interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// LocalSink writes slices into Dir, creating it on first use.
type LocalSink struct {
	Dir string
}

func (s *LocalSink) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(s.Dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", err
	}
	return p, nil
}

// Uploader stores objects in S3.
type Uploader interface {
	Upload(ctx context.Context, bucket, key string, data []byte, password string, meta *storage.FileMetadata) (string, error)
}

// S3Sink mirrors slices to s3://Bucket/Prefix/Folder/name.
type S3Sink struct {
	Client   Uploader
	Bucket   string
	Prefix   string
	Folder   string
	Password string
	Source   string // original reference, recorded as object metadata
}

// Key returns the object key used for name.
func (s *S3Sink) Key(name string) string {
	return path.Join(s.Prefix, s.Folder, name)
}

func (s *S3Sink) Save(ctx context.Context, name string, data []byte) (string, error) {
	meta := &storage.FileMetadata{
		OriginalName: name,
		ContentType:  mimetype.Detect(data).String(),
		Metadata:     map[string]string{},
	}
	if s.Source != "" {
		meta.Metadata["source"] = s.Source
	}
	return s.Client.Upload(ctx, s.Bucket, s.Key(name), data, s.Password, meta)
}

// MultiSink saves to every sink in order and reports the first location.
// The slice fails if any sink fails.
type MultiSink []Sink

func (m MultiSink) Save(ctx context.Context, name string, data []byte) (string, error) {
	if len(m) == 0 {
		return "", errors.New("no output configured")
	}
	var first string
	for i, s := range m {
		loc, err := s.Save(ctx, name, data)
		if err != nil {
			return "", err
		}
		if i == 0 {
			first = loc
		} else {
			log.Debug().Str("name", name).Str("location", loc).Msg("mirrored slice")
		}
	}
	return first, nil
}
