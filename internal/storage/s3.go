package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Options overrides parts of the default AWS configuration chain.
type Options struct {
	Endpoint        string // custom endpoint, e.g. MinIO; enables path-style addressing
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Client wraps the AWS S3 client with transparent encryption.
type S3Client struct {
	client   *s3.Client
	uploader *manager.Uploader
}

// FileMetadata describes a stored object.
type FileMetadata struct {
	OriginalName     string
	ContentType      string
	Size             int64
	EncryptionFormat string
	Metadata         map[string]string
}

// NewS3Client creates a client from the default AWS config chain plus opts.
func NewS3Client(ctx context.Context, opts Options) (*S3Client, error) {
	var loaders []func(*awscfg.LoadOptions) error
	if opts.Region != "" {
		loaders = append(loaders, awscfg.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loaders = append(loaders, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Client{client: cli, uploader: manager.NewUploader(cli)}, nil
}

// ParseURL splits s3://bucket/key.
func ParseURL(ref string) (bucket, key string, err error) {
	path, ok := strings.CutPrefix(ref, "s3://")
	if !ok {
		return "", "", fmt.Errorf("invalid s3 url: %s", ref)
	}
	bucket, key, ok = strings.Cut(path, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 url: %s", ref)
	}
	return bucket, key, nil
}

// Download fetches an object and decrypts it when it carries a known
// encryption container.
func (s *S3Client) Download(ctx context.Context, bucket, key, password string) ([]byte, *FileMetadata, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read S3 object: %w", err)
	}

	meta := &FileMetadata{Metadata: make(map[string]string)}
	for k, v := range out.Metadata {
		meta.Metadata[strings.ToLower(k)] = v
	}
	meta.OriginalName = meta.Metadata["name"]
	if out.ContentType != nil {
		meta.ContentType = *out.ContentType
	}

	data, format, err := Open(raw, password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	meta.EncryptionFormat = format
	meta.Size = int64(len(data))

	log.Info().Str("bucket", bucket).Str("key", key).Str("encryption_format", format).Int("size", len(data)).Msg("downloaded object from S3")
	return data, meta, nil
}

// Upload stores data under bucket/key, sealing it first when password is
// set, and returns the s3:// location.
func (s *S3Client) Upload(ctx context.Context, bucket, key string, data []byte, password string, meta *FileMetadata) (string, error) {
	format := FormatPlain
	body := data
	if password != "" {
		sealed, err := Seal(data, password)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt data: %w", err)
		}
		body, format = sealed, FormatGCM
	}

	s3meta := map[string]string{"encryption-format": format}
	in := &s3.PutObjectInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(body),
		Metadata: s3meta,
	}
	if meta != nil {
		for k, v := range meta.Metadata {
			s3meta[k] = v
		}
		if meta.OriginalName != "" {
			s3meta["name"] = meta.OriginalName
		}
		if meta.ContentType != "" && format == FormatPlain {
			in.ContentType = aws.String(meta.ContentType)
		}
	}

	if _, err := s.uploader.Upload(ctx, in); err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	loc := fmt.Sprintf("s3://%s/%s", bucket, key)
	log.Info().Str("location", loc).Str("encryption", format).Int("size", len(body)).Msg("uploaded object to S3")
	return loc, nil
}
