package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrInvalidKey is returned for keys escaping the sink root.
var ErrInvalidKey = errors.New("export: invalid key")

// DirSink writes files below Root.
type DirSink struct {
	Root string
}

// Put implements Sink.
func (d DirSink) Put(ctx context.Context, key string, body []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	return os.WriteFile(name, body, 0o644)
}

func (d DirSink) path(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	root := filepath.Clean(d.Root)
	name := filepath.Join(root, filepath.FromSlash(key))
	rel, err := filepath.Rel(root, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return name, nil
}

// S3API is the part of the S3 client used by S3Sink.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Sink uploads files to a bucket.
type S3Sink struct {
	client       S3API
	bucket       string
	prefix       string
	cacheControl string
}

// S3Option configures an S3Sink.
type S3Option func(*S3Sink)

// WithCacheControl sets the Cache-Control header of uploaded objects.
func WithCacheControl(v string) S3Option {
	return func(s *S3Sink) { s.cacheControl = v }
}

// NewS3Sink creates a sink writing to bucket under prefix.
func NewS3Sink(client S3API, bucket, prefix string, opts ...S3Option) *S3Sink {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	s := &S3Sink{
		client:       client,
		bucket:       bucket,
		prefix:       strings.TrimPrefix(prefix, "/"),
		cacheControl: "public, max-age=0, must-revalidate",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put implements Sink.
func (s *S3Sink) Put(ctx context.Context, key string, body []byte, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.prefix + key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	}
	if s.cacheControl != "" {
		in.CacheControl = aws.String(s.cacheControl)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("export: s3 upload %s: %w", key, err)
	}
	return nil
}

// S3Config configures NewS3Client.
type S3Config struct {
	Region string

	// Endpoint overrides the S3 endpoint, e.g. for MinIO. Path-style
	// addressing is used with a custom endpoint.
	Endpoint string

	// AccessKeyID and SecretAccessKey default to the AWS_ACCESS_KEY_ID and
	// AWS_SECRET_ACCESS_KEY environment variables.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// NewS3Client creates an S3 client with static credentials.
func NewS3Client(cfg S3Config) (*s3.Client, error) {
	if cfg.AccessKeyID == "" {
		cfg.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
		cfg.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
		cfg.SessionToken = os.Getenv("AWS_SESSION_TOKEN")
	}
	if cfg.Region == "" {
		cfg.Region = os.Getenv("AWS_REGION")
	}
	if cfg.Region == "" {
		return nil, errors.New("export: s3 region is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("export: s3 credentials are required")
	}

	creds := aws.Credentials{
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		SessionToken:    cfg.SessionToken,
		Source:          "isorender",
	}
	opts := s3.Options{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return creds, nil
		})),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts), nil
}
