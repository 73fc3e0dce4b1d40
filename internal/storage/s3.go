// Package storage implements the remote object store backed by S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"fec-lake/internal/domain"
)

// ErrObjectNotFound is returned when the requested key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Compile-time check: S3Store implements domain.ObjectStore.
var _ domain.ObjectStore = (*S3Store)(nil)

// S3Options configures an S3Store.
type S3Options struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint (e.g. an S3-compatible mirror).
	// Path-style addressing is used whenever it is set.
	Endpoint string
	// KeyID and Secret sign requests when both are set. The public bulk-data
	// bucket is read with unsigned requests.
	KeyID  string
	Secret string
}

// S3Store reads objects from a single bucket. Requests are attempted once.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store creates a store for opts.Bucket in opts.Region.
func NewS3Store(opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}

	var creds aws.CredentialsProvider = aws.AnonymousCredentials{}
	if opts.KeyID != "" && opts.Secret != "" {
		creds = credentials.NewStaticCredentialsProvider(opts.KeyID, opts.Secret, "")
	}

	s3Opts := s3.Options{
		Region:      opts.Region,
		Credentials: creds,
		Retryer:     aws.NopRetryer{},
	}
	if opts.Endpoint != "" {
		s3Opts.BaseEndpoint = aws.String(opts.Endpoint)
		s3Opts.UsePathStyle = true
	}

	return &S3Store{client: s3.New(s3Opts), bucket: opts.Bucket}, nil
}

// Bucket returns the configured bucket name.
func (s *S3Store) Bucket() string { return s.bucket }

// Head returns the last-modified time and size of key.
func (s *S3Store) Head(ctx context.Context, key string) (domain.ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return domain.ObjectInfo{}, classifyError(s.bucket, key, err)
	}
	if out.LastModified == nil {
		return domain.ObjectInfo{}, fmt.Errorf("head s3://%s/%s: response has no Last-Modified", s.bucket, key)
	}

	info := domain.ObjectInfo{Key: key, LastModified: out.LastModified.UTC(), Size: -1}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	return info, nil
}

// Download streams the full object into w.
func (s *S3Store) Download(ctx context.Context, key string, w io.Writer) (int64, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, classifyError(s.bucket, key, err)
	}
	defer out.Body.Close() //nolint:errcheck

	n, err := io.Copy(w, out.Body)
	if err != nil {
		return n, fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, err)
	}
	return n, nil
}

// classifyError maps S3 not-found responses onto ErrObjectNotFound.
func classifyError(bucket, key string, err error) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return fmt.Errorf("s3://%s/%s: %w", bucket, key, ErrObjectNotFound)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
		return fmt.Errorf("s3://%s/%s: %w", bucket, key, ErrObjectNotFound)
	}
	return fmt.Errorf("s3://%s/%s: %w", bucket, key, err)
}
