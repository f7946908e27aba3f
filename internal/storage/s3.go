package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures an S3-compatible bucket. Endpoint may point at MinIO or
// any other S3 implementation; PublicURL, when set, is the base URL objects
// are served from.
type S3Config struct {
	Endpoint    string
	Region      string
	AccessKey   string
	SecretKey   string
	Bucket      string
	PublicURL   string
	MaxAttempts int
}

// S3Storage implements Storage on an S3-compatible bucket.
type S3Storage struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewS3Storage creates an S3 client for cfg. Requests go through httpClient,
// which lets callers put a circuit breaker in front of the bucket.
func NewS3Storage(ctx context.Context, cfg S3Config, httpClient aws.HTTPClient) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	}
	if httpClient != nil {
		opts = append(opts, config.WithHTTPClient(httpClient))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.MaxAttempts > 0 {
			o.RetryMaxAttempts = cfg.MaxAttempts
		}
	})

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}

	return &S3Storage{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Upload puts the object into the bucket. Non-seekable bodies are buffered
// because request signing over plain HTTP needs to rewind the payload.
func (s *S3Storage) Upload(ctx context.Context, input *UploadInput) (*UploadResult, error) {
	body, ok := input.Data.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(input.Data)
		if err != nil {
			return nil, fmt.Errorf("read upload body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	put := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(input.Key),
		Body:   body,
	}
	if input.ContentType != "" {
		put.ContentType = aws.String(input.ContentType)
	}
	if input.Size > 0 {
		put.ContentLength = aws.Int64(input.Size)
	}

	if _, err := s.client.PutObject(ctx, put); err != nil {
		return nil, fmt.Errorf("s3 put object %s: %w", input.Key, err)
	}

	return &UploadResult{Key: input.Key, URL: s.objectURL(input.Key)}, nil
}

// Delete removes the object from the bucket.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete object %s: %w", key, err)
	}
	return nil
}

// GetURL returns the public URL for key without contacting the bucket.
func (s *S3Storage) GetURL(_ context.Context, key string) (string, error) {
	return s.objectURL(key), nil
}

func (s *S3Storage) objectURL(key string) string {
	return s.publicURL + "/" + key
}
