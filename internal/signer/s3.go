// Package signer produces time-limited object-storage URLs for feed media.
package signer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// URLSigner issues signed download and upload URLs for object keys.
type URLSigner interface {
	SignGet(ctx context.Context, key string) (string, error)
	SignPut(ctx context.Context, key string) (string, error)
}

// Config describes the bucket URLs are signed for.
type Config struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint for S3-compatible stores; path-style
	// addressing is used when it is set.
	Endpoint string
	Profile  string
	Expiry   time.Duration
}

// S3Signer presigns GetObject and PutObject requests against one bucket.
type S3Signer struct {
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

var ErrEmptyKey = errors.New("object key is empty")

// NewS3Signer loads AWS credentials the usual way (env, shared config,
// instance role) and builds a signer for cfg.Bucket.
func NewS3Signer(ctx context.Context, cfg Config) (*S3Signer, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewFromClient(client, cfg.Bucket, cfg.Expiry), nil
}

// NewFromClient wraps an existing S3 client.
func NewFromClient(client *s3.Client, bucket string, expiry time.Duration) *S3Signer {
	return &S3Signer{
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		expiry:  expiry,
	}
}

// SignGet returns a URL that downloads key until the expiry elapses.
func (s *S3Signer) SignGet(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign get for %q: %w", key, err)
	}
	return req.URL, nil
}

// SignPut returns a URL that accepts an upload of key until the expiry elapses.
func (s *S3Signer) SignPut(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign put for %q: %w", key, err)
	}
	return req.URL, nil
}
