// Package s3sink stores built artifacts in an S3 bucket.
package s3sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const contentType = "application/json"

// API is the subset of the S3 client the sink calls.
type API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures a client built by NewFromOptions.
type Options struct {
	Bucket string
	Prefix string
	Region string
	// Endpoint overrides the service endpoint, e.g. for MinIO.
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// Sink implements builder.Sink over S3 objects named <prefix>/<file>.
type Sink struct {
	client API
	bucket string
	prefix string
}

// New wraps an existing client.
func New(client API, bucket, prefix string) (*Sink, error) {
	if client == nil {
		return nil, fmt.Errorf("s3sink: client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("s3sink: bucket is required")
	}
	return &Sink{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// NewFromOptions loads the default AWS configuration chain, applies the
// overrides in opts and returns a sink for opts.Bucket.
func NewFromOptions(ctx context.Context, opts Options) (*Sink, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	if opts.Endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(opts.Endpoint))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3sink: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.PathStyle
	})
	return New(client, opts.Bucket, opts.Prefix)
}

func (s *Sink) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Exists issues a HeadObject for name.
func (s *Sink) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("s3sink: head %s: %w", s.Location(name), err)
}

func (s *Sink) Write(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(name)),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("s3sink: put %s: %w", s.Location(name), err)
	}
	return nil
}

func (s *Sink) Location(name string) string {
	return "s3://" + s.bucket + "/" + s.key(name)
}

// isNotFound recognises the typed error and the bare 404 code HeadObject
// reports since it carries no body.
func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
