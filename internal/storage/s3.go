package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// S3Config selects the bucket and, for S3-compatible services such as
// MinIO, a custom endpoint.
type S3Config struct {
	Bucket       string `mapstructure:"bucket" yaml:"bucket"`
	Region       string `mapstructure:"region" yaml:"region"`
	Prefix       string `mapstructure:"prefix" yaml:"prefix"`
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
}

// S3Store keeps uploads in an S3 bucket. Credentials come from the
// default AWS chain (env, shared config, instance role).
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Store loads the default AWS config and creates the client.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	log.Info().
		Str("bucket", cfg.Bucket).
		Str("region", awsCfg.Region).
		Str("endpoint", cfg.Endpoint).
		Msg("S3 blob store initialized")

	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, now: time.Now}, nil
}

func (s *S3Store) Kind() string { return "s3" }

func (s *S3Store) key(loc string) string {
	if s.prefix == "" {
		return loc
	}
	return s.prefix + "/" + loc
}

func (s *S3Store) Put(ctx context.Context, owner, filename string, r io.Reader) (string, error) {
	loc := Locator(owner, filename, s.now())

	// The SDK needs a seekable body to sign the payload.
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("s3: read upload: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(loc)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("s3: put %s: %w", loc, err)
	}
	log.Debug().Str("bucket", s.bucket).Str("key", s.key(loc)).Int("bytes", len(data)).Msg("Stored upload to S3")
	return loc, nil
}

func (s *S3Store) Get(ctx context.Context, loc string) (io.ReadCloser, error) {
	if !ValidLocator(loc) {
		return nil, fmt.Errorf("invalid locator %q", loc)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(loc)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("s3: get %s: %w", loc, ErrNotFound)
		}
		return nil, fmt.Errorf("s3: get %s: %w", loc, err)
	}
	return out.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, loc string) error {
	if !ValidLocator(loc) {
		return fmt.Errorf("invalid locator %q", loc)
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(loc)),
	})
	if err != nil {
		return fmt.Errorf("s3: delete %s: %w", loc, err)
	}
	return nil
}

// HealthCheck verifies the bucket is reachable.
func (s *S3Store) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("s3: head bucket %s: %w", s.bucket, err)
	}
	return nil
}
