package storage

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rmitchellscott/creativeforge/internal/config"
	"github.com/rmitchellscott/creativeforge/internal/logging"
)

// Options selects and configures a Backend.
type Options struct {
	Backend          string
	DataDir          string
	S3Endpoint       string
	S3Region         string
	S3Bucket         string
	S3AccessKeyID    string
	S3SecretKey      string
	S3ForcePathStyle bool
}

// OptionsFromConfig copies the storage settings out of the process config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Backend:          cfg.StorageBackend,
		DataDir:          cfg.DataDir,
		S3Endpoint:       cfg.S3Endpoint,
		S3Region:         cfg.S3Region,
		S3Bucket:         cfg.S3Bucket,
		S3AccessKeyID:    cfg.S3AccessKeyID,
		S3SecretKey:      cfg.S3SecretKey,
		S3ForcePathStyle: cfg.S3ForcePathStyle,
	}
}

// Validate checks the options without touching any backend.
func (o Options) Validate() error {
	switch o.Backend {
	case "filesystem":
		if o.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required for filesystem backend")
		}
		return nil
	case "memory":
		return nil
	case "s3":
		if o.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for S3 backend")
		}
		if o.S3Region == "" {
			return fmt.Errorf("S3_REGION is required for S3 backend")
		}
		if o.S3Endpoint != "" {
			if _, err := url.Parse(o.S3Endpoint); err != nil {
				return fmt.Errorf("invalid S3_ENDPOINT: %w", err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown storage backend: %s (valid options: filesystem, memory, s3)", o.Backend)
	}
}

// New builds the backend named by opts.Backend.
func New(ctx context.Context, opts Options) (Backend, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	switch opts.Backend {
	case "s3":
		backend, err := newS3Backend(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 backend: %w", err)
		}
		logging.Logf("[STORAGE] Initialized S3 backend: s3://%s (endpoint: %s)", opts.S3Bucket, opts.S3Endpoint)
		return backend, nil
	case "memory":
		logging.Logf("[STORAGE] Initialized in-memory backend")
		return NewMemoryBackend(), nil
	default:
		logging.Logf("[STORAGE] Initialized filesystem backend: %s", opts.DataDir)
		return NewFilesystemBackend(opts.DataDir), nil
	}
}

func newS3Backend(ctx context.Context, opts Options) (*S3Backend, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.S3Region)}
	if opts.S3AccessKeyID != "" && opts.S3SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.S3AccessKeyID, opts.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.S3Endpoint)
		}
		o.UsePathStyle = opts.S3ForcePathStyle
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(opts.S3Bucket)}); err != nil {
		return nil, fmt.Errorf("failed to access S3 bucket %s: %w", opts.S3Bucket, err)
	}
	return NewS3Backend(client, opts.S3Bucket), nil
}
