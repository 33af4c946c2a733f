// Package publish uploads finished artifacts to object storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
)

// DefaultUploadTimeout bounds one object upload
const DefaultUploadTimeout = 10 * time.Minute

// Publisher stores an artifact and returns its location
type Publisher interface {
	Publish(ctx context.Context, path string) (string, error)
}

// S3Config holds the bucket settings
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // custom endpoint, e.g. MinIO; enables path-style addressing
	AccessKeyID     string
	SecretAccessKey string
	MaxRetries      int
	Timeout         time.Duration
}

// Validate checks the required fields
func (c S3Config) Validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return errors.New("access key id and secret access key must be set together")
	}
	return nil
}

// putObjectAPI is the subset of the S3 client used for uploads
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads artifacts to one bucket
type S3Publisher struct {
	client  putObjectAPI
	bucket  string
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewS3Publisher builds an S3 client from cfg using the default AWS
// credential chain unless static keys are given.
func NewS3Publisher(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid S3 configuration: %w", err)
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Publisher(client, cfg, logger), nil
}

func newS3Publisher(client putObjectAPI, cfg S3Config, logger *slog.Logger) *S3Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultUploadTimeout
	}
	return &S3Publisher{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		timeout: timeout,
		logger:  logger,
	}
}

func loadAWSConfig(ctx context.Context, cfg S3Config) (aws.Config, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	if cfg.MaxRetries > 0 {
		optFns = append(optFns, awsconfig.WithRetryMaxAttempts(cfg.MaxRetries))
	}
	optFns = append(optFns, awsconfig.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	return awsconfig.LoadDefaultConfig(ctx, optFns...)
}

// Key returns the object key of a local artifact
func (p *S3Publisher) Key(localPath string) string {
	name := filepath.Base(localPath)
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

// Publish uploads the file at localPath and returns its s3:// location
func (p *S3Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat artifact: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	key := p.Key(localPath)
	start := time.Now()
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(localPath)),
	})
	if err != nil {
		p.logger.Error("failed to put object", "bucket", p.bucket, "key", key, "error", err)
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}

	location := "s3://" + p.bucket + "/" + key
	p.logger.Info("artifact published",
		"location", location,
		"size", humanize.Bytes(uint64(info.Size())),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return location, nil
}

// PublishAll uploads every path and returns the locations of those that
// succeeded. Failures are joined.
func PublishAll(ctx context.Context, p Publisher, paths []string) ([]string, error) {
	var locations []string
	var errs []error
	for _, path := range paths {
		loc, err := p.Publish(ctx, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		locations = append(locations, loc)
	}
	return locations, errors.Join(errs...)
}

func contentType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
