package drivers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/FairForge/pollstore/internal/config"
	"github.com/FairForge/pollstore/internal/engine"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// S3Driver stores blobs as objects in an S3-compatible bucket
type S3Driver struct {
	bucket string
	prefix string
	logger *zap.Logger
	client *s3.Client
}

// NewS3Driver creates a new S3 storage driver
func NewS3Driver(ctx context.Context, cfg config.S3Config, logger *zap.Logger) (*S3Driver, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Driver{
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger,
		client: client,
	}, nil
}

func (d *S3Driver) Name() string {
	return "s3"
}

func (d *S3Driver) objectKey(path string) string {
	if d.prefix == "" {
		return path
	}
	return strings.TrimSuffix(d.prefix, "/") + "/" + path
}

// Get retrieves data from S3
func (d *S3Driver) Get(ctx context.Context, path string) (engine.Blob, error) {
	result, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.objectKey(path)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return engine.Blob{}, engine.ErrNotFound(path)
		}
		return engine.Blob{}, fmt.Errorf("get object %s/%s: %w", d.bucket, path, err)
	}
	defer func() { _ = result.Body.Close() }()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return engine.Blob{}, fmt.Errorf("read object %s/%s: %w", d.bucket, path, err)
	}

	blob := engine.Blob{Path: path, Data: data}
	if result.LastModified != nil {
		blob.Modified = result.LastModified.UTC()
	}
	return blob, nil
}

// Put stores data in S3
func (d *S3Driver) Put(ctx context.Context, blob engine.Blob) (bool, error) {
	key := d.objectKey(blob.Path)

	existed := true
	_, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if !isS3NotFound(err) {
			return false, fmt.Errorf("head object %s/%s: %w", d.bucket, blob.Path, err)
		}
		existed = false
	}

	_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(blob.Data),
		ContentLength: aws.Int64(int64(len(blob.Data))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return false, fmt.Errorf("put object %s/%s: %w", d.bucket, blob.Path, err)
	}
	return existed, nil
}

// Stat lists every object under the prefix
func (d *S3Driver) Stat(ctx context.Context) (engine.DriverStats, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
	}
	if d.prefix != "" {
		input.Prefix = aws.String(strings.TrimSuffix(d.prefix, "/") + "/")
	}

	var stats engine.DriverStats
	paginator := s3.NewListObjectsV2Paginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return engine.DriverStats{}, fmt.Errorf("list objects in %s: %w", d.bucket, err)
		}
		for _, obj := range page.Contents {
			stats.Blobs++
			stats.Bytes += aws.ToInt64(obj.Size)
		}
	}
	return stats, nil
}

func (d *S3Driver) HealthCheck(ctx context.Context) error {
	_, err := d.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(d.bucket),
	})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
