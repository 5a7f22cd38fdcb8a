package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cenotelie/xowl-toolkit/src/common/errors"
)

// S3Config holds the S3 storage configuration
type S3Config struct {
	// Endpoint is the S3-compatible endpoint URL (e.g., "http://minio:9000"); empty uses AWS defaults
	Endpoint string

	// Region is the S3 region (e.g., "us-east-1")
	Region string

	// Bucket is the bucket holding packages or repository artifacts
	Bucket string

	// Prefix is prepended to every key (e.g., "releases/")
	Prefix string

	// AccessKeyID is the S3 access key; empty means anonymous access
	AccessKeyID string

	// SecretAccessKey is the S3 secret key
	SecretAccessKey string

	// UsePathStyle enables path-style addressing (required for most S3-compatible storage)
	UsePathStyle bool

	// AppID identifies the client in requests
	AppID string
}

// S3Backend implements storage using S3-compatible object storage
type S3Backend struct {
	s3Client *s3.Client
	config   S3Config
}

// NewS3 creates a new S3 storage backend
func NewS3(cfg S3Config) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 storage requires a bucket")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	awsCfg := aws.Config{
		Region: cfg.Region,
		AppID:  cfg.AppID,
	}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	} else {
		awsCfg.Credentials = aws.AnonymousCredentials{}
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Backend{
		s3Client: s3Client,
		config:   cfg,
	}, nil
}

// key returns the object key with the configured prefix
func (b *S3Backend) key(key string) string {
	return b.config.Prefix + key
}

// EnsureBucket creates the bucket if it doesn't exist
func (b *S3Backend) EnsureBucket(ctx context.Context) error {
	_, err := b.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.config.Bucket),
	})
	if err == nil {
		return nil
	}

	_, err = b.s3Client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(b.config.Bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", b.config.Bucket, err)
	}

	return nil
}

// Upload uploads data to S3
func (b *S3Backend) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(b.config.Bucket),
		Key:           aws.String(b.key(key)),
		Body:          reader,
		ContentLength: aws.Int64(size),
	}

	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := b.s3Client.PutObject(ctx, input); err != nil {
		return errors.ErrStorageUploadFailed.WithMessagef("failed to upload object %s", key).WithCause(err)
	}

	return nil
}

// Download downloads an object from S3
func (b *S3Backend) Download(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	output, err := b.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(b.key(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil, errors.ErrStorageNotFound.WithMessagef("object not found: %s", key)
		}
		return nil, nil, errors.ErrStorageDownloadFailed.WithMessagef("failed to download object %s", key).WithCause(err)
	}

	info := &ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(output.ContentLength),
		ContentType:  aws.ToString(output.ContentType),
		ETag:         aws.ToString(output.ETag),
		LastModified: aws.ToTime(output.LastModified),
	}

	return output.Body, info, nil
}

// Delete deletes an object from S3
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	_, err := b.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(b.key(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}

	return nil
}

// Exists checks if an object exists in S3
func (b *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(b.key(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object %s: %w", key, err)
	}
	return true, nil
}

// GetInfo retrieves metadata for an object
func (b *S3Backend) GetInfo(ctx context.Context, key string) (*ObjectInfo, error) {
	output, err := b.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(b.key(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.ErrStorageNotFound.WithMessagef("object not found: %s", key)
		}
		return nil, fmt.Errorf("failed to get object info for %s: %w", key, err)
	}

	return &ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(output.ContentLength),
		ContentType:  aws.ToString(output.ContentType),
		ETag:         aws.ToString(output.ETag),
		LastModified: aws.ToTime(output.LastModified),
	}, nil
}

// List lists objects with the given prefix
func (b *S3Backend) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo

	paginator := s3.NewListObjectsV2Paginator(b.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.config.Bucket),
		Prefix: aws.String(b.key(prefix)),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			objects = append(objects, ObjectInfo{
				Key:          key[len(b.config.Prefix):],
				Size:         aws.ToInt64(obj.Size),
				ETag:         aws.ToString(obj.ETag),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	return objects, nil
}

// Ping checks if the bucket is reachable
func (b *S3Backend) Ping(ctx context.Context) error {
	_, err := b.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.config.Bucket),
	})
	if err != nil {
		return errors.ErrStorageUnavailable.WithMessagef("bucket %s not reachable", b.config.Bucket).WithCause(err)
	}
	return nil
}

// Type returns the storage backend type
func (b *S3Backend) Type() string {
	return "s3"
}

// Location returns the S3 endpoint and bucket
func (b *S3Backend) Location() string {
	endpoint := b.config.Endpoint
	if endpoint == "" {
		endpoint = "s3://"
	} else {
		endpoint += "/"
	}
	return endpoint + b.config.Bucket + "/" + b.config.Prefix
}

// isNotFound reports whether an S3 error means the key does not exist
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if stderrors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return stderrors.As(err, &nf)
}

var _ Backend = (*S3Backend)(nil)
