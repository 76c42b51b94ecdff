package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the configuration for S3-compatible object storage.
// Setting Endpoint allows pointing at OSS or any other S3-compatible store.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: static access key ID
	SecretAccessKey string // Optional: static secret access key
	// URLExpiry controls how long presigned URLs stay valid.
	// Defaults to 24 hours, long enough for the provider to fetch inputs.
	URLExpiry time.Duration
}

// S3Storage wraps LocalStorage and adds object-storage upload capability.
// Uploads return presigned GET URLs so the bucket can stay private while the
// generation provider fetches image inputs.
type S3Storage struct {
	*LocalStorage
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	urlExpiry time.Duration
}

// NewS3Storage creates a new S3Storage instance.
// The tempDir parameter specifies where temporary files are stored.
// The cfg parameter contains object-storage configuration.
func NewS3Storage(tempDir string, cfg S3Config) (*S3Storage, error) {
	local, err := NewLocalStorage(tempDir)
	if err != nil {
		return nil, err
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	urlExpiry := cfg.URLExpiry
	if urlExpiry <= 0 {
		urlExpiry = 24 * time.Hour
	}

	return &S3Storage{
		LocalStorage: local,
		client:       client,
		presigner:    s3.NewPresignClient(client),
		bucket:       cfg.Bucket,
		urlExpiry:    urlExpiry,
	}, nil
}

// Upload stores data under key and returns a presigned GET URL that grants
// temporary read access to the object.
func (s *S3Storage) Upload(ctx context.Context, key string, data io.Reader) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   data,
	})
	if err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}

	presigned, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.urlExpiry))
	if err != nil {
		return "", fmt.Errorf("presign object URL: %w", err)
	}

	return presigned.URL, nil
}

// DeleteObject removes an uploaded object. Used by the aged-image cleanup.
func (s *S3Storage) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// uploadPrefix is where Upload keys live; the aged sweep only touches these.
const uploadPrefix = "images/"

// CleanupAgedObjects removes uploaded images older than maxAge from the
// bucket. Objects that fail to delete are skipped so one error does not
// abandon the rest of the sweep. Returns the number of objects removed.
func (s *S3Storage) CleanupAgedObjects(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(uploadPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return removed, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || obj.LastModified == nil || obj.LastModified.After(cutoff) {
				continue
			}
			if err := s.DeleteObject(ctx, *obj.Key); err != nil {
				continue
			}
			removed++
		}
	}
	return removed, nil
}
