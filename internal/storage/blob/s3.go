package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/storyreel/backend/internal/config"
)

type s3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func newS3Store(cfg config.AssetsS3Config, awsCfg aws.Config) (*s3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("assets.s3.bucket must be provided for s3 storage")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	prefix := strings.Trim(cfg.Prefix, "/")
	return &s3Store{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

func loadS3Config(ctx context.Context, cfg config.AssetsS3Config) (aws.Config, error) {
	opts := []func(*awscfg.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awscfg.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		// Static keys cover S3-compatible endpoints (MinIO, R2) that have no
		// instance metadata to fall back to.
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{URL: cfg.Endpoint, Source: aws.EndpointSourceCustom, HostnameImmutable: true}, nil
			}
			return aws.Endpoint{}, fmt.Errorf("unknown endpoint requested")
		})
		opts = append(opts, awscfg.WithEndpointResolverWithOptions(resolver))
	}
	return awscfg.LoadDefaultConfig(ctx, opts...)
}

func (s *s3Store) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (ObjectInfo, error) {
	objectKey := s.objectKey(key)
	counted := &countingReader{r: body}
	input := &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &objectKey,
		Body:        counted,
		ContentType: aws.String(opts.ContentType),
		Metadata:    opts.Metadata,
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: key, Size: counted.n, ContentType: opts.ContentType, Metadata: opts.Metadata}, nil
}

// countingReader records how many bytes the upload consumed so Put can report
// the stored size without buffering the body.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (s *s3Store) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	objectKey := s.objectKey(key)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &objectKey,
	})
	if err != nil {
		var nf *s3types.NoSuchKey
		if errors.As(err, &nf) || strings.Contains(err.Error(), "NoSuchKey") {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, err
	}
	info := ObjectInfo{Key: key, ContentType: aws.ToString(out.ContentType), Metadata: out.Metadata}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	return out.Body, info, nil
}

func (s *s3Store) Delete(ctx context.Context, key string) error {
	objectKey := s.objectKey(key)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &objectKey,
	})
	return err
}

func (s *s3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + strings.TrimPrefix(key, "/")
}
