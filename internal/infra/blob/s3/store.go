// Package s3 implements core.Store on an S3-compatible bucket (AWS S3 or MinIO).
package s3

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"fieldmonitor/internal/blob/core"
)

// API is the subset of the S3 client the store calls.
type API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store keeps each collection as one object in a bucket, optionally below a
// shared key prefix.
type Store struct {
	api    API
	bucket string
	prefix string
}

// Config holds explicit construction parameters.
type Config struct {
	Region          string
	Bucket          string
	Prefix          string // e.g. "fieldmonitor/"
	Endpoint        string // custom endpoint such as MinIO
	AccessKeyID     string // empty uses the default credentials chain
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
}

const defaultRegion = "us-east-1"

// New builds an SDK client from cfg and wraps it.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 store: bucket required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cmp.Or(cfg.Region, defaultRegion))}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 store: load config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(api API, bucket, prefix string) *Store {
	return &Store{api: api, bucket: bucket, prefix: prefix}
}

func (s *Store) Driver() core.Driver { return core.DriverS3 }

func (s *Store) Close() error { return nil }

func (s *Store) object(key string) *string { return aws.String(s.prefix + key) }

// Put uploads the payload and reads back the stored object's metadata.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	if key == "" {
		return core.Info{}, errors.New("s3 store: empty key")
	}
	in := &s3.PutObjectInput{Bucket: aws.String(s.bucket), Key: s.object(key), Body: r}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		in.Metadata = opts.Metadata
	}
	if _, err := s.api.PutObject(ctx, in); err != nil {
		return core.Info{}, s.fail("put", key, err)
	}
	return s.Head(ctx, key)
}

// Get streams the object body. The caller closes it.
func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: s.object(key)})
	if err != nil {
		return core.Info{}, nil, s.fail("get", key, err)
	}
	return objectInfo{
		size:        aws.ToInt64(out.ContentLength),
		contentType: out.ContentType,
		etag:        out.ETag,
		metadata:    out.Metadata,
		modified:    out.LastModified,
	}.info(key), out.Body, nil
}

func (s *Store) Head(ctx context.Context, key string) (core.Info, error) {
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: s.object(key)})
	if err != nil {
		return core.Info{}, s.fail("head", key, err)
	}
	return objectInfo{
		size:        aws.ToInt64(out.ContentLength),
		contentType: out.ContentType,
		etag:        out.ETag,
		metadata:    out.Metadata,
		modified:    out.LastModified,
	}.info(key), nil
}

// Delete removes the object. DeleteObject succeeds for absent keys, so the
// object is probed first to report whether anything was removed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if _, err := s.Head(ctx, key); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if _, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: s.object(key)}); err != nil {
		return false, s.fail("delete", key, err)
	}
	return true, nil
}

// List walks every page of ListObjectsV2 and returns keys without the store prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	pages := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: s.object(prefix),
	})
	var out []core.Info
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, s.fail("list", prefix, err)
		}
		for _, obj := range page.Contents {
			out = append(out, objectInfo{
				size:     aws.ToInt64(obj.Size),
				etag:     obj.ETag,
				modified: obj.LastModified,
			}.info(strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)))
		}
	}
	slices.SortFunc(out, func(a, b core.Info) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

func (s *Store) fail(op, key string, err error) error {
	if missing(err) {
		return fmt.Errorf("s3 %s %s: %w", op, key, core.ErrNotFound)
	}
	return fmt.Errorf("s3 %s %s: %w", op, key, err)
}

func missing(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == 404
}

type objectInfo struct {
	size        int64
	contentType *string
	etag        *string
	metadata    map[string]string
	modified    *time.Time
}

// info converts SDK fields to core.Info. A missing modification time falls
// back to now.
func (o objectInfo) info(key string) core.Info {
	modified := time.Now().UTC()
	if o.modified != nil {
		modified = o.modified.UTC()
	}
	return core.Info{
		Key:          key,
		Size:         o.size,
		ContentType:  aws.ToString(o.contentType),
		ETag:         strings.Trim(aws.ToString(o.etag), `"`),
		Metadata:     o.metadata,
		LastModified: modified,
	}
}
