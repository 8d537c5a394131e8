package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrObjectTooLarge = errors.New("object exceeds size limit")

type Config struct {
	Endpoint       string
	Access         string
	Secret         string
	Bucket         string
	UseSSL         bool
	MaxObjectBytes int64
}

type Client struct {
	minio          *minio.Client
	bucket         string
	maxObjectBytes int64
}

func NewClient(cfg Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	return &Client{
		minio:          mc,
		bucket:         cfg.Bucket,
		maxObjectBytes: cfg.MaxObjectBytes,
	}, nil
}

func (c *Client) Bucket() string {
	return c.bucket
}

func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minio.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.minio.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		exists, checkErr := c.minio.BucketExists(ctx, c.bucket)
		if checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}

	return nil
}

func (c *Client) PresignedPutURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	u, err := c.minio.PresignedPutObject(ctx, c.bucket, objectKey, expiry)
	if err != nil {
		return "", fmt.Errorf("presign put object: %w", err)
	}
	return u.String(), nil
}

// PresignedGetURL signs a download link that saves as filename.
func (c *Client) PresignedGetURL(ctx context.Context, objectKey, filename string, expiry time.Duration) (string, error) {
	params := url.Values{}
	if strings.TrimSpace(filename) != "" {
		params.Set("response-content-disposition", attachmentDisposition(filename))
	}
	u, err := c.minio.PresignedGetObject(ctx, c.bucket, objectKey, expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign get object: %w", err)
	}
	return u.String(), nil
}

func (c *Client) ObjectExists(ctx context.Context, objectKey string) (bool, error) {
	_, err := c.minio.StatObject(ctx, c.bucket, objectKey, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}

	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchObject" {
		return false, nil
	}
	return false, fmt.Errorf("stat object %s: %w", objectKey, err)
}

// Object is one upload. Metadata lands in x-amz-meta-* headers.
type Object struct {
	Key         string
	Data        []byte
	ContentType string
	Filename    string
	Metadata    map[string]string
}

// ReadObject loads the whole object. Objects above MaxObjectBytes fail with
// ErrObjectTooLarge, checked against the stat size before any body is read.
func (c *Client) ReadObject(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := c.minio.GetObject(ctx, c.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", objectKey, err)
	}
	defer obj.Close()

	if c.maxObjectBytes <= 0 {
		data, err := io.ReadAll(obj)
		if err != nil {
			return nil, fmt.Errorf("read object %s: %w", objectKey, err)
		}
		return data, nil
	}

	info, err := obj.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat object %s: %w", objectKey, err)
	}
	if info.Size > c.maxObjectBytes {
		return nil, fmt.Errorf("read object %s (%d bytes): %w", objectKey, info.Size, ErrObjectTooLarge)
	}

	data, err := io.ReadAll(io.LimitReader(obj, c.maxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", objectKey, err)
	}
	if int64(len(data)) > c.maxObjectBytes {
		return nil, fmt.Errorf("read object %s: %w", objectKey, ErrObjectTooLarge)
	}
	return data, nil
}

func (c *Client) PutObject(ctx context.Context, object Object) error {
	opts := minio.PutObjectOptions{
		ContentType:  object.ContentType,
		UserMetadata: object.Metadata,
	}
	if strings.TrimSpace(object.Filename) != "" {
		opts.ContentDisposition = attachmentDisposition(object.Filename)
	}

	_, err := c.minio.PutObject(ctx, c.bucket, object.Key, bytes.NewReader(object.Data), int64(len(object.Data)), opts)
	if err != nil {
		return fmt.Errorf("put object %s: %w", object.Key, err)
	}
	return nil
}

func attachmentDisposition(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}
