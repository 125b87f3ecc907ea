package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	pingTimeout   = 5 * time.Second
	uploadTimeout = 30 * time.Second
	defaultMaxMB  = 10
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// objectStore is the subset of the bucket API used for uploads and health checks.
type objectStore interface {
	Write(ctx context.Context, bucket, object, contentType string, r io.Reader) error
	Probe(ctx context.Context, bucket string) error
	Close() error
}

type Client struct {
	store         objectStore
	defaultBucket string
	publicBaseURL string
	maxBytes      int64
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Object describes an uploaded file.
type Object struct {
	Name        string
	URL         string
	ContentType string
	Size        int64
}

func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	var opts []option.ClientOption
	switch {
	case gcp.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case gcp.ApplicationCredentials != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}

	raw, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}

	client := newClient(&bucketStore{client: raw}, cfg)
	if err := client.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs client initialized")
	}

	return client, nil
}

func newClient(store objectStore, cfg config.GCSConfig) *Client {
	maxMB := cfg.MaxUploadMB
	if maxMB <= 0 {
		maxMB = defaultMaxMB
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if base == "" {
		base = "https://storage.googleapis.com"
	}
	return &Client{
		store:         store,
		defaultBucket: cfg.BucketName,
		publicBaseURL: base,
		maxBytes:      int64(maxMB) << 20,
	}
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

func (c *Client) Close() error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.store == nil {
		return errors.New("gcs client not initialized")
	}
	if c.defaultBucket == "" {
		return errors.New("gcs bucket not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.store.Probe(ctx, c.defaultBucket)
}

// UploadImage stores data under prefix/<uuid><ext> and returns its public URL.
// Only sniffed JPEG, PNG, WebP and GIF content within the size limit is accepted.
func (c *Client) UploadImage(ctx context.Context, prefix string, data []byte) (*Object, error) {
	if c == nil || c.store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gcs client not initialized")
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is empty")
	}
	if int64(len(data)) > c.maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file exceeds %d bytes", c.maxBytes))
	}

	mtype := mimetype.Detect(data)
	ext, ok := allowedImageTypes[mtype.String()]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported content type %s", mtype.String()))
	}

	name := fmt.Sprintf("%s/%s%s", strings.Trim(prefix, "/"), uuid.NewString(), ext)

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()
	if err := c.store.Write(ctx, c.defaultBucket, name, mtype.String(), bytes.NewReader(data)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload object")
	}

	return &Object{
		Name:        name,
		URL:         c.PublicURL(name),
		ContentType: mtype.String(),
		Size:        int64(len(data)),
	}, nil
}

// PublicURL returns the URL the object is served from.
func (c *Client) PublicURL(object string) string {
	return fmt.Sprintf("%s/%s/%s", c.publicBaseURL, c.defaultBucket, object)
}

type bucketStore struct {
	client *storage.Client
}

func (b *bucketStore) Write(ctx context.Context, bucket, object, contentType string, r io.Reader) error {
	w := b.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=86400"
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Probe lists at most one object, which needs storage.objects.list on the bucket.
func (b *bucketStore) Probe(ctx context.Context, bucket string) error {
	it := b.client.Bucket(bucket).Objects(ctx, nil)
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

func (b *bucketStore) Close() error {
	return b.client.Close()
}
