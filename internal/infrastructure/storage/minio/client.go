// Package minio publishes run outputs to MinIO or any S3-compatible store.
package minio

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/mseg-regionalizer/internal/infrastructure/monitoring/logging"
	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// MinIOAPI is the subset of *minio.Client used here.
type MinIOAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MetaRunID is the user metadata key carrying the run ID.
const MetaRunID = "Run-Id"

type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
	Bucket          string
	Prefix          string
	PartSize        uint64
	ConnectTimeout  time.Duration
}

type MinIOClient struct {
	client MinIOAPI
	config *MinIOConfig
	logger logging.Logger
}

// NewMinIOClient connects to the configured endpoint and makes sure the
// output bucket exists.
func NewMinIOClient(cfg *MinIOConfig, log logging.Logger) (*MinIOClient, error) {
	applyDefaults(cfg)

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeStorage, "failed to create minio client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	c := NewMinIOClientWithAPI(client, cfg, log)
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	c.logger.Info("MinIO client connected", logging.String("endpoint", cfg.Endpoint), logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

// NewMinIOClientWithAPI wraps an existing API implementation.
func NewMinIOClientWithAPI(api MinIOAPI, cfg *MinIOConfig, log logging.Logger) *MinIOClient {
	applyDefaults(cfg)
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &MinIOClient{client: api, config: cfg, logger: log.Named("minio")}
}

func applyDefaults(cfg *MinIOConfig) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.PartSize == 0 {
		cfg.PartSize = 16 * 1024 * 1024
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "mseg-outputs"
	}
}

func (c *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return errs.Wrap(err, errs.CodeStorage, "failed to check bucket existence").WithDetail(c.config.Bucket)
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
		return errs.Wrap(err, errs.CodeStorage, "failed to create bucket").WithDetail(c.config.Bucket)
	}
	c.logger.Info("Created bucket", logging.String("bucket", c.config.Bucket))
	return nil
}

// Bucket returns the output bucket name.
func (c *MinIOClient) Bucket() string { return c.config.Bucket }

// ObjectName returns the key an output file is stored under:
// <prefix>/<runID>/<base name>.
func (c *MinIOClient) ObjectName(runID, file string) string {
	return path.Join(strings.Trim(c.config.Prefix, "/"), runID, filepath.Base(file))
}

// PublishedObject describes one uploaded file.
type PublishedObject struct {
	Bucket string
	Key    string
	Size   int64
	ETag   string
}

// Publish uploads each file under the run's prefix.  meta is attached as user
// metadata in addition to the run ID.
func (c *MinIOClient) Publish(ctx context.Context, runID string, meta map[string]string, files ...string) ([]PublishedObject, error) {
	out := make([]PublishedObject, 0, len(files))
	for _, file := range files {
		obj, err := c.put(ctx, runID, meta, file)
		if err != nil {
			return out, err
		}
		out = append(out, obj)
		c.logger.Debug("object published",
			logging.String("bucket", obj.Bucket),
			logging.String("key", obj.Key),
			logging.Int64("size", obj.Size))
	}
	return out, nil
}

func (c *MinIOClient) put(ctx context.Context, runID string, meta map[string]string, file string) (PublishedObject, error) {
	f, err := os.Open(file)
	if err != nil {
		return PublishedObject{}, errs.Wrap(err, errs.CodeIO, "open output for upload").WithDetail(file)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return PublishedObject{}, errs.Wrap(err, errs.CodeIO, "stat output for upload").WithDetail(file)
	}

	userMeta := map[string]string{MetaRunID: runID}
	for k, v := range meta {
		userMeta[k] = v
	}
	key := c.ObjectName(runID, file)
	info, err := c.client.PutObject(ctx, c.config.Bucket, key, f, st.Size(), minio.PutObjectOptions{
		ContentType:  contentType(file),
		UserMetadata: userMeta,
		PartSize:     c.config.PartSize,
	})
	if err != nil {
		return PublishedObject{}, errs.Wrap(err, errs.CodeStorage, "failed to upload object").WithDetail(key)
	}
	return PublishedObject{Bucket: c.config.Bucket, Key: key, Size: info.Size, ETag: info.ETag}, nil
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		return "application/json"
	case ".gz":
		return "application/gzip"
	}
	return "application/octet-stream"
}

//Personal.AI order the ending
