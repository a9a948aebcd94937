// Package minio provides a MinIO implementation of filestore.Store.
package minio

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sqlpane/sqlpane/internal/errs"
	"github.com/sqlpane/sqlpane/internal/filestore"
)

// Driver is a MinIO implementation of filestore.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
	cfg    *filestore.Config
}

// New connects to MinIO using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create minio client", err)
	}

	d := &Driver{client: client, cfg: cfg}

	if err := d.Ping(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

// Ping verifies the MinIO server is reachable and the bucket exists.
func (d *Driver) Ping(ctx context.Context) error {
	exists, err := d.client.BucketExists(ctx, d.cfg.Bucket)
	if err != nil {
		return mapError(err, "ping failed")
	}
	if !exists {
		return errs.Newf(errs.ErrKindConnectionFailed, "bucket %q does not exist", d.cfg.Bucket)
	}
	return nil
}

// Close is a no-op for MinIO, the SDK client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

// Store validates the upload against the configured policy and writes it
// under a generated object name. The original name survives only as the
// extension; the rest is a fresh UUID so uploads never collide.
func (d *Driver) Store(ctx context.Context, filename string, size int64, contentType string, r io.Reader) (string, error) {
	if err := d.cfg.ValidateUpload(filename, size); err != nil {
		return "", err
	}

	key := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	opts := miniogo.PutObjectOptions{ContentType: contentType}

	if _, err := d.client.PutObject(ctx, d.cfg.Bucket, key, r, size, opts); err != nil {
		return "", mapError(err, "failed to store object")
	}
	return key, nil
}
