// Package filestore defines the interface for the object storage backend
// that receives grid file uploads.
//
// Providers (MinIO today, S3-compatible services by the same driver)
// implement the Store interface. Callers depend only on this package,
// never on a specific provider package.
package filestore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sqlpane/sqlpane/internal/errs"
)

// Store is the interface every storage provider implements.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// Store uploads one file and returns the generated object name.
	Store(ctx context.Context, filename string, size int64, contentType string, r io.Reader) (string, error)
}

// Provider identifies the storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
)

// Config holds the settings for one storage backend plus the upload
// policy enforced before any bytes leave the process.
type Config struct {
	Provider  Provider
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string

	// Bucket receives every upload.
	Bucket string

	// MaxSize caps a single upload in bytes. 0 means no cap.
	MaxSize int64

	// AllowedExtensions restricts upload types, lowercase with the dot
	// ( ".png", ".pdf"). Empty means any extension.
	AllowedExtensions []string
}

// DefaultConfig returns a local-dev MinIO config.
func DefaultConfig(endpoint, accessKey, secretKey, bucket string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Bucket:    bucket,
		UseSSL:    false,
	}
}

// ValidateUpload enforces the size cap and extension allow-list.
func (c *Config) ValidateUpload(filename string, size int64) error {
	if c.MaxSize > 0 && size > c.MaxSize {
		return errs.Newf(errs.ErrKindValidation,
			"file %q exceeds the %d byte limit", filename, c.MaxSize)
	}
	if len(c.AllowedExtensions) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range c.AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return errs.New(errs.ErrKindValidation,
		fmt.Sprintf("file type %q is not allowed", ext))
}
