package filestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlpane/sqlpane/internal/errs"
)

func TestConfig_ValidateUpload(t *testing.T) {
	cfg := &Config{
		MaxSize:           1024,
		AllowedExtensions: []string{".png", ".jpg"},
	}

	assert.NoError(t, cfg.ValidateUpload("logo.png", 512))
	assert.NoError(t, cfg.ValidateUpload("PHOTO.JPG", 1024), "extension match is case insensitive")

	err := cfg.ValidateUpload("logo.png", 2048)
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))

	err = cfg.ValidateUpload("script.sh", 10)
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))

	err = cfg.ValidateUpload("noext", 10)
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestConfig_ValidateUpload_OpenPolicy(t *testing.T) {
	cfg := &Config{}

	assert.NoError(t, cfg.ValidateUpload("anything.bin", 1<<30))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("localhost:9000", "ak", "sk", "uploads")

	assert.Equal(t, ProviderMinIO, cfg.Provider)
	assert.Equal(t, "uploads", cfg.Bucket)
	assert.False(t, cfg.UseSSL)
}
