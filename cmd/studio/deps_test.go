package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonathan/campaign-studio/internal/blob"
	"github.com/jonathan/campaign-studio/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("BLOB_BACKEND", "memory")
	t.Setenv("PORT", "4000")

	cfg, err := loadConfig("", true)
	require.NoError(t, err)
	assert.Equal(t, config.BackendMemory, cfg.BlobBackend)
	assert.Equal(t, 4000, cfg.Port)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_FileOverridesEnv(t *testing.T) {
	t.Setenv("BLOB_BACKEND", "memory")
	t.Setenv("PORT", "4000")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	blobDir := filepath.Join(dir, "blobs")
	require.NoError(t, os.WriteFile(path, []byte(`{"blob_backend":"local","local_blob_dir":"`+blobDir+`"}`), 0o644))

	cfg, err := loadConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, config.BackendLocal, cfg.BlobBackend)
	assert.Equal(t, blobDir, cfg.LocalBlobDir)
	assert.Equal(t, 4000, cfg.Port, "unset file values fall back to the environment")
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("BLOB_BACKEND", "s3")
	t.Setenv("MY_AWS_BUCKET_NAME", "")

	_, err := loadConfig("", false)
	assert.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.json"), false)
	assert.Error(t, err)
}

func TestOpenBlobStore(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	cfg := config.Defaults()
	cfg.BlobBackend = config.BackendMemory
	store, closeFn, err := openBlobStore(ctx, &cfg, logger)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &blob.Memory{}, store)

	cfg.BlobBackend = config.BackendLocal
	cfg.LocalBlobDir = t.TempDir()
	store, closeFn, err = openBlobStore(ctx, &cfg, logger)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &blob.LocalFS{}, store)

	cfg.BlobBackend = "ftp"
	_, _, err = openBlobStore(ctx, &cfg, logger)
	assert.Error(t, err)
}

func TestNewOrchestrator_RequiresFalKey(t *testing.T) {
	cfg := config.Defaults()
	assert.Nil(t, newOrchestrator(&cfg, zerolog.Nop()))

	cfg.FalKey = "key"
	assert.NotNil(t, newOrchestrator(&cfg, zerolog.Nop()))
}

func TestNewGemini_DisabledWithoutKey(t *testing.T) {
	cfg := config.Defaults()
	client, err := newGemini(context.Background(), &cfg)
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestPollPolicy(t *testing.T) {
	cfg := config.Defaults()
	p := pollPolicy(&cfg)
	assert.Equal(t, cfg.JobPollInterval.Duration, p.Interval)
	assert.Equal(t, cfg.JobPollMaxAttempts, p.MaxAttempts)
	assert.Equal(t, cfg.JobPollTimeout.Duration, p.MaxDuration)
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	quiet := newLogger(&buf, false)
	quiet.Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	verbose := newLogger(&buf, true)
	verbose.Debug().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
