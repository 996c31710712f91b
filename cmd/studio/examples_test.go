package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonathan/campaign-studio/internal/blob"
	"github.com/jonathan/campaign-studio/internal/config"
	"github.com/jonathan/campaign-studio/internal/examples"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListExamples(t *testing.T) {
	ctx := context.Background()
	cfg := config.Defaults()
	mem := blob.NewMemory("http://localhost:3000")
	svc := newExamplesService(mem, &cfg, zerolog.Nop())

	var out bytes.Buffer
	require.NoError(t, listExamples(ctx, svc, &out, false))
	assert.Equal(t, "no examples\n", out.String())

	ex, err := svc.Create(ctx, examples.CreateInput{
		Title:       "Armchair",
		Description: "soft light",
		Category:    "furniture",
		ImageName:   "chair.png",
		ImageType:   "image/png",
		Image:       []byte("png"),
	})
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, listExamples(ctx, svc, &out, false))
	assert.Contains(t, out.String(), ex.ID)
	assert.Contains(t, out.String(), "Armchair")
	assert.Contains(t, out.String(), "furniture")
	assert.Contains(t, out.String(), ex.ImageURL)

	out.Reset()
	require.NoError(t, listExamples(ctx, svc, &out, true))
	assert.Contains(t, out.String(), "furniture (1)")
	assert.Contains(t, out.String(), "Armchair")
}

func TestExamplesList_VerboseFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	blobDir := filepath.Join(dir, "blobs")
	require.NoError(t, os.WriteFile(path, []byte(`{"blob_backend":"local","local_blob_dir":"`+blobDir+`","verbose":true}`), 0o644))
	t.Cleanup(func() {
		configPath = ""
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", path, "examples", "list"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), "EXAMPLES", "verbose from the file selects the grouped summary")
	assert.Contains(t, out.String(), "No examples")
	assert.NotContains(t, out.String(), "no examples\n")
}
