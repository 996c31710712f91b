package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jonathan/campaign-studio/internal/blob"
	"github.com/jonathan/campaign-studio/internal/collection"
	"github.com/jonathan/campaign-studio/internal/config"
	"github.com/jonathan/campaign-studio/internal/examples"
	"github.com/jonathan/campaign-studio/internal/generation"
	"github.com/jonathan/campaign-studio/internal/jobs"
	"github.com/jonathan/campaign-studio/internal/llm"
	"github.com/rs/zerolog"
)

// loadConfig reads the environment, overlays the --config file when given,
// and validates the result.
func loadConfig(path string, verboseFlag bool) (*config.Config, error) {
	envCfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	cfg := *envCfg
	if path != "" {
		fileCfg, err := config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = fileCfg.MergeWithDefaults(*envCfg)
	}
	cfg.Verbose = cfg.Verbose || verboseFlag

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// newLogger returns a human-readable console logger.
func newLogger(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().
		Logger()
}

// openBlobStore builds the configured backend. The returned func releases
// its resources.
func openBlobStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (blob.Store, func(), error) {
	noop := func() {}
	switch cfg.BlobBackend {
	case config.BackendS3:
		store, err := blob.NewS3Store(ctx, blob.S3Config{
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.AWSEndpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Bucket:          cfg.AWSBucket,
			UsePathStyle:    cfg.AWSUsePathStyle,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open s3 storage: %w", err)
		}
		logger.Info().Str("bucket", cfg.AWSBucket).Str("region", cfg.AWSRegion).Msg("using s3 blob storage")
		return store, noop, nil

	case config.BackendPostgres:
		store, err := blob.OpenPostgres(ctx, cfg.DatabaseURL, cfg.PublicBaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		logger.Info().Msg("using postgres blob storage")
		return store, store.Close, nil

	case config.BackendLocal:
		store, err := blob.NewLocalFS(cfg.LocalBlobDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open local storage: %w", err)
		}
		logger.Info().Str("dir", cfg.LocalBlobDir).Msg("using local blob storage")
		return store, noop, nil

	case config.BackendMemory:
		logger.Warn().Msg("using in-memory blob storage, data is lost on exit")
		return blob.NewMemory(cfg.PublicBaseURL), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

// newExamplesService wires the catalog over blobs.
func newExamplesService(blobs blob.Store, cfg *config.Config, logger zerolog.Logger) *examples.Service {
	collections := collection.New(blobs,
		collection.WithMaxAttempts(cfg.CollectionWriteAttempts),
		collection.WithLogger(logger),
	)
	return examples.NewService(blobs, collections, logger)
}

// newOrchestrator returns nil when no fal key is configured.
func newOrchestrator(cfg *config.Config, logger zerolog.Logger) *generation.Orchestrator {
	if cfg.RequireFal() != nil {
		return nil
	}
	client := jobs.NewFalClient(jobs.FalConfig{
		APIKey:  cfg.FalKey,
		Model:   cfg.FalModel,
		BaseURL: cfg.FalBaseURL,
	})
	return generation.NewOrchestrator(client, logger)
}

// newGemini returns nil when no Gemini key is configured. GEMINI_MODEL
// replaces the model of every tier.
func newGemini(ctx context.Context, cfg *config.Config) (*llm.GeminiClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, nil
	}
	llmCfg := llm.DefaultConfig()
	if cfg.GeminiModel != "" {
		llmCfg = llmCfg.WithModel(llm.TierStandard, cfg.GeminiModel).WithModel(llm.TierPrecise, cfg.GeminiModel)
	}
	return llm.NewGeminiClient(ctx, llmCfg, cfg.GeminiAPIKey)
}

// pollPolicy converts the configured poll budget.
func pollPolicy(cfg *config.Config) generation.PollPolicy {
	return generation.PollPolicy{
		Interval:    cfg.JobPollInterval.Duration,
		MaxAttempts: cfg.JobPollMaxAttempts,
		MaxDuration: cfg.JobPollTimeout.Duration,
	}
}
