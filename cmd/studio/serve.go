package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/campaign-studio/internal/config"
	"github.com/jonathan/campaign-studio/internal/imageprompt"
	"github.com/jonathan/campaign-studio/internal/server"
	"github.com/jonathan/campaign-studio/internal/server/ratelimit"
	"github.com/jonathan/campaign-studio/internal/videoanalysis"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start an HTTP server that exposes login, image generation, video analysis and the examples catalog.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to PORT or 3000)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath, verbose)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	logger := newLogger(os.Stderr, cfg.Verbose)

	authCfg, err := config.NewAuthConfig()
	if err != nil {
		return fmt.Errorf("failed to load auth config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blobs, closeBlobs, err := openBlobStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBlobs()

	orchestrator := newOrchestrator(cfg, logger)
	if orchestrator == nil {
		logger.Warn().Msg("FAL_KEY not set, image generation is disabled")
	}

	// Nil services disable /generate-prompt-image and /analyze-video.
	var (
		prompts  *imageprompt.Service
		analyzer *videoanalysis.Service
	)
	gemini, err := newGemini(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if gemini != nil {
		defer func() { _ = gemini.Close() }()
		prompts = imageprompt.NewService(blobs, gemini, logger)
		analyzer = videoanalysis.NewService(gemini, logger)
	} else {
		logger.Warn().Msg("GEMINI_API_KEY not set, prompt from image and video analysis are disabled")
	}

	srv, err := server.New(server.Config{Port: cfg.Port}, server.Deps{
		Blobs:      blobs,
		Examples:   newExamplesService(blobs, cfg, logger),
		Generation: orchestrator,
		Prompts:    prompts,
		Analyzer:   analyzer,
		Auth:       authCfg,
		RateLimit:  ratelimit.LoadConfig(),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}
