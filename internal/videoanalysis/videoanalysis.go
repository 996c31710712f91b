// Package videoanalysis checks a campaign video's soundtrack against a PDF
// of forbidden tracks.
package videoanalysis

import (
	"context"
	"net/http"
	"strings"

	"github.com/jonathan/campaign-studio/internal/apperr"
	"github.com/jonathan/campaign-studio/internal/llm"
	"github.com/jonathan/campaign-studio/internal/prompts"
	"github.com/rs/zerolog"
)

// Input is the challenge text and the two uploaded files.
type Input struct {
	Challenge string
	Video     File
	PDF       File
}

// File is one uploaded file held in memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Result is the model's HTML report.
type Result struct {
	Analysis string `json:"analysis"`
}

// Service sends the video and the PDF to the model in one call.
type Service struct {
	model  llm.Client
	logger zerolog.Logger
}

// NewService creates a Service. model may be nil, in which case every call
// fails with an unavailable error.
func NewService(model llm.Client, logger zerolog.Logger) *Service {
	return &Service{model: model, logger: logger}
}

// Analyze returns the soundtrack report for in.
func (s *Service) Analyze(ctx context.Context, in Input) (*Result, error) {
	if strings.TrimSpace(in.Challenge) == "" || len(in.Video.Data) == 0 || len(in.PDF.Data) == 0 {
		return nil, apperr.New(apperr.KindValidation, "missing desafio, video file, or PDF file")
	}
	if s.model == nil {
		return nil, apperr.New(apperr.KindUnavailable, "video analysis is not configured")
	}

	instructions, err := prompts.VideoAnalysis(in.Challenge)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "video analysis prompt missing", err)
	}

	analysis, err := s.model.AnalyzeMedia(ctx, instructions, []llm.Media{
		{Data: in.Video.Data, MIMEType: mimeType(in.Video, "video/mp4")},
		{Data: in.PDF.Data, MIMEType: mimeType(in.PDF, "application/pdf")},
	}, llm.TierPrecise)
	if err != nil {
		s.logger.Error().Err(err).Str("video", in.Video.Name).Str("pdf", in.PDF.Name).Msg("video analysis failed")
		return nil, apperr.New(apperr.KindUnavailable, "video analysis failed")
	}

	s.logger.Info().
		Str("video", in.Video.Name).
		Str("challenge", in.Challenge).
		Int("video_bytes", len(in.Video.Data)).
		Int("pdf_bytes", len(in.PDF.Data)).
		Msg("video analysed")
	return &Result{Analysis: llm.StripCodeFences(analysis)}, nil
}

// mimeType prefers the declared type, then a sniffed type of the same
// family as fallback, then fallback.
func mimeType(f File, fallback string) string {
	if f.ContentType != "" && f.ContentType != "application/octet-stream" {
		return f.ContentType
	}
	sniffed := strings.SplitN(http.DetectContentType(f.Data), ";", 2)[0]
	family := fallback[:strings.Index(fallback, "/")+1]
	if sniffed != "application/octet-stream" && strings.HasPrefix(sniffed, family) {
		return sniffed
	}
	return fallback
}
