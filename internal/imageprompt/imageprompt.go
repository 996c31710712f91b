// Package imageprompt turns an uploaded reference image into a text prompt
// for the image generator.
package imageprompt

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/jonathan/campaign-studio/internal/apperr"
	"github.com/jonathan/campaign-studio/internal/blob"
	"github.com/jonathan/campaign-studio/internal/llm"
	"github.com/jonathan/campaign-studio/internal/prompts"
	"github.com/rs/zerolog"
)

// KeyPrefix is where uploaded reference images are kept.
const KeyPrefix = "image-to-prompt/"

// Input is one reference image and an optional instruction from the user.
type Input struct {
	Name        string
	ContentType string
	Data        []byte
	Note        string
}

// Result is the generated prompt and the stored reference image.
type Result struct {
	Prompt   string `json:"prompt"`
	ImageURL string `json:"imageUrl"`
}

// Service stores the reference image and asks the model to describe it.
type Service struct {
	blobs  blob.Store
	model  llm.Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a Service. model may be nil, in which case every call
// fails with an unavailable error.
func NewService(blobs blob.Store, model llm.Client, logger zerolog.Logger) *Service {
	return &Service{blobs: blobs, model: model, logger: logger, now: time.Now}
}

// FromImage uploads in to KeyPrefix and returns the model's description.
func (s *Service) FromImage(ctx context.Context, in Input) (*Result, error) {
	if len(in.Data) == 0 {
		return nil, apperr.New(apperr.KindValidation, "no image provided")
	}
	if s.model == nil {
		return nil, apperr.New(apperr.KindUnavailable, "image description is not configured")
	}

	contentType := in.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(in.Data)
	}
	name := path.Base(in.Name)
	if name == "." || name == "/" {
		name = "image"
	}
	key := KeyPrefix + strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + name

	imageURL, err := s.blobs.Put(ctx, key, in.Data, contentType, blob.Unconditional)
	if err != nil {
		return nil, fmt.Errorf("failed to upload reference image: %w", err)
	}

	instructions, err := prompts.ImageDescription(in.Note)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "image description prompt missing", err)
	}

	prompt, err := s.model.DescribeImage(ctx, instructions, in.Data, contentType, llm.TierStandard)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("image description failed")
		return nil, apperr.New(apperr.KindUnavailable, "image description failed")
	}

	s.logger.Info().Str("key", key).Int("prompt_len", len(prompt)).Msg("image described")
	return &Result{Prompt: prompt, ImageURL: imageURL}, nil
}
