// Package examples manages the catalog of example images shown to users.
// Records live in one collection document; each record points at an image
// blob that is uploaded on create and removed on delete.
package examples

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonathan/campaign-studio/internal/apperr"
	"github.com/jonathan/campaign-studio/internal/blob"
	"github.com/jonathan/campaign-studio/internal/collection"
	"github.com/rs/zerolog"
)

const (
	// DataKey is the collection document holding every example.
	DataKey = "examples/data.json"
	// ImagePrefix is the key prefix for example images.
	ImagePrefix = "examples/images/"
)

// Example is one catalog entry.
type Example struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ImageURL    string `json:"imageUrl"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// CreateInput holds the fields of a new example and its image.
type CreateInput struct {
	Title       string `validate:"required"`
	Description string `validate:"required"`
	Category    string `validate:"required"`
	ImageName   string `validate:"required"`
	ImageType   string
	Image       []byte `validate:"min=1"`
}

// Service implements list, create and delete for examples.
type Service struct {
	blobs       blob.Store
	collections *collection.Store
	validator   *validator.Validate
	logger      zerolog.Logger
	newID       func() string
}

// NewService creates a Service. Images are written to blobs and records to
// collections.
func NewService(blobs blob.Store, collections *collection.Store, logger zerolog.Logger) *Service {
	return &Service{
		blobs:       blobs,
		collections: collections,
		validator:   validator.New(),
		logger:      logger,
		newID:       uuid.NewString,
	}
}

// List returns every example in insertion order.
func (s *Service) List(ctx context.Context) ([]Example, error) {
	records, err := s.collections.List(ctx, DataKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load examples: %w", err)
	}
	out := make([]Example, 0, len(records))
	for _, r := range records {
		out = append(out, fromRecord(r))
	}
	return out, nil
}

// Create uploads the image and appends a record pointing at it. If the
// record cannot be written the uploaded image is removed again.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Example, error) {
	in.Category = strings.TrimSpace(in.Category)
	if err := s.validator.Struct(in); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, validationMessage(err), err)
	}

	id := s.newID()
	imageKey := ImagePrefix + id + "-" + path.Base(in.ImageName)
	contentType := in.ImageType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	imageURL, err := s.blobs.Put(ctx, imageKey, in.Image, contentType, blob.Unconditional)
	if err != nil {
		return nil, fmt.Errorf("failed to upload example image: %w", err)
	}

	ex := Example{
		ID:          id,
		Title:       in.Title,
		ImageURL:    imageURL,
		Description: in.Description,
		Category:    in.Category,
	}
	if err := s.collections.Append(ctx, DataKey, toRecord(ex)); err != nil {
		if delErr := s.blobs.Delete(ctx, imageKey); delErr != nil {
			s.logger.Warn().Err(delErr).Str("key", imageKey).Msg("failed to clean up example image")
		}
		return nil, fmt.Errorf("failed to save example: %w", err)
	}

	s.logger.Info().Str("example_id", id).Str("category", ex.Category).Msg("example created")
	return &ex, nil
}

// Delete removes the example record and then its image. A failure to delete
// the image is logged and does not fail the call, since the record is
// already gone.
func (s *Service) Delete(ctx context.Context, id string) error {
	removed, err := s.collections.Remove(ctx, DataKey, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return apperr.New(apperr.KindNotFound, "example not found")
		}
		return fmt.Errorf("failed to delete example: %w", err)
	}

	ex := fromRecord(removed)
	imageKey, err := s.blobs.KeyFromURL(ex.ImageURL)
	if err != nil {
		s.logger.Warn().Err(err).Str("example_id", id).Str("image_url", ex.ImageURL).Msg("cannot derive image key, image left in place")
		return nil
	}
	if err := s.blobs.Delete(ctx, imageKey); err != nil {
		s.logger.Warn().Err(err).Str("example_id", id).Str("key", imageKey).Msg("failed to delete example image")
	}
	return nil
}

func toRecord(ex Example) collection.Record {
	return collection.NewRecord(ex.ID, map[string]any{
		"title":       ex.Title,
		"imageUrl":    ex.ImageURL,
		"description": ex.Description,
		"category":    ex.Category,
	})
}

func fromRecord(r collection.Record) Example {
	return Example{
		ID:          r.ID,
		Title:       r.String("title"),
		ImageURL:    r.String("imageUrl"),
		Description: r.String("description"),
		Category:    r.String("category"),
	}
}

func validationMessage(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
		// A missing image is reported ahead of missing text fields.
		for _, ve := range validationErrors {
			if ve.Field() == "Image" || ve.Field() == "ImageName" {
				return "no image provided"
			}
		}
		return "title, description, and category are required"
	}
	return "invalid example"
}
