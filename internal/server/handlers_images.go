package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/jonathan/campaign-studio/internal/apperr"
	"github.com/jonathan/campaign-studio/internal/imageprompt"
	"github.com/jonathan/campaign-studio/internal/jobs"
)

// handleGenerateImage submits a generation request and returns its ID
// without waiting.
func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Generation == nil {
		s.errorResponse(w, r, apperr.New(apperr.KindUnavailable, "image generation is not configured"))
		return
	}

	var params jobs.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.errorResponse(w, r, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}
	if err := s.validator.Struct(params); err != nil {
		s.errorResponse(w, r, apperr.New(apperr.KindValidation, extractValidationErrors(err)))
		return
	}

	handle, err := s.deps.Generation.Submit(r.Context(), params)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, handle)
}

// handleImageStatus polls the provider once for requestId.
func (s *Server) handleImageStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Generation == nil {
		s.errorResponse(w, r, apperr.New(apperr.KindUnavailable, "image generation is not configured"))
		return
	}

	status, err := s.deps.Generation.Status(r.Context(), r.PathValue("requestId"))
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, status)
}

// handlePromptFromImage turns an uploaded reference image into a prompt.
func (s *Server) handlePromptFromImage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Prompts == nil {
		s.errorResponse(w, r, apperr.New(apperr.KindUnavailable, "image description is not configured"))
		return
	}
	if err := s.parseMultipart(w, r); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	upload, err := readUpload(r, "image")
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if upload == nil {
		s.errorResponse(w, r, apperr.New(apperr.KindValidation, "no image provided"))
		return
	}

	result, err := s.deps.Prompts.FromImage(r.Context(), imageprompt.Input{
		Name:        upload.name,
		ContentType: upload.contentType,
		Data:        upload.data,
		Note:        r.FormValue("note"),
	})
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

type upload struct {
	name        string
	contentType string
	data        []byte
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.New(apperr.KindValidation, "upload is too large")
		}
		return apperr.New(apperr.KindValidation, "expected multipart form data")
	}
	return nil
}

// readUpload returns the file in field, or nil when the form has none.
func readUpload(r *http.Request, field string) (*upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "could not read uploaded file", err)
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "could not read uploaded file", err)
	}
	return &upload{
		name:        header.Filename,
		contentType: header.Header.Get("Content-Type"),
		data:        data,
	}, nil
}
