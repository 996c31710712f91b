package server

import (
	"net/http"

	"github.com/jonathan/campaign-studio/internal/examples"
)

// handleListExamples returns the whole catalog, oldest first.
func (s *Server) handleListExamples(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Examples.List(r.Context())
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, list)
}

// handleCreateExample stores the uploaded image and appends the example.
func (s *Server) handleCreateExample(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	upload, err := readUpload(r, "image")
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	in := examples.CreateInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
	}
	if upload != nil {
		in.ImageName = upload.name
		in.ImageType = upload.contentType
		in.Image = upload.data
	}

	example, err := s.deps.Examples.Create(r.Context(), in)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"success": true, "example": example})
}

// handleDeleteExample removes the example and its image.
func (s *Server) handleDeleteExample(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Examples.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]bool{"success": true})
}
