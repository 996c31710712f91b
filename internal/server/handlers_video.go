package server

import (
	"net/http"

	"github.com/jonathan/campaign-studio/internal/apperr"
	"github.com/jonathan/campaign-studio/internal/videoanalysis"
)

// handleAnalyzeVideo checks an uploaded video's soundtrack against an
// uploaded PDF of forbidden tracks.
func (s *Server) handleAnalyzeVideo(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyzer == nil {
		s.errorResponse(w, r, apperr.New(apperr.KindUnavailable, "video analysis is not configured"))
		return
	}
	if err := s.parseMultipart(w, r); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	video, err := readUpload(r, "video")
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	pdf, err := readUpload(r, "pdf")
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	challenge := r.FormValue("desafio")
	if challenge == "" || video == nil || pdf == nil {
		s.errorResponse(w, r, apperr.New(apperr.KindValidation, "missing desafio, video file, or PDF file"))
		return
	}

	result, err := s.deps.Analyzer.Analyze(r.Context(), videoanalysis.Input{
		Challenge: challenge,
		Video:     video.file(),
		PDF:       pdf.file(),
	})
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

func (u *upload) file() videoanalysis.File {
	return videoanalysis.File{Name: u.name, ContentType: u.contentType, Data: u.data}
}
