package server

import (
	"bytes"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"
)

// handleFile serves a stored blob. Backends without public object URLs
// point their references here.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	obj, err := s.deps.Blobs.Get(r.Context(), key)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	w.Header().Set("ETag", entityTag(obj.Version))
	w.Header().Set("Cache-Control", "public, max-age=300")
	http.ServeContent(w, r, path.Base(key), time.Time{}, bytes.NewReader(obj.Data))
}

// entityTag quotes a blob version unless it already is an entity tag, as
// S3 ETags are.
func entityTag(version string) string {
	if strings.HasPrefix(version, `"`) || strings.HasPrefix(version, `W/"`) {
		return version
	}
	return strconv.Quote(version)
}
