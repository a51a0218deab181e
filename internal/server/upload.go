package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"notedrop/internal/notes"
)

// Form parts beyond this stay on disk while parsing.
const multipartMemory = 1 << 20

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "index.html", nil)
}

func (s *Server) handleUploadForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "upload.html", nil)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.storeUpload(w, r, "") {
		return
	}
	http.Redirect(w, r, "/notes", http.StatusSeeOther)
}

func (s *Server) handleOwnerUpload(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.ownerSession(r); !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if !s.storeUpload(w, r, s.ownerLabel()) {
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) ownerLabel() string {
	return fmt.Sprintf("%s (Owner)", s.cfg.OwnerName)
}

// storeUpload parses the multipart form and hands the file to the notes
// service. A non-empty label overrides the "uploader" field. It reports
// whether the note was stored; on false a reply has been written.
func (s *Server) storeUpload(w http.ResponseWriter, r *http.Request, label string) bool {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.metrics.RecordUploadError()
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "Invalid upload form", http.StatusBadRequest)
		return false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	in := notes.UploadInput{
		Subject:       r.FormValue("subject"),
		UploaderLabel: r.FormValue("uploader"),
	}
	if label != "" {
		in.UploaderLabel = label
	}

	file, hdr, err := r.FormFile("noteFile")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		s.metrics.RecordUploadError()
		http.Error(w, "Invalid upload form", http.StatusBadRequest)
		return false
	default:
		defer func() { _ = file.Close() }()
		in.File = file
		in.OriginalName = hdr.Filename
	}

	if _, err := s.notes.UploadNote(r.Context(), in); err != nil {
		s.metrics.RecordUploadError()
		s.writeError(w, r, err)
		return false
	}

	var size int64
	if hdr != nil {
		size = hdr.Size
	}
	s.metrics.RecordUpload(size, time.Since(start))
	return true
}
