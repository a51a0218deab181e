package server

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"notedrop/internal/logging"
	"notedrop/internal/notes"
	"notedrop/internal/store"
)

// noteID parses the {id} path value. Malformed ids read as note 0, which
// never exists.
func noteID(r *http.Request) int64 {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	list, err := s.notes.ListNotes(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "notes.html", struct{ Notes []store.Note }{list})
}

func (s *Server) handleDownloadForm(w http.ResponseWriter, r *http.Request) {
	n, err := s.notes.GetNote(r.Context(), noteID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "download.html", struct{ Note *store.Note }{n})
}

// handleDownloadConfirm logs the downloader and streams the payload. The
// record is kept even when the payload cannot be sent.
func (s *Server) handleDownloadConfirm(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	tr, err := s.notes.RecordDownload(r.Context(), notes.DownloadInput{
		NoteID:   noteID(r),
		Name:     r.PostFormValue("downname"),
		Subject:  r.PostFormValue("downsubject"),
		Phone:    r.PostFormValue("phone"),
		Roll:     r.PostFormValue("roll"),
		SourceIP: clientIP(r),
	})
	if err != nil {
		s.metrics.RecordDownloadError()
		s.writeError(w, r, err)
		return
	}
	defer func() { _ = tr.Body.Close() }()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", contentDisposition(tr.Note.OriginalName))
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, tr.Body)
	if err != nil {
		s.metrics.RecordDownloadError()
		logging.FromContext(r.Context(), s.log).Warn("download interrupted",
			"note_id", tr.Note.ID, "bytes", n, "err", err)
		return
	}
	s.metrics.RecordDownload(n, time.Since(start))
}

func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	rows, err := s.notes.DashboardSummary(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "dashboard.html", struct{ Notes []store.NoteSummary }{rows})
}

func (s *Server) handleNoteDownloads(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	rows, err := s.notes.DownloadsForNote(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "note_downloads.html", struct {
		NoteID    int64
		Downloads []store.Download
	}{id, rows})
}
