package server

import (
	"net/http"

	"notedrop/internal/apperr"
	"notedrop/internal/logging"
)

// writeError maps a service error to a plain text reply. Internal failures
// are logged with the request id and never shown to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context(), s.log).Error("request failed", "path", r.URL.Path, "err", err)
	}
	http.Error(w, apperr.Message(err), status)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logging.FromContext(r.Context(), s.log).Error(msg, "path", r.URL.Path, "err", err)
	http.Error(w, "server error", http.StatusInternalServerError)
}
