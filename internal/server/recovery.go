package server

import (
	"net/http"
	"strings"
)

func (s *Server) handleForgotForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "forgot.html", nil)
}

// handleForgotRequest shows the issued code on the page. There is no SMS
// delivery; the notifier only logs it.
func (s *Server) handleForgotRequest(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(r.PostFormValue("phone"))
	code, err := s.recovery.RequestOTP(r.Context(), phone)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.RecordOTPIssued()
	s.render(w, r, http.StatusOK, "otp_issued.html", struct{ Phone, Code string }{phone, code})
}

func (s *Server) handleForgotVerify(w http.ResponseWriter, r *http.Request) {
	err := s.recovery.VerifyAndReset(r.Context(),
		r.PostFormValue("phone"), r.PostFormValue("code"), r.PostFormValue("newPassword"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.RecordPasswordReset()
	s.render(w, r, http.StatusOK, "reset_done.html", nil)
}
