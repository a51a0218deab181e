package server

import (
	"net/http"

	"notedrop/internal/apperr"
	"notedrop/internal/auth"
)

func (s *Server) ownerSession(r *http.Request) (*auth.Session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	sess, ok := s.auth.Session(r.Context(), c.Value)
	if !ok || !sess.Owner {
		return nil, false
	}
	return sess, true
}

// handleOwner shows the owner upload page to a logged-in owner, the setup
// form before an owner exists, and the login form otherwise.
func (s *Server) handleOwner(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.ownerSession(r); ok {
		s.render(w, r, http.StatusOK, "owner_upload.html", struct{ Label string }{s.ownerLabel()})
		return
	}
	configured, err := s.auth.OwnerConfigured(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !configured {
		s.render(w, r, http.StatusOK, "owner_setup.html", nil)
		return
	}
	s.render(w, r, http.StatusOK, "owner_login.html", nil)
}

func (s *Server) handleOwnerSetup(w http.ResponseWriter, r *http.Request) {
	if _, err := s.auth.SetupOwner(r.Context(), r.PostFormValue("phone"), r.PostFormValue("password")); err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, "/owner", http.StatusSeeOther)
}

func (s *Server) handleOwnerLogin(w http.ResponseWriter, r *http.Request) {
	sess, err := s.auth.Login(r.Context(), r.PostFormValue("password"), s.requesterIP(r))
	if err != nil {
		if !isValidation(err) {
			s.metrics.RecordLoginAttempt(false)
		}
		s.writeError(w, r, err)
		return
	}
	s.metrics.RecordLoginAttempt(true)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/owner", http.StatusSeeOther)
}

func (s *Server) handleOwnerLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.auth.Logout(r.Context(), c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func isValidation(err error) bool {
	return apperr.HTTPStatus(err) == http.StatusBadRequest
}
