package http

import (
	"net/http"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/session"
)

// handleIndex renders the layout. The sidebar menu depends on whether the
// browser has a live session.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var data pageData
	if sess, ok := s.sessions.FromRequest(r); ok {
		user := sess.User
		data.User = &user
		accounts, err := s.backend(sess.Backend).ListAccounts(r.Context())
		if err != nil {
			_, data.AccountsError = s.failure(r, &sess, "list accounts", err)
		} else {
			data.Accounts = toAccountViews(accounts)
		}
	}
	s.writeView(w, r, NewHTMXResponse(), "index.html", data)
}

func (s *Server) handleLoginModal(w http.ResponseWriter, r *http.Request) {
	s.writeView(w, r, NewHTMXResponse(), "modal_login", nil)
}

func (s *Server) handleRegisterModal(w http.ResponseWriter, r *http.Request) {
	s.writeView(w, r, NewHTMXResponse(), "modal_register", nil)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	email := formValue(r.PostForm, "email")
	password := r.PostForm.Get("password")
	if email == "" || password == "" {
		UnprocessableEntityError("Inserisci email e password").Write(w)
		return
	}

	user, cookies, err := s.backend(nil).Login(r.Context(), email, password)
	if err != nil {
		s.inlineError(w, r, nil, log.OpLogin, err)
		return
	}
	s.startSession(w, r, log.OpLogin, user.ID.String(), s.sessions.Create(user, cookies))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	reg := parseRegistration(r.PostForm)
	if err := reg.Validate(); err != nil {
		UnprocessableEntityError(core.ValidationMessage(err)).Write(w)
		return
	}

	user, cookies, err := s.backend(nil).Register(r.Context(), reg)
	if err != nil {
		s.inlineError(w, r, nil, log.OpRegister, err)
		return
	}
	s.startSession(w, r, log.OpRegister, user.ID.String(), s.sessions.Create(user, cookies))
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, op, userID string, sess session.Session) {
	session.SetCookie(w, sess, s.sessions.TTL(), s.cookieSecure)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Session started",
		log.FieldOperation, op,
		log.FieldUserID, userID)
	NewHTMXResponse().
		TriggerModalClose().
		TriggerAppReset().
		Write(w)
}

// handleLogout ends the backend session first; the local session is only
// dropped once the backend confirmed.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, sess session.Session, backend Backend) {
	if err := backend.Logout(r.Context()); err != nil {
		s.notifyError(w, r, &sess, log.OpLogout, err)
		return
	}
	s.sessions.Delete(sess.ID)
	session.ClearCookie(w)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Session ended",
		log.FieldOperation, log.OpLogout,
		log.FieldUserID, sess.User.ID.String())
	NewHTMXResponse().TriggerAppReset().Write(w)
}
