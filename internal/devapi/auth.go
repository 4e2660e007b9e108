package devapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

// SessionCookie carries the backend session token.
const SessionCookie = "bilancio_api_session"

type userKey struct{}

func (s *Server) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.pwCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// startSession stores a new session for user and sets its cookie.
func (s *Server) startSession(ctx context.Context, w http.ResponseWriter, user core.User) error {
	token := uuid.NewString()
	expires := s.now().Add(s.sessionTTL)
	if err := s.repo.CreateSession(ctx, token, user.ID, expires); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	})
}

// requireUser answers 401 unless the request carries a live session.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || cookie.Value == "" {
			writeHTTPError(w, http.StatusUnauthorized, msgNotAuthenticated)
			return
		}
		user, err := s.repo.SessionUser(r.Context(), cookie.Value)
		if err != nil {
			log.FromContext(r.Context()).DebugContext(r.Context(), "Session rejected", log.FieldError, err)
			clearSessionCookie(w)
			writeHTTPError(w, http.StatusUnauthorized, msgNotAuthenticated)
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(ctx context.Context) core.User {
	user, _ := ctx.Value(userKey{}).(core.User)
	return user
}
