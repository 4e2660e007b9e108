// Package session keeps the logged-in user of each browser session.
//
// Sessions live in a size-bounded LRU with a sliding TTL: every successful
// Get pushes the expiry forward. Handlers receive the Store explicitly and
// look the session up from the request cookie.
package session

import (
	"container/list"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
)

// CookieName is the name of the browser cookie holding the session id.
const CookieName = "bilancio_session"

// Session is the state kept for one logged-in browser.
type Session struct {
	ID        string
	User      core.User
	// Backend holds the cookies the backend set at login; they are sent
	// with every backend call made for this session.
	Backend   []*http.Cookie
	CreatedAt time.Time
}

type entry struct {
	session   Session
	expiresAt time.Time
}

// Store is an LRU of sessions with TTL eviction. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	now     func() time.Time

	stopCleanup chan struct{}
	cleanupDone chan struct{}
	stopOnce    sync.Once
}

// NewStore creates a store holding at most maxSize sessions, each expiring
// after ttl without use.
func NewStore(maxSize int, ttl time.Duration) *Store {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Store{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
}

// Create stores a new session for user and returns it.
func (s *Store) Create(user core.User, backend []*http.Cookie) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := Session{
		ID:        uuid.NewString(),
		User:      user,
		Backend:   backend,
		CreatedAt: now,
	}
	elem := s.lru.PushFront(&entry{session: sess, expiresAt: now.Add(s.ttl)})
	s.items[sess.ID] = elem

	if s.lru.Len() > s.maxSize {
		if oldest := s.lru.Back(); oldest != nil {
			s.removeElement(oldest)
		}
	}
	return sess
}

// Get returns the session for id and extends its expiry.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[id]
	if !ok {
		return Session{}, false
	}
	e := elem.Value.(*entry)
	now := s.now()
	if now.After(e.expiresAt) {
		s.removeElement(elem)
		return Session{}, false
	}
	e.expiresAt = now.Add(s.ttl)
	s.lru.MoveToFront(elem)
	return e.session, true
}

// Delete removes the session, if present.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[id]; ok {
		s.removeElement(elem)
	}
}

func (s *Store) removeElement(elem *list.Element) {
	e := elem.Value.(*entry)
	delete(s.items, e.session.ID)
	s.lru.Remove(elem)
}

// CleanExpired removes all expired sessions and returns how many were removed.
func (s *Store) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var toRemove []*list.Element
	for elem := s.lru.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*entry).expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		s.removeElement(elem)
	}
	return len(toRemove)
}

// Len returns the number of stored sessions, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// StartCleanup runs CleanExpired every interval until Stop is called.
func (s *Store) StartCleanup(interval time.Duration, onClean func(removed int)) {
	s.mu.Lock()
	if s.stopCleanup != nil {
		s.mu.Unlock()
		return
	}
	s.stopCleanup = make(chan struct{})
	s.cleanupDone = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.cleanupDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := s.CleanExpired(); removed > 0 && onClean != nil {
					onClean(removed)
				}
			case <-s.stopCleanup:
				return
			}
		}
	}()
}

// Stop ends the cleanup goroutine, if running.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		stop, done := s.stopCleanup, s.cleanupDone
		s.mu.Unlock()
		if stop != nil {
			close(stop)
			<-done
		}
	})
}

// FromRequest resolves the session referenced by the request cookie.
func (s *Store) FromRequest(r *http.Request) (Session, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return Session{}, false
	}
	return s.Get(c.Value)
}

// SetCookie writes the session cookie.
func SetCookie(w http.ResponseWriter, sess Session, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// TTL returns the configured idle timeout.
func (s *Store) TTL() time.Duration { return s.ttl }
