package session

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(maxSize int, ttl time.Duration) (*Store, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore(maxSize, ttl)
	s.now = clock.Now
	return s, clock
}

func TestCreateAndGet(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)
	backend := []*http.Cookie{{Name: "PHPSESSID", Value: "b1"}}
	sess := s.Create(core.User{ID: "1", Name: "Anna"}, backend)
	require.NotEmpty(t, sess.ID)

	got, ok := s.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, "Anna", got.User.Name)
	assert.Equal(t, backend, got.Backend)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestSlidingExpiry(t *testing.T) {
	s, clock := newTestStore(10, time.Hour)
	sess := s.Create(core.User{ID: "1"}, nil)

	clock.Advance(50 * time.Minute)
	_, ok := s.Get(sess.ID)
	require.True(t, ok, "session should still be alive")

	clock.Advance(50 * time.Minute)
	_, ok = s.Get(sess.ID)
	require.True(t, ok, "Get should have extended the expiry")

	clock.Advance(61 * time.Minute)
	_, ok = s.Get(sess.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	s, _ := newTestStore(2, time.Hour)
	a := s.Create(core.User{ID: "a"}, nil)
	b := s.Create(core.User{ID: "b"}, nil)
	_, _ = s.Get(a.ID)
	c := s.Create(core.User{ID: "c"}, nil)

	_, ok := s.Get(b.ID)
	assert.False(t, ok, "b was least recently used")
	_, ok = s.Get(a.ID)
	assert.True(t, ok)
	_, ok = s.Get(c.ID)
	assert.True(t, ok)
}

func TestDeleteAndCleanExpired(t *testing.T) {
	s, clock := newTestStore(10, time.Minute)
	a := s.Create(core.User{ID: "a"}, nil)
	s.Create(core.User{ID: "b"}, nil)
	s.Delete(a.ID)
	assert.Equal(t, 1, s.Len())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, s.CleanExpired())
	assert.Equal(t, 0, s.Len())
}

func TestFromRequest(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)
	sess := s.Create(core.User{ID: "1"}, nil)

	rec := httptest.NewRecorder()
	SetCookie(rec, sess, time.Hour, false)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	got, ok := s.FromRequest(req)
	require.True(t, ok)
	assert.Equal(t, sess.ID, got.ID)

	_, ok = s.FromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}

func TestStartStopCleanup(t *testing.T) {
	s := NewStore(10, time.Millisecond)
	s.Create(core.User{ID: "1"}, nil)

	removed := make(chan int, 1)
	s.StartCleanup(5*time.Millisecond, func(n int) {
		select {
		case removed <- n:
		default:
		}
	})
	select {
	case n := <-removed:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup did not run")
	}
	s.Stop()
	s.Stop()
}
