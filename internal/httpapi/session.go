package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sharifboss/bookhaven/internal/cart"
	"github.com/sharifboss/bookhaven/internal/checkout"
)

// SessionCookie carries the cart session id. The cart belongs to the browser
// session, not the authenticated user, so browsing and carting work before
// login.
const SessionCookie = "bh_session"

// DefaultSessionIdle bounds how long an untouched session stays in memory.
// The durable slot (Redis) outlives it: a returning cookie re-hydrates a
// fresh Session from the slot.
const DefaultSessionIdle = 30 * time.Minute

// DefaultMaxSessions caps the in-memory registry. Cookies are
// client-supplied, so without a cap a flood of forged values would grow the
// map faster than the idle sweep can drain it.
const DefaultMaxSessions = 8192

// Session is one browser's cart plus its checkout flow. Handlers serialize
// access through mu: the store itself is single-writer by contract.
type Session struct {
	ID    string
	Store *cart.Store
	Flow  *checkout.Flow

	mu       sync.Mutex
	lastSeen time.Time
}

// Sessions hands out per-session cart stores. Each session gets its own
// durable slot (keyed by session id) and its own checkout flow, so the
// in-flight guard is scoped to the session it protects.
//
// The registry is a cache, not the source of truth: entries idle longer than
// maxIdle are evicted on the next lookup, so a flood of forged cookie values
// cannot grow it without bound.
type Sessions struct {
	slots   func(sessionID string) cart.Slot
	newFlow func(store *cart.Store) *checkout.Flow
	log     logrus.FieldLogger

	maxIdle     time.Duration
	maxSessions int
	now         func() time.Time

	mu        sync.Mutex
	sessions  map[string]*Session
	nextSweep time.Time
}

func NewSessions(slots func(sessionID string) cart.Slot, newFlow func(store *cart.Store) *checkout.Flow, log logrus.FieldLogger) *Sessions {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sessions{
		slots:       slots,
		newFlow:     newFlow,
		log:         log,
		maxIdle:     DefaultSessionIdle,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
}

// SetLimits overrides the idle timeout and the registry cap. Zero values keep
// the current setting.
func (s *Sessions) SetLimits(maxIdle time.Duration, maxSessions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxIdle > 0 {
		s.maxIdle = maxIdle
	}
	if maxSessions > 0 {
		s.maxSessions = maxSessions
	}
}

// Acquire returns the request's session, minting a cookie for first-time
// visitors, and locks it for the duration of the handler. Callers must call
// the returned release func.
func (s *Sessions) Acquire(w http.ResponseWriter, r *http.Request) (*Session, func()) {
	id := ""
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		id = c.Value
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	sess := s.lookup(id, r)
	sess.mu.Lock()
	return sess, sess.mu.Unlock
}

// Len reports how many sessions are currently held in memory.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Sessions) lookup(id string, r *http.Request) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	if sess, ok := s.sessions[id]; ok {
		sess.lastSeen = now
		return sess
	}

	if len(s.sessions) >= s.maxSessions {
		s.evictOldestLocked(len(s.sessions) - s.maxSessions + 1)
	}

	store := cart.NewStore(s.slots(id), s.log.WithField("session", id))
	store.Hydrate(r.Context())

	sess := &Session{ID: id, Store: store, Flow: s.newFlow(store), lastSeen: now}
	// Checkout runs outside the session lock (so a second submit gets the
	// flow's in-flight rejection instead of queueing); the flow takes the
	// same lock whenever it touches the store.
	sess.Flow.UseStoreLock(&sess.mu)
	s.sessions[id] = sess
	return sess
}

// sweepLocked drops sessions idle past maxIdle. Runs at most once per sweep
// interval so a hot path never scans the whole map on every request. A
// session with a confirmed payment awaiting order submission is kept until
// it resolves.
func (s *Sessions) sweepLocked(now time.Time) {
	if now.Before(s.nextSweep) {
		return
	}
	s.nextSweep = now.Add(s.maxIdle / 4)

	evicted := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) < s.maxIdle {
			continue
		}
		if sess.Flow.PendingSubmission() {
			continue
		}
		delete(s.sessions, id)
		evicted++
	}
	if evicted > 0 {
		s.log.WithField("evicted", evicted).Debug("session registry sweep")
	}
}

// evictOldestLocked removes the n least recently seen sessions to make room
// under the cap. Sessions with a confirmed payment awaiting submission are
// passed over while any other candidate remains.
func (s *Sessions) evictOldestLocked(n int) {
	for ; n > 0; n-- {
		oldestID := ""
		var oldest time.Time
		for id, sess := range s.sessions {
			if sess.Flow.PendingSubmission() {
				continue
			}
			if oldestID == "" || sess.lastSeen.Before(oldest) {
				oldestID = id
				oldest = sess.lastSeen
			}
		}
		if oldestID == "" {
			return
		}
		delete(s.sessions, oldestID)
	}
}
