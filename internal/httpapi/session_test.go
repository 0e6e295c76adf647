package httpapi_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharifboss/bookhaven/internal/cart"
	"github.com/sharifboss/bookhaven/internal/checkout"
	"github.com/sharifboss/bookhaven/internal/httpapi"
)

func newTestSessions(t *testing.T) *httpapi.Sessions {
	t.Helper()

	log := logrus.New()
	log.SetOutput(testWriter{t})

	return httpapi.NewSessions(
		func(string) cart.Slot { return cart.NewMemorySlot() },
		func(store *cart.Store) *checkout.Flow {
			return checkout.NewFlow(store, &fakeCheckoutBackend{}, &fakeCheckoutProvider{}, log)
		},
		log,
	)
}

func requestWithCookie(id string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	if id != "" {
		r.AddCookie(&http.Cookie{Name: httpapi.SessionCookie, Value: id})
	}
	return r
}

func TestSessions(t *testing.T) {
	t.Run("reuses session for the same cookie", func(t *testing.T) {
		sessions := newTestSessions(t)

		sess, release := sessions.Acquire(httptest.NewRecorder(), requestWithCookie("visitor-1"))
		release()
		again, release := sessions.Acquire(httptest.NewRecorder(), requestWithCookie("visitor-1"))
		release()

		assert.Same(t, sess, again)
		assert.Equal(t, 1, sessions.Len())
	})

	t.Run("mints a cookie for first-time visitors", func(t *testing.T) {
		sessions := newTestSessions(t)

		w := httptest.NewRecorder()
		sess, release := sessions.Acquire(w, requestWithCookie(""))
		release()

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, httpapi.SessionCookie, cookies[0].Name)
		assert.Equal(t, sess.ID, cookies[0].Value)
	})

	t.Run("forged cookie flood stays under the cap", func(t *testing.T) {
		sessions := newTestSessions(t)
		sessions.SetLimits(0, 16)

		// Every request carries a cookie value this server never issued.
		for i := 0; i < 500; i++ {
			_, release := sessions.Acquire(httptest.NewRecorder(), requestWithCookie(fmt.Sprintf("forged-%d", i)))
			release()
		}

		assert.LessOrEqual(t, sessions.Len(), 16)
	})

	t.Run("cap evicts the least recently seen session", func(t *testing.T) {
		sessions := newTestSessions(t)
		sessions.SetLimits(0, 2)

		_, release := sessions.Acquire(httptest.NewRecorder(), requestWithCookie("old"))
		release()
		_, release = sessions.Acquire(httptest.NewRecorder(), requestWithCookie("mid"))
		release()

		// Touch "old" so "mid" becomes the eviction candidate.
		_, release = sessions.Acquire(httptest.NewRecorder(), requestWithCookie("old"))
		release()

		_, release = sessions.Acquire(httptest.NewRecorder(), requestWithCookie("new"))
		release()

		assert.Equal(t, 2, sessions.Len())
		old, release := sessions.Acquire(httptest.NewRecorder(), requestWithCookie("old"))
		release()
		assert.Equal(t, "old", old.ID)
		assert.Equal(t, 2, sessions.Len())
	})

	t.Run("idle sessions are swept", func(t *testing.T) {
		sessions := newTestSessions(t)
		sessions.SetLimits(20*time.Millisecond, 0)

		first, release := sessions.Acquire(httptest.NewRecorder(), requestWithCookie("sleepy"))
		release()
		require.Equal(t, 1, sessions.Len())

		time.Sleep(50 * time.Millisecond)

		// Any later lookup triggers the sweep.
		_, release = sessions.Acquire(httptest.NewRecorder(), requestWithCookie("awake"))
		release()

		assert.Equal(t, 1, sessions.Len())
		again, release := sessions.Acquire(httptest.NewRecorder(), requestWithCookie("sleepy"))
		release()
		assert.NotSame(t, first, again, "idle session should have been replaced")
	})
}
