package requesttime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pdftrack/pkg/requestcontext"
)

func TestClock_OneInstantPerRequest(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		return fixed.Add(time.Duration(calls) * time.Second)
	}

	var first, second time.Time
	h := Clock(clock)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first = requestcontext.Now(r.Context())
		second = requestcontext.Now(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/track", nil))

	assert.Equal(t, 1, calls)
	assert.Equal(t, fixed.Add(time.Second), first)
	assert.Equal(t, first, second)
}

func TestMiddleware_UsesWallClock(t *testing.T) {
	before := time.Now()
	var got time.Time
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = requestcontext.Now(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.False(t, got.Before(before))
	assert.False(t, got.After(time.Now()))
}
