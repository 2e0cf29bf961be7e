package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketingops/sfmc-inventory/pkg/ratelimit"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

// fakeTokens is a TokenSource that counts invalidations.
type fakeTokens struct {
	token        atomic.Value
	invalidated  atomic.Int32
}

func newFakeTokens(token string) *fakeTokens {
	f := &fakeTokens{}
	f.token.Store(token)
	return f
}

func (f *fakeTokens) Token(ctx context.Context) (string, error) {
	return f.token.Load().(string), nil
}

func (f *fakeTokens) Invalidate() {
	f.invalidated.Add(1)
	f.token.Store("refreshed-token")
}

func fastBackoff(t *testing.T) {
	t.Helper()
	old := baseBackoff
	baseBackoff = 5 * time.Millisecond
	t.Cleanup(func() { baseBackoff = old })
}

func newRestClient(url string) (*RestClient, *fakeTokens) {
	tokens := newFakeTokens("initial-token")
	return NewRestClient(url, tokens, ratelimit.New(), 10*time.Second), tokens
}

func TestGetParsesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer initial-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"items":[{"id":1},{"id":2}],"count":2}`))
	}))
	defer srv.Close()

	c, _ := newRestClient(srv.URL)
	resp, err := c.Get(context.Background(), "/automation/v1/automations", nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, resp.Data.Get("items").Array(), 2)
	assert.Equal(t, int64(2), resp.Data.Get("count").Int())
}

func TestRetryOnServerError(t *testing.T) {
	fastBackoff(t)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, _ := newRestClient(srv.URL)
	resp, err := c.Get(context.Background(), "/x", nil)
	require.NoError(t, err)

	assert.True(t, resp.Data.Get("ok").Bool())
	assert.Equal(t, int32(3), hits.Load())
}

func TestRetryableExhausted(t *testing.T) {
	fastBackoff(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := newRestClient(srv.URL)
	_, err := c.Get(context.Background(), "/x", nil)
	require.Error(t, err)

	assert.True(t, types.IsCode(err, types.ErrHTTPRetryableExhausted), "got %v", err)
}

func TestNonRetryableStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"message":"bad filter"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c, _ := newRestClient(srv.URL)
	_, err := c.Get(context.Background(), "/x", nil)
	require.Error(t, err)

	assert.True(t, types.IsCode(err, types.ErrHTTPNonRetryable), "got %v", err)
	assert.Equal(t, int32(1), hits.Load(), "4xx must not be retried")
}

func TestUnauthorizedTriggersOneTokenRefresh(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") != "Bearer refreshed-token" {
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, tokens := newRestClient(srv.URL)
	resp, err := c.Get(context.Background(), "/x", nil)
	require.NoError(t, err)

	assert.True(t, resp.Data.Get("ok").Bool())
	assert.Equal(t, int32(1), tokens.invalidated.Load())
	assert.Equal(t, int32(2), hits.Load())
}

func TestSecondUnauthorizedIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, tokens := newRestClient(srv.URL)
	_, err := c.Get(context.Background(), "/x", nil)
	require.Error(t, err)

	assert.True(t, types.IsCode(err, types.ErrHTTPNonRetryable), "got %v", err)
	assert.Equal(t, int32(1), tokens.invalidated.Load())
}

func TestTooManyRequestsHonorsRetryAfter(t *testing.T) {
	fastBackoff(t)

	var hits atomic.Int32
	var first time.Time
	var gap time.Duration
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			first = time.Now()
			w.Header().Set("Retry-After", "1")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		gap = time.Since(first)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, _ := newRestClient(srv.URL)
	_, err := c.Get(context.Background(), "/x", nil)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, gap, time.Second, "second attempt should wait for Retry-After")
}

func TestInvalidJSONIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	c, _ := newRestClient(srv.URL)
	_, err := c.Get(context.Background(), "/x", nil)
	require.Error(t, err)

	assert.True(t, types.IsCode(err, types.ErrParse), "got %v", err)
}

func TestGetPaged(t *testing.T) {
	pages := map[string]string{
		"1": `{"count":5,"items":[{"id":1},{"id":2}]}`,
		"2": `{"count":5,"items":[{"id":3},{"id":4}]}`,
		"3": `{"count":5,"items":[{"id":5}]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("$page")
		assert.Equal(t, "2", r.URL.Query().Get("$pageSize"))
		w.Write([]byte(pages[page]))
	}))
	defer srv.Close()

	c, _ := newRestClient(srv.URL)
	items, fetched, err := c.GetPaged(context.Background(), "/x", nil, "items", 2, 10)
	require.NoError(t, err)

	assert.Len(t, items, 5)
	assert.Equal(t, 3, fetched)
}

func TestGetPagedStopsAtMaxPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Always a full page, so only the ceiling stops iteration.
		w.Write([]byte(`{"items":[{"id":1},{"id":2}]}`))
	}))
	defer srv.Close()

	c, _ := newRestClient(srv.URL)
	items, fetched, err := c.GetPaged(context.Background(), "/x", url.Values{}, "items", 2, 4)
	require.NoError(t, err)

	assert.Equal(t, 4, fetched)
	assert.Len(t, items, 8)
}

func TestRetryAfterParsing(t *testing.T) {
	h := http.Header{}

	_, ok := retryAfter(h)
	assert.False(t, ok)

	h.Set("Retry-After", "7")
	d, ok := retryAfter(h)
	assert.True(t, ok)
	assert.Equal(t, 7*time.Second, d)

	h.Set("Retry-After", time.Now().Add(2*time.Second).UTC().Format(http.TimeFormat))
	d, ok = retryAfter(h)
	assert.True(t, ok)
	assert.LessOrEqual(t, d, 2*time.Second)
}

func TestBackoffDoublesWithJitter(t *testing.T) {
	for attempt := 1; attempt <= 3; attempt++ {
		base := baseBackoff << (attempt - 1)
		d := backoff(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(float64(base)*0.8))
		assert.LessOrEqual(t, d, time.Duration(float64(base)*1.2))
	}
}
