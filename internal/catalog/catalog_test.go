package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/npezzotti/ketchup-chat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu     sync.Mutex
	pages  map[string][]byte
	getErr error
}

func newMemCache() *memCache {
	return &memCache{pages: map[string][]byte{}}
}

func (m *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	p, ok := m.pages[key]
	return p, ok, nil
}

func (m *memCache) Set(ctx context.Context, key string, page []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[key] = page
	return nil
}

func TestFetchPage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/movies/top-rated", r.URL.Path)
		assert.Equal(t, "0", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("size"))
		assert.Equal(t, "drama", r.URL.Query().Get("genre"))
		w.Write([]byte(`{"content":[{"title":"Heat"}],"number":0}`))
	}))
	defer srv.Close()

	cache := newMemCache()
	c := NewClient(srv.URL, time.Second, cache, testutil.TestLogger(t))

	page, err := c.FetchPage(context.Background(), "/movies/top-rated", Filter{"genre": "drama"}, DefaultPage, DefaultSize)
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":[{"title":"Heat"}],"number":0}`, string(page))

	_, err = c.FetchPage(context.Background(), "movies/top-rated", Filter{"genre": "drama"}, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "expected second fetch to be served from cache")
	assert.Contains(t, cache.pages, "movies/top-rated?genre=drama&page=0&size=20")
}

func TestFetchPage_CacheError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cache := newMemCache()
	cache.getErr = errors.New("redis down")
	c := NewClient(srv.URL, time.Second, cache, testutil.TestLogger(t))

	page, err := c.FetchPage(context.Background(), "actors", nil, 1, 5)
	require.NoError(t, err, "expected a failing cache to fall through to the catalog")
	assert.Equal(t, `[]`, string(page))
}

func TestFetchPage_Dedupe(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, nil, testutil.TestLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.FetchPage(context.Background(), "movies", nil, 0, 20)
			assert.NoError(t, err)
		}()
	}

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "expected concurrent misses to share one request")
}

func TestFetchPage_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.Write([]byte(`[{"title":"Alien"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, nil, testutil.TestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.FetchPage(ctx, "movies", nil, 0, 20)
		first <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		data []byte
		err  error
	}
	second := make(chan result, 1)
	go func() {
		data, err := c.FetchPage(context.Background(), "movies", nil, 0, 20)
		second <- result{data, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("expected cancelled caller to return")
	}

	close(release)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.JSONEq(t, `[{"title":"Alien"}]`, string(res.data))
	case <-time.After(time.Second):
		t.Fatal("expected waiting caller to receive the page")
	}
	assert.Equal(t, int32(1), calls.Load(), "expected one shared request")
}

func TestFetchPage_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.Write([]byte(`not json`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil, testutil.TestLogger(t))

	_, err := c.FetchPage(context.Background(), "missing", nil, 0, 20)
	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusNotFound, serr.StatusCode)

	_, err = c.FetchPage(context.Background(), "broken", nil, 0, 20)
	assert.Error(t, err)

	tcases := []struct {
		resource   string
		page, size int
	}{
		{"", 0, 20},
		{"movies", -1, 20},
		{"movies", 0, 0},
		{"movies", 0, MaxSize + 1},
	}
	for _, tc := range tcases {
		_, err := c.FetchPage(context.Background(), tc.resource, nil, tc.page, tc.size)
		assert.ErrorIs(t, err, ErrInvalidPage)
	}
}
