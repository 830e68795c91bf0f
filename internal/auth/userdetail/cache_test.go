package userdetail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brizzai/llm-server/internal/auth/models"
	"github.com/brizzai/llm-server/internal/requester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFetcher answers users/<id> lookups and counts upstream calls
type countingFetcher struct {
	calls   atomic.Int32
	status  int
	release chan struct{}
}

func (f *countingFetcher) Get(ctx context.Context, path string, _ url.Values) (*requester.Response, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	id := path[len("users/"):]
	return &requester.Response{
		StatusCode: status,
		Body:       []byte(fmt.Sprintf(`{"id":%q,"first_name":"Ada","email_addresses":[{"id":"e1","email_address":"a@b.com"}],"primary_email_address_id":"e1"}`, id)),
	}, nil
}

func TestCache_HitAfterMiss(t *testing.T) {
	f := &countingFetcher{}
	c, err := New(f, 100)
	require.NoError(t, err)

	first, err := c.GetUserDetail(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, "a@b.com", first.PrimaryEmail())

	second, err := c.GetUserDetail(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.calls.Load(), "hit must not call upstream")
	assert.Same(t, first, second)
}

func TestCache_UpstreamFailureNotCached(t *testing.T) {
	f := &countingFetcher{status: http.StatusBadGateway}
	c, err := New(f, 100)
	require.NoError(t, err)

	_, err = c.GetUserDetail(context.Background(), "user_1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUpstreamUnavailable))
	assert.Equal(t, 0, c.Len())

	f.status = http.StatusOK
	u, err := c.GetUserDetail(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, "user_1", u.ID)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestCache_ConcurrentMissesCoalesce(t *testing.T) {
	f := &countingFetcher{release: make(chan struct{})}
	c, err := New(f, 100)
	require.NoError(t, err)

	const callers = 20
	var wg sync.WaitGroup
	results := make([]*models.UserDetail, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetUserDetail(context.Background(), "user_1")
		}(i)
	}

	// Let the first flight start, then give the rest time to join it
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestCache_LRUEviction(t *testing.T) {
	f := &countingFetcher{}
	c, err := New(f, 2)
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		_, err := c.GetUserDetail(ctx, id)
		require.NoError(t, err)
	}
	// touch a so b becomes least recently used
	_, err = c.GetUserDetail(ctx, "a")
	require.NoError(t, err)
	_, err = c.GetUserDetail(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int32(3), f.calls.Load())
	assert.Equal(t, 2, c.Len())

	_, err = c.GetUserDetail(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int32(3), f.calls.Load(), "a must still be cached")

	_, err = c.GetUserDetail(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int32(4), f.calls.Load(), "b must have been evicted")
}

func TestCache_EmptyUserID(t *testing.T) {
	c, err := New(&countingFetcher{}, 10)
	require.NoError(t, err)
	_, err = c.GetUserDetail(context.Background(), "")
	assert.True(t, errors.Is(err, models.ErrMissingSubject))
}

func TestCache_WithHTTPRequester(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/v1/users/user_9", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"user_9","username":"ada"}`))
	}))
	defer srv.Close()

	r := requester.NewHTTPRequester(srv.URL+"/v1", 5*time.Second, requester.NewBearerAuthManager("sk_test"))
	c, err := New(r, 10)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		u, err := c.GetUserDetail(context.Background(), "user_9")
		require.NoError(t, err)
		assert.Equal(t, "ada", u.Username)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestCache_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c, err := New(requester.NewHTTPRequester(srv.URL, time.Second, nil), 10)
	require.NoError(t, err)
	_, err = c.GetUserDetail(context.Background(), "user_1")
	assert.True(t, errors.Is(err, models.ErrUpstreamUnavailable))
}
