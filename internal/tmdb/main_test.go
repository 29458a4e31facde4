package tmdb

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/air-gapped/moviego/internal/cache"
	"github.com/air-gapped/moviego/internal/fetch"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAPI is an in-memory Getter. handle receives the request path (without
// the base URL) and merged query.
type fakeAPI struct {
	mu     sync.Mutex
	calls  []string
	handle func(ctx context.Context, path string, q url.Values) (*fetch.Result, error)
}

const fakeBase = "https://api.test/3"

func (f *fakeAPI) Get(ctx context.Context, rawURL string, query url.Values) (*fetch.Result, error) {
	path := strings.TrimPrefix(rawURL, fakeBase)
	f.mu.Lock()
	call := path
	if len(query) > 0 {
		call += "?" + query.Encode()
	}
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	return f.handle(ctx, path, query)
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func jsonResult(status int, body string) *fetch.Result {
	return &fetch.Result{StatusCode: status, Body: []byte(body), ContentType: "application/json"}
}

// recordingRetrier returns the default policy with the wait replaced by a
// recorder.
func recordingRetrier() (*Retrier, *[]time.Duration) {
	var mu sync.Mutex
	delays := []time.Duration{}
	r := DefaultRetrier()
	r.SetSleepForTest(func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return ctx.Err()
	})
	return r, &delays
}

func newTestClient(api *fakeAPI) (*Client, *[]time.Duration) {
	r, delays := recordingRetrier()
	return NewClient(fakeBase, api, WithRetrier(r), WithCache(cache.New(100))), delays
}
