package offline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"
)

var (
	// ErrQuotaExceeded is returned by Store.Put when the entry does not fit
	// in the storage quota.
	ErrQuotaExceeded = errors.New("offline storage quota exceeded")

	// ErrNotInstalled is returned when a worker is activated before it
	// installed successfully.
	ErrNotInstalled = errors.New("offline worker not installed")

	// ErrStoreDeleted is returned by operations on a store whose version was
	// deleted.
	ErrStoreDeleted = errors.New("offline store deleted")
)

// Snapshot is a stored response.
type Snapshot struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Size is the number of bytes the snapshot counts against the quota.
func (s Snapshot) Size() int64 {
	n := int64(len(s.Body))
	for k, vs := range s.Header {
		for _, v := range vs {
			n += int64(len(k) + len(v))
		}
	}
	return n
}

// Response builds an *http.Response for req from the snapshot.
func (s Snapshot) Response(req *http.Request) *http.Response {
	h := s.Header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h.Set("Content-Length", strconv.Itoa(len(s.Body)))
	return &http.Response{
		Status:        strconv.Itoa(s.Status) + " " + http.StatusText(s.Status),
		StatusCode:    s.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(s.Body)),
		ContentLength: int64(len(s.Body)),
		Request:       req,
	}
}

// Store is one named, versioned cache of responses keyed by KeyFor.
type Store interface {
	Name() string
	Match(ctx context.Context, key string) (Snapshot, bool, error)
	Put(ctx context.Context, key string, snap Snapshot) error
	Keys(ctx context.Context) ([]string, error)
}

// Storage holds the named stores.
type Storage interface {
	// Open returns the store called name, creating it if needed.
	Open(ctx context.Context, name string) (Store, error)
	Names(ctx context.Context) ([]string, error)
	// Delete removes a store and its entries. It reports whether the store
	// existed.
	Delete(ctx context.Context, name string) (bool, error)
	Close() error
}

// KeyFor is the request identity used as the store key: the method and
// the absolute URL without fragment.
func KeyFor(req *http.Request) string {
	u := *req.URL
	u.Fragment = ""
	u.RawFragment = ""
	if u.Host == "" {
		u.Host = req.Host
	}
	if u.Scheme == "" {
		u.Scheme = "http"
		if req.TLS != nil {
			u.Scheme = "https"
		}
	}
	return req.Method + " " + u.String()
}

// storable drops hop-by-hop and per-response headers before a snapshot is
// written.
func storable(h http.Header) http.Header {
	out := h.Clone()
	for _, k := range []string{
		"Connection", "Keep-Alive", "Transfer-Encoding", "Set-Cookie",
		"Date", "Content-Length",
	} {
		out.Del(k)
	}
	return out
}
