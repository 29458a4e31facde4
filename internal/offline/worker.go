package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/air-gapped/moviego/internal/logging"
)

// Strategy is how an active worker answers eligible requests.
type Strategy string

const (
	NetworkFirst Strategy = "network-first"
	CacheFirst   Strategy = "cache-first"
)

const (
	defaultMaxEntrySize = 5 * 1024 * 1024
	installConcurrency  = 4
	revalidateTimeout   = 30 * time.Second
)

// DefaultFallbacks are the documents served to navigations when both the
// network and the exact cache match fail.
var DefaultFallbacks = []string{"/", "/index.html"}

// Config describes one worker instance.
type Config struct {
	Version  string   // store name; bumping it replaces the store on activation
	Origin   *url.URL // front-end origin the manifest is fetched from
	Manifest []string // paths precached on install
	Bypass   *HostSet // API hosts that are never cached

	Strategy    Strategy
	CrossOrigin bool     // also cache requests to hosts other than Origin
	Fallbacks   []string // navigation fallback paths, in order

	MaxEntrySize int64 // larger responses pass through uncached
	Logger       *slog.Logger
}

// State is the worker lifecycle state.
type State int32

const (
	StateInstalling State = iota
	StateInstalled
	StateActive
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActive:
		return "active"
	default:
		return "redundant"
	}
}

// Decision is the routing verdict for one request.
type Decision string

const (
	BypassAPI         Decision = "bypass-api"
	BypassMethod      Decision = "bypass-method"
	BypassCrossOrigin Decision = "bypass-cross-origin"
	BypassInactive    Decision = "bypass-inactive"
	UseNetworkFirst   Decision = "network-first"
	UseCacheFirst     Decision = "cache-first"
)

// Bypass reports whether the request goes straight to the network without
// touching the store.
func (d Decision) Bypass() bool {
	return d != UseNetworkFirst && d != UseCacheFirst
}

// Where a response came from, reported in the logging.HeaderOffline header.
const (
	SourceNetwork  = "network"
	SourceCache    = "cache"
	SourceFallback = "fallback"
	SourceBypass   = "bypass"
)

// InstallFailure records a manifest entry that could not be cached.
type InstallFailure struct {
	Path string
	Err  error
}

// InstallReport summarizes Install.
type InstallReport struct {
	Version string
	Cached  []string
	Failed  []InstallFailure
}

// Worker is an offline cache interposed on requests to the front-end
// origin. It implements http.RoundTripper.
type Worker struct {
	cfg     Config
	storage Storage
	network http.RoundTripper
	logger  *slog.Logger

	state atomic.Int32
	store atomic.Pointer[storeRef]

	revalidations singleflight.Group
	mu            sync.Mutex // guards closed and wg.Add
	closed        bool
	wg            sync.WaitGroup
	bgCtx         context.Context
	bgCancel      context.CancelFunc
}

type storeRef struct{ Store }

// New creates a worker in the installing state.
func New(cfg Config, storage Storage, network http.RoundTripper) (*Worker, error) {
	if strings.TrimSpace(cfg.Version) == "" {
		return nil, errors.New("offline worker: version is required")
	}
	if cfg.Origin == nil || cfg.Origin.Host == "" {
		return nil, errors.New("offline worker: origin is required")
	}
	switch cfg.Strategy {
	case "":
		cfg.Strategy = NetworkFirst
	case NetworkFirst, CacheFirst:
	default:
		return nil, fmt.Errorf("offline worker: unknown strategy %q", cfg.Strategy)
	}
	if cfg.Fallbacks == nil {
		cfg.Fallbacks = DefaultFallbacks
	}
	if cfg.MaxEntrySize <= 0 {
		cfg.MaxEntrySize = defaultMaxEntrySize
	}
	if storage == nil || network == nil {
		return nil, errors.New("offline worker: storage and network are required")
	}

	w := &Worker{
		cfg:     cfg,
		storage: storage,
		network: network,
		logger:  logging.OrDefault(cfg.Logger).With("cache_version", cfg.Version),
	}
	w.bgCtx, w.bgCancel = context.WithCancel(context.Background())
	return w, nil
}

// State returns the current lifecycle state.
func (w *Worker) State() State { return State(w.state.Load()) }

// Version returns the store name the worker populates.
func (w *Worker) Version() string { return w.cfg.Version }

// Install opens the versioned store and precaches the manifest. A failing
// entry is recorded in the report and does not stop the others. On success
// the worker is installed and may be activated at once.
func (w *Worker) Install(ctx context.Context) (InstallReport, error) {
	report := InstallReport{Version: w.cfg.Version}
	if s := w.State(); s != StateInstalling {
		return report, fmt.Errorf("install: worker is %s", s)
	}

	store, err := w.storage.Open(ctx, w.cfg.Version)
	if err != nil {
		w.state.Store(int32(StateRedundant))
		return report, fmt.Errorf("install: %w", err)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(installConcurrency)
	for _, path := range w.cfg.Manifest {
		g.Go(func() error {
			err := w.precache(ctx, store, path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				w.logger.Warn("precache failed", "path", path, "error", err)
				report.Failed = append(report.Failed, InstallFailure{Path: path, Err: err})
				return nil
			}
			report.Cached = append(report.Cached, path)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		w.state.Store(int32(StateRedundant))
		return report, fmt.Errorf("install: %w", err)
	}

	w.store.Store(&storeRef{store})
	w.state.Store(int32(StateInstalled))
	w.logger.Info("offline worker installed",
		"cached", len(report.Cached),
		"failed", len(report.Failed),
	)
	return report, nil
}

func (w *Worker) precache(ctx context.Context, store Store, path string) error {
	target, err := w.resolve(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := w.network.RoundTrip(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetch: status %d", resp.StatusCode)
	}
	body, ok, err := capture(resp, w.cfg.MaxEntrySize)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if !ok {
		return fmt.Errorf("body exceeds %d bytes", w.cfg.MaxEntrySize)
	}
	return store.Put(ctx, KeyFor(req), Snapshot{
		Status:   resp.StatusCode,
		Header:   storable(resp.Header),
		Body:     body,
		StoredAt: time.Now(),
	})
}

// Activate deletes every store except the worker's own version and starts
// intercepting requests. It returns the deleted store names.
func (w *Worker) Activate(ctx context.Context) ([]string, error) {
	if s := w.State(); s != StateInstalled {
		return nil, fmt.Errorf("activate (worker is %s): %w", s, ErrNotInstalled)
	}

	names, err := w.storage.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("activate: %w", err)
	}
	var deleted []string
	for _, name := range StaleVersions(names, w.cfg.Version) {
		ok, err := w.storage.Delete(ctx, name)
		if err != nil {
			w.logger.Warn("delete stale store failed", "store", name, "error", err)
			continue
		}
		if ok {
			deleted = append(deleted, name)
		}
	}

	w.state.Store(int32(StateActive))
	w.logger.Info("offline worker activated", "deleted", deleted)
	return deleted, nil
}

// StaleVersions returns the names that are not current, in input order.
func StaleVersions(names []string, current string) []string {
	var stale []string
	for _, n := range names {
		if n != current {
			stale = append(stale, n)
		}
	}
	return stale
}

// Decide routes req. It has no side effects.
func (w *Worker) Decide(req *http.Request) Decision {
	if w.cfg.Bypass.Contains(requestHost(req)) {
		return BypassAPI
	}
	if req.Method != http.MethodGet {
		return BypassMethod
	}
	if !w.cfg.CrossOrigin && !w.sameOrigin(req) {
		return BypassCrossOrigin
	}
	if w.State() != StateActive {
		return BypassInactive
	}
	if w.cfg.Strategy == CacheFirst {
		return UseCacheFirst
	}
	return UseNetworkFirst
}

// RoundTrip answers req according to Decide and the worker's strategy.
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	var (
		resp   *http.Response
		source string
		err    error
	)
	switch d := w.Decide(req); d {
	case UseNetworkFirst:
		resp, source, err = w.networkFirst(req)
	case UseCacheFirst:
		resp, source, err = w.cacheFirst(req)
	default:
		w.logger.Debug("offline bypass", "decision", string(d), "url", req.URL.String())
		resp, err = w.network.RoundTrip(req)
		source = SourceBypass
	}
	if err != nil {
		return nil, err
	}
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	resp.Header.Set(logging.HeaderOffline, source)
	return resp, nil
}

func (w *Worker) networkFirst(req *http.Request) (*http.Response, string, error) {
	resp, err := w.fetchAndStore(req)
	if err == nil && resp.StatusCode < 500 {
		return resp, SourceNetwork, nil
	}

	if snap, ok := w.match(req.Context(), KeyFor(req)); ok {
		if resp != nil {
			resp.Body.Close()
		}
		w.logger.Debug("serving cached copy", "url", req.URL.String(), "error", err)
		return snap.Response(req), SourceCache, nil
	}
	if isNavigation(req) {
		if fb, ok := w.fallback(req); ok {
			if resp != nil {
				resp.Body.Close()
			}
			return fb, SourceFallback, nil
		}
	}
	if err != nil {
		return nil, "", err
	}
	return resp, SourceNetwork, nil
}

func (w *Worker) cacheFirst(req *http.Request) (*http.Response, string, error) {
	key := KeyFor(req)
	if snap, ok := w.match(req.Context(), key); ok {
		w.revalidate(req, key)
		return snap.Response(req), SourceCache, nil
	}

	resp, err := w.fetchAndStore(req)
	if err != nil {
		if isNavigation(req) {
			if fb, ok := w.fallback(req); ok {
				return fb, SourceFallback, nil
			}
		}
		return nil, "", err
	}
	return resp, SourceNetwork, nil
}

// fetchAndStore goes to the network and stores a copy of 2xx responses.
func (w *Worker) fetchAndStore(req *http.Request) (*http.Response, error) {
	resp, err := w.network.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, nil
	}
	body, ok, err := capture(resp, w.cfg.MaxEntrySize)
	if err != nil {
		return nil, err
	}
	if ok {
		w.put(req.Context(), KeyFor(req), resp, body)
	}
	return resp, nil
}

// revalidate refreshes key in the background. Concurrent refreshes of one
// key are coalesced.
func (w *Worker) revalidate(req *http.Request, key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	r := req.Clone(w.bgCtx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		_, _, _ = w.revalidations.Do(key, func() (any, error) {
			ctx, cancel := context.WithTimeout(w.bgCtx, revalidateTimeout)
			defer cancel()

			resp, err := w.network.RoundTrip(r.WithContext(ctx))
			if err != nil {
				w.logger.Debug("revalidate failed", "key", key, "error", err)
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return nil, nil
			}
			if body, ok, err := capture(resp, w.cfg.MaxEntrySize); err == nil && ok {
				w.put(ctx, key, resp, body)
			}
			return nil, nil
		})
	}()
}

func (w *Worker) put(ctx context.Context, key string, resp *http.Response, body []byte) {
	ref := w.store.Load()
	if ref == nil {
		return
	}
	err := ref.Put(ctx, key, Snapshot{
		Status:   resp.StatusCode,
		Header:   storable(resp.Header),
		Body:     body,
		StoredAt: time.Now(),
	})
	if err != nil {
		w.logger.Warn("offline store write failed", "key", key, "error", err)
	}
}

func (w *Worker) match(ctx context.Context, key string) (Snapshot, bool) {
	ref := w.store.Load()
	if ref == nil {
		return Snapshot{}, false
	}
	snap, ok, err := ref.Match(ctx, key)
	if err != nil {
		w.logger.Warn("offline store read failed", "key", key, "error", err)
		return Snapshot{}, false
	}
	return snap, ok
}

func (w *Worker) fallback(req *http.Request) (*http.Response, bool) {
	for _, path := range w.cfg.Fallbacks {
		target, err := w.resolve(path)
		if err != nil {
			continue
		}
		if snap, ok := w.match(req.Context(), http.MethodGet+" "+target); ok {
			return snap.Response(req), true
		}
	}
	return nil, false
}

// Supersede retires the worker; it passes every request through from now
// on.
func (w *Worker) Supersede() {
	w.state.Store(int32(StateRedundant))
}

// Close stops background revalidation and waits for it to finish.
func (w *Worker) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.bgCancel()
	w.wg.Wait()
	return nil
}

func (w *Worker) resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}
	u := w.cfg.Origin.ResolveReference(ref)
	u.Fragment = ""
	return u.String(), nil
}

func (w *Worker) sameOrigin(req *http.Request) bool {
	return strings.EqualFold(requestHost(req), w.cfg.Origin.Host) &&
		(req.URL.Scheme == "" || strings.EqualFold(req.URL.Scheme, w.cfg.Origin.Scheme))
}

func requestHost(req *http.Request) string {
	if req.URL.Host != "" {
		return req.URL.Host
	}
	return req.Host
}

// isNavigation reports whether req is a document load. A missing Accept
// header is not one.
func isNavigation(req *http.Request) bool {
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}

// capture reads resp's body when it is at most limit bytes. When it is
// larger the response is left streaming and ok is false. Either way the
// caller can still read resp.Body.
func capture(resp *http.Response, limit int64) (body []byte, ok bool, err error) {
	if resp.ContentLength > limit {
		return nil, false, nil
	}
	buf, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		resp.Body.Close()
		return nil, false, err
	}
	if int64(len(buf)) > limit {
		resp.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(buf), resp.Body), resp.Body}
		return nil, false, nil
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(buf))
	return buf, true, nil
}
