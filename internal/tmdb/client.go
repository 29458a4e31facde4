package tmdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/air-gapped/moviego/internal/cache"
	"github.com/air-gapped/moviego/internal/fetch"
	"github.com/air-gapped/moviego/internal/logging"
)

// Getter issues one upstream GET. *fetch.Client implements it.
type Getter interface {
	Get(ctx context.Context, rawURL string, query url.Values) (*fetch.Result, error)
}

// Result is what a query returns to its caller.
type Result[T any] struct {
	Data        T
	Skipped     bool // arguments were incomplete; nothing was requested
	Cache       cache.Status
	Fingerprint string
	Attempts    int
	FetchMs     int64
}

// Client runs the media API endpoints through the query cache with retry,
// coalescing and ordered page merges.
type Client struct {
	baseURL  string
	http     Getter
	cache    *cache.Cache
	retrier  *Retrier
	validate *validator.Validate
	logger   *slog.Logger

	flights singleflight.Group
	waiting flightContexts
	locks   keyedMutex
}

// Option configures a Client.
type Option func(*Client)

// WithCache replaces the default query cache.
func WithCache(c *cache.Cache) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithRetrier replaces the default retry policy.
func WithRetrier(r *Retrier) Option {
	return func(cl *Client) { cl.retrier = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates a Client for the API rooted at baseURL.
func NewClient(baseURL string, getter Getter, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     getter,
		validate: validator.New(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.cache == nil {
		c.cache = cache.New(1000)
	}
	if c.retrier == nil {
		c.retrier = DefaultRetrier()
	}
	c.logger = logging.OrDefault(c.logger)
	return c
}

// Retain registers interest in a fingerprint; the entry is not evicted until
// release is called.
func (c *Client) Retain(fingerprint string) (release func()) {
	return c.cache.Retain(fingerprint)
}

// Invalidate drops every cached result carrying one of tags.
func (c *Client) Invalidate(tags ...cache.Tag) int {
	n := c.cache.Invalidate(tags...)
	c.logger.Debug("cache invalidated", "tags", fmt.Sprint(tags), "entries", n)
	return n
}

// RunJanitor sweeps expired, unsubscribed entries every interval until ctx
// is done.
func (c *Client) RunJanitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := c.cache.Sweep(); n > 0 {
				c.logger.Debug("cache swept", "removed", n)
			}
		}
	}
}

func (c *Client) ImageConfig(ctx context.Context) (Result[ImageConfig], error) {
	return query(ctx, c, configurationEndpoint, NoArgs{})
}

func (c *Client) Trending(ctx context.Context) (Result[*Page], error) {
	return query(ctx, c, trendingEndpoint, NoArgs{})
}

func (c *Client) NowPlaying(ctx context.Context) (Result[*Page], error) {
	return query(ctx, c, nowPlayingEndpoint, NoArgs{})
}

func (c *Client) TopRated(ctx context.Context) (Result[*Page], error) {
	return query(ctx, c, topRatedEndpoint, NoArgs{})
}

func (c *Client) Popular(ctx context.Context, args MediaTypeArgs) (Result[*Page], error) {
	return query(ctx, c, popularEndpoint, args)
}

func (c *Client) Upcoming(ctx context.Context) (Result[*Page], error) {
	return query(ctx, c, upcomingEndpoint, NoArgs{})
}

func (c *Client) OnAir(ctx context.Context) (Result[*Page], error) {
	return query(ctx, c, onAirEndpoint, NoArgs{})
}

// Discover fetches one page of a media type's catalogue and returns every
// page accumulated so far.
func (c *Client) Discover(ctx context.Context, args DiscoverArgs) (Result[*Page], error) {
	return query(ctx, c, discoverEndpoint, args)
}

// Search fetches one page of multi-search results and returns every page
// accumulated so far for the same query text.
func (c *Client) Search(ctx context.Context, args SearchArgs) (Result[*Page], error) {
	args.Query = strings.TrimSpace(args.Query)
	return query(ctx, c, searchEndpoint, args)
}

func (c *Client) Details(ctx context.Context, args MediaArgs) (Result[*Details], error) {
	return query(ctx, c, detailsEndpoint, args)
}

func (c *Client) Credits(ctx context.Context, args MediaArgs) (Result[*Credits], error) {
	return query(ctx, c, creditsEndpoint, args)
}

func (c *Client) Similar(ctx context.Context, args MediaArgs) (Result[*Page], error) {
	return query(ctx, c, similarEndpoint, args)
}

func (c *Client) Recommended(ctx context.Context, args MediaArgs) (Result[*Page], error) {
	return query(ctx, c, recommendedEndpoint, args)
}

func (c *Client) Videos(ctx context.Context, args MediaArgs) (Result[*Videos], error) {
	return query(ctx, c, videosEndpoint, args)
}

func query[A any, T any](ctx context.Context, c *Client, ep *Endpoint[A, T], args A) (Result[T], error) {
	if err := c.validate.Struct(args); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			c.logger.Debug("query skipped", "endpoint", ep.Name, "reason", verrs.Error())
			return Result[T]{Skipped: true, Cache: cache.StatusSkipped}, nil
		}
		return Result[T]{}, fmt.Errorf("validate %s args: %w", ep.Name, err)
	}

	fp, err := ep.Fingerprint(args)
	if err != nil {
		return Result[T]{}, err
	}

	release := c.cache.Retain(fp)
	defer release()

	if res, ok := fromCache(ep, fp, args, c.cache); ok {
		return res, nil
	}

	key := fp + "\x00" + fmt.Sprintf("%#v", args)
	fl := c.waiting.join(ctx, key)
	defer c.waiting.leave(key, fl)

	// A flight abandoned by all its callers may still be finishing; later
	// callers start a fresh one instead of joining it.
	ch := c.flights.DoChan(fmt.Sprintf("%s\x00%p", key, fl), func() (any, error) {
		return fetchOrdered(fl.ctx, c, ep, fp, args)
	})
	select {
	case r := <-ch:
		if r.Shared {
			c.logger.Debug("query coalesced", "endpoint", ep.Name, "fingerprint", fp)
		}
		if r.Err != nil {
			return Result[T]{}, r.Err
		}
		return r.Val.(Result[T]), nil
	case <-ctx.Done():
		// Other waiters keep the flight alive; only this caller gives up.
		err := ctx.Err()
		return Result[T]{}, newError(ep.Name, Attempt{Outcome: OutcomeTerminal, Class: Classify(0, err), Err: err}, 0)
	}
}

// fromCache returns a fresh cached result unless the endpoint forces a
// refetch for args.
func fromCache[A any, T any](ep *Endpoint[A, T], fp string, args A, qc *cache.Cache) (Result[T], bool) {
	entry, status := qc.Get(fp)
	if status != cache.StatusHit {
		return Result[T]{}, false
	}
	if prev, ok := entry.Args.(A); ok && ep.ForceRefetch != nil && ep.ForceRefetch(prev, args) {
		return Result[T]{}, false
	}
	data, ok := entry.Value.(T)
	if !ok {
		return Result[T]{}, false
	}
	return Result[T]{Data: data, Cache: cache.StatusHit, Fingerprint: fp}, true
}

// fetchOrdered fetches args under the fingerprint's FIFO lock so page
// merges land in the order they were issued.
func fetchOrdered[A any, T any](ctx context.Context, c *Client, ep *Endpoint[A, T], fp string, args A) (Result[T], error) {
	unlock, err := c.locks.Lock(ctx, fp)
	if err != nil {
		return Result[T]{}, newError(ep.Name, Attempt{Outcome: OutcomeTerminal, Class: Classify(0, err), Err: err}, 0)
	}
	defer unlock()

	// An earlier holder of the lock may have fetched exactly these args.
	if res, ok := fromCache(ep, fp, args, c.cache); ok {
		return res, nil
	}

	entry, status := c.cache.Get(fp)
	generation := entry.Generation
	refetch := status == cache.StatusHit
	if refetch {
		status = cache.StatusRefetch
	}

	rawURL := c.baseURL + ep.Path(args)
	var params url.Values
	if ep.Params != nil {
		params = ep.Params(args)
	}

	final, attempts := c.retrier.Do(ctx, func(ctx context.Context) Attempt {
		a := c.attempt(ctx, rawURL, params, ep.retryable)
		if a.Outcome != OutcomeSuccess {
			c.logger.Warn("upstream attempt failed",
				"endpoint", ep.Name,
				"kind", a.Class.Kind,
				"status", a.Status,
				"outcome", a.Outcome.String(),
				"error", a.Err,
			)
		}
		return a
	})
	if final.Outcome != OutcomeSuccess {
		return Result[T]{}, newError(ep.Name, final, attempts)
	}

	data, err := ep.Decode(final.Result.Body, args)
	if err != nil {
		return Result[T]{}, &Error{
			Endpoint:  ep.Name,
			Kind:      KindUnknown,
			Message:   messageFor(KindUnknown),
			Retryable: true,
			Status:    final.Status,
			Attempts:  attempts,
			Err:       err,
		}
	}

	res := Result[T]{
		Data:        data,
		Cache:       status,
		Fingerprint: fp,
		Attempts:    attempts,
		FetchMs:     final.Result.FetchMs,
	}

	// Every caller went away while the request was in flight.
	if err := ctx.Err(); err != nil {
		c.logger.Debug("discarding result of canceled query", "endpoint", ep.Name, "fingerprint", fp)
		return Result[T]{}, newError(ep.Name, Attempt{Outcome: OutcomeTerminal, Class: Classify(0, err), Err: err}, attempts)
	}

	value, tags := data, ep.Tags(args)
	if refetch && ep.Merge != nil {
		if acc, ok := entry.Value.(T); ok {
			value = ep.Merge(acc, data)
			tags = unionTags(entry.Tags, tags)
		}
	}

	if !c.cache.Put(fp, generation, value, args, ep.TTL, tags) {
		c.logger.Debug("result superseded by invalidation", "endpoint", ep.Name, "fingerprint", fp)
		return res, nil
	}
	res.Data = value
	return res, nil
}

func (c *Client) attempt(ctx context.Context, rawURL string, params url.Values, retryable func(Classification) bool) Attempt {
	res, err := c.http.Get(ctx, rawURL, params)
	if err != nil {
		class := Classify(0, err)
		class.Retryable = retryable(class)
		return Attempt{Outcome: outcomeOf(class), Class: class, Err: err}
	}
	if res.OK() {
		return Attempt{Outcome: OutcomeSuccess, Status: res.StatusCode, Result: res}
	}
	class := Classify(res.StatusCode, nil)
	class.Retryable = retryable(class)
	return Attempt{Outcome: outcomeOf(class), Class: class, Status: res.StatusCode, Body: res.Body, Result: res}
}

func outcomeOf(c Classification) Outcome {
	if c.Retryable {
		return OutcomeRetryable
	}
	return OutcomeTerminal
}

func unionTags(a, b []cache.Tag) []cache.Tag {
	seen := make(map[cache.Tag]struct{}, len(a)+len(b))
	out := make([]cache.Tag, 0, len(a)+len(b))
	for _, list := range [][]cache.Tag{a, b} {
		for _, t := range list {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
