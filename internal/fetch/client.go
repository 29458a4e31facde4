package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// ErrTooLarge is returned when an upstream body exceeds the configured limit.
var ErrTooLarge = errors.New("response too large")

// Result holds the outcome of an upstream fetch.
type Result struct {
	Body        []byte
	StatusCode  int
	ContentType string
	Header      http.Header
	FetchMs     int64
}

// OK reports whether the upstream answered with a 2xx status.
func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client performs GET requests against an upstream API.
type Client struct {
	httpClient  *http.Client
	maxBodySize int64
	limiter     *rate.Limiter
}

type options struct {
	transport   http.RoundTripper
	bearerToken string
	headers     http.Header
	rps         float64
	burst       int
}

// Option configures a Client.
type Option func(*options)

// WithTransport sets the base RoundTripper. Defaults to a clone of
// http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithBearerToken attaches "Authorization: Bearer <token>" to every request.
func WithBearerToken(token string) Option {
	return func(o *options) { o.bearerToken = token }
}

// WithHeader sets a static header on every request.
func WithHeader(key, value string) Option {
	return func(o *options) {
		if o.headers == nil {
			o.headers = make(http.Header)
		}
		o.headers.Set(key, value)
	}
}

// WithRateLimit caps outgoing requests at rps with the given burst.
// rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		o.rps = rps
		o.burst = burst
	}
}

// NewClient creates a fetch client. timeout bounds every single request,
// independently of any retry policy layered on top.
func NewClient(timeout time.Duration, maxBodySize int64, opts ...Option) *Client {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	transport := o.transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	if o.bearerToken != "" || len(o.headers) > 0 {
		headers := o.headers.Clone()
		if headers == nil {
			headers = make(http.Header)
		}
		if o.bearerToken != "" {
			headers.Set("Authorization", "Bearer "+o.bearerToken)
		}
		transport = &headerRoundTripper{wrapped: transport, headers: headers}
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		maxBodySize: maxBodySize,
	}
	if o.rps > 0 {
		burst := o.burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(o.rps), burst)
	}
	return c
}

// headerRoundTripper stamps static headers onto every outgoing request.
type headerRoundTripper struct {
	wrapped http.RoundTripper
	headers http.Header
}

func (rt *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone request to avoid mutating the original
	clone := req.Clone(req.Context())
	for k, v := range rt.headers {
		clone.Header[k] = v
	}
	return rt.wrapped.RoundTrip(clone)
}

// Get fetches rawURL with query merged into its query string. Any HTTP status
// is a successful Result; only transport failures and oversize bodies are
// errors.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values) (*Result, error) {
	start := time.Now()

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream fetch: %w", err)
	}
	defer resp.Body.Close()

	// Check Content-Length before reading body
	if resp.ContentLength > 0 && resp.ContentLength > c.maxBodySize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, resp.ContentLength, c.maxBodySize)
	}

	// Read body with size limit
	limited := io.LimitReader(resp.Body, c.maxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if int64(len(body)) > c.maxBodySize {
		return nil, fmt.Errorf("%w: exceeds %d bytes limit", ErrTooLarge, c.maxBodySize)
	}

	return &Result{
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header,
		FetchMs:     time.Since(start).Milliseconds(),
	}, nil
}
