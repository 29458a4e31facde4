package tmdb

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/air-gapped/moviego/internal/fetch"
)

// Kind is the class of a failed request.
type Kind string

const (
	KindAuth             Kind = "auth"
	KindForbidden        Kind = "forbidden"
	KindRateLimited      Kind = "rate_limited"
	KindOffline          Kind = "offline"
	KindTransientNetwork Kind = "transient_network"
	KindUnknown          Kind = "unknown"
	KindCanceled         Kind = "canceled"
)

// Classification is derived from a failure; it is never stored.
type Classification struct {
	Kind      Kind
	Retryable bool
}

// Classify maps an HTTP status and/or transport error to a Classification.
// A nil error with a 2xx status is not a failure; callers should not
// classify it.
func Classify(status int, err error) Classification {
	if err != nil {
		return classifyError(err)
	}

	switch {
	case status == http.StatusUnauthorized:
		return Classification{Kind: KindAuth}
	case status == http.StatusForbidden:
		return Classification{Kind: KindForbidden}
	case status == http.StatusTooManyRequests:
		return Classification{Kind: KindRateLimited, Retryable: true}
	case status >= 500:
		return Classification{Kind: KindTransientNetwork, Retryable: true}
	default:
		return Classification{Kind: KindUnknown, Retryable: true}
	}
}

func classifyError(err error) Classification {
	if errors.Is(err, context.Canceled) {
		return Classification{Kind: KindCanceled}
	}
	if errors.Is(err, fetch.ErrTooLarge) {
		return Classification{Kind: KindUnknown}
	}

	// No route to the API at all: DNS failure, refused or unreachable.
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETDOWN) {
		return Classification{Kind: KindOffline, Retryable: true}
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return Classification{Kind: KindTransientNetwork, Retryable: true}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Classification{Kind: KindTransientNetwork, Retryable: true}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Classification{Kind: KindTransientNetwork, Retryable: true}
	}

	return Classification{Kind: KindUnknown, Retryable: true}
}
