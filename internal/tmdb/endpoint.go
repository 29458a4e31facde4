package tmdb

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/air-gapped/moviego/internal/cache"
)

// Cache lifetimes per endpoint family.
const (
	TTLConfiguration = 24 * time.Hour
	TTLTrending      = 5 * time.Minute
	TTLNowPlaying    = 15 * time.Minute
	TTLDetails       = time.Hour
	TTLSearch        = time.Minute
	TTLDefault       = 2 * time.Minute
)

// Endpoint describes one upstream query: where it lives, how long its
// results stay fresh, which tags it provides and how pages accumulate.
type Endpoint[A any, T any] struct {
	Name string
	TTL  time.Duration

	Path   func(A) string
	Params func(A) url.Values
	Tags   func(A) []cache.Tag
	Decode func(body []byte, args A) (T, error)

	// Merge folds a freshly fetched page into the cached accumulation.
	// Nil means the new result replaces the old one.
	Merge func(acc, next T) T

	// ForceRefetch reports whether args must be fetched even though a
	// fresh entry exists under the same fingerprint.
	ForceRefetch func(prev, cur A) bool

	// Retryable overrides the classification's retry verdict.
	Retryable func(Classification) bool
}

// Fingerprint is the cache key of args for this endpoint. Fields tagged
// `hash:"ignore"` (page numbers) do not contribute, so every page of a
// paginated query shares one entry.
func (e *Endpoint[A, T]) Fingerprint(args A) (string, error) {
	h, err := hashstructure.Hash(args, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", e.Name, err)
	}
	return fmt.Sprintf("%s:%016x", e.Name, h), nil
}

func (e *Endpoint[A, T]) retryable(c Classification) bool {
	if e.Retryable != nil {
		return e.Retryable(c)
	}
	return c.Retryable
}

// NoArgs is the argument of endpoints that take none.
type NoArgs struct{}

// MediaTypeArgs selects movies or TV shows.
type MediaTypeArgs struct {
	MediaType string `validate:"required,oneof=movie tv"`
}

// MediaArgs identifies one title.
type MediaArgs struct {
	MediaType string `validate:"required,oneof=movie tv"`
	MediaID   int64  `validate:"required,gt=0"`
}

// DiscoverArgs pages through a media type's catalogue.
type DiscoverArgs struct {
	MediaType string `validate:"required,oneof=movie tv"`
	PageNo    int    `validate:"required,gte=1" hash:"ignore"`
}

// SearchArgs pages through multi-search results for Query.
type SearchArgs struct {
	Query  string `validate:"required"`
	PageNo int    `validate:"required,gte=1" hash:"ignore"`
}

func staticPath[A any](p string) func(A) string {
	return func(A) string { return p }
}

func staticTags[A any](tags ...cache.Tag) func(A) []cache.Tag {
	return func(A) []cache.Tag { return tags }
}

func englishParams[A any](A) url.Values {
	return url.Values{"language": {"en-US"}}
}

func decodeJSON[A any, T any](body []byte, _ A) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(body, v); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return v, nil
}

// decodePage tolerates a missing results array; it becomes an empty page.
func decodePage(body []byte) (*Page, error) {
	var p Page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	if p.Results == nil {
		p.Results = []Media{}
	}
	return &p, nil
}

func decodeAnyPage[A any](body []byte, _ A) (*Page, error) {
	return decodePage(body)
}

// decodeTypedPage stamps mediaType on results that lack one; movie and TV
// listings omit it.
func decodeTypedPage[A any](mediaType func(A) string) func([]byte, A) (*Page, error) {
	return func(body []byte, args A) (*Page, error) {
		p, err := decodePage(body)
		if err != nil {
			return nil, err
		}
		mt := mediaType(args)
		for i := range p.Results {
			if p.Results[i].MediaType == "" {
				p.Results[i].MediaType = mt
			}
		}
		return p, nil
	}
}

func constType[A any](mt string) func(A) string {
	return func(A) string { return mt }
}

// mediaTag returns base+"Movie" or base+"Tv".
func mediaTag(base, mediaType string) string {
	if mediaType == "tv" {
		return base + "Tv"
	}
	return base + "Movie"
}
