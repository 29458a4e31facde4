package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/air-gapped/moviego/internal/cache"
	"github.com/air-gapped/moviego/internal/logging"
	"github.com/air-gapped/moviego/internal/tmdb"
)

var errUnknownEndpoint = errors.New("unknown endpoint")

// envelope is the JSON shape of every successful data response.
type envelope struct {
	Endpoint    string       `json:"endpoint"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	Cache       cache.Status `json:"cache"`
	Skipped     bool         `json:"skipped"`
	Attempts    int          `json:"attempts"`
	Data        any          `json:"data"`
	FetchMs     int64        `json:"-"`
}

type errorEnvelope struct {
	Error tmdb.ErrorPayload `json:"error"`
}

func fromResult[T any](r tmdb.Result[T], err error) (envelope, error) {
	if err != nil {
		return envelope{}, err
	}
	env := envelope{
		Fingerprint: r.Fingerprint,
		Cache:       r.Cache,
		Skipped:     r.Skipped,
		Attempts:    r.Attempts,
		FetchMs:     r.FetchMs,
	}
	if !r.Skipped {
		env.Data = r.Data
	}
	return env, nil
}

// params are the query parameters the data routes accept. Malformed
// numbers become zero, which the endpoint validation treats as missing.
type params struct {
	MediaType string
	ID        int64
	Page      int
	Query     string
}

func parseParams(q url.Values) params {
	p := params{
		MediaType: q.Get("media_type"),
		Query:     q.Get("query"),
		Page:      1,
	}
	if id, err := strconv.ParseInt(q.Get("id"), 10, 64); err == nil {
		p.ID = id
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			page = 0
		}
		p.Page = page
	}
	return p
}

// query runs the named endpoint.
func (s *Server) query(ctx context.Context, endpoint string, p params) (envelope, error) {
	var (
		env envelope
		err error
	)
	media := tmdb.MediaArgs{MediaType: p.MediaType, MediaID: p.ID}

	switch endpoint {
	case "configuration":
		env, err = fromResult(s.api.ImageConfig(ctx))
	case "trending":
		env, err = fromResult(s.api.Trending(ctx))
	case "now-playing":
		env, err = fromResult(s.api.NowPlaying(ctx))
	case "top-rated":
		env, err = fromResult(s.api.TopRated(ctx))
	case "popular":
		env, err = fromResult(s.api.Popular(ctx, tmdb.MediaTypeArgs{MediaType: p.MediaType}))
	case "upcoming":
		env, err = fromResult(s.api.Upcoming(ctx))
	case "on-air":
		env, err = fromResult(s.api.OnAir(ctx))
	case "discover":
		env, err = fromResult(s.api.Discover(ctx, tmdb.DiscoverArgs{MediaType: p.MediaType, PageNo: p.Page}))
	case "search":
		env, err = fromResult(s.api.Search(ctx, tmdb.SearchArgs{Query: p.Query, PageNo: p.Page}))
	case "details":
		env, err = fromResult(s.api.Details(ctx, media))
	case "credits":
		env, err = fromResult(s.api.Credits(ctx, media))
	case "similar":
		env, err = fromResult(s.api.Similar(ctx, media))
	case "recommended":
		env, err = fromResult(s.api.Recommended(ctx, media))
	case "videos":
		env, err = fromResult(s.api.Videos(ctx, media))
	default:
		return envelope{Endpoint: endpoint}, fmt.Errorf("%w %q", errUnknownEndpoint, endpoint)
	}
	env.Endpoint = endpoint
	return env, err
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	endpoint := r.PathValue("endpoint")
	env, err := s.query(r.Context(), endpoint, parseParams(r.URL.Query()))
	setResponseHeaders(w, env)
	if err != nil {
		s.writeDataError(w, r, endpoint, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) writeDataError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	if errors.Is(err, errUnknownEndpoint) {
		writeJSON(w, http.StatusNotFound, errorEnvelope{Error: tmdb.ErrorPayload{
			Message:  "Unknown endpoint",
			Endpoint: endpoint,
			Kind:     tmdb.KindUnknown,
		}})
		return
	}

	var apiErr *tmdb.Error
	if !errors.As(err, &apiErr) {
		s.logger.Error("data query failed", "endpoint", endpoint, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: tmdb.ErrorPayload{
			Message:  "Internal error",
			Endpoint: endpoint,
			Kind:     tmdb.KindUnknown,
		}})
		return
	}
	if apiErr.Kind == tmdb.KindCanceled && r.Context().Err() != nil {
		return
	}
	w.Header().Set("X-Moviego-Error-Kind", string(apiErr.Kind))
	if apiErr.Attempts > 0 {
		w.Header().Set(logging.HeaderAttempts, strconv.Itoa(apiErr.Attempts))
	}
	writeJSON(w, statusFor(apiErr), errorEnvelope{Error: apiErr.Payload()})
}

// statusFor maps a normalized error to the status a data route responds
// with: the upstream status when there was one, otherwise 503 for network
// trouble and 502 for anything else.
func statusFor(e *tmdb.Error) int {
	if e.Status >= 400 {
		return e.Status
	}
	switch e.Kind {
	case tmdb.KindOffline, tmdb.KindTransientNetwork, tmdb.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

type invalidateResponse struct {
	Type        string `json:"type"`
	ID          string `json:"id,omitempty"`
	Invalidated int    `json:"invalidated"`
}

// handleInvalidate drops every cached query carrying the tag type (and id,
// when given) so the next request refetches.
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form"})
		return
	}
	tagType := r.Form.Get("type")
	if tagType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type is required"})
		return
	}
	id := r.Form.Get("id")
	n := s.api.Invalidate(cache.Tag{Type: tagType, ID: id})
	writeJSON(w, http.StatusOK, invalidateResponse{Type: tagType, ID: id, Invalidated: n})
}
