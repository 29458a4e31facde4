package server

import (
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/air-gapped/moviego/internal/tmdb"
	moviegotemplate "github.com/air-gapped/moviego/internal/template"
)

const maxCast = 12

// lists are the fixed catalog lists served under /browse/{list}.
var lists = map[string]string{
	"trending":    "Trending this week",
	"now-playing": "Now playing",
	"top-rated":   "Top rated",
	"upcoming":    "Upcoming",
	"on-air":      "On the air",
}

func wantsRaw(r *http.Request) bool {
	return r.URL.Query().Get("format") == "raw"
}

func (s *Server) meta(env envelope, query string) moviegotemplate.Meta {
	return moviegotemplate.Meta{
		Version:      s.version,
		DefaultTheme: s.cfg.DefaultTheme,
		Endpoint:     env.Endpoint,
		Fingerprint:  env.Fingerprint,
		CacheStatus:  string(env.Cache),
		Attempts:     env.Attempts,
		Query:        query,
	}
}

// images returns the image configuration, falling back to the documented
// defaults when it cannot be fetched.
func (s *Server) images(ctx context.Context) tmdb.ImageConfig {
	res, err := s.api.ImageConfig(ctx)
	if err != nil || res.Skipped {
		return tmdb.DefaultImageConfig()
	}
	return res.Data
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	setResponseHeaders(w, envelope{})
	writeHTML(w, http.StatusOK, s.tmpl.RenderLanding(s.meta(envelope{}, ""), moviegotemplate.DefaultSections))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("list")
	heading, ok := lists[name]
	if !ok {
		s.renderError(w, r, envelope{Endpoint: name}, &tmdb.Error{
			Endpoint: name,
			Kind:     tmdb.KindUnknown,
			Message:  "There is no list called " + strconv.Quote(name) + ".",
			Status:   http.StatusNotFound,
		})
		return
	}
	s.renderPage(w, r, name, heading, params{}, "")
}

func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	mediaType := r.PathValue("mediaType")
	p := parseParams(r.URL.Query())
	p.MediaType = mediaType
	heading := "Explore movies"
	if mediaType == "tv" {
		heading = "Explore TV shows"
	}
	s.renderPage(w, r, "discover", heading, p, "")
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	p := parseParams(r.URL.Query())
	p.Query = strings.TrimSpace(p.Query)
	if p.Query == "" {
		env := envelope{Endpoint: "search"}
		setResponseHeaders(w, env)
		writeHTML(w, http.StatusOK, s.tmpl.RenderList(moviegotemplate.ListData{
			Meta:      s.meta(env, ""),
			Heading:   "Search",
			EmptyHint: "Type a title to search movies and TV shows.",
		}))
		return
	}
	s.renderPage(w, r, "search", fmt.Sprintf("Results for %q", p.Query), p, p.Query)
}

// renderPage runs a list endpoint and renders its accumulated results.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, endpoint, heading string, p params, query string) {
	ctx := r.Context()
	env, err := s.query(ctx, endpoint, p)
	setResponseHeaders(w, env)
	if err != nil {
		s.renderError(w, r, env, err)
		return
	}
	if env.Skipped {
		s.renderSkipped(w, env, query)
		return
	}
	if wantsRaw(r) {
		s.renderRaw(w, s.meta(env, query), heading, env.Endpoint, env)
		return
	}

	page, _ := env.Data.(*tmdb.Page)
	images := s.images(ctx)
	data := moviegotemplate.ListData{
		Meta:      s.meta(env, query),
		Heading:   heading,
		MediaType: p.MediaType,
		EmptyHint: "Nothing matched. Try a different title.",
	}
	if page != nil {
		data.Cards = cards(page.Results, p.MediaType, images)
		data.Page = page.Page
		data.HasMore = page.HasMore()
		if data.HasMore {
			data.NextURL = moviegotemplate.PageURL(r.URL, page.Page+1)
		}
	}
	writeHTML(w, http.StatusOK, s.tmpl.RenderList(data))
}

func cards(results []tmdb.Media, mediaType string, images tmdb.ImageConfig) []moviegotemplate.Card {
	out := make([]moviegotemplate.Card, 0, len(results))
	for _, m := range results {
		mt := m.MediaType
		if mt == "" {
			mt = mediaType
		}
		if mt != "movie" && mt != "tv" {
			// People appear in multi search; they have no details page.
			continue
		}
		out = append(out, moviegotemplate.Card{
			Title:     m.DisplayTitle(),
			Href:      fmt.Sprintf("/browse/%s/%d", mt, m.ID),
			PosterURL: images.PosterURL(m.PosterPath),
			Year:      m.Date(),
			Rating:    m.VoteAverage,
			MediaType: mt,
		})
	}
	return out
}

// detailsBundle is everything a details page shows.
type detailsBundle struct {
	Details  envelope `json:"details"`
	Credits  envelope `json:"credits"`
	Similar  envelope `json:"similar"`
	Videos   envelope `json:"videos"`
	optional []error  `json:"-"`
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := params{MediaType: r.PathValue("mediaType")}
	if id, err := strconv.ParseInt(r.PathValue("id"), 10, 64); err == nil {
		p.ID = id
	}

	b, err := s.fetchDetails(ctx, p)
	setResponseHeaders(w, b.Details)
	if err != nil {
		s.renderError(w, r, b.Details, err)
		return
	}
	if b.Details.Skipped {
		s.renderSkipped(w, b.Details, "")
		return
	}
	for _, e := range b.optional {
		s.logger.Warn("details section unavailable", "media_type", p.MediaType, "id", p.ID, "error", e)
	}

	details, _ := b.Details.Data.(*tmdb.Details)
	if details == nil {
		s.renderError(w, r, b.Details, errors.New("details payload missing"))
		return
	}
	if wantsRaw(r) {
		s.renderRaw(w, s.meta(b.Details, ""), details.DisplayTitle(), "details", b)
		return
	}

	images := s.images(ctx)
	overview, meta, err := s.overview.Render(details.Overview)
	if err != nil {
		s.logger.Warn("render overview failed", "id", p.ID, "error", err)
		overview = nil
	}

	data := moviegotemplate.DetailsData{
		Meta:        s.meta(b.Details, ""),
		Title:       details.DisplayTitle(),
		MediaType:   p.MediaType,
		ID:          details.ID,
		Tagline:     details.Tagline,
		Overview:    htmltemplate.HTML(overview),
		PosterURL:   images.PosterURL(details.PosterPath),
		BackdropURL: images.BackdropURL(details.BackdropPath),
		Year:        details.Date(),
		Runtime:     details.Runtime,
		Rating:      details.VoteAverage,
		RawURL:      r.URL.Path + "?format=raw",
	}
	if meta != nil {
		data.Summary = meta.Summary
	}
	if data.Runtime == 0 && len(details.EpisodeRunTime) > 0 {
		data.Runtime = details.EpisodeRunTime[0]
	}
	for _, g := range details.Genres {
		data.Genres = append(data.Genres, g.Name)
	}
	if credits, ok := b.Credits.Data.(*tmdb.Credits); ok && credits != nil {
		for _, d := range credits.Directors() {
			data.Directors = append(data.Directors, d.Name)
		}
		for i, c := range credits.Cast {
			if i == maxCast {
				break
			}
			data.Cast = append(data.Cast, moviegotemplate.Person{
				Name:       c.Name,
				Role:       c.Character,
				ProfileURL: images.ProfileURL(c.ProfilePath),
			})
		}
	}
	if similar, ok := b.Similar.Data.(*tmdb.Page); ok && similar != nil {
		data.Similar = cards(similar.Results, p.MediaType, images)
	}
	if videos, ok := b.Videos.Data.(*tmdb.Videos); ok && videos != nil {
		if t := videos.Trailer(); t != nil {
			data.TrailerURL = "https://www.youtube.com/watch?v=" + url.QueryEscape(t.Key)
		}
	}
	writeHTML(w, http.StatusOK, s.tmpl.RenderDetails(data))
}

// fetchDetails loads the details payload and its optional sections
// concurrently. Only a details failure fails the page.
func (s *Server) fetchDetails(ctx context.Context, p params) (detailsBundle, error) {
	var b detailsBundle
	var credErr, simErr, vidErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		env, err := s.query(gctx, "details", p)
		b.Details = env
		return err
	})
	g.Go(func() error {
		b.Credits, credErr = s.query(gctx, "credits", p)
		return nil
	})
	g.Go(func() error {
		b.Similar, simErr = s.query(gctx, "similar", p)
		return nil
	})
	g.Go(func() error {
		b.Videos, vidErr = s.query(gctx, "videos", p)
		return nil
	})
	err := g.Wait()

	for _, e := range []error{credErr, simErr, vidErr} {
		if e != nil {
			b.optional = append(b.optional, e)
		}
	}
	return b, err
}

func (s *Server) renderRaw(w http.ResponseWriter, meta moviegotemplate.Meta, title, label string, v any) {
	content, err := s.jsonView.Render(v, label)
	if err != nil {
		s.logger.Error("render raw view failed", "endpoint", label, "error", err)
		writeHTML(w, http.StatusInternalServerError, s.tmpl.RenderError(moviegotemplate.ErrorData{
			Meta:       meta,
			StatusCode: http.StatusInternalServerError,
			Kind:       string(tmdb.KindUnknown),
			Message:    "Failed to render data view.",
		}))
		return
	}
	writeHTML(w, http.StatusOK, s.tmpl.RenderRaw(moviegotemplate.RawData{
		Meta:    meta,
		Title:   title,
		Content: htmltemplate.HTML(content),
	}))
}

func (s *Server) renderSkipped(w http.ResponseWriter, env envelope, query string) {
	writeHTML(w, http.StatusBadRequest, s.tmpl.RenderError(moviegotemplate.ErrorData{
		Meta:       s.meta(env, query),
		StatusCode: http.StatusBadRequest,
		Kind:       "skipped",
		Message:    "This page needs a valid media type and id.",
	}))
}

// renderError renders the error page for a failed query. A canceled
// request whose client is gone gets no response.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, env envelope, err error) {
	var apiErr *tmdb.Error
	if !errors.As(err, &apiErr) {
		s.logger.Error("page query failed", "endpoint", env.Endpoint, "error", err)
		apiErr = &tmdb.Error{Endpoint: env.Endpoint, Kind: tmdb.KindUnknown, Message: "Unknown error occurred"}
	}
	if apiErr.Kind == tmdb.KindCanceled && r.Context().Err() != nil {
		return
	}

	status := statusFor(apiErr)
	w.Header().Set("X-Moviego-Error-Kind", string(apiErr.Kind))
	writeHTML(w, status, s.tmpl.RenderError(moviegotemplate.ErrorData{
		Meta:       s.meta(env, r.URL.Query().Get("query")),
		StatusCode: status,
		Kind:       string(apiErr.Kind),
		Message:    apiErr.Message,
		Hint:       apiErr.Hint(),
		Retryable:  apiErr.Retryable,
		RetryURL:   r.URL.RequestURI(),
	}))
}
