package template

import (
	"html/template"
	"net/url"
	"strings"
	"testing"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRenderList_Cards(t *testing.T) {
	r := newRenderer(t)
	html := string(r.RenderList(ListData{
		Meta:    Meta{Version: "v0.1.0", DefaultTheme: "dark", Endpoint: "trending", Fingerprint: "trending:00ab", CacheStatus: "hit", Attempts: 1},
		Heading: "Trending",
		Cards: []Card{
			{Title: "Fight Club", Href: "/browse/movie/550", PosterURL: "https://image.tmdb.org/t/p/w342/a.jpg", Year: "1999-10-15", Rating: 8.4, MediaType: "movie"},
			{Title: "Severance", Href: "/browse/tv/95396", MediaType: "tv"},
		},
		Page:    1,
		HasMore: true,
		NextURL: "/browse/trending?page=2",
	}))

	checks := []string{
		`data-theme="dark"`,
		`data-moviego-version="v0.1.0"`,
		`data-content-type="list"`,
		`data-endpoint="trending"`,
		`data-fingerprint="trending:00ab"`,
		`data-cache-status="hit"`,
		`data-attempts="1"`,
		`id="moviego-header"`,
		`id="moviego-theme-toggle"`,
		`id="moviego-results"`,
		`data-count="2"`,
		`data-has-more="true"`,
		`href="/browse/movie/550"`,
		`src="https://image.tmdb.org/t/p/w342/a.jpg"`,
		`1999 · ★ 8.4`,
		`class="moviego-noposter"`,
		`id="moviego-more" href="/browse/trending?page=2"`,
	}
	for _, c := range checks {
		if !strings.Contains(html, c) {
			t.Errorf("missing %s", c)
		}
	}
	if strings.Contains(html, `id="moviego-empty"`) {
		t.Error("empty state rendered for non-empty list")
	}
}

func TestRenderList_EmptyState(t *testing.T) {
	r := newRenderer(t)
	html := string(r.RenderList(ListData{
		Meta:      Meta{Query: "zzzz"},
		Heading:   `Results for "zzzz"`,
		EmptyHint: "Try a different title.",
		Page:      1,
	}))

	if !strings.Contains(html, `id="moviego-empty"`) {
		t.Error("missing empty state")
	}
	if !strings.Contains(html, "Try a different title.") {
		t.Error("missing empty hint")
	}
	if strings.Contains(html, `id="moviego-results"`) {
		t.Error("empty list rendered a results grid")
	}
	if !strings.Contains(html, `value="zzzz"`) {
		t.Error("search box does not echo query")
	}
}

func TestRenderList_NoMoreLinkOnLastPage(t *testing.T) {
	r := newRenderer(t)
	html := string(r.RenderList(ListData{
		Heading: "Trending",
		Cards:   []Card{{Title: "A", Href: "/a"}},
		HasMore: false,
		NextURL: "/browse/trending?page=2",
	}))
	if strings.Contains(html, "moviego-more") {
		t.Error("load more link on the last page")
	}
}

func TestRenderList_EscapesTitles(t *testing.T) {
	r := newRenderer(t)
	html := string(r.RenderList(ListData{
		Heading: "<b>x</b>",
		Cards:   []Card{{Title: `<script>alert(1)</script>`, Href: `/browse/movie/1"onclick="x`}},
	}))
	if strings.Contains(html, "<script>alert(1)</script>") || strings.Contains(html, "<b>x</b>") {
		t.Error("unescaped title")
	}
	if strings.Contains(html, `"onclick="x`) {
		t.Error("unescaped href")
	}
}

func TestRenderDetails(t *testing.T) {
	r := newRenderer(t)
	html := string(r.RenderDetails(DetailsData{
		Meta:       Meta{Endpoint: "details", CacheStatus: "miss"},
		Title:      "Fight Club",
		MediaType:  "movie",
		ID:         550,
		Tagline:    "Mischief. Mayhem. Soap.",
		Overview:   template.HTML("<p>A ticking-time-bomb insomniac.</p>"),
		Summary:    "A ticking-time-bomb insomniac.",
		PosterURL:  "https://image.tmdb.org/t/p/w342/p.jpg",
		Year:       "1999-10-15",
		Runtime:    139,
		Rating:     8.433,
		Genres:     []string{"Drama", "Thriller"},
		Directors:  []string{"David Fincher"},
		Cast:       []Person{{Name: "Brad Pitt", Role: "Tyler Durden", ProfileURL: "https://image.tmdb.org/t/p/w185/b.jpg"}},
		TrailerURL: "https://www.youtube.com/watch?v=BdJKm16Co6M",
		Similar:    []Card{{Title: "Se7en", Href: "/browse/movie/807"}},
		RawURL:     "/browse/movie/550?format=raw",
	}))

	checks := []string{
		`data-content-type="details"`,
		`<meta name="description" content="A ticking-time-bomb insomniac.">`,
		`id="moviego-details" data-media-type="movie" data-id="550"`,
		`<h1>Fight Club</h1>`,
		`Mischief. Mayhem. Soap.`,
		`<span id="moviego-year">1999</span>`,
		`<span id="moviego-runtime">2h 19m</span>`,
		`★ 8.4`,
		`>Drama</li>`,
		`Directed by David Fincher`,
		`<p>A ticking-time-bomb insomniac.</p>`,
		`id="moviego-trailer"`,
		`id="moviego-raw" href="/browse/movie/550?format=raw"`,
		`id="moviego-cast"`,
		`Tyler Durden`,
		`id="moviego-similar"`,
		`href="/browse/movie/807"`,
	}
	for _, c := range checks {
		if !strings.Contains(html, c) {
			t.Errorf("missing %s", c)
		}
	}
}

func TestRenderDetails_Minimal(t *testing.T) {
	r := newRenderer(t)
	html := string(r.RenderDetails(DetailsData{Title: "Unknown", MediaType: "tv", ID: 1}))
	if !strings.Contains(html, "No overview available.") {
		t.Error("missing overview placeholder")
	}
	for _, id := range []string{"moviego-cast", "moviego-similar", "moviego-trailer", "moviego-runtime"} {
		if strings.Contains(html, `id="`+id+`"`) {
			t.Errorf("unexpected %s for minimal details", id)
		}
	}
}

func TestRenderRaw_IncludesHighlightCSS(t *testing.T) {
	r := newRenderer(t)
	html := string(r.RenderRaw(RawData{Title: "discover", Content: template.HTML(`<div class="moviego-code-block"></div>`)}))
	if !strings.Contains(html, `[data-theme="dark"] .chroma`) {
		t.Error("missing scoped dark chroma CSS")
	}
	if !strings.Contains(html, `[data-theme="light"] .chroma`) {
		t.Error("missing scoped light chroma CSS")
	}
	if !strings.Contains(html, `<div class="moviego-code-block"></div>`) {
		t.Error("raw content missing")
	}
}

func TestRenderList_NoHighlightCSS(t *testing.T) {
	r := newRenderer(t)
	html := string(r.RenderList(ListData{Heading: "x"}))
	if strings.Contains(html, ".chroma") {
		t.Error("list page should not carry highlight CSS")
	}
}

func TestRenderError_Retryable(t *testing.T) {
	r := newRenderer(t)
	html := string(r.RenderError(ErrorData{
		StatusCode: 503,
		Kind:       "offline",
		Message:    "You appear to be offline.",
		Hint:       "Check your connection and try again.",
		Retryable:  true,
		RetryURL:   "/browse/movie/550",
	}))

	checks := []string{
		`data-content-type="error"`,
		`data-status-code="503"`,
		`data-error-kind="offline"`,
		`data-retryable="true"`,
		`503 Service Unavailable`,
		`You appear to be offline.`,
		`Check your connection and try again.`,
		`id="moviego-retry" href="/browse/movie/550"`,
	}
	for _, c := range checks {
		if !strings.Contains(html, c) {
			t.Errorf("missing %s", c)
		}
	}
}

func TestRenderError_TerminalHasNoRetry(t *testing.T) {
	r := newRenderer(t)
	html := string(r.RenderError(ErrorData{
		StatusCode: 401,
		Kind:       "auth",
		Message:    "Authentication failed.",
		Retryable:  false,
		RetryURL:   "/browse",
	}))
	if strings.Contains(html, "moviego-retry") {
		t.Error("retry link shown for non-retryable error")
	}
	if !strings.Contains(html, "401 Unauthorized") {
		t.Error("missing status text")
	}
}

func TestRenderLanding(t *testing.T) {
	r := newRenderer(t)
	html := string(r.RenderLanding(Meta{Version: "v1.2.3"}, DefaultSections))
	if !strings.Contains(html, `id="moviego-sections"`) {
		t.Error("missing sections")
	}
	for _, s := range DefaultSections {
		if !strings.Contains(html, `href="`+s.Href+`"`) {
			t.Errorf("missing section link %s", s.Href)
		}
	}
	if !strings.Contains(html, "moviego v1.2.3") {
		t.Error("missing version")
	}
}

func TestPageURL(t *testing.T) {
	u, _ := url.Parse("/browse/search?query=fight+club&page=1")
	got := PageURL(u, 2)
	if got != "/browse/search?page=2&query=fight+club" {
		t.Errorf("PageURL = %q", got)
	}
}

func TestFormatRuntime(t *testing.T) {
	tests := map[int]string{45: "45m", 60: "1h 0m", 139: "2h 19m"}
	for in, want := range tests {
		if got := formatRuntime(in); got != want {
			t.Errorf("formatRuntime(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestJoinNames(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"A"}, "A"},
		{[]string{"A", "B"}, "A and B"},
		{[]string{"A", "B", "C"}, "A, B and C"},
	}
	for _, tc := range tests {
		if got := joinNames(tc.in); got != tc.want {
			t.Errorf("joinNames(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPrefixChromaCSS(t *testing.T) {
	in := "/* Keyword */ .chroma .k { color: #000 }\n.bg { color: #fff }"
	got := prefixChromaCSS(in, `[data-theme="dark"]`)
	if !strings.Contains(got, `/* Keyword */ [data-theme="dark"] .chroma .k`) {
		t.Errorf("rule not scoped: %q", got)
	}
	if !strings.Contains(got, ".bg { color: #fff }") {
		t.Errorf("non-chroma rule changed: %q", got)
	}
}
