package tmdb

import (
	"strings"
	"testing"
)

func TestFingerprint_IgnoresPage(t *testing.T) {
	a, err := discoverEndpoint.Fingerprint(DiscoverArgs{MediaType: "movie", PageNo: 1})
	if err != nil {
		t.Fatal(err)
	}
	b, err := discoverEndpoint.Fingerprint(DiscoverArgs{MediaType: "movie", PageNo: 7})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("fingerprints differ across pages: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "discover:") {
		t.Errorf("fingerprint %q lacks endpoint prefix", a)
	}
}

func TestFingerprint_DistinguishesArgs(t *testing.T) {
	movie, _ := discoverEndpoint.Fingerprint(DiscoverArgs{MediaType: "movie", PageNo: 1})
	tv, _ := discoverEndpoint.Fingerprint(DiscoverArgs{MediaType: "tv", PageNo: 1})
	if movie == tv {
		t.Error("movie and tv share a fingerprint")
	}

	alien, _ := searchEndpoint.Fingerprint(SearchArgs{Query: "alien", PageNo: 1})
	batman, _ := searchEndpoint.Fingerprint(SearchArgs{Query: "batman", PageNo: 1})
	if alien == batman {
		t.Error("different queries share a fingerprint")
	}
}

func TestForceRefetch(t *testing.T) {
	if !searchEndpoint.ForceRefetch(SearchArgs{Query: "a", PageNo: 1}, SearchArgs{Query: "a", PageNo: 2}) {
		t.Error("page change should force a refetch")
	}
	if !searchEndpoint.ForceRefetch(SearchArgs{Query: "a", PageNo: 1}, SearchArgs{Query: "b", PageNo: 1}) {
		t.Error("query change should force a refetch")
	}
	if searchEndpoint.ForceRefetch(SearchArgs{Query: "a", PageNo: 2}, SearchArgs{Query: "a", PageNo: 2}) {
		t.Error("unchanged args should not force a refetch")
	}
	if discoverEndpoint.ForceRefetch(DiscoverArgs{MediaType: "tv", PageNo: 3}, DiscoverArgs{MediaType: "tv", PageNo: 3}) {
		t.Error("unchanged page should not force a refetch")
	}
}

func TestEndpointPaths(t *testing.T) {
	m := MediaArgs{MediaType: "tv", MediaID: 42}
	tests := []struct {
		got, want string
	}{
		{popularEndpoint.Path(MediaTypeArgs{MediaType: "movie"}), "/movie/popular"},
		{discoverEndpoint.Path(DiscoverArgs{MediaType: "tv", PageNo: 2}), "/discover/tv"},
		{detailsEndpoint.Path(m), "/tv/42"},
		{creditsEndpoint.Path(m), "/tv/42/credits"},
		{similarEndpoint.Path(m), "/tv/42/similar"},
		{recommendedEndpoint.Path(m), "/tv/42/recommendations"},
		{videosEndpoint.Path(m), "/tv/42/videos"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("path = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestEndpointTags(t *testing.T) {
	tags := detailsEndpoint.Tags(MediaArgs{MediaType: "movie", MediaID: 7})
	if len(tags) != 1 || tags[0].Type != "MediaDetailsMovie" || tags[0].ID != "7" {
		t.Errorf("details tags = %v", tags)
	}
	tags = searchEndpoint.Tags(SearchArgs{Query: "alien", PageNo: 2})
	if len(tags) != 2 || tags[1].ID != "alien-page-2" {
		t.Errorf("search tags = %v", tags)
	}
}

func TestImageConfig(t *testing.T) {
	body := `{"images":{"secure_base_url":"https://img.test/p/",
		"poster_sizes":["w92","w154","w185","w342","w500","original"],
		"backdrop_sizes":["w300","w780","w1280","original"],
		"profile_sizes":["w45","w185","h632","original"]}}`
	ic, err := decodeImageConfig([]byte(body), NoArgs{})
	if err != nil {
		t.Fatal(err)
	}
	if ic.Poster != "https://img.test/p/w342" {
		t.Errorf("Poster = %q", ic.Poster)
	}
	if ic.Backdrop != "https://img.test/p/w1280" {
		t.Errorf("Backdrop = %q", ic.Backdrop)
	}
	if ic.Profile != "https://img.test/p/w185" {
		t.Errorf("Profile = %q", ic.Profile)
	}
	if got := ic.PosterURL("/x.jpg"); got != "https://img.test/p/w342/x.jpg" {
		t.Errorf("PosterURL = %q", got)
	}
	if got := ic.PosterURL(""); got != "" {
		t.Errorf("PosterURL(\"\") = %q, want empty", got)
	}
}

func TestImageConfig_Fallbacks(t *testing.T) {
	ic, err := decodeImageConfig([]byte(`{"images":{"poster_sizes":["w92"]}}`), NoArgs{})
	if err != nil {
		t.Fatal(err)
	}
	if ic.BaseURL != FallbackImageBaseURL {
		t.Errorf("BaseURL = %q", ic.BaseURL)
	}
	if ic.Poster != FallbackImageBaseURL+"w92" {
		t.Errorf("Poster = %q, want largest available below target", ic.Poster)
	}
	if ic.Backdrop != FallbackImageBaseURL+FallbackBackdropSize {
		t.Errorf("Backdrop = %q", ic.Backdrop)
	}
	if DefaultImageConfig().Profile != FallbackImageBaseURL+FallbackProfileSize {
		t.Errorf("DefaultImageConfig().Profile = %q", DefaultImageConfig().Profile)
	}
}
