package template

import (
	"bytes"
	"fmt"
	"html"
)

// Section is one link on the landing page.
type Section struct {
	Title string
	Href  string
	Blurb string
}

// DefaultSections are the catalog lists reachable from the landing page.
var DefaultSections = []Section{
	{"Trending this week", "/browse/trending", "Movies and shows everyone is watching."},
	{"Now playing", "/browse/now-playing", "In theaters right now."},
	{"Top rated", "/browse/top-rated", "The best-reviewed movies of all time."},
	{"Upcoming", "/browse/upcoming", "Coming soon to theaters."},
	{"On the air", "/browse/on-air", "TV shows with new episodes."},
	{"Explore movies", "/browse/explore/movie", "Browse by popularity."},
	{"Explore TV", "/browse/explore/tv", "Browse by popularity."},
}

// RenderLanding produces the landing page for GET /browse.
func (r *Renderer) RenderLanding(m Meta, sections []Section) []byte {
	var buf bytes.Buffer
	r.writeHead(&buf, m, "landing", "Browse", "Browse trending movies and TV shows.", false)

	buf.WriteString(`  <!-- moviego: content -->
  <main>
    <h1>What do you want to watch?</h1>
    <form class="moviego-landing-form" action="/browse/search" method="get">
      <input type="search" name="query" placeholder="Search for a movie or TV show" autofocus>
      <button type="submit">Search</button>
    </form>
    <ul id="moviego-sections" class="moviego-grid">
`)
	for _, s := range sections {
		fmt.Fprintf(&buf, "      <li class=\"moviego-card\"><a href=\"%s\"><h3>%s</h3><p>%s</p></a></li>\n",
			html.EscapeString(s.Href), html.EscapeString(s.Title), html.EscapeString(s.Blurb))
	}
	fmt.Fprintf(&buf, "    </ul>\n    <p style=\"margin-top:24px;font-size:12px;\">moviego %s</p>\n  </main>\n", html.EscapeString(m.Version))
	writeFoot(&buf)
	return buf.Bytes()
}
