package template

import (
	"bytes"
	"fmt"
	"html"
	htmltemplate "html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/air-gapped/moviego/internal/render"
)

// Meta is the per-request state every page carries as root data attributes.
type Meta struct {
	Version      string
	DefaultTheme string
	Endpoint     string
	Fingerprint  string
	CacheStatus  string
	Attempts     int
	Query        string // current search text, echoed into the header form
}

// Card is one catalog item in a grid.
type Card struct {
	Title     string
	Href      string
	PosterURL string
	Year      string
	Rating    float64
	MediaType string
}

// ListData holds a grid page: trending, explore or search results.
type ListData struct {
	Meta
	Heading   string
	MediaType string
	Cards     []Card
	Page      int
	HasMore   bool
	NextURL   string
	EmptyHint string
}

// Person is one credited cast or crew member.
type Person struct {
	Name       string
	Role       string
	ProfileURL string
}

// DetailsData holds a details page.
type DetailsData struct {
	Meta
	Title       string
	MediaType   string
	ID          int64
	Tagline     string
	Overview    htmltemplate.HTML
	Summary     string
	PosterURL   string
	BackdropURL string
	Year        string
	Runtime     int
	Rating      float64
	Genres      []string
	Directors   []string
	Cast        []Person
	TrailerURL  string
	Similar     []Card
	RawURL      string
}

// RawData holds the highlighted JSON view of any data page.
type RawData struct {
	Meta
	Title   string
	Content htmltemplate.HTML
}

// ErrorData holds data for error pages.
type ErrorData struct {
	Meta
	StatusCode int
	Kind       string
	Message    string
	Hint       string
	Retryable  bool
	RetryURL   string
}

// Renderer renders full HTML pages.
type Renderer struct {
	chromaLightCSS string
	chromaDarkCSS  string
}

// NewRenderer creates a template renderer with the highlight stylesheets
// used by raw views.
func NewRenderer() (*Renderer, error) {
	light, err := render.HighlightCSS("github")
	if err != nil {
		return nil, err
	}
	dark, err := render.HighlightCSS("github-dark")
	if err != nil {
		return nil, err
	}
	return &Renderer{chromaLightCSS: light, chromaDarkCSS: dark}, nil
}

func (r *Renderer) writeHead(buf *bytes.Buffer, m Meta, contentType, title, description string, highlight bool) {
	theme := m.DefaultTheme
	if theme == "" {
		theme = "auto"
	}
	fmt.Fprintf(buf, `<!DOCTYPE html>
<html lang="en"
      data-theme="%s"
      data-moviego-version="%s"
      data-content-type="%s"
      data-endpoint="%s"
      data-fingerprint="%s"
      data-cache-status="%s"
      data-attempts="%d">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>%s · moviego</title>
`,
		html.EscapeString(theme),
		html.EscapeString(m.Version),
		html.EscapeString(contentType),
		html.EscapeString(m.Endpoint),
		html.EscapeString(m.Fingerprint),
		html.EscapeString(m.CacheStatus),
		m.Attempts,
		html.EscapeString(title),
	)
	if description != "" {
		fmt.Fprintf(buf, "  <meta name=\"description\" content=\"%s\">\n", html.EscapeString(description))
	}
	fmt.Fprintf(buf, "  <link rel=\"icon\" type=\"image/svg+xml\" href=\"data:image/svg+xml,%s\">\n  <style>\n", faviconSVG)
	if highlight {
		writeThemeCSS(buf, r.chromaLightCSS, r.chromaDarkCSS)
	}
	writeLayoutCSS(buf)
	buf.WriteString("  </style>\n</head>\n<body>\n")
	writeHeader(buf, m)
}

func writeHeader(buf *bytes.Buffer, m Meta) {
	fmt.Fprintf(buf, `  <!-- moviego: header -->
  <header id="moviego-header">
    <nav>
      <a id="moviego-brand" href="/browse">moviego</a>
      <a href="/browse/explore/movie">Movies</a>
      <a href="/browse/explore/tv">TV</a>
    </nav>
    <form id="moviego-search" action="/browse/search" method="get" role="search">
      <input type="search" name="query" value="%s" placeholder="Search movies and TV">
    </form>
    <div class="moviego-controls">
`, html.EscapeString(m.Query))
	if m.CacheStatus != "" {
		fmt.Fprintf(buf, "      <span id=\"moviego-cache\" class=\"moviego-badge\" title=\"Query cache\">%s</span>\n", html.EscapeString(m.CacheStatus))
	}
	buf.WriteString("      <span id=\"moviego-offline\" class=\"moviego-badge\" hidden>offline</span>\n")
	buf.WriteString("      <button id=\"moviego-theme-toggle\" title=\"Toggle theme\">&#x25D1;</button>\n")
	buf.WriteString("    </div>\n  </header>\n")
}

func writeFoot(buf *bytes.Buffer) {
	buf.WriteString("  <!-- moviego: scripts -->\n")
	writeScripts(buf)
	buf.WriteString("</body>\n</html>\n")
}

// RenderList produces a grid page. An empty card list renders the empty
// state instead of an empty grid.
func (r *Renderer) RenderList(data ListData) []byte {
	var buf bytes.Buffer
	r.writeHead(&buf, data.Meta, "list", data.Heading, "", false)

	buf.WriteString("  <!-- moviego: content -->\n  <main>\n")
	fmt.Fprintf(&buf, "    <h1>%s</h1>\n", html.EscapeString(data.Heading))

	if len(data.Cards) == 0 {
		hint := data.EmptyHint
		if hint == "" {
			hint = "Nothing to show here yet."
		}
		fmt.Fprintf(&buf, `    <div id="moviego-empty" data-page="%d">
      <h1>No results</h1>
      <p>%s</p>
      <p><a href="/browse">Back to trending</a></p>
    </div>
`, data.Page, html.EscapeString(hint))
	} else {
		fmt.Fprintf(&buf, "    <ul id=\"moviego-results\" class=\"moviego-grid\" data-count=\"%d\" data-page=\"%d\" data-has-more=\"%v\">\n",
			len(data.Cards), data.Page, data.HasMore)
		for _, c := range data.Cards {
			writeCard(&buf, c)
		}
		buf.WriteString("    </ul>\n")
		if data.HasMore && data.NextURL != "" {
			fmt.Fprintf(&buf, "    <div class=\"moviego-pager\"><span></span><a id=\"moviego-more\" href=\"%s\">Load more</a></div>\n",
				html.EscapeString(data.NextURL))
		}
	}

	buf.WriteString("  </main>\n")
	writeFoot(&buf)
	return buf.Bytes()
}

func writeCard(buf *bytes.Buffer, c Card) {
	fmt.Fprintf(buf, "      <li class=\"moviego-card\" data-media-type=\"%s\">\n        <a href=\"%s\">\n",
		html.EscapeString(c.MediaType), html.EscapeString(c.Href))
	if c.PosterURL != "" {
		fmt.Fprintf(buf, "          <img src=\"%s\" alt=\"%s\" loading=\"lazy\">\n",
			html.EscapeString(c.PosterURL), html.EscapeString(c.Title))
	} else {
		buf.WriteString("          <div class=\"moviego-noposter\"></div>\n")
	}
	fmt.Fprintf(buf, "          <h3>%s</h3>\n", html.EscapeString(c.Title))
	fmt.Fprintf(buf, "          <p>%s</p>\n", html.EscapeString(cardLine(c)))
	buf.WriteString("        </a>\n      </li>\n")
}

func cardLine(c Card) string {
	year := c.Year
	if len(year) >= 4 {
		year = year[:4]
	}
	switch {
	case year != "" && c.Rating > 0:
		return fmt.Sprintf("%s · ★ %.1f", year, c.Rating)
	case c.Rating > 0:
		return fmt.Sprintf("★ %.1f", c.Rating)
	default:
		return year
	}
}

// RenderDetails produces a details page.
func (r *Renderer) RenderDetails(data DetailsData) []byte {
	var buf bytes.Buffer
	r.writeHead(&buf, data.Meta, "details", data.Title, data.Summary, false)

	buf.WriteString("  <!-- moviego: content -->\n  <main>\n")
	fmt.Fprintf(&buf, "    <article id=\"moviego-details\" data-media-type=\"%s\" data-id=\"%d\">\n",
		html.EscapeString(data.MediaType), data.ID)

	buf.WriteString("      <div>\n")
	if data.PosterURL != "" {
		fmt.Fprintf(&buf, "        <img class=\"moviego-poster\" src=\"%s\" alt=\"%s\">\n",
			html.EscapeString(data.PosterURL), html.EscapeString(data.Title))
	}
	buf.WriteString("      </div>\n      <div>\n")
	fmt.Fprintf(&buf, "        <h1>%s</h1>\n", html.EscapeString(data.Title))
	if data.Tagline != "" {
		fmt.Fprintf(&buf, "        <p class=\"moviego-tagline\">%s</p>\n", html.EscapeString(data.Tagline))
	}

	buf.WriteString("        <div class=\"moviego-facts\">\n")
	if len(data.Year) >= 4 {
		fmt.Fprintf(&buf, "          <span id=\"moviego-year\">%s</span>\n", html.EscapeString(data.Year[:4]))
	}
	if data.Runtime > 0 {
		fmt.Fprintf(&buf, "          <span id=\"moviego-runtime\">%s</span>\n", formatRuntime(data.Runtime))
	}
	if data.Rating > 0 {
		fmt.Fprintf(&buf, "          <span id=\"moviego-rating\">★ %.1f</span>\n", data.Rating)
	}
	buf.WriteString("        </div>\n")

	if len(data.Genres) > 0 {
		buf.WriteString("        <ul class=\"moviego-genres\">\n")
		for _, g := range data.Genres {
			fmt.Fprintf(&buf, "          <li class=\"moviego-badge\">%s</li>\n", html.EscapeString(g))
		}
		buf.WriteString("        </ul>\n")
	}
	if len(data.Directors) > 0 {
		fmt.Fprintf(&buf, "        <p id=\"moviego-directors\">Directed by %s</p>\n", html.EscapeString(joinNames(data.Directors)))
	}

	buf.WriteString("        <section id=\"moviego-overview\">\n")
	if data.Overview != "" {
		fmt.Fprintf(&buf, "          %s\n", data.Overview)
	} else {
		buf.WriteString("          <p>No overview available.</p>\n")
	}
	buf.WriteString("        </section>\n")

	if data.TrailerURL != "" {
		fmt.Fprintf(&buf, "        <p><a id=\"moviego-trailer\" href=\"%s\" rel=\"noopener\" target=\"_blank\">Watch trailer</a></p>\n",
			html.EscapeString(data.TrailerURL))
	}
	if data.RawURL != "" {
		fmt.Fprintf(&buf, "        <p><a id=\"moviego-raw\" href=\"%s\">View data</a></p>\n", html.EscapeString(data.RawURL))
	}
	buf.WriteString("      </div>\n    </article>\n")

	if len(data.Cast) > 0 {
		buf.WriteString("    <h2>Cast</h2>\n    <ul id=\"moviego-cast\" class=\"moviego-cast\">\n")
		for _, p := range data.Cast {
			buf.WriteString("      <li>\n")
			if p.ProfileURL != "" {
				fmt.Fprintf(&buf, "        <img src=\"%s\" alt=\"%s\" loading=\"lazy\">\n",
					html.EscapeString(p.ProfileURL), html.EscapeString(p.Name))
			}
			fmt.Fprintf(&buf, "        <span>%s</span>\n", html.EscapeString(p.Name))
			if p.Role != "" {
				fmt.Fprintf(&buf, "        <span>%s</span>\n", html.EscapeString(p.Role))
			}
			buf.WriteString("      </li>\n")
		}
		buf.WriteString("    </ul>\n")
	}

	if len(data.Similar) > 0 {
		buf.WriteString("    <h2>More like this</h2>\n    <ul id=\"moviego-similar\" class=\"moviego-grid\">\n")
		for _, c := range data.Similar {
			writeCard(&buf, c)
		}
		buf.WriteString("    </ul>\n")
	}

	buf.WriteString("  </main>\n")
	writeFoot(&buf)
	return buf.Bytes()
}

// RenderRaw produces the highlighted JSON view.
func (r *Renderer) RenderRaw(data RawData) []byte {
	var buf bytes.Buffer
	r.writeHead(&buf, data.Meta, "raw", data.Title, "", true)
	buf.WriteString("  <!-- moviego: content -->\n  <main>\n")
	fmt.Fprintf(&buf, "    <h1>%s</h1>\n    <div id=\"moviego-content\">\n      %s\n    </div>\n",
		html.EscapeString(data.Title), data.Content)
	buf.WriteString("  </main>\n")
	writeFoot(&buf)
	return buf.Bytes()
}

// RenderError produces an error page. A retry link is offered only for
// failures that may succeed on a later attempt.
func (r *Renderer) RenderError(data ErrorData) []byte {
	var buf bytes.Buffer
	r.writeHead(&buf, data.Meta, "error", "Error", "", false)

	fmt.Fprintf(&buf, `  <!-- moviego: content -->
  <main>
    <div id="moviego-error"
         data-status-code="%d"
         data-error-kind="%s"
         data-retryable="%v">
      <h1>%d %s</h1>
      <p>%s</p>
`,
		data.StatusCode,
		html.EscapeString(data.Kind),
		data.Retryable,
		data.StatusCode, html.EscapeString(http.StatusText(data.StatusCode)),
		html.EscapeString(data.Message),
	)
	if data.Hint != "" {
		fmt.Fprintf(&buf, "      <p class=\"moviego-hint\">%s</p>\n", html.EscapeString(data.Hint))
	}
	if data.Retryable && data.RetryURL != "" {
		fmt.Fprintf(&buf, "      <p><a id=\"moviego-retry\" href=\"%s\">Try again</a></p>\n", html.EscapeString(data.RetryURL))
	}
	buf.WriteString("      <p><a href=\"/browse\">Back to trending</a></p>\n    </div>\n  </main>\n")
	writeFoot(&buf)
	return buf.Bytes()
}

// PageURL returns base with its page query parameter set to page.
func PageURL(base *url.URL, page int) string {
	u := *base
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.RequestURI()
}

func formatRuntime(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	var b bytes.Buffer
	for i, n := range names {
		switch {
		case i == 0:
		case i == len(names)-1:
			b.WriteString(" and ")
		default:
			b.WriteString(", ")
		}
		b.WriteString(n)
	}
	return b.String()
}
