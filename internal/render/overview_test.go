package render

import (
	"strings"
	"testing"
)

func TestOverviewRenderer_Paragraphs(t *testing.T) {
	r := NewOverviewRenderer()
	src := "A ticking-time-bomb insomniac and a slippery soap salesman channel primal male aggression.\n\nTheir concept catches on."
	html, meta, err := r.Render(src)
	if err != nil {
		t.Fatal(err)
	}

	s := string(html)
	if strings.Count(s, "<p>") != 2 {
		t.Errorf("expected 2 paragraphs, got %s", s)
	}
	if meta.Paragraphs != 2 {
		t.Errorf("Paragraphs = %d, want 2", meta.Paragraphs)
	}
	if meta.Words != 16 {
		t.Errorf("Words = %d, want 16", meta.Words)
	}
	if !strings.HasPrefix(meta.Summary, "A ticking-time-bomb insomniac") || strings.Contains(meta.Summary, "concept") {
		t.Errorf("Summary = %q", meta.Summary)
	}
}

func TestOverviewRenderer_Empty(t *testing.T) {
	r := NewOverviewRenderer()
	html, meta, err := r.Render("  \n ")
	if err != nil {
		t.Fatal(err)
	}
	if len(html) != 0 || meta.Paragraphs != 0 {
		t.Errorf("empty overview rendered %q (%+v)", html, meta)
	}
}

func TestOverviewRenderer_HardWraps(t *testing.T) {
	r := NewOverviewRenderer()
	html, _, err := r.Render("line one\nline two")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(html), "<br") {
		t.Errorf("single newline should become a line break: %s", html)
	}
}

func TestOverviewRenderer_Emphasis(t *testing.T) {
	r := NewOverviewRenderer()
	html, _, err := r.Render("The *first* rule.")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(html), "<em>first</em>") {
		t.Errorf("emphasis missing: %s", html)
	}
}

func TestOverviewRenderer_DropsRawHTML(t *testing.T) {
	r := NewOverviewRenderer()
	html, _, err := r.Render(`Plot <script>alert(1)</script> twist <img src=x onerror="evil()">`)
	if err != nil {
		t.Fatal(err)
	}
	s := string(html)
	if strings.Contains(s, "<script") || strings.Contains(s, "onerror") {
		t.Errorf("raw HTML survived: %s", s)
	}
	if !strings.Contains(s, "Plot") || !strings.Contains(s, "twist") {
		t.Errorf("text lost: %s", s)
	}
}

func TestOverviewRenderer_Linkify(t *testing.T) {
	r := NewOverviewRenderer()
	html, _, err := r.Render("More at https://www.themoviedb.org/movie/550 today.")
	if err != nil {
		t.Fatal(err)
	}
	s := string(html)
	if !strings.Contains(s, `href="https://www.themoviedb.org/movie/550"`) {
		t.Errorf("bare link not linked: %s", s)
	}
	if !strings.Contains(s, "nofollow") {
		t.Errorf("link not sanitized: %s", s)
	}
}
