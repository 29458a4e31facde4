package render

import (
	"math"
	"strings"
	"testing"
)

func TestJSONRenderer_Render(t *testing.T) {
	r := NewJSONRenderer()
	payload := map[string]any{
		"page":    1,
		"results": []map[string]any{{"id": 550, "title": "Fight Club"}},
	}
	html, err := r.Render(payload, "discover")
	if err != nil {
		t.Fatal(err)
	}

	s := string(html)
	if !strings.Contains(s, `class="moviego-code-block"`) {
		t.Error("missing moviego-code-block class")
	}
	if !strings.Contains(s, `data-language="json"`) {
		t.Error("missing data-language attribute")
	}
	if !strings.Contains(s, `<span class="moviego-code-language">discover</span>`) {
		t.Error("missing label")
	}
	if !strings.Contains(s, `class="moviego-copy-btn"`) {
		t.Error("missing copy button")
	}
	if !strings.Contains(s, `class="chroma"`) {
		t.Error("missing chroma highlighting")
	}
	if !strings.Contains(s, "Fight Club") {
		t.Error("payload content missing")
	}
}

func TestJSONRenderer_LineCount(t *testing.T) {
	r := NewJSONRenderer()
	html, err := r.RenderRaw([]byte(`{"a":1,"b":2}`), "x")
	if err != nil {
		t.Fatal(err)
	}
	// {\n  "a": 1,\n  "b": 2\n}
	if !strings.Contains(string(html), `data-line-count="4"`) {
		t.Errorf("wrong line count: %s", html)
	}
}

func TestJSONRenderer_InvalidRawShownAsIs(t *testing.T) {
	r := NewJSONRenderer()
	html, err := r.RenderRaw([]byte(`{not json`), "x")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(html), "not json") {
		t.Errorf("raw content missing: %s", html)
	}
}

func TestJSONRenderer_EscapesLabel(t *testing.T) {
	r := NewJSONRenderer()
	html, err := r.RenderRaw([]byte(`{}`), `<b>x</b>`)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(html), "<b>x</b>") {
		t.Error("label not escaped")
	}
}

func TestJSONRenderer_UnmarshalableValue(t *testing.T) {
	r := NewJSONRenderer()
	if _, err := r.Render(math.Inf(1), "x"); err == nil {
		t.Error("expected error for +Inf")
	}
}

func TestHighlightCSS(t *testing.T) {
	for _, name := range []string{"github", "github-dark", "no-such-style"} {
		css, err := HighlightCSS(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !strings.Contains(css, ".chroma") {
			t.Errorf("%s: no .chroma rules", name)
		}
	}
}
