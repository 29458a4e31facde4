package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// JSONRenderer renders data payloads as highlighted, indented JSON.
type JSONRenderer struct {
	formatter *chromahtml.Formatter
	lexer     chroma.Lexer
}

// NewJSONRenderer creates a JSON renderer using chroma CSS classes.
func NewJSONRenderer() *JSONRenderer {
	lexer := lexers.Get("json")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return &JSONRenderer{
		formatter: chromahtml.New(
			chromahtml.WithClasses(true),
			chromahtml.WithLineNumbers(true),
		),
		lexer: chroma.Coalesce(lexer),
	}
}

// Render marshals v with indentation and wraps the highlighted result in
// the code block structure.
func (r *JSONRenderer) Render(v any, label string) ([]byte, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return r.RenderRaw(raw, label)
}

// RenderRaw highlights already-encoded JSON. Invalid JSON is shown as is.
func (r *JSONRenderer) RenderRaw(raw []byte, label string) ([]byte, error) {
	var indented bytes.Buffer
	if err := json.Indent(&indented, raw, "", "  "); err == nil {
		raw = indented.Bytes()
	}
	code := string(raw)
	lineCount := strings.Count(code, "\n") + 1

	iterator, err := r.lexer.Tokenise(nil, code)
	if err != nil {
		return nil, fmt.Errorf("tokenize payload: %w", err)
	}
	var highlighted bytes.Buffer
	if err := r.formatter.Format(&highlighted, styles.Fallback, iterator); err != nil {
		return nil, fmt.Errorf("format payload: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<div class="moviego-code-block" data-language="json" data-line-count="%d">`, lineCount)
	buf.WriteString("\n  <div class=\"moviego-code-header\">\n")
	fmt.Fprintf(&buf, `    <span class="moviego-code-language">%s</span>`, html.EscapeString(label))
	buf.WriteString("\n    <button class=\"moviego-copy-btn\" data-state=\"idle\">Copy</button>\n")
	buf.WriteString("  </div>\n")
	buf.Write(highlighted.Bytes())
	buf.WriteString("\n</div>")
	return buf.Bytes(), nil
}

// HighlightCSS returns the chroma class stylesheet for the named style,
// falling back to the default style for unknown names.
func HighlightCSS(styleName string) (string, error) {
	style := styles.Get(styleName)
	formatter := chromahtml.New(chromahtml.WithClasses(true), chromahtml.WithLineNumbers(true))
	var buf bytes.Buffer
	if err := formatter.WriteCSS(&buf, style); err != nil {
		return "", fmt.Errorf("write %s css: %w", styleName, err)
	}
	return buf.String(), nil
}
