package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"

	"github.com/air-gapped/moviego/internal/sanitize"
)

// OverviewMeta holds metadata extracted while rendering an overview.
type OverviewMeta struct {
	Paragraphs int
	Words      int
	Summary    string // first paragraph as plain text
}

// OverviewRenderer renders free-text synopses and biographies to HTML.
// Upstream text is mostly plain prose with blank-line paragraphs, but
// editors occasionally use markdown emphasis and bare links.
type OverviewRenderer struct {
	md goldmark.Markdown
}

// NewOverviewRenderer creates an overview renderer. Raw HTML in the source
// is dropped by goldmark and the output is sanitized again afterwards.
func NewOverviewRenderer() *OverviewRenderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.Linkify,
			extension.Strikethrough,
			extension.Typographer,
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
	return &OverviewRenderer{md: md}
}

// Render converts an overview to sanitized HTML. Empty input renders nothing.
func (r *OverviewRenderer) Render(source string) ([]byte, *OverviewMeta, error) {
	content := []byte(strings.TrimSpace(source))
	meta := &OverviewMeta{}
	if len(content) == 0 {
		return nil, meta, nil
	}

	doc := r.md.Parser().Parse(text.NewReader(content))
	extractMeta(doc, content, meta)

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, content, doc); err != nil {
		return nil, nil, fmt.Errorf("render overview: %w", err)
	}
	return sanitize.HTML(buf.Bytes()), meta, nil
}

func extractMeta(doc ast.Node, source []byte, meta *OverviewMeta) {
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		p, ok := n.(*ast.Paragraph)
		if !ok {
			return ast.WalkContinue, nil
		}
		meta.Paragraphs++
		var sb strings.Builder
		lines := p.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			sb.Write(seg.Value(source))
			sb.WriteByte(' ')
		}
		plain := sanitize.Text(sb.String())
		meta.Words += len(strings.Fields(plain))
		if meta.Summary == "" {
			meta.Summary = plain
		}
		return ast.WalkSkipChildren, nil
	})
}
