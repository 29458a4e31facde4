package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ugc allows the inline formatting an overview can carry. Links open
// upstream pages, so they are forced to nofollow and a new tab.
var ugc = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("p", "span", "em", "strong")
	return p
}()

var strict = bluemonday.StrictPolicy()

// HTML strips scripts, frames, forms, event handlers and unsafe URLs from
// rendered upstream content. It runs before the page's own scripts are
// attached, so those are never touched.
func HTML(input []byte) []byte {
	return ugc.SanitizeBytes(input)
}

// Text removes every tag and collapses whitespace, for attribute values
// such as the page description.
func Text(input string) string {
	return strings.Join(strings.Fields(strict.Sanitize(input)), " ")
}
