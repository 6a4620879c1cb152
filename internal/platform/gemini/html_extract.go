package gemini

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// The rewrite service's output format is not contractually guaranteed: it may
// fence the document in a code block, embed it in prose, or answer with bare
// prose. Extraction degrades gracefully through those shapes.
var (
	fencedBlockPattern = regexp.MustCompile("(?is)```(?:html)?\\s*(.*?)```")
	htmlSpanPattern    = regexp.MustCompile(`(?is)(<!doctype html[^>]*>\s*)?<html[\s>].*</html>`)
	blockLevelPattern  = regexp.MustCompile(`(?is)<(p|div|h[1-6]|table|ul|ol|section|article|body|span|img)\b`)
)

// ExtractHTML scans a model response for an HTML payload: a fenced code
// block first, then a literal <html>...</html> span, then the whole response
// as-is when it already carries block-level markup, and finally the response
// wrapped in a minimal HTML shell when it is plain prose.
func ExtractHTML(response string) string {
	if m := fencedBlockPattern.FindStringSubmatch(response); m != nil {
		if body := strings.TrimSpace(m[1]); body != "" {
			return body
		}
	}

	if m := htmlSpanPattern.FindString(response); m != "" {
		return strings.TrimSpace(m)
	}

	trimmed := strings.TrimSpace(response)
	if blockLevelPattern.MatchString(trimmed) {
		return trimmed
	}

	return wrapProse(trimmed)
}

// wrapProse turns a plain-text response into a minimal HTML document,
// one paragraph per blank-line-separated chunk.
func wrapProse(text string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(para))
		b.WriteString("</p>")
	}
	b.WriteString("</body></html>")
	return b.String()
}
