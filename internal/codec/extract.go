package codec

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/docpolish/docpolish-api/internal/domain"
	"golang.org/x/net/html"
)

// Codec extracts images from a document before rewriting and restores them
// afterward. A zero maxDocumentBytes disables the size ceiling.
type Codec struct {
	maxDocumentBytes int
	logger           *slog.Logger
}

// New creates a Codec. maxDocumentBytes bounds the placeholder-encoded
// document handed to the rewrite service; 0 means unbounded.
func New(maxDocumentBytes int, logger *slog.Logger) *Codec {
	return &Codec{
		maxDocumentBytes: maxDocumentBytes,
		logger:           logger,
	}
}

// Extract scans the document for image elements in document order, captures
// each one into an ImageReference, and replaces it with a placeholder
// element. The returned document is bounded by the configured size ceiling.
func (c *Codec) Extract(doc string) (string, []domain.ImageReference, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse document: %w", err)
	}

	var refs []domain.ImageReference
	c.replaceImages(root, &refs)

	var buf strings.Builder
	if err := html.Render(&buf, root); err != nil {
		return "", nil, fmt.Errorf("failed to render placeholder document: %w", err)
	}

	out := buf.String()
	if c.maxDocumentBytes > 0 && len(out) > c.maxDocumentBytes {
		c.logger.Warn("placeholder document exceeds size ceiling, truncating",
			"size", len(out),
			"ceiling", c.maxDocumentBytes)
		out = truncateWellFormed(out, c.maxDocumentBytes)
	}

	return out, refs, nil
}

// replaceImages walks the parse tree depth-first, swapping each img element
// for a placeholder node and recording a reference for it.
func (c *Codec) replaceImages(n *html.Node, refs *[]domain.ImageReference) {
	child := n.FirstChild
	for child != nil {
		// Capture the sibling before any replacement detaches the node.
		next := child.NextSibling

		if child.Type == html.ElementNode && child.Data == "img" {
			ref := captureImage(child, len(*refs))
			*refs = append(*refs, ref)

			n.InsertBefore(placeholderNode(ref), child)
			n.RemoveChild(child)
		} else {
			c.replaceImages(child, refs)
		}

		child = next
	}
}

// captureImage reads the source locator and the allow-listed presentational
// attributes from an img element.
func captureImage(n *html.Node, index int) domain.ImageReference {
	ref := domain.ImageReference{Index: index}

	for _, attr := range n.Attr {
		switch attr.Key {
		case "src":
			ref.SourceLocator = attr.Val
		case "alt":
			ref.Attributes.Alt = attr.Val
		case "width":
			ref.Attributes.Width = attr.Val
		case "height":
			ref.Attributes.Height = attr.Val
		case "style":
			ref.Attributes.Style = attr.Val
		case "class":
			ref.Attributes.Class = attr.Val
		}
	}

	return ref
}

// placeholderNode builds the inert stand-in element for a reference. The
// original source and attributes are restated as data- attributes so they
// survive arbitrary rewriting even if some are lost, and the visible label
// keeps the placeholder rendering sensibly if restoration ever fails.
func placeholderNode(ref domain.ImageReference) *html.Node {
	attrs := []html.Attribute{
		{Key: "id", Val: ref.PlaceholderID()},
		{Key: "data-src", Val: ref.SourceLocator},
	}
	if ref.Attributes.Alt != "" {
		attrs = append(attrs, html.Attribute{Key: "data-alt", Val: ref.Attributes.Alt})
	}
	if ref.Attributes.Width != "" {
		attrs = append(attrs, html.Attribute{Key: "data-width", Val: ref.Attributes.Width})
	}
	if ref.Attributes.Height != "" {
		attrs = append(attrs, html.Attribute{Key: "data-height", Val: ref.Attributes.Height})
	}
	if ref.Attributes.Style != "" {
		attrs = append(attrs, html.Attribute{Key: "data-style", Val: ref.Attributes.Style})
	}
	if ref.Attributes.Class != "" {
		attrs = append(attrs, html.Attribute{Key: "data-class", Val: ref.Attributes.Class})
	}

	node := &html.Node{
		Type: html.ElementNode,
		Data: "span",
		Attr: attrs,
	}
	node.AppendChild(&html.Node{
		Type: html.TextNode,
		Data: fmt.Sprintf("[image %d]", ref.Index+1),
	})

	return node
}

// voidElements never receive a closing tag and are excluded from the open-tag
// stack during truncation.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// truncateWellFormed cuts a document at a structurally safe boundary no later
// than limit and appends closing tags so the result stays well-formed.
func truncateWellFormed(doc string, limit int) string {
	if len(doc) <= limit {
		return doc
	}

	// Cut at the last complete tag before the limit so no tag is split.
	cut := strings.LastIndexByte(doc[:limit], '>')
	if cut < 0 {
		return ""
	}
	truncated := doc[:cut+1]

	// Re-tokenize the prefix to find the still-open elements.
	var open []string
	tokenizer := html.NewTokenizer(strings.NewReader(truncated))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}

		switch tt {
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if !voidElements[string(name)] {
				open = append(open, string(name))
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			for i := len(open) - 1; i >= 0; i-- {
				if open[i] == string(name) {
					open = open[:i]
					break
				}
			}
		}
	}

	var buf strings.Builder
	buf.WriteString(truncated)
	for i := len(open) - 1; i >= 0; i-- {
		buf.WriteString("</")
		buf.WriteString(open[i])
		buf.WriteString(">")
	}

	return buf.String()
}
