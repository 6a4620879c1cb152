package domain

import "fmt"

// PlaceholderIDPrefix is the deterministic prefix of placeholder element IDs.
const PlaceholderIDPrefix = "img-placeholder-"

// ImageAttributes is the allow-listed subset of presentational attributes
// captured from an image element before it is replaced by a placeholder.
type ImageAttributes struct {
	Alt    string `json:"alt,omitempty"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
	Style  string `json:"style,omitempty"`
	Class  string `json:"class,omitempty"`
}

// ImageReference records one image extracted from a document so it can be
// restored after the text rewrite. References live only within a single
// worker invocation and are never persisted.
type ImageReference struct {
	// Index is the image's position in document order.
	Index int

	// SourceLocator is the original image source value (URL or storage path).
	SourceLocator string

	// IsPreColorized marks a reference that already points at a colorized
	// variant; its restored src must resolve to the colorized path.
	IsPreColorized bool

	// ColorizedPath is the web-servable path of the colorized variant, set
	// only when IsPreColorized is true.
	ColorizedPath string

	// Attributes is the captured presentational attribute subset.
	Attributes ImageAttributes
}

// PlaceholderID returns the deterministic identifier embedded in the
// placeholder markup for this reference.
func (r ImageReference) PlaceholderID() string {
	return fmt.Sprintf("%s%d", PlaceholderIDPrefix, r.Index)
}

// RestoredSrc returns the src the restored image element must carry: the
// colorized path for pre-colorized references, the original source otherwise.
func (r ImageReference) RestoredSrc() string {
	if r.IsPreColorized && r.ColorizedPath != "" {
		return r.ColorizedPath
	}
	return r.SourceLocator
}
