package codec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/docpolish/docpolish-api/internal/domain"
	"golang.org/x/net/html"
)

// sweepPattern matches any leftover placeholder markup, with or without a
// closing tag, so no inert scaffolding leaks into the delivered document.
var sweepPattern = regexp.MustCompile(
	`(?is)<[a-z][a-z0-9]*\b[^>]*img-placeholder-\d+[^>]*>(?:[^<]*</[a-z][a-z0-9]*>)?`,
)

// Restore reinserts the extracted images into the rewritten markup. Each
// reference is matched in three escalating tiers, stopping at the first hit:
//
//  1. the exact placeholder element carrying the expected id,
//  2. any tag carrying the placeholder id, tolerating the rewrite altering
//     the tag name or other attributes,
//  3. any tag whose id contains the bare numeric index, tolerating the
//     rewrite mangling the id's non-numeric prefix.
//
// References that match no tier are logged as lossy and skipped; a final
// sweep removes whatever placeholder markup remains.
func (c *Codec) Restore(rewritten string, refs []domain.ImageReference) string {
	out := rewritten

	for _, ref := range refs {
		replaced := false
		for tier, pattern := range restorePatterns(ref) {
			if loc := pattern.FindStringIndex(out); loc != nil {
				out = out[:loc[0]] + restoredImageTag(ref) + out[loc[1]:]
				replaced = true

				if tier > 0 {
					c.logger.Debug("restored placeholder via fallback tier",
						"placeholder_id", ref.PlaceholderID(),
						"tier", tier+1)
				}
				break
			}
		}

		if !replaced {
			c.logger.Warn("placeholder lost during rewrite, image dropped",
				"placeholder_id", ref.PlaceholderID(),
				"source", ref.SourceLocator)
		}
	}

	return sweepPattern.ReplaceAllString(out, "")
}

// restorePatterns compiles the three matching tiers for one reference.
func restorePatterns(ref domain.ImageReference) []*regexp.Regexp {
	id := regexp.QuoteMeta(ref.PlaceholderID())

	// Placeholder ids end in a decimal index, so the id must be followed by
	// something other than a digit or the match would also claim longer
	// indices sharing the prefix (img-placeholder-1 vs img-placeholder-10).
	return []*regexp.Regexp{
		// Tier 1: the placeholder element as emitted by Extract.
		regexp.MustCompile(fmt.Sprintf(
			`(?is)<span\b[^>]*\bid\s*=\s*["']?%s(?:[^0-9>][^>]*)?>.*?</span>`, id)),
		// Tier 2: any tag still carrying the placeholder id.
		regexp.MustCompile(fmt.Sprintf(
			`(?is)<[a-z][a-z0-9]*\b[^>]*%s(?:[^0-9>][^>]*)?>(?:[^<]*</[a-z][a-z0-9]*>)?`, id)),
		// Tier 3: any tag whose id still contains the bare index.
		regexp.MustCompile(fmt.Sprintf(
			`(?is)<[a-z][a-z0-9]*\b[^>]*\bid\s*=\s*["'][^"']*\b%d\b[^"']*["'][^>]*>(?:[^<]*</[a-z][a-z0-9]*>)?`,
			ref.Index)),
	}
}

// restoredImageTag renders the img element for a reference. Pre-colorized
// references resolve to the colorized artifact's path.
func restoredImageTag(ref domain.ImageReference) string {
	var b strings.Builder
	b.WriteString(`<img src="`)
	b.WriteString(html.EscapeString(ref.RestoredSrc()))
	b.WriteString(`"`)

	writeAttr(&b, "alt", ref.Attributes.Alt)
	writeAttr(&b, "width", ref.Attributes.Width)
	writeAttr(&b, "height", ref.Attributes.Height)
	writeAttr(&b, "style", ref.Attributes.Style)
	writeAttr(&b, "class", ref.Attributes.Class)

	b.WriteString(`/>`)
	return b.String()
}

func writeAttr(b *strings.Builder, key, val string) {
	if val == "" {
		return
	}
	b.WriteString(" ")
	b.WriteString(key)
	b.WriteString(`="`)
	b.WriteString(html.EscapeString(val))
	b.WriteString(`"`)
}

// MarkColorized flags references whose source matches a pre-colorized
// descriptor so restoration resolves to the colorized variant.
func MarkColorized(refs []domain.ImageReference, images []domain.ColorizedImage) {
	if len(images) == 0 {
		return
	}

	bySrc := make(map[string]string, len(images))
	for _, img := range images {
		bySrc[img.OriginalSrc] = img.ColorizedPath
	}

	for i := range refs {
		if path, ok := bySrc[refs[i].SourceLocator]; ok {
			refs[i].IsPreColorized = true
			refs[i].ColorizedPath = path
		}
	}
}

// ApplyColorized rewrites any remaining occurrences of original image sources
// to their colorized paths. Runs after Restore so colorized variants take
// precedence even where the rewrite step duplicated or inlined a source.
func ApplyColorized(doc string, images []domain.ColorizedImage) string {
	for _, img := range images {
		if img.OriginalSrc == "" || img.ColorizedPath == "" {
			continue
		}
		doc = strings.ReplaceAll(doc, img.OriginalSrc, img.ColorizedPath)
	}
	return doc
}
