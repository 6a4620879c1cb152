package codec

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docpolish/docpolish-api/internal/domain"
)

func testCodec(maxBytes int) *Codec {
	return New(maxBytes, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExtract(t *testing.T) {
	t.Parallel()

	t.Run("replaces images with placeholders in document order", func(t *testing.T) {
		t.Parallel()

		doc := `<html><body>` +
			`<p>intro</p>` +
			`<img src="a.png" alt="first" width="100">` +
			`<div><img src="b.png" class="figure"></div>` +
			`</body></html>`

		out, refs, err := testCodec(0).Extract(doc)
		require.NoError(t, err)
		require.Len(t, refs, 2)

		assert.Equal(t, 0, refs[0].Index)
		assert.Equal(t, "a.png", refs[0].SourceLocator)
		assert.Equal(t, "first", refs[0].Attributes.Alt)
		assert.Equal(t, "100", refs[0].Attributes.Width)

		assert.Equal(t, 1, refs[1].Index)
		assert.Equal(t, "b.png", refs[1].SourceLocator)
		assert.Equal(t, "figure", refs[1].Attributes.Class)

		assert.NotContains(t, out, "<img")
		assert.Contains(t, out, `id="img-placeholder-0"`)
		assert.Contains(t, out, `id="img-placeholder-1"`)
		assert.Contains(t, out, `data-src="a.png"`)
		assert.Contains(t, out, "[image 1]")
		assert.Contains(t, out, "<p>intro</p>")
	})

	t.Run("document without images yields no references", func(t *testing.T) {
		t.Parallel()

		out, refs, err := testCodec(0).Extract("<p>plain text</p>")
		require.NoError(t, err)
		assert.Empty(t, refs)
		assert.Contains(t, out, "<p>plain text</p>")
	})

	t.Run("oversized document is truncated well-formed", func(t *testing.T) {
		t.Parallel()

		var b strings.Builder
		b.WriteString("<html><body><div>")
		for i := 0; i < 200; i++ {
			b.WriteString("<p>paragraph paragraph paragraph</p>")
		}
		b.WriteString("</div></body></html>")

		limit := 800
		out, _, err := testCodec(limit).Extract(b.String())
		require.NoError(t, err)

		// Closing tags appended after the cut may run slightly past the limit.
		assert.Less(t, len(out), limit+len("</p></div></body></html>")+1)
		assert.True(t, strings.HasSuffix(out, "</html>"))
		assert.Equal(t, strings.Count(out, "<p>"), strings.Count(out, "</p>"))
	})
}

func TestRestore(t *testing.T) {
	t.Parallel()

	ref := domain.ImageReference{
		Index:         0,
		SourceLocator: "images/chart.png",
		Attributes: domain.ImageAttributes{
			Alt:   "quarterly chart",
			Width: "640",
		},
	}

	t.Run("intact placeholder restores the image", func(t *testing.T) {
		t.Parallel()

		doc := `<body><span id="img-placeholder-0" data-src="images/chart.png">[image 1]</span></body>`
		out := testCodec(0).Restore(doc, []domain.ImageReference{ref})

		assert.Contains(t, out, `<img src="images/chart.png"`)
		assert.Contains(t, out, `alt="quarterly chart"`)
		assert.Contains(t, out, `width="640"`)
		assert.NotContains(t, out, "img-placeholder")
	})

	t.Run("rewritten tag name still restores via id", func(t *testing.T) {
		t.Parallel()

		doc := `<body><div id="img-placeholder-0" class="restyled">[image 1]</div></body>`
		out := testCodec(0).Restore(doc, []domain.ImageReference{ref})

		assert.Contains(t, out, `<img src="images/chart.png"`)
		assert.NotContains(t, out, "img-placeholder")
	})

	t.Run("mangled id prefix still restores via bare index", func(t *testing.T) {
		t.Parallel()

		doc := `<body><span id="placeholder-0">[image 1]</span></body>`
		out := testCodec(0).Restore(doc, []domain.ImageReference{ref})

		assert.Contains(t, out, `<img src="images/chart.png"`)
	})

	t.Run("id sharing a decimal prefix is not claimed", func(t *testing.T) {
		t.Parallel()

		refs := []domain.ImageReference{
			{Index: 1, SourceLocator: "one.png"},
			{Index: 10, SourceLocator: "ten.png"},
		}

		// Only placeholder 10 survived the rewrite; reference 1 must not
		// steal it just because its id is a prefix of the longer one.
		doc := `<body><span id="img-placeholder-10">[image 11]</span></body>`
		out := testCodec(0).Restore(doc, refs)

		assert.Contains(t, out, `<img src="ten.png"`)
		assert.NotContains(t, out, "one.png")
		assert.NotContains(t, out, "img-placeholder")
	})

	t.Run("lost placeholder drops the image without residue", func(t *testing.T) {
		t.Parallel()

		doc := `<body><p>the rewrite removed everything</p></body>`
		out := testCodec(0).Restore(doc, []domain.ImageReference{ref})

		assert.NotContains(t, out, "<img")
		assert.Contains(t, out, "the rewrite removed everything")
	})

	t.Run("leftover placeholders are swept", func(t *testing.T) {
		t.Parallel()

		doc := `<body>` +
			`<span id="img-placeholder-0">[image 1]</span>` +
			`<span id="img-placeholder-1">[image 2]</span>` +
			`</body>`

		// Only the first reference is known; the second's markup must not
		// leak into the output.
		out := testCodec(0).Restore(doc, []domain.ImageReference{ref})
		assert.Contains(t, out, `<img src="images/chart.png"`)
		assert.NotContains(t, out, "img-placeholder-1")
		assert.NotContains(t, out, "[image 2]")
	})

	t.Run("extract then restore round-trips the image", func(t *testing.T) {
		t.Parallel()

		c := testCodec(0)
		doc := `<html><body><p>before</p><img src="x.png" alt="x"><p>after</p></body></html>`

		encoded, refs, err := c.Extract(doc)
		require.NoError(t, err)

		out := c.Restore(encoded, refs)
		assert.Contains(t, out, `<img src="x.png"`)
		assert.Contains(t, out, `alt="x"`)
		assert.Contains(t, out, "<p>before</p>")
		assert.Contains(t, out, "<p>after</p>")
		assert.NotContains(t, out, "img-placeholder")
	})
}

func TestColorized(t *testing.T) {
	t.Parallel()

	t.Run("marked references restore to the colorized path", func(t *testing.T) {
		t.Parallel()

		refs := []domain.ImageReference{
			{Index: 0, SourceLocator: "gray.png"},
			{Index: 1, SourceLocator: "other.png"},
		}
		MarkColorized(refs, []domain.ColorizedImage{
			{OriginalSrc: "gray.png", ColorizedPath: "color/gray.png"},
		})

		assert.True(t, refs[0].IsPreColorized)
		assert.Equal(t, "color/gray.png", refs[0].RestoredSrc())
		assert.False(t, refs[1].IsPreColorized)
		assert.Equal(t, "other.png", refs[1].RestoredSrc())
	})

	t.Run("apply rewrites residual original sources", func(t *testing.T) {
		t.Parallel()

		doc := `<img src="gray.png"><a href="gray.png">link</a>`
		out := ApplyColorized(doc, []domain.ColorizedImage{
			{OriginalSrc: "gray.png", ColorizedPath: "color/gray.png"},
		})

		assert.NotContains(t, out, `"gray.png"`)
		assert.Equal(t, 2, strings.Count(out, "color/gray.png"))
	})

	t.Run("blank descriptors are ignored", func(t *testing.T) {
		t.Parallel()

		doc := `<img src="gray.png">`
		out := ApplyColorized(doc, []domain.ColorizedImage{{OriginalSrc: "gray.png"}})
		assert.Equal(t, doc, out)
	})
}
