package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"lowercases", "RED-M", "redm"},
		{"collapses separators", "red _ m.2", "redm2"},
		{"strips diacritics", "Café Crème", "cafecreme"},
		{"strips cjk", "红色 Red-L", "redl"},
		{"pure cjk yields no key", "红色", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeKey(tt.input))
		})
	}
}

func TestNormalizeKeyIdempotent(t *testing.T) {
	inputs := []string{"RED-M", "Café Crème", "  sku_001.A  ", "iPhone 14 Pro"}
	for _, s := range inputs {
		once := NormalizeKey(s)
		assert.Equal(t, once, NormalizeKey(once), "NormalizeKey must be idempotent for %q", s)
	}
}

func TestDeduplicateByDisplay(t *testing.T) {
	out := DeduplicateByDisplay([]string{"Red", "red", "RED ", "Blue"})
	assert.Equal(t, []string{"Red", "Blue"}, out, "first-seen casing wins")
}

func TestDeduplicateByDisplayKeepsOrder(t *testing.T) {
	out := DeduplicateByDisplay([]string{"Navy Blue", "navy-blue", "Black", "NAVY_BLUE", "black"})
	assert.Equal(t, []string{"Navy Blue", "Black"}, out)
}

func TestStripMarkup(t *testing.T) {
	html := `<div><script>alert(1)</script><p>Great &amp; cheap</p><style>p{}</style><p>100&#37; cotton</p></div>`
	text := StripMarkup(html)
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "<p>")
	assert.Contains(t, text, "Great & cheap")
	assert.Contains(t, text, "100% cotton")
}

func TestStripMarkupCollapsesBlankLines(t *testing.T) {
	text := StripMarkup("line one\n\n\n\n\nline two")
	assert.Equal(t, "line one\n\nline two", text)
}

func TestSanitizeForDisplayDropsMarketplaceLinks(t *testing.T) {
	html := `<p>Nice jacket</p><a href="https://www.aliexpress.com/item/123">buy here</a>`
	out := SanitizeForDisplay(html)
	if assert.NotNil(t, out) {
		assert.Contains(t, *out, "Nice jacket")
		assert.NotContains(t, *out, "buy here")
		assert.NotContains(t, *out, "aliexpress")
	}
}

func TestSanitizeForDisplayNilForNonLatin(t *testing.T) {
	assert.Nil(t, SanitizeForDisplay("<p>全棉夹克，冬季保暖</p>"))
	assert.Nil(t, SanitizeForDisplay(""))
	assert.Nil(t, SanitizeForDisplay("<p>🔥🔥🔥</p>"))
}

func TestSanitizeForDisplayStripsEmoji(t *testing.T) {
	out := SanitizeForDisplay("<p>Best seller 🔥 free shipping ✨</p>")
	if assert.NotNil(t, out) {
		assert.Equal(t, "Best seller  free shipping", *out)
	}
}
