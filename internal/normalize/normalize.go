// Package normalize provides the identifier and text normalization used to
// match records across supplier feeds that disagree on casing, spacing and
// script, and to clean supplier HTML for storefront display.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	separatorRe  = regexp.MustCompile(`[\s\-_.]+`)
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	numericRefRe = regexp.MustCompile(`&#(x?[0-9a-fA-F]+);`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	latinDigitRe = regexp.MustCompile(`[A-Za-z0-9]`)
)

// diacriticStripper decomposes to NFD, drops combining marks and recomposes,
// so "Café" and "Cafe" normalize to the same key.
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var cjkRanges = []*unicode.RangeTable{
	unicode.Han,
	unicode.Hiragana,
	unicode.Katakana,
	unicode.Hangul,
}

// entityTable covers the entities supplier descriptions actually contain.
// Anything outside this table is handled by the numeric-reference decoder.
var entityTable = map[string]string{
	"&amp;":    "&",
	"&lt;":     "<",
	"&gt;":     ">",
	"&quot;":   `"`,
	"&apos;":   "'",
	"&nbsp;":   " ",
	"&copy;":   "©",
	"&reg;":    "®",
	"&trade;":  "™",
	"&mdash;":  "—",
	"&ndash;":  "–",
	"&hellip;": "…",
}

// marketplaceDenylist lists foreign marketplace domains whose links and
// mentions are removed from displayed descriptions.
var marketplaceDenylist = []string{
	"aliexpress.com",
	"alibaba.com",
	"taobao.com",
	"tmall.com",
	"1688.com",
	"dhgate.com",
	"temu.com",
	"banggood.com",
}

// NormalizeKey produces a canonical matching key for an identifier. It is
// total: nil-safe callers get "" for empty input, which means "no key".
// Lowercases, strips diacritics and CJK fragments, and removes whitespace
// and separator punctuation entirely so "RED-M" and "red m" collide.
func NormalizeKey(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	if stripped, _, err := transform.String(diacriticStripper, s); err == nil {
		s = stripped
	}
	s = strings.Map(func(r rune) rune {
		for _, rt := range cjkRanges {
			if unicode.Is(rt, r) {
				return -1
			}
		}
		return r
	}, s)
	s = separatorRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// DeduplicateByDisplay removes entries whose normalized key was already
// seen, keeping the first-seen original casing and spacing. Supplier
// casing is treated as canonical, so ["Red","red","RED "] yields ["Red"].
func DeduplicateByDisplay(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		key := NormalizeKey(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// StripMarkup converts supplier HTML to plain text: script and style
// subtrees are dropped, remaining tags removed, entities and numeric
// character references decoded, and runs of blank lines collapsed to at
// most one.
func StripMarkup(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	text := html
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		doc.Find("script, style").Remove()
		text = doc.Text()
	} else {
		text = tagRe.ReplaceAllString(text, " ")
	}

	text = decodeEntities(text)
	text = blankLinesRe.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// SanitizeForDisplay prepares supplier HTML for the storefront. Beyond
// StripMarkup it removes links and mentions of foreign marketplace domains
// and emoji. Returns nil when no Latin letters or digits survive, which
// callers treat as "drop this field": a pure CJK description renders as
// garbage on the storefront and is worse than no description.
func SanitizeForDisplay(html string) *string {
	if strings.TrimSpace(html) == "" {
		return nil
	}

	text := html
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		doc.Find("script, style").Remove()
		doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			if isDenylisted(href) || isDenylisted(sel.Text()) {
				sel.Remove()
			}
		})
		text = doc.Text()
	} else {
		text = tagRe.ReplaceAllString(text, " ")
	}

	text = decodeEntities(text)
	text = removeDenylistedMentions(text)
	text = stripEmoji(text)
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	if !latinDigitRe.MatchString(text) {
		return nil
	}
	return &text
}

func decodeEntities(s string) string {
	for entity, replacement := range entityTable {
		s = strings.ReplaceAll(s, entity, replacement)
	}
	return numericRefRe.ReplaceAllStringFunc(s, func(ref string) string {
		body := ref[2 : len(ref)-1]
		base := 10
		if body[0] == 'x' || body[0] == 'X' {
			body = body[1:]
			base = 16
		}
		code, err := strconv.ParseInt(body, base, 32)
		if err != nil || code <= 0 || !printableRune(rune(code)) {
			return ""
		}
		return string(rune(code))
	})
}

func printableRune(r rune) bool {
	return unicode.IsGraphic(r) || r == '\n' || r == '\t'
}

func isDenylisted(s string) bool {
	s = strings.ToLower(s)
	for _, domain := range marketplaceDenylist {
		if strings.Contains(s, domain) {
			return true
		}
	}
	return false
}

func removeDenylistedMentions(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if isDenylisted(line) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func stripEmoji(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 0x1F000 && r <= 0x1FAFF: // pictographs, emoticons, symbols
			return -1
		case r >= 0x2600 && r <= 0x27BF: // misc symbols and dingbats
			return -1
		case r == 0xFE0F || r == 0x200D: // variation selector, ZWJ
			return -1
		}
		return r
	}, s)
}
