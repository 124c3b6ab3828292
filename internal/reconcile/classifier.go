package reconcile

import (
	"regexp"
	"strings"
)

// TokenClass is the bucket a variant attribute token is sorted into
type TokenClass string

const (
	TokenColor   TokenClass = "color"
	TokenModel   TokenClass = "model"
	TokenSize    TokenClass = "size"
	TokenUnknown TokenClass = "unknown"
)

// TokenClassifier sorts a single attribute token into a bucket. The
// heuristic table behind the default implementation is inherently lossy;
// swapping it out must not require touching the reconciler's control flow.
type TokenClassifier interface {
	ClassifyToken(token string) TokenClass
}

// attributeSeparatorRe splits a composite attribute string such as
// "Red-M", "Blue/XL" or "iPhone 14_Black" into tokens.
var attributeSeparatorRe = regexp.MustCompile(`[-/|_]`)

// HeuristicClassifier is the default token classifier. Checks run in a
// fixed order: color, then device model, then clothing size; tokens that
// match multiple patterns take the first branch checked. Short tokens
// that match nothing default to size.
type HeuristicClassifier struct {
	colors  map[string]struct{}
	colorRe *regexp.Regexp
	modelRe *regexp.Regexp
	sizeRe  *regexp.Regexp
}

var colorNames = []string{
	"black", "white", "red", "blue", "green", "yellow", "purple", "pink",
	"orange", "brown", "gray", "grey", "beige", "navy", "khaki", "gold",
	"silver", "rose", "wine", "ivory", "coffee", "burgundy", "teal",
	"turquoise", "lavender", "mint", "cream", "apricot", "champagne",
}

// NewHeuristicClassifier builds the default classifier
func NewHeuristicClassifier() *HeuristicClassifier {
	colors := make(map[string]struct{}, len(colorNames))
	for _, c := range colorNames {
		colors[c] = struct{}{}
	}
	return &HeuristicClassifier{
		colors:  colors,
		colorRe: regexp.MustCompile(`(?i)\b(` + strings.Join(colorNames, "|") + `)\b`),
		modelRe: regexp.MustCompile(`(?i)\b(iphone|samsung|galaxy|xiaomi|redmi|huawei|pixel|oneplus|ipad|macbook|airpods)\b`),
		sizeRe:  regexp.MustCompile(`(?i)^(xxs|xs|s|m|l|xl|xxl|2xl|3xl|4xl|5xl|one\s*size|\d{1,3}(cm|mm|inch|")?)$`),
	}
}

// ClassifyToken sorts one token. Checked order is color, model, size;
// unmatched tokens shorter than 20 characters fall back to size.
func (hc *HeuristicClassifier) ClassifyToken(token string) TokenClass {
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenUnknown
	}

	lower := strings.ToLower(token)
	if _, ok := hc.colors[lower]; ok {
		return TokenColor
	}
	if hc.colorRe.MatchString(token) {
		return TokenColor
	}
	if hc.modelRe.MatchString(token) {
		return TokenModel
	}
	if hc.sizeRe.MatchString(token) {
		return TokenSize
	}
	if len(token) < 20 {
		return TokenSize
	}
	return TokenUnknown
}

// SplitAttributes tokenizes a composite attribute string on the ambiguous
// separator class used by supplier feeds.
func SplitAttributes(raw string) []string {
	parts := attributeSeparatorRe.Split(raw, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
