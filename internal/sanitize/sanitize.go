// Package sanitize cleans user-authored text before it is embedded in
// platform documents, which render labels and descriptions as HTML.
package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicyOnce   sync.Once
	textPolicy       *bluemonday.Policy
	markupPolicyOnce sync.Once
	markupPolicy     *bluemonday.Policy
)

// Text strips every tag from raw, for labels, placeholders and option labels.
// Entities are decoded again so "R&D" survives unchanged. changed reports
// whether markup was removed.
func Text(raw string) (clean string, changed bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", raw != ""
	}
	clean = strings.TrimSpace(html.UnescapeString(textSanitizer().Sanitize(trimmed)))
	return clean, clean != html.UnescapeString(trimmed)
}

// Markup keeps simple inline formatting and links, for form descriptions.
func Markup(raw string) (clean string, changed bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", raw != ""
	}
	clean = strings.TrimSpace(markupSanitizer().Sanitize(trimmed))
	return clean, html.UnescapeString(clean) != html.UnescapeString(trimmed)
}

func textSanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}

func markupSanitizer() *bluemonday.Policy {
	markupPolicyOnce.Do(func() {
		policy := bluemonday.StrictPolicy()
		policy.AllowElements("b", "strong", "i", "em", "u", "br", "p", "ul", "ol", "li", "code", "small")
		policy.AllowAttrs("href").OnElements("a")
		policy.AllowURLSchemes("http", "https", "mailto")
		policy.RequireParseableURLs(true)
		policy.RequireNoFollowOnLinks(true)
		policy.AddTargetBlankToFullyQualifiedLinks(true)
		markupPolicy = policy
	})
	return markupPolicy
}
