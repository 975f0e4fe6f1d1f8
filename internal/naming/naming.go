// Package naming derives identifiers and human labels from free-form names.
package naming

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	splitWordsPattern = regexp.MustCompile(`[_\-\s.]+`)
	nonIdentPattern   = regexp.MustCompile(`[^A-Za-z0-9_]+`)
	underscoreRuns    = regexp.MustCompile(`_+`)
)

// Title converts an identifier into a label: it splits on underscores, dashes,
// dots, whitespace and camelCase boundaries and title-cases every word.
// "customer_id" becomes "Customer Id" and "orderDate" becomes "Order Date".
func Title(name string) string {
	if strings.TrimSpace(name) == "" {
		return ""
	}
	var segments []string
	for _, word := range splitWordsPattern.Split(name, -1) {
		for _, part := range strings.Fields(splitCamel(word)) {
			segments = append(segments, titleWord(part))
		}
	}
	return strings.Join(segments, " ")
}

// Identifier sanitizes name into a lower-case identifier matching
// ^[a-z][a-z0-9_]*$. Names that do not start with a letter are prefixed with
// prefix (or "f" when prefix is empty). An all-symbol name yields "".
func Identifier(name, prefix string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	id := strings.ToLower(splitCamelWith(trimmed, '_'))
	id = nonIdentPattern.ReplaceAllString(id, "_")
	id = underscoreRuns.ReplaceAllString(id, "_")
	id = strings.Trim(id, "_")
	if id == "" {
		return ""
	}
	if r := rune(id[0]); !unicode.IsLetter(r) {
		if prefix == "" {
			prefix = "f"
		}
		id = prefix + "_" + id
	}
	return id
}

// IsIdentifier reports whether s matches ^[A-Za-z][A-Za-z0-9_]*$.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case isLetter(r):
		case i > 0 && (isDigit(r) || r == '_'):
		default:
			return false
		}
	}
	return true
}

func splitCamel(input string) string {
	return splitCamelWith(input, ' ')
}

func splitCamelWith(input string, sep rune) string {
	var out strings.Builder
	runes := []rune(input)
	for i, r := range runes {
		if i > 0 && isBoundary(runes, i) {
			out.WriteRune(sep)
		}
		out.WriteRune(r)
	}
	return out.String()
}

func isBoundary(runes []rune, index int) bool {
	prev, r := runes[index-1], runes[index]
	if isLower(prev) && isUpper(r) {
		return true
	}
	// "HTTPServer" splits before the last upper of an acronym.
	if isUpper(prev) && isUpper(r) && index+1 < len(runes) && isLower(runes[index+1]) {
		return true
	}
	return false
}

func isUpper(r rune) bool  { return r >= 'A' && r <= 'Z' }
func isLower(r rune) bool  { return r >= 'a' && r <= 'z' }
func isDigit(r rune) bool  { return r >= '0' && r <= '9' }
func isLetter(r rune) bool { return isUpper(r) || isLower(r) }

func titleWord(word string) string {
	if word == "" {
		return ""
	}
	runes := []rune(strings.ToLower(word))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
