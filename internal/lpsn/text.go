package lpsn

import (
	"regexp"
	"strings"
)

var (
	emptyAnchor = regexp.MustCompile(`<a[^>]*></a>\s*`)
	markupTag   = regexp.MustCompile(`<[^>]*>`)
)

// normalizeBlock flattens the text of a labelled paragraph. Escaped markup
// that survived as text is dropped and whitespace is collapsed.
func normalizeBlock(s string) string {
	s = replaceFirst(emptyAnchor, s, "")
	return collapseSpace(stripTags(s))
}

func stripTags(s string) string {
	return markupTag.ReplaceAllString(s, "")
}

// collapseSpace joins whitespace runs (Unicode spaces included) into a single
// space and trims the ends.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func replaceFirst(re *regexp.Regexp, s, repl string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + repl + s[loc[1]:]
}

// indexFold returns the byte offset of the first case-insensitive occurrence
// of the ASCII marker in s, or -1.
func indexFold(s, marker string) int {
	n := len(marker)
	for i := 0; i+n <= len(s); i++ {
		if strings.EqualFold(s[i:i+n], marker) {
			return i
		}
	}
	return -1
}

// afterMarker returns the trimmed text following the first occurrence of
// marker.
func afterMarker(s, marker string) (string, bool) {
	idx := indexFold(s, marker)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(s[idx+len(marker):]), true
}

// dedupe removes exact duplicates, keeping first occurrences in order.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
