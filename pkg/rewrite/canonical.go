package rewrite

import (
	"regexp"
	"strings"
)

var canonicalPattern = regexp.MustCompile(`(?i)<link\b[^>]*\srel=["']canonical["'][^>]*>`)

// setCanonical makes tag the page's only canonical link. The first existing
// link is replaced in place and any others are removed with their
// indentation. Without an existing link the tag goes on its own line after
// </title>, or after <head>. It reports false when there is nowhere to put it.
func setCanonical(content, tag string) (string, bool) {
	locs := canonicalPattern.FindAllStringIndex(content, -1)
	if len(locs) > 0 {
		var b strings.Builder
		b.Grow(len(content))
		last := 0
		for i, loc := range locs {
			start, end := loc[0], loc[1]
			if i == 0 {
				b.WriteString(content[last:start])
				b.WriteString(tag)
				last = end
				continue
			}
			b.WriteString(content[last:lineStart(content, last, start)])
			last = end
		}
		b.WriteString(content[last:])
		return b.String(), true
	}

	for _, anchor := range []string{"</title>", "<head>"} {
		if idx := strings.Index(content, anchor); idx >= 0 {
			at := idx + len(anchor)
			return content[:at] + "\n    " + tag + content[at:], true
		}
	}
	return content, false
}

// lineStart walks back from start over indentation and one line break, so a
// removed tag does not leave an empty line behind. It never crosses floor.
func lineStart(content string, floor, start int) int {
	i := start
	for i > floor && (content[i-1] == ' ' || content[i-1] == '\t') {
		i--
	}
	if i > floor && content[i-1] == '\n' {
		i--
		if i > floor && content[i-1] == '\r' {
			i--
		}
		return i
	}
	return start
}
