package autocomplete

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Trigger is the two-character sequence that starts a mention.
const Trigger = "@@"

// triggerRe matches the trigger plus the partially typed query right before
// the caret. CJK ideographs are allowed so nicknames can be searched.
var triggerRe = regexp.MustCompile(`@@([a-zA-Z0-9\x{4e00}-\x{9fa5}_-]*)$`)

// Detect looks for the trigger immediately before caret. It returns the
// lowercased query and the rune offset where the trigger starts.
func Detect(text string, caret int) (query string, start int, ok bool) {
	runes := []rune(text)
	if caret < 0 || caret > len(runes) {
		return "", 0, false
	}
	before := string(runes[:caret])

	m := triggerRe.FindStringSubmatch(before)
	if m == nil {
		return "", 0, false
	}
	q := m[1]
	start = caret - utf8.RuneCountInString(q) - utf8.RuneCountInString(Trigger)
	return strings.ToLower(q), start, true
}

// Splice replaces runes [start, end) of text with insert and returns the new
// text and the offset just after the insertion.
func Splice(text string, start, end int, insert string) (string, int) {
	runes := []rune(text)
	if start < 0 {
		start = 0
	}
	if start > len(runes) {
		start = len(runes)
	}
	if end < start {
		end = start
	}
	if end > len(runes) {
		end = len(runes)
	}

	var b strings.Builder
	b.WriteString(string(runes[:start]))
	b.WriteString(insert)
	b.WriteString(string(runes[end:]))
	return b.String(), start + utf8.RuneCountInString(insert)
}
