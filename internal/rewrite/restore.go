package rewrite

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/standardbeagle/gnm/internal/debug"
	"github.com/standardbeagle/gnm/internal/page"
)

// identRe matches identifier-shaped words in a stored original.
var identRe = regexp.MustCompile(`[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?`)

// Restore undoes every substitution under root and removes the marks.
// Elements marked by this Rewriter get their exact text nodes back, with
// child elements left alone. Elements whose mark came from elsewhere, for
// example a page serialized and parsed again, have the display names in
// their direct text nodes folded back using the stored original; a node
// that can't be matched is left as it is.
func (r *Rewriter) Restore(root *goquery.Selection) int {
	restored := 0
	root.Find("[" + page.AttrOriginal + "]").Each(func(_ int, sel *goquery.Selection) {
		n := sel.Nodes[0]
		stored, _ := page.Attr(n, page.AttrOriginal)

		if m, ok := r.marks[n]; ok {
			m.undo(n)
			delete(r.marks, n)
		} else {
			if !restoreForeign(n, stored) {
				debug.Warn("rewrite", "no text node matches stored original %q", stored)
			}
			page.RemoveClass(n, page.ClassReplaced)
			page.RemoveClass(n, page.ClassHighlight)
		}

		page.RemoveAttr(n, page.AttrOriginal)
		restored++
	})
	return restored
}

func (m *mark) undo(n *html.Node) {
	if m.wholesale {
		page.SetTextContent(n, m.original)
	} else {
		for _, e := range m.edits {
			if e.node.Parent == n {
				e.node.Data = e.data
			}
		}
	}

	if cur, _ := page.Attr(n, "class"); cur == m.classSet && m.classSet != "" {
		if m.hadClass {
			page.SetAttr(n, "class", m.class)
		} else {
			page.RemoveAttr(n, "class")
		}
	} else {
		page.RemoveClass(n, page.ClassReplaced)
		page.RemoveClass(n, page.ClassHighlight)
	}

	if !m.titled {
		return
	}
	if m.hadTitle {
		page.SetAttr(n, "title", m.title)
	} else {
		page.RemoveAttr(n, "title")
	}
}

// restoreForeign folds display names back in the direct text nodes of n.
// A free-text mark stores the exact data of one text node; an element mark
// stores the trimmed text of the whole element and carries the identifier
// in its title.
func restoreForeign(n *html.Node, stored string) bool {
	ids := identRe.FindAllString(stored, -1)
	if title, ok := page.Attr(n, "title"); ok {
		if m := titleRe.FindStringSubmatch(title); m != nil {
			page.RemoveAttr(n, "title")
			ids = []string{m[1]}
		}
	}

	if pat := expandedPattern(stored); pat != nil {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode && pat.MatchString(c.Data) {
				c.Data = stored
				return true
			}
		}
	}

	found := false
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		for _, id := range ids {
			if orig, ok := collapse(c.Data, id, stored); ok {
				c.Data = orig
				found = true
				break
			}
		}
	}
	return found
}

// expandedPattern matches text that equals original with any of its
// @mentions followed by a "(nickname)" suffix. It returns nil when original
// has no mentions.
func expandedPattern(original string) *regexp.Regexp {
	locs := mentionRe.FindAllStringIndex(original, -1)
	if len(locs) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`(?s)^`)
	last := 0
	for _, loc := range locs {
		b.WriteString(regexp.QuoteMeta(original[last:loc[0]]))
		b.WriteString(`(?i:` + regexp.QuoteMeta(original[loc[0]:loc[1]]) + `)(?:\(.*\))?`)
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(original[last:]))
	b.WriteString(`$`)
	return regexp.MustCompile(b.String())
}

// collapse replaces the first "id(...)" in data with id, choosing the
// closing parenthesis that makes the result part of stored.
func collapse(data, id, stored string) (string, bool) {
	for i := 0; i+len(id) < len(data); i++ {
		if data[i+len(id)] != '(' || !strings.EqualFold(data[i:i+len(id)], id) {
			continue
		}
		for j := i + len(id) + 1; j < len(data); j++ {
			if data[j] != ')' {
				continue
			}
			cand := data[:i] + id + data[j+1:]
			if strings.Contains(stored, strings.TrimSpace(cand)) {
				return cand, true
			}
		}
	}
	return "", false
}
