package rewrite

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/standardbeagle/gnm/internal/dictionary"
	"github.com/standardbeagle/gnm/internal/page"
)

var mentionRe = regexp.MustCompile(`@([a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?)`)

// skipTextParents hold text that is not rendered prose, or that belongs to
// the user's own draft.
var skipTextParents = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Textarea: true,
	atom.Title:    true,
}

// ScanText rewrites @mentions in free text under root and returns how many
// text nodes changed. A text node is skipped when its parent already
// carries a mark, so repeated passes are no-ops.
func (r *Rewriter) ScanText(root *goquery.Selection, dict *dictionary.Dictionary) int {
	if dict.Size() == 0 {
		return 0
	}

	// Collect first, then edit, so edits never disturb the walk.
	var candidates []*html.Node
	for _, n := range root.Nodes {
		collectMentionNodes(n, &candidates)
	}

	changed := 0
	for _, tn := range candidates {
		parent := tn.Parent
		if parent == nil || !page.Attached(tn) {
			continue
		}
		if _, marked := page.Attr(parent, page.AttrOriginal); marked {
			continue
		}
		if page.NodeInExcluded(parent) {
			continue
		}

		original := tn.Data
		replaced, hit := replaceMentions(original, dict)
		if !hit {
			continue
		}

		page.SetAttr(parent, page.AttrOriginal, original)
		r.marks[parent] = &mark{edits: []textEdit{{node: tn, data: original}}}
		tn.Data = replaced
		changed++
	}
	return changed
}

func collectMentionNodes(n *html.Node, out *[]*html.Node) {
	if n.Type == html.TextNode {
		if p := n.Parent; p != nil && p.Type == html.ElementNode && !skipTextParents[p.DataAtom] {
			if _, marked := page.Attr(p, page.AttrOriginal); !marked && mentionRe.MatchString(n.Data) {
				*out = append(*out, n)
			}
		}
		return
	}
	if n.Type == html.ElementNode && skipTextParents[n.DataAtom] {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectMentionNodes(c, out)
	}
}

// replaceMentions swaps every resolvable @token for @displayName in place.
func replaceMentions(text string, dict *dictionary.Dictionary) (string, bool) {
	hit := false
	out := mentionRe.ReplaceAllStringFunc(text, func(token string) string {
		rec, ok := dict.Resolve(token[1:])
		if !ok {
			return token
		}
		hit = true
		return "@" + rec.DisplayName
	})
	return out, hit
}
