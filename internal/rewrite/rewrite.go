// Package rewrite substitutes known identifiers in a page with their display
// names and can put every substitution back exactly.
package rewrite

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/standardbeagle/gnm/internal/debug"
	"github.com/standardbeagle/gnm/internal/dictionary"
	"github.com/standardbeagle/gnm/internal/extract"
	"github.com/standardbeagle/gnm/internal/page"
)

// Selectors are the places the host page shows usernames. They are a union;
// an element matched twice is processed once.
var Selectors = []string{
	"a.author",
	`a[data-hovercard-type="user"]`,
	".commit-author",
	".user-mention",
	".opened-by a",
	".author-association-owner",
	".timeline-comment-header-text strong a",
	`.comment-body a[href^="/"]`,
	".user-profile-link",
	".assignee span.css-truncate-target",
	".reviewer-username",
	".requested-reviewer",
	".contrib-person a",
	"a.text-bold",
	`[data-testid="author-avatar-and-name"] a`,
	`.Link--primary[href^="/"]`,
	".hovercard-avatar-and-name a",
	".collaborator-list a",
}

var selectorGroup = strings.Join(Selectors, ", ")

// titleFormat is the hover text put on rewritten elements. titleRe reads the
// identifier back out of it.
const titleFormat = "Domain: %s\nGitHub: %s\nEmail: %s"

var titleRe = regexp.MustCompile(`^Domain: [^\n]*\nGitHub: ([^\n]*)\nEmail: `)

// Options tune cosmetic behavior.
type Options struct {
	// Highlight adds the highlight class to rewritten elements.
	Highlight bool
}

// Stats counts what a pass did.
type Stats struct {
	Elements int
	Mentions int
}

// textEdit records the exact data of a text node before it was changed.
type textEdit struct {
	node *html.Node
	data string
}

// mark is the in-memory half of a RewriteMark. The attribute on the element
// carries the trimmed original text; this carries enough to undo the edit
// byte for byte without touching child elements.
type mark struct {
	original  string
	wholesale bool
	edits     []textEdit
	titled    bool
	title     string
	hadTitle  bool

	// class is the attribute before the pass added ours, and classSet the
	// value the pass left behind.
	class    string
	hadClass bool
	classSet string
}

// Rewriter performs substitution passes over a document. It is not safe for
// concurrent use; the engine serializes calls.
type Rewriter struct {
	opts  Options
	marks map[*html.Node]*mark
}

// New creates a Rewriter.
func New(opts Options) *Rewriter {
	return &Rewriter{
		opts:  opts,
		marks: make(map[*html.Node]*mark),
	}
}

// SetOptions replaces the cosmetic options for later passes.
func (r *Rewriter) SetOptions(opts Options) {
	r.opts = opts
}

// Marked returns how many elements currently carry an in-memory mark.
func (r *Rewriter) Marked() int {
	return len(r.marks)
}

// Scan runs the structural pass followed by the text pass over root.
func (r *Rewriter) Scan(root *goquery.Selection, dict *dictionary.Dictionary) Stats {
	r.prune()
	if dict.Size() == 0 {
		return Stats{}
	}

	var st Stats
	root.Find(selectorGroup).Each(func(_ int, sel *goquery.Selection) {
		if r.processElement(sel, dict) {
			st.Elements++
		}
	})
	st.Mentions = r.ScanText(root, dict)

	debug.Log("rewrite", "scan: %d elements, %d mention nodes", st.Elements, st.Mentions)
	return st
}

// processElement rewrites one matched element. The mark check and the mark
// write happen in the same call with nothing in between.
func (r *Rewriter) processElement(sel *goquery.Selection, dict *dictionary.Dictionary) bool {
	n := sel.Nodes[0]
	if _, marked := page.Attr(n, page.AttrOriginal); marked {
		return false
	}
	if !page.Attached(n) || page.InExcluded(sel) {
		return false
	}

	full := page.TextContent(n)
	text := strings.TrimSpace(full)
	res, ok := extract.ElementChain.Run(extract.Input{Sel: sel, Text: text})
	if !ok {
		return false
	}
	rec, ok := dict.Resolve(res.Identifier)
	if !ok {
		debug.Trace("rewrite", "%q (from %s) not in dictionary", res.Identifier, res.Step)
		return false
	}

	m := &mark{original: full, titled: true}
	m.title, m.hadTitle = page.Attr(n, "title")
	m.class, m.hadClass = page.Attr(n, "class")

	page.SetAttr(n, page.AttrOriginal, text)
	page.AddClass(n, page.ClassReplaced)
	if r.opts.Highlight {
		page.AddClass(n, page.ClassHighlight)
	}
	m.classSet, _ = page.Attr(n, "class")

	id := res.Identifier
	if !page.HasElementChildren(n) {
		m.wholesale = true
		var replaced string
		if text == id || text == "@"+id {
			prefix := ""
			if strings.HasPrefix(text, "@") {
				prefix = "@"
			}
			replaced = prefix + rec.DisplayName
		} else {
			replaced = strings.Replace(text, id, rec.DisplayName, 1)
		}
		// Keep the surrounding whitespace so a serialized copy restores
		// byte for byte.
		lead := full[:strings.Index(full, text)]
		trail := full[len(lead)+len(text):]
		page.SetTextContent(n, lead+replaced+trail)
	} else {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.TextNode || !strings.Contains(c.Data, id) {
				continue
			}
			m.edits = append(m.edits, textEdit{node: c, data: c.Data})
			c.Data = strings.Replace(c.Data, id, rec.DisplayName, 1)
		}
	}

	page.SetAttr(n, "title", fmt.Sprintf(titleFormat, rec.DomainAccount, id, rec.ContactAddress))
	r.marks[n] = m

	debug.Log("rewrite", "%s -> %s (via %s)", id, rec.DisplayName, res.Step)
	return true
}

// prune forgets marks on elements the host page has removed.
func (r *Rewriter) prune() {
	for n := range r.marks {
		if !page.Attached(n) {
			delete(r.marks, n)
		}
	}
}
