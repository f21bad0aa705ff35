// Package page wraps a parsed HTML document and the DOM helpers the
// rewriting engine needs.
package page

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Mark attributes and cosmetic classes written into the document.
const (
	AttrOriginal = "data-gnm-original"
	AttrAvatar   = "data-gnm-avatar"

	ClassReplaced        = "gnm-replaced"
	ClassHighlight       = "gnm-highlight"
	ClassAvatarHighlight = "gnm-avatar-highlight"
)

// ExcludedSelectors are page-chrome containers where nothing is rewritten:
// top navigation, breadcrumbs, repository header and nav bars.
var ExcludedSelectors = []string{
	".AppHeader",
	".AppHeader-context",
	".reponav",
	".pagehead",
	".repohead",
	`[data-testid="breadcrumbs"]`,
	".js-repo-nav",
	".UnderlineNav",
}

var excludedMatcher = cascadia.MustCompile(strings.Join(ExcludedSelectors, ", "))

// Document is a parsed page.
type Document struct {
	doc *goquery.Document
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Blank returns a document with no content, for controllers that only
// drive editable fields.
func Blank() *Document {
	return &Document{doc: goquery.NewDocumentFromNode(&html.Node{Type: html.DocumentNode})}
}

// ParseString is Parse for an in-memory string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node as a selection.
func (d *Document) Root() *goquery.Selection {
	return d.doc.Selection
}

// Node returns the underlying document node.
func (d *Document) Node() *html.Node {
	return d.doc.Nodes[0]
}

// Body returns the body element, or the root when the document has none.
func (d *Document) Body() *goquery.Selection {
	body := d.doc.Find("body").First()
	if body.Length() == 0 {
		return d.doc.Selection
	}
	return body
}

// Find runs a selector against the whole document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// Render writes the document back as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.Node())
}

// HTML returns the serialized document.
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// InExcluded reports whether the first node of sel, or any ancestor, is
// inside an excluded region.
func InExcluded(sel *goquery.Selection) bool {
	if sel.Length() == 0 {
		return false
	}
	return NodeInExcluded(sel.Nodes[0])
}

// NodeInExcluded is InExcluded for a bare node.
func NodeInExcluded(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && excludedMatcher.Match(n) {
			return true
		}
	}
	return false
}

// Attached reports whether n still hangs off a document node.
func Attached(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.DocumentNode {
			return true
		}
	}
	return false
}

// TextContent concatenates the data of all descendant text nodes.
func TextContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		for ; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			} else if c.FirstChild != nil {
				walk(c.FirstChild)
			}
		}
	}
	walk(n.FirstChild)
	return b.String()
}

// SetTextContent replaces all children of n with a single text node.
// An empty string leaves n with no children.
func SetTextContent(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

// HasElementChildren reports whether n has any element children.
func HasElementChildren(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
	}
	return false
}

// Attr returns the value of an attribute on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces an attribute on n.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes an attribute from n.
func RemoveAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// HasClass reports whether n's class attribute lists cls.
func HasClass(n *html.Node, cls string) bool {
	val, _ := Attr(n, "class")
	for _, f := range strings.Fields(val) {
		if f == cls {
			return true
		}
	}
	return false
}

// AddClass appends cls to n's class attribute unless it is already listed.
// The existing value is kept as written.
func AddClass(n *html.Node, cls string) {
	if HasClass(n, cls) {
		return
	}
	val, _ := Attr(n, "class")
	switch {
	case strings.TrimSpace(val) == "":
		val = cls
	case isSpace(val[len(val)-1]):
		val += cls
	default:
		val += " " + cls
	}
	SetAttr(n, "class", val)
}

// RemoveClass drops cls and one adjacent separator from n's class
// attribute, leaving the rest of the value untouched. An attribute left
// blank is removed.
func RemoveClass(n *html.Node, cls string) {
	val, ok := Attr(n, "class")
	if !ok {
		return
	}
	out := cutClass(val, cls)
	if out == val {
		return
	}
	if strings.TrimSpace(out) == "" {
		RemoveAttr(n, "class")
		return
	}
	SetAttr(n, "class", out)
}

func cutClass(val, cls string) string {
	for i := 0; i < len(val); {
		for i < len(val) && isSpace(val[i]) {
			i++
		}
		start := i
		for i < len(val) && !isSpace(val[i]) {
			i++
		}
		if start == i || val[start:i] != cls {
			continue
		}
		if start > 0 {
			start--
		} else if i < len(val) {
			i++
		}
		return cutClass(val[:start]+val[i:], cls)
	}
	return val
}
