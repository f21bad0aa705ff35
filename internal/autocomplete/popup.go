package autocomplete

import (
	"bytes"
	"fmt"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/standardbeagle/gnm/internal/dictionary"
)

// Popup class names.
const (
	ClassPopup    = "gnm-mention-popup"
	ClassItem     = "gnm-mention-item"
	ClassSelected = "selected"
	ClassGithub   = "gnm-mention-github"
	ClassNick     = "gnm-mention-nick"
	ClassDomain   = "gnm-mention-domain"
)

// Popup is the rendered candidate list.
type Popup struct {
	Visible  bool                `json:"visible"`
	Left     float64             `json:"left"`
	Top      float64             `json:"top"`
	Items    []dictionary.Record `json:"items,omitempty"`
	Selected int                 `json:"selected"`
	// Measured is false when the position fell back to the field bounds.
	Measured bool `json:"measured"`
}

// HTML renders the popup element. A hidden popup renders with display none
// and no items.
func (p Popup) HTML() string {
	root := element(atom.Div, ClassPopup)
	if !p.Visible {
		root.Attr = append(root.Attr, html.Attribute{Key: "style", Val: "display: none"})
		return render(root)
	}

	root.Attr = append(root.Attr, html.Attribute{
		Key: "style",
		Val: fmt.Sprintf("display: block; position: fixed; left: %spx; top: %spx; z-index: 99999",
			px(p.Left), px(p.Top)),
	})

	for i, rec := range p.Items {
		class := ClassItem
		if i == p.Selected {
			class += " " + ClassSelected
		}
		item := element(atom.Div, class)
		item.Attr = append(item.Attr, html.Attribute{Key: "data-index", Val: strconv.Itoa(i)})

		item.AppendChild(span(ClassGithub, "@"+rec.Identifier))
		if rec.Nickname != "" {
			item.AppendChild(span(ClassNick, "("+rec.Nickname+")"))
		}
		if rec.DomainAccount != "" {
			item.AppendChild(span(ClassDomain, rec.DomainAccount))
		}
		root.AppendChild(item)
	}
	return render(root)
}

func element(a atom.Atom, class string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     []html.Attribute{{Key: "class", Val: class}},
	}
}

func span(class, text string) *html.Node {
	n := element(atom.Span, class)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}

func render(n *html.Node) string {
	var buf bytes.Buffer
	_ = html.Render(&buf, n)
	return buf.String()
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
