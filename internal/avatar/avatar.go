// Package avatar annotates user avatar images with dictionary metadata.
// Images are never rewritten, only tagged, so there is nothing to restore.
package avatar

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/standardbeagle/gnm/internal/debug"
	"github.com/standardbeagle/gnm/internal/dictionary"
	"github.com/standardbeagle/gnm/internal/extract"
	"github.com/standardbeagle/gnm/internal/page"
)

// Selectors locate avatar images across the host page's layouts.
var Selectors = []string{
	"img.avatar",
	"img.avatar-user",
	`img[data-hovercard-type="user"]`,
	`img[data-hovercard-url*="/users/"]`,
	`img[data-component="Avatar"]`,
	`img[data-testid*="avatar"]`,
	".avatar-user",
	".TimelineItem-avatar img",
	".AvatarStack-body img",
	`a[data-hovercard-type="user"] img`,
	".timeline-comment-avatar img",
	".timeline-comment .avatar img",
	"a.author img",
	".timeline-comment-header img",
	".avatar-stack img",
	`a[href^="/"] img.avatar`,
}

var selectorGroup = strings.Join(Selectors, ", ")

// Annotator tags avatars.
type Annotator struct{}

// New creates an Annotator.
func New() *Annotator {
	return &Annotator{}
}

// Scan annotates every unmarked avatar under root whose identifier resolves.
// It returns the number of newly annotated images.
func (a *Annotator) Scan(root *goquery.Selection, dict *dictionary.Dictionary) int {
	if dict.Size() == 0 {
		return 0
	}

	count := 0
	root.Find(selectorGroup).Each(func(_ int, img *goquery.Selection) {
		n := img.Nodes[0]
		if _, done := page.Attr(n, page.AttrAvatar); done {
			return
		}
		if page.InExcluded(img) {
			return
		}

		res, ok := extract.AvatarChain.Run(extract.Input{Sel: img})
		if !ok {
			debug.Trace("avatar", "no identifier (alt=%q)", img.AttrOr("alt", ""))
			return
		}
		rec, ok := dict.Resolve(res.Identifier)
		if !ok {
			debug.Trace("avatar", "%q (from %s) not in dictionary", res.Identifier, res.Step)
			return
		}

		page.SetAttr(n, page.AttrAvatar, res.Identifier)
		page.AddClass(n, page.ClassAvatarHighlight)
		page.SetAttr(n, "title", Tooltip(rec))
		count++

		debug.Log("avatar", "annotated %s via %s", res.Identifier, res.Step)
	})
	return count
}

// Tooltip is the hover text for an annotated avatar.
func Tooltip(rec dictionary.Record) string {
	return fmt.Sprintf("%s\nDomain: %s\nEmail: %s", rec.DisplayName, rec.DomainAccount, rec.ContactAddress)
}
