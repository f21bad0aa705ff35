package extract

import (
	"strings"
)

const (
	timelineCommentSelector = ".timeline-comment, .timeline-comment-group, .TimelineItem"
	authorLinkSelector      = `a.author, a[data-hovercard-type="user"], .timeline-comment-header a[href^="/"], h3 a[href^="/"]`
)

// AvatarChain resolves identifiers from avatar images, which are often
// nested inside larger link or comment structures.
var AvatarChain = Chain{
	{Name: "hovercard-url", Fn: avatarHovercardStep},
	{Name: "alt", Fn: avatarAltStep},
	{Name: "parent-link", Fn: avatarParentLinkStep},
	{Name: "timeline-author", Fn: avatarTimelineStep},
	{Name: "src", Fn: avatarSrcStep},
}

func avatarHovercardStep(in Input) (string, Outcome) {
	url, ok := attr(in.Sel, "data-hovercard-url")
	if !ok || url == "" {
		url, _ = in.Sel.Closest("[data-hovercard-url]").Attr("data-hovercard-url")
	}
	if id, ok := hovercardUser(url); ok {
		return id, Match
	}
	return "", Pass
}

func avatarAltStep(in Input) (string, Outcome) {
	alt, ok := attr(in.Sel, "alt")
	if !ok || alt == "" {
		return "", Pass
	}
	name := strings.TrimPrefix(alt, "@")
	if IsIdentifier(name) {
		return name, Match
	}
	return "", Pass
}

func avatarParentLinkStep(in Input) (string, Outcome) {
	link := in.Sel.Closest(`a[href^="/"]`)
	if link.Length() == 0 {
		return "", Pass
	}
	href, _ := link.Attr("href")
	if id, ok := ownerFromHref(href); ok {
		return id, Match
	}
	return "", Pass
}

func avatarTimelineStep(in Input) (string, Outcome) {
	comment := in.Sel.Closest(timelineCommentSelector)
	if comment.Length() == 0 {
		return "", Pass
	}
	author := comment.Find(authorLinkSelector).First()
	if author.Length() == 0 {
		return "", Pass
	}
	href, _ := author.Attr("href")
	if id, ok := ownerFromHref(href); ok {
		return id, Match
	}
	return "", Pass
}

// avatarSrcStep reads the avatar host URL. Numeric segments are user ids,
// and "u" is the prefix of the /u/<id> form, so neither is a username.
func avatarSrcStep(in Input) (string, Outcome) {
	src, ok := attr(in.Sel, "src")
	if !ok || src == "" {
		return "", Pass
	}
	m := avatarSrcRe.FindStringSubmatch(src)
	if m == nil || m[1] == "u" || digitsRe.MatchString(m[1]) {
		return "", Pass
	}
	return m[1], Match
}
