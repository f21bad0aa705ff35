package extract

import (
	"strings"
)

// UserHovercardType is the hovercard type value for user references.
const UserHovercardType = "user"

// ElementChain resolves identifiers from text-bearing elements such as
// author links, mention spans and reviewer badges.
var ElementChain = Chain{
	{Name: "hovercard-type", Fn: hovercardTypeStep},
	{Name: "href", Fn: hrefStep},
	{Name: "hovercard-url", Fn: hovercardURLStep},
	{Name: "text", Fn: textStep},
}

// hovercardTypeStep rejects repository, organization and team references.
func hovercardTypeStep(in Input) (string, Outcome) {
	typ, ok := attr(in.Sel, "data-hovercard-type")
	if ok && typ != "" && typ != UserHovercardType {
		return "", Reject
	}
	return "", Pass
}

// hrefStep only accepts a whole single-segment path, so /user/repo does not
// count as a user link.
func hrefStep(in Input) (string, Outcome) {
	href, ok := attr(in.Sel, "href")
	if !ok || href == "" {
		return "", Pass
	}
	if m := userPathRe.FindStringSubmatch(href); m != nil {
		return m[1], Match
	}
	return "", Pass
}

func hovercardURLStep(in Input) (string, Outcome) {
	url, ok := attr(in.Sel, "data-hovercard-url")
	if !ok {
		return "", Pass
	}
	if id, ok := hovercardUser(url); ok {
		return id, Match
	}
	return "", Pass
}

func textStep(in Input) (string, Outcome) {
	clean := strings.TrimSpace(strings.TrimPrefix(in.Text, "@"))
	if IsIdentifier(clean) && !strings.Contains(clean, "/") {
		return clean, Match
	}
	return "", Pass
}
