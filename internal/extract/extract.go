// Package extract decides whether a DOM element refers to a platform user
// and which identifier it names. Each heuristic is a Step; a Chain runs its
// steps in order and stops at the first one that matches or rejects.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Outcome of a single step.
type Outcome int

const (
	// Pass means the step found nothing and the next step should run.
	Pass Outcome = iota
	// Match means the step produced a candidate identifier.
	Match
	// Reject means the element definitely does not reference a user.
	Reject
)

// Input is what a step inspects: the element and its trimmed visible text.
type Input struct {
	Sel  *goquery.Selection
	Text string
}

// Step is one heuristic.
type Step struct {
	Name string
	Fn   func(Input) (string, Outcome)
}

// Chain is an ordered list of steps.
type Chain []Step

// Result describes which step produced an identifier.
type Result struct {
	Identifier string
	Step       string
}

// Run evaluates the chain. ok is false on a reject or when every step passes.
func (c Chain) Run(in Input) (Result, bool) {
	for _, s := range c {
		id, outcome := s.Fn(in)
		switch outcome {
		case Match:
			return Result{Identifier: id, Step: s.Name}, true
		case Reject:
			return Result{Step: s.Name}, false
		}
	}
	return Result{}, false
}

const identifierExpr = `[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?`

var (
	identifierRe = regexp.MustCompile(`^` + identifierExpr + `$`)

	// userPathRe matches a whole single-segment path like /octocat.
	userPathRe = regexp.MustCompile(`^/(` + identifierExpr + `)$`)

	// ownerPathRe matches the first segment of a path like /octocat/repo.
	ownerPathRe = regexp.MustCompile(`^/(` + identifierExpr + `)(?:/|$)`)

	hovercardUserRe = regexp.MustCompile(`/users/([^/?#]+)`)

	avatarSrcRe = regexp.MustCompile(`avatars\.githubusercontent\.com/([^/?#]+)`)

	digitsRe = regexp.MustCompile(`^\d+$`)
)

// IsIdentifier reports whether s is a syntactically valid identifier.
func IsIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// ReservedSegments are top-level paths that look like identifiers but name
// site sections.
var ReservedSegments = map[string]bool{
	"issues":        true,
	"pull":          true,
	"pulls":         true,
	"orgs":          true,
	"teams":         true,
	"settings":      true,
	"notifications": true,
	"sponsors":      true,
}

func attr(sel *goquery.Selection, name string) (string, bool) {
	return sel.Attr(name)
}

func hovercardUser(url string) (string, bool) {
	if !strings.Contains(url, "/users/") {
		return "", false
	}
	m := hovercardUserRe.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func ownerFromHref(href string) (string, bool) {
	m := ownerPathRe.FindStringSubmatch(href)
	if m == nil || ReservedSegments[m[1]] {
		return "", false
	}
	return m[1], true
}
