// Package dictionary maps platform identifiers to display metadata.
package dictionary

import (
	"strings"
)

// RawEntry is a dictionary entry as it arrives from storage or a remote feed.
// Two field-naming conventions exist in the wild: the legacy one
// (github_name, nick, github_acc) and the feed one (account, nickname, email).
// Both are accepted; Normalize folds them into a Record.
type RawEntry struct {
	GithubName string `json:"github_name,omitempty"`
	Nick       string `json:"nick,omitempty"`
	Domain     string `json:"domain,omitempty"`
	GithubAcc  string `json:"github_acc,omitempty"`

	Account  string `json:"account,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Record is the canonical, immutable form of a dictionary entry.
type Record struct {
	Identifier     string `json:"identifier"`
	Nickname       string `json:"nickname,omitempty"`
	DomainAccount  string `json:"domain_account,omitempty"`
	ContactAddress string `json:"contact_address,omitempty"`
	DisplayName    string `json:"display_name"`
	SearchText     string `json:"-"`
}

// Normalize folds both naming conventions into a Record. The feed
// convention wins when both are present. ok is false when the entry lacks
// an identifier or has neither a nickname nor a domain account.
func (e RawEntry) Normalize() (Record, bool) {
	id := strings.TrimSpace(firstNonEmpty(e.Account, e.GithubName))
	nick := strings.TrimSpace(firstNonEmpty(e.Nickname, e.Nick))
	domain := strings.TrimSpace(e.Domain)
	contact := strings.TrimSpace(firstNonEmpty(e.Email, e.GithubAcc))

	if id == "" || (nick == "" && domain == "") {
		return Record{}, false
	}
	return NewRecord(id, nick, domain, contact), true
}

// Canonical returns the entry rewritten in the legacy convention, which is
// what the settings store persists.
func (e RawEntry) Canonical() RawEntry {
	return RawEntry{
		GithubName: strings.TrimSpace(firstNonEmpty(e.Account, e.GithubName)),
		Nick:       strings.TrimSpace(firstNonEmpty(e.Nickname, e.Nick)),
		Domain:     strings.TrimSpace(e.Domain),
		GithubAcc:  strings.TrimSpace(firstNonEmpty(e.Email, e.GithubAcc)),
	}
}

// NewRecord builds a Record and derives its display and search text.
func NewRecord(identifier, nickname, domain, contact string) Record {
	display := identifier
	if nickname != "" {
		display = identifier + "(" + nickname + ")"
	}
	return Record{
		Identifier:     identifier,
		Nickname:       nickname,
		DomainAccount:  domain,
		ContactAddress: contact,
		DisplayName:    display,
		SearchText:     strings.ToLower(identifier + " " + nickname + " " + domain),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
