package dictionary

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		entry   RawEntry
		wantOK  bool
		wantID  string
		display string
	}{
		{"legacy with nick", RawEntry{GithubName: "octocat", Nick: "Oc"}, true, "octocat", "octocat(Oc)"},
		{"feed convention", RawEntry{Account: "hubot", Nickname: "Bot", Email: "h@x.io"}, true, "hubot", "hubot(Bot)"},
		{"domain only", RawEntry{GithubName: "monalisa", Domain: "mona.l"}, true, "monalisa", "monalisa"},
		{"missing identifier", RawEntry{Nick: "ghost"}, false, "", ""},
		{"identifier only", RawEntry{GithubName: "lonely"}, false, "", ""},
		{"blank fields", RawEntry{GithubName: "  ", Nick: "x"}, false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := tt.entry.Normalize()
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantID, rec.Identifier)
			assert.Equal(t, tt.display, rec.DisplayName)
		})
	}
}

func TestRawEntryAcceptsBothConventions(t *testing.T) {
	var entries []RawEntry
	payload := `[
		{"github_name": "octocat", "nick": "Oc", "github_acc": "oc@example.com"},
		{"account": "hubot", "nickname": "Bot", "domain": "bot.d", "email": "bot@example.com"}
	]`
	require.NoError(t, json.Unmarshal([]byte(payload), &entries))

	d := Build(entries)
	require.Equal(t, 2, d.Len())

	oc, ok := d.Resolve("octocat")
	require.True(t, ok)
	assert.Equal(t, "oc@example.com", oc.ContactAddress)

	bot, ok := d.Resolve("HUBOT")
	require.True(t, ok)
	assert.Equal(t, "bot.d", bot.DomainAccount)
	assert.Equal(t, "bot@example.com", bot.ContactAddress)
	assert.Equal(t, "hubot bot bot.d", bot.SearchText)
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	d := Build([]RawEntry{{GithubName: "OctoCat", Nick: "Oc"}})

	for _, q := range []string{"octocat", "OCTOCAT", "OctoCat"} {
		rec, ok := d.Resolve(q)
		require.True(t, ok, q)
		assert.Equal(t, "OctoCat", rec.Identifier)
	}

	_, ok := d.Resolve("octocat2")
	assert.False(t, ok)
	_, ok = d.Resolve("")
	assert.False(t, ok)
}

func TestBuildLastWriteWins(t *testing.T) {
	remote := RawEntry{GithubName: "octocat", Nick: "Remote"}
	local := RawEntry{GithubName: "OCTOCAT", Nick: "Local"}

	d := Build([]RawEntry{remote, local})

	rec, ok := d.Resolve("octocat")
	require.True(t, ok)
	assert.Equal(t, "Local", rec.Nickname)
	assert.Equal(t, 2, d.Len(), "both entries stay in the ordered list")
	assert.Equal(t, 1, d.Size())
}

func TestSearch(t *testing.T) {
	var entries []RawEntry
	for i := 0; i < 12; i++ {
		entries = append(entries, RawEntry{GithubName: fmt.Sprintf("user%02d", i), Nick: fmt.Sprintf("n%d", i)})
	}
	entries = append(entries, RawEntry{GithubName: "octocat", Nick: "Oc"})
	d := Build(entries)

	t.Run("empty query returns first eight in order", func(t *testing.T) {
		got := d.Search("")
		require.Len(t, got, SearchLimit)
		for i, r := range got {
			assert.Equal(t, fmt.Sprintf("user%02d", i), r.Identifier)
		}
	})

	t.Run("substring match is capped", func(t *testing.T) {
		got := d.Search("USER")
		assert.Len(t, got, SearchLimit)
	})

	t.Run("matches nickname", func(t *testing.T) {
		got := d.Search("oc")
		require.Len(t, got, 1)
		assert.Equal(t, "octocat", got[0].Identifier)
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, d.Search("zzz"))
	})
}

func TestNilDictionary(t *testing.T) {
	var d *Dictionary
	assert.Equal(t, 0, d.Len())
	assert.Nil(t, d.Search(""))
	_, ok := d.Resolve("x")
	assert.False(t, ok)
}
