package engine

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/standardbeagle/gnm/internal/dictionary"
	"github.com/standardbeagle/gnm/internal/page"
	"github.com/standardbeagle/gnm/internal/watch"
)

const fixture = `<html><head></head><body>
<div class="AppHeader"><a class="author" href="/octocat">octocat</a></div>
<div id="thread">
  <a class="author" href="/octocat">octocat</a>
  <p>cc @hubot</p>
  <img class="avatar" alt="@octocat" src="/a.png">
</div>
</body></html>`

type entries []dictionary.RawEntry

func (e *entries) DictionarySource() []dictionary.RawEntry { return *e }

func newSource() *entries {
	return &entries{
		{GithubName: "octocat", Nick: "Oc", Domain: "oc.d"},
		{GithubName: "hubot", Nick: "Bot", Domain: "bot.d"},
	}
}

func newEngine(t *testing.T, src Source, mock *clock.Mock) (*Engine, string) {
	t.Helper()
	doc, err := page.ParseString(fixture)
	require.NoError(t, err)
	before, err := doc.HTML()
	require.NoError(t, err)
	if mock == nil {
		mock = clock.NewMock()
	}
	e := New(doc, Options{
		Enabled:  true,
		Features: AllFeatures(),
		Source:   src,
		Clock:    mock,
	})
	t.Cleanup(e.Teardown)
	return e, before
}

func render(t *testing.T, e *Engine) string {
	t.Helper()
	out, err := e.Document().HTML()
	require.NoError(t, err)
	return out
}

func TestActivateRunsAllPasses(t *testing.T) {
	e, _ := newEngine(t, newSource(), nil)
	st := e.Activate()

	assert.Equal(t, Stats{Elements: 1, Mentions: 1, Avatars: 1}, st)
	doc := e.Document()
	assert.Equal(t, "octocat(Oc)", doc.Find("#thread a.author").Text())
	assert.Equal(t, "octocat", doc.Find(".AppHeader a").Text())
	assert.Equal(t, "cc @hubot(Bot)", doc.Find("#thread p").Text())
	assert.Equal(t, "octocat", doc.Find("img").AttrOr(page.AttrAvatar, ""))

	again := e.Activate()
	assert.Equal(t, st, again)
	assert.Equal(t, 1, e.Scans())
}

func TestToggleOffRestoresExactly(t *testing.T) {
	e, before := newEngine(t, newSource(), nil)
	e.Activate()

	st := e.Toggle(false)
	assert.Equal(t, 2, st.Restored)
	assert.False(t, e.Enabled())
	assert.False(t, e.Mention().Enabled())

	// Avatar annotations are metadata only and stay.
	after := render(t, e)
	assert.NotEqual(t, before, after)
	assert.Equal(t, "octocat", e.Document().Find("#thread a.author").Text())
	assert.Equal(t, "cc @hubot", e.Document().Find("#thread p").Text())

	st = e.Toggle(true)
	assert.Equal(t, 1, st.Elements)
	assert.Equal(t, "octocat(Oc)", e.Document().Find("#thread a.author").Text())
}

func TestRefreshPicksUpChangedNames(t *testing.T) {
	src := newSource()
	e, _ := newEngine(t, src, nil)
	e.Activate()

	(*src)[0].Nick = "Cat"
	*src = append(*src, dictionary.RawEntry{GithubName: "octocat", Nick: "Local", Domain: "l.d"})
	st := e.Refresh()

	assert.Equal(t, 2, st.Restored)
	assert.Equal(t, "octocat(Local)", e.Document().Find("#thread a.author").Text(), "last entry wins")
	assert.Equal(t, 3, e.Dictionary().Len())
}

func TestMutationTriggersDebouncedRescan(t *testing.T) {
	mock := clock.NewMock()
	e, _ := newEngine(t, newSource(), mock)
	e.Activate()

	for i := 0; i < 3; i++ {
		e.Mutate(func(doc *page.Document) {
			thread := doc.Find("#thread").Nodes[0]
			a := &html.Node{Type: html.ElementNode, Data: "a", Attr: []html.Attribute{
				{Key: "class", Val: "author"}, {Key: "href", Val: "/hubot"},
			}}
			a.AppendChild(&html.Node{Type: html.TextNode, Data: "hubot"})
			thread.AppendChild(a)
		})
	}
	assert.Equal(t, 1, e.Scans())

	mock.Add(watch.DefaultWindow)
	require.Eventually(t, func() bool { return e.Scans() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, e.LastStats().Elements)
	assert.Equal(t, 3, e.Document().Find(`a[href="/hubot"].gnm-replaced`).Length())
}

func TestMutationWhileDisabledDoesNotScan(t *testing.T) {
	mock := clock.NewMock()
	e, _ := newEngine(t, newSource(), mock)
	e.Activate()
	e.Toggle(false)
	scans := e.Scans()

	e.Mutate(func(*page.Document) {})
	mock.Add(watch.DefaultWindow)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, scans, e.Scans())
}

func TestTeardownStopsRescans(t *testing.T) {
	mock := clock.NewMock()
	e, _ := newEngine(t, newSource(), mock)
	e.Activate()

	e.Mutate(func(*page.Document) {})
	e.Teardown()
	mock.Add(time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, e.Scans())

	e.Mutate(func(*page.Document) { t.Fatal("mutation applied after teardown") })
	assert.Equal(t, 1, e.Activate().Elements)
}

func TestFeaturesGatePasses(t *testing.T) {
	doc, err := page.ParseString(fixture)
	require.NoError(t, err)
	e := New(doc, Options{
		Enabled:  true,
		Features: Features{AvatarHighlight: true},
		Source:   newSource(),
		Clock:    clock.NewMock(),
	})
	defer e.Teardown()

	st := e.Activate()
	assert.Equal(t, Stats{Avatars: 1}, st)
	assert.Equal(t, "octocat", doc.Find("#thread a.author").Text())
	assert.False(t, e.Mention().Enabled())

	e.SetFeatures(Features{Replace: true, Mention: true})
	assert.True(t, e.Mention().Enabled())
	e.Refresh()
	assert.Equal(t, "octocat(Oc)", doc.Find("#thread a.author").Text())
	assert.False(t, doc.Find("#thread a.author").HasClass(page.ClassHighlight))

	e.SetFeatures(Features{})
	assert.Equal(t, "octocat", doc.Find("#thread a.author").Text())
}

func TestSharedDictionarySnapshot(t *testing.T) {
	d := dictionary.Build([]dictionary.RawEntry{{GithubName: "octocat", Nick: "Snap"}})
	doc, err := page.ParseString(`<body><a class="author" href="/octocat">octocat</a></body>`)
	require.NoError(t, err)

	e := New(doc, Options{
		Enabled:    true,
		Features:   AllFeatures(),
		Source:     SourceFunc(func() []dictionary.RawEntry { t.Fatal("source consulted"); return nil }),
		Dictionary: func() *dictionary.Dictionary { return d },
		Clock:      clock.NewMock(),
	})
	defer e.Teardown()

	e.Activate()
	assert.Same(t, d, e.Dictionary())
	assert.Equal(t, "octocat(Snap)", doc.Find("a").Text())
}

func TestNilSourceYieldsEmptyDictionary(t *testing.T) {
	e, before := newEngine(t, nil, nil)
	st := e.Activate()
	assert.Equal(t, Stats{}, st)
	assert.Equal(t, before, render(t, e))
}

func TestRewriteHTML(t *testing.T) {
	snap := Snapshot{
		Enabled:    true,
		Features:   AllFeatures(),
		Dictionary: dictionary.Build(*newSource()),
	}

	out, st, err := RewriteHTML([]byte(fixture), snap, false)
	require.NoError(t, err)
	assert.Equal(t, Stats{Elements: 1, Mentions: 1, Avatars: 1}, st)
	assert.Contains(t, string(out), "octocat(Oc)</a>")
	assert.Contains(t, string(out), "cc @hubot(Bot)")

	out, st, err = RewriteHTML([]byte(fixture), snap, true)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Restored)
	assert.NotContains(t, string(out), "(Oc)")
	assert.NotContains(t, string(out), page.AttrOriginal)

	snap.Enabled = false
	out, st, err = RewriteHTML([]byte(fixture), snap, false)
	require.NoError(t, err)
	assert.Zero(t, st.Elements)
	assert.NotContains(t, string(out), "(Oc)")

	_, _, err = RewriteHTML([]byte(fixture), Snapshot{Enabled: true, Features: AllFeatures()}, false)
	assert.NoError(t, err, "nil dictionary")
}

func TestRewriteHTMLRestoresSavedOutput(t *testing.T) {
	const input = `<html><head></head><body>` +
		`<a class="author" href="/octocat"><img src="a.png"/> octocat</a>` +
		`<p>cc @octocat <b>x</b> and more</p>` +
		`</body></html>`
	snap := Snapshot{
		Enabled:    true,
		Features:   Features{Replace: true, Highlight: true},
		Dictionary: dictionary.Build(*newSource()),
	}

	want, _, err := RewriteHTML([]byte(input), Snapshot{}, false)
	require.NoError(t, err)

	saved, st, err := RewriteHTML([]byte(input), snap, false)
	require.NoError(t, err)
	require.Equal(t, 1, st.Elements)
	require.Equal(t, 1, st.Mentions)

	out, st, err := RewriteHTML(saved, snap, true)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Restored)
	assert.Equal(t, string(want), string(out))
}

func TestApplySnapshot(t *testing.T) {
	doc, err := page.ParseString(fixture)
	require.NoError(t, err)
	cur := dictionary.Build(*newSource())
	e := New(doc, Options{
		Enabled:    true,
		Features:   AllFeatures(),
		Dictionary: func() *dictionary.Dictionary { return cur },
		Clock:      clock.NewMock(),
	})
	defer e.Teardown()
	e.Activate()
	require.True(t, e.Mention().Enabled())
	scans := e.Scans()

	e.Apply(Snapshot{Enabled: true, Features: AllFeatures(), Dictionary: cur})
	assert.Equal(t, scans, e.Scans(), "unchanged snapshot")

	e.Apply(Snapshot{Enabled: true, Features: Features{Replace: true}, Dictionary: cur})
	assert.False(t, e.Mention().Enabled())
	assert.Equal(t, "octocat(Oc)", doc.Find("#thread a.author").Text())

	cur = dictionary.Build([]dictionary.RawEntry{{GithubName: "octocat", Nick: "New"}})
	e.Apply(Snapshot{Enabled: true, Features: Features{Replace: true}, Dictionary: cur})
	assert.Same(t, cur, e.Dictionary())
	assert.Equal(t, "octocat(New)", doc.Find("#thread a.author").Text())

	e.Apply(Snapshot{Enabled: false, Features: Features{Replace: true}, Dictionary: cur})
	assert.False(t, e.Enabled())
	assert.Equal(t, "octocat", doc.Find("#thread a.author").Text())
}
