package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/gnm/internal/dictionary"
	"github.com/standardbeagle/gnm/internal/page"
)

func testDict() *dictionary.Dictionary {
	return dictionary.Build([]dictionary.RawEntry{
		{GithubName: "octocat", Nick: "Oc", Domain: "oc.d", GithubAcc: "oc@example.com"},
		{GithubName: "hubot", Domain: "bot.d"},
	})
}

func parse(t *testing.T, markup string) *page.Document {
	t.Helper()
	doc, err := page.ParseString(markup)
	require.NoError(t, err)
	return doc
}

func render(t *testing.T, doc *page.Document) string {
	t.Helper()
	out, err := doc.HTML()
	require.NoError(t, err)
	return out
}

func TestScanAuthorLinkScenario(t *testing.T) {
	doc := parse(t, `<body><a class="author" href="/octocat">octocat</a></body>`)
	rw := New(Options{Highlight: true})

	st := rw.Scan(doc.Body(), testDict())
	assert.Equal(t, 1, st.Elements)

	a := doc.Find("a.author")
	assert.Equal(t, "octocat(Oc)", a.Text())
	orig, ok := a.Attr(page.AttrOriginal)
	require.True(t, ok)
	assert.Equal(t, "octocat", orig)
	assert.True(t, a.HasClass(page.ClassReplaced))
	assert.True(t, a.HasClass(page.ClassHighlight))
	title, _ := a.Attr("title")
	assert.Equal(t, "Domain: oc.d\nGitHub: octocat\nEmail: oc@example.com", title)

	assert.Equal(t, 1, rw.Restore(doc.Root()))
	assert.Equal(t, "octocat", a.Text())
	_, ok = a.Attr(page.AttrOriginal)
	assert.False(t, ok)
	assert.False(t, a.HasClass(page.ClassReplaced))
	_, ok = a.Attr("title")
	assert.False(t, ok)
}

func TestScanPreservesAtPrefix(t *testing.T) {
	doc := parse(t, `<body><span class="user-mention">@octocat</span></body>`)
	New(Options{}).Scan(doc.Body(), testDict())
	assert.Equal(t, "@octocat(Oc)", doc.Find(".user-mention").Text())
}

func TestScanIsIdempotent(t *testing.T) {
	markup := `<html><head></head><body>
		<a class="author" href="/octocat">octocat</a>
		<a class="author" href="/hubot"><img src="/a.png"> hubot </a>
		<div class="comment-body"><p>cc @octocat and @hubot please</p></div>
	</body></html>`
	doc := parse(t, markup)
	rw := New(Options{Highlight: true})
	dict := testDict()

	rw.Scan(doc.Body(), dict)
	once := render(t, doc)

	st := rw.Scan(doc.Body(), dict)
	assert.Equal(t, Stats{}, st)
	assert.Equal(t, once, render(t, doc))
}

func TestScanRestoreIsExact(t *testing.T) {
	markup := `<html><head></head><body>
		<a class="author" href="/octocat">  octocat
		</a>
		<a class="author" title="kept" href="/hubot"><img src="/a.png"> hubot <span>x</span></a>
		<p>cc @octocat, then <b>bold</b> and @nobody</p>
		<span class="user-mention">@hubot</span>
	</body></html>`
	doc := parse(t, markup)
	before := render(t, doc)

	rw := New(Options{Highlight: true})
	rw.Scan(doc.Body(), testDict())
	require.NotEqual(t, before, render(t, doc))

	rw.Restore(doc.Root())
	assert.Equal(t, before, render(t, doc))
	assert.Zero(t, rw.Marked())
}

func TestScanWithChildElementsKeepsChildren(t *testing.T) {
	doc := parse(t, `<body><a class="author" href="/octocat"><img class="avatar" src="/a.png">octocat</a></body>`)
	New(Options{}).Scan(doc.Body(), testDict())

	a := doc.Find("a.author")
	assert.Equal(t, 1, a.Find("img.avatar").Length())
	assert.Equal(t, "octocat(Oc)", a.Text())
}

func TestScanSkipsExcludedRegions(t *testing.T) {
	doc := parse(t, `<body>
		<div class="AppHeader"><a class="author" id="nav" href="/octocat">octocat</a><p id="navtext">@octocat</p></div>
		<div class="UnderlineNav"><span class="user-mention" id="tab">@octocat</span></div>
		<a class="author" id="main" href="/octocat">octocat</a>
	</body>`)
	New(Options{}).Scan(doc.Body(), testDict())

	assert.Equal(t, "octocat", doc.Find("#nav").Text())
	assert.Equal(t, "@octocat", doc.Find("#navtext").Text())
	assert.Equal(t, "@octocat", doc.Find("#tab").Text())
	assert.Equal(t, "octocat(Oc)", doc.Find("#main").Text())
}

func TestScanRejectsNonUserHovercard(t *testing.T) {
	doc := parse(t, `<body><a class="Link--primary" data-hovercard-type="repository" href="/octocat">octocat</a></body>`)
	st := New(Options{}).Scan(doc.Body(), testDict())
	assert.Zero(t, st.Elements)
	assert.Equal(t, "octocat", doc.Find("a").Text())
}

func TestScanUnknownIdentifierLeavesElement(t *testing.T) {
	doc := parse(t, `<body><a class="author" href="/stranger">stranger</a></body>`)
	New(Options{}).Scan(doc.Body(), testDict())
	_, marked := doc.Find("a").Attr(page.AttrOriginal)
	assert.False(t, marked)
}

func TestScanEmptyDictionaryIsNoop(t *testing.T) {
	doc := parse(t, `<body><a class="author" href="/octocat">octocat</a></body>`)
	before := render(t, doc)
	st := New(Options{}).Scan(doc.Body(), dictionary.Empty())
	assert.Equal(t, Stats{}, st)
	assert.Equal(t, before, render(t, doc))
}

func TestScanTextScenario(t *testing.T) {
	doc := parse(t, `<body><p id="p">cc @octocat please review</p></body>`)
	rw := New(Options{})

	assert.Equal(t, 1, rw.ScanText(doc.Body(), testDict()))
	p := doc.Find("#p")
	assert.Equal(t, "cc @octocat(Oc) please review", p.Text())
	orig, _ := p.Attr(page.AttrOriginal)
	assert.Equal(t, "cc @octocat please review", orig)

	assert.Zero(t, rw.ScanText(doc.Body(), testDict()))
}

func TestScanTextReplacesEveryMention(t *testing.T) {
	doc := parse(t, `<body><p id="p">@octocat @octocat @stranger @HUBOT</p></body>`)
	New(Options{}).ScanText(doc.Body(), testDict())
	assert.Equal(t, "@octocat(Oc) @octocat(Oc) @stranger @hubot", doc.Find("#p").Text())
}

func TestScanTextSkipsScriptsAndDrafts(t *testing.T) {
	doc := parse(t, `<html><head><title>@octocat</title><script>var s = "@octocat";</script></head>
		<body><textarea id="draft">@octocat</textarea><style>.x{content:"@octocat"}</style></body></html>`)
	assert.Zero(t, New(Options{}).ScanText(doc.Root(), testDict()))
	assert.Equal(t, "@octocat", doc.Find("#draft").Text())
}

func TestDetachedMarksArePruned(t *testing.T) {
	doc := parse(t, `<body><div id="wrap"><a class="author" href="/octocat">octocat</a></div></body>`)
	rw := New(Options{})
	rw.Scan(doc.Body(), testDict())
	require.Equal(t, 1, rw.Marked())

	wrap := doc.Find("#wrap").Nodes[0]
	wrap.Parent.RemoveChild(wrap)

	rw.Scan(doc.Body(), testDict())
	assert.Zero(t, rw.Marked())
}

func TestRestoreForeignMark(t *testing.T) {
	// A page serialized after a scan and parsed again carries only the
	// attribute half of the mark.
	doc := parse(t, `<body><a class="author gnm-replaced" data-gnm-original="octocat" href="/octocat">octocat(Oc)</a></body>`)
	rw := New(Options{})

	assert.Equal(t, 1, rw.Restore(doc.Root()))
	a := doc.Find("a")
	assert.Equal(t, "octocat", a.Text())
	assert.Equal(t, "author", a.AttrOr("class", ""))
}

func TestRestoreSerializedPage(t *testing.T) {
	const input = `<html><head></head><body>` +
		`<a class="author" href="/octocat"><img src="a.png"/> octocat</a>` +
		`<p>cc @octocat <b>x</b> and more</p>` +
		`<span class="user-mention">@octocat</span> ` +
		`<a class="author" href="/octocat"> octocat </a>` +
		`<p title="keep">@HUBOT and @stranger</p>` +
		`</body></html>`
	want := render(t, parse(t, input))

	doc := parse(t, input)
	st := New(Options{Highlight: true}).Scan(doc.Body(), testDict())
	require.Equal(t, Stats{Elements: 3, Mentions: 2}, st)
	saved := render(t, doc)
	require.Contains(t, saved, "octocat(Oc)")

	reloaded := parse(t, saved)
	assert.Equal(t, 5, New(Options{}).Restore(reloaded.Root()))
	assert.Equal(t, want, render(t, reloaded))
}

func TestRestoreForeignMarkLeavesUnmatchedText(t *testing.T) {
	doc := parse(t, `<body><p id="p" data-gnm-original="cc @octocat">edited by hand <b>x</b></p></body>`)
	assert.Equal(t, 1, New(Options{}).Restore(doc.Root()))
	assert.Equal(t, "edited by hand x", doc.Find("#p").Text())
	assert.Equal(t, 1, doc.Find("#p b").Length())
}

func TestRestoreKeepsClassAsWritten(t *testing.T) {
	const input = `<body><span class="user-mention ">@octocat</span><p class="note">hi @octocat</p></body>`
	doc := parse(t, input)
	want := render(t, doc)
	rw := New(Options{Highlight: true})

	rw.Scan(doc.Body(), testDict())
	assert.Equal(t, "user-mention gnm-replaced gnm-highlight", doc.Find("span").AttrOr("class", ""))
	assert.Equal(t, "note", doc.Find("p").AttrOr("class", ""))

	rw.Restore(doc.Root())
	assert.Equal(t, want, render(t, doc))
}
