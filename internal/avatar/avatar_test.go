package avatar

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
	})
}

func TestScanAltScenario(t *testing.T) {
	doc, err := page.ParseString(`<body><img class="avatar" alt="@octocat" src="/a.png"></body>`)
	require.NoError(t, err)

	n := New().Scan(doc.Body(), testDict())
	assert.Equal(t, 1, n)

	img := doc.Find("img")
	assert.Equal(t, "octocat", img.AttrOr(page.AttrAvatar, ""))
	assert.True(t, img.HasClass(page.ClassAvatarHighlight))
	assert.Equal(t, "octocat(Oc)\nDomain: oc.d\nEmail: oc@example.com", img.AttrOr("title", ""))
	assert.Equal(t, "@octocat", img.AttrOr("alt", ""), "original content untouched")
}

func TestScanIsIdempotent(t *testing.T) {
	doc, err := page.ParseString(`<body>
		<div class="TimelineItem-avatar"><img alt="octocat" src="/a.png"></div>
		<a class="author" href="/octocat"><img src="https://avatars.githubusercontent.com/u/1?v=4"></a>
	</body>`)
	require.NoError(t, err)

	a := New()
	assert.Equal(t, 2, a.Scan(doc.Body(), testDict()))
	first, _ := doc.HTML()

	assert.Zero(t, a.Scan(doc.Body(), testDict()))
	second, _ := doc.HTML()
	assert.Equal(t, first, second)
}

func TestScanSkipsExcludedAndUnknown(t *testing.T) {
	doc, err := page.ParseString(`<body>
		<header class="AppHeader"><img class="avatar" id="nav" alt="@octocat"></header>
		<img class="avatar" id="stranger" alt="@stranger">
		<img class="avatar" id="plain" src="/logo.png">
	</body>`)
	require.NoError(t, err)

	assert.Zero(t, New().Scan(doc.Body(), testDict()))
	for _, id := range []string{"#nav", "#stranger", "#plain"} {
		_, ok := doc.Find(id).Attr(page.AttrAvatar)
		assert.False(t, ok, id)
	}
}

func TestScanEmptyDictionary(t *testing.T) {
	doc, err := page.ParseString(`<body><img class="avatar" alt="@octocat"></body>`)
	require.NoError(t, err)
	assert.Zero(t, New().Scan(doc.Body(), dictionary.Empty()))
}
