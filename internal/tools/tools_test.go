package tools

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/gnm/internal/daemon"
	"github.com/standardbeagle/gnm/internal/dictionary"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func newTools(t *testing.T) *DaemonTools {
	t.Helper()
	dc := daemon.DefaultDaemonConfig()
	dc.StoreDir = t.TempDir()
	dc.EnableSync = false
	d, err := daemon.New(dc)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		d.Stop(ctx)
	})
	return NewDaemonTools(d)
}

func intp(i int) *int    { return &i }
func boolp(b bool) *bool { return &b }

func errorText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.True(t, res.IsError)
	require.Len(t, res.Content, 1)
	return res.Content[0].(*mcp.TextContent).Text
}

func TestRuleTool(t *testing.T) {
	dt := newTools(t)
	ctx := context.Background()
	rule := dt.makeRuleHandler()

	res, out, err := rule(ctx, nil, RuleInput{Action: "add", Rule: &dictionary.RawEntry{GithubName: "octocat", Nick: "Oc"}})
	require.NoError(t, err)
	require.Nil(t, res)
	assert.True(t, out.Success)
	assert.Equal(t, 0, out.Rule.Index)
	assert.NotEmpty(t, out.Rule.CreatedAt)

	_, out, _ = rule(ctx, nil, RuleInput{Action: "add", Rule: &dictionary.RawEntry{GithubName: "hubot", Nick: "Bot"}})
	assert.Equal(t, 1, out.Rule.Index)

	_, out, _ = rule(ctx, nil, RuleInput{Action: "update", Index: intp(0), Rule: &dictionary.RawEntry{Nick: "Cat"}})
	assert.Equal(t, "Cat", out.Rule.Nick)
	assert.Equal(t, "octocat", out.Rule.GithubName)

	_, out, _ = rule(ctx, nil, RuleInput{Action: "list"})
	require.Len(t, out.Rules, 2)
	assert.Equal(t, 1, out.Rules[1].Index)

	_, out, _ = rule(ctx, nil, RuleInput{Action: "remove", Index: intp(1)})
	assert.True(t, out.Success)

	res, _, _ = rule(ctx, nil, RuleInput{Action: "remove", Index: intp(5)})
	assert.Equal(t, "no rule at index 5", errorText(t, res))

	res, _, _ = rule(ctx, nil, RuleInput{Action: "add", Rule: &dictionary.RawEntry{GithubName: "nonick"}})
	assert.Contains(t, errorText(t, res), "nickname")

	res, _, _ = rule(ctx, nil, RuleInput{Action: "update", Rule: &dictionary.RawEntry{Nick: "x"}})
	assert.Equal(t, "index required", errorText(t, res))

	res, _, _ = rule(ctx, nil, RuleInput{Action: "frobnicate"})
	assert.Contains(t, errorText(t, res), "unknown action")
}

func TestRuleImportExport(t *testing.T) {
	dt := newTools(t)
	ctx := context.Background()
	rule := dt.makeRuleHandler()

	_, out, err := rule(ctx, nil, RuleInput{
		Action: "import",
		JSON:   `{"localRules":[{"github_name":"octocat","nick":"Oc"},{"github_name":"","nick":"skip"}]}`,
		Rules:  []dictionary.RawEntry{{GithubName: "hubot", Nick: "Bot"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)

	_, out, _ = rule(ctx, nil, RuleInput{Action: "export"})
	require.Len(t, out.Exported, 2)
	assert.Equal(t, "hubot", out.Exported[0].GithubName)
	assert.Equal(t, "octocat", out.Exported[1].GithubName)

	res, _, _ := rule(ctx, nil, RuleInput{Action: "import", JSON: "{nope"})
	assert.Contains(t, errorText(t, res), "invalid import file")
}

func TestResolveAndSearch(t *testing.T) {
	dt := newTools(t)
	ctx := context.Background()
	_, _, err := dt.makeRuleHandler()(ctx, nil, RuleInput{Action: "add", Rule: &dictionary.RawEntry{GithubName: "octocat", Nick: "Oc", Domain: "oc.d"}})
	require.NoError(t, err)

	res, out, err := dt.handleResolve(ctx, nil, ResolveInput{Identifiers: []string{"OctoCat", "ghost"}})
	require.NoError(t, err)
	require.Nil(t, res)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "octocat(Oc)", out.Records[0].DisplayName)
	assert.Equal(t, []string{"ghost"}, out.Missing)

	res, _, _ = dt.handleResolve(ctx, nil, ResolveInput{})
	assert.Equal(t, "identifiers required", errorText(t, res))

	_, found, _ := dt.handleSearch(ctx, nil, SearchInput{Query: "oc.d"})
	assert.Equal(t, 1, found.Count)

	_, none, _ := dt.handleSearch(ctx, nil, SearchInput{Query: "zzz"})
	assert.Equal(t, 0, none.Count)
	assert.NotNil(t, none.Records)
}

func TestRewriteTool(t *testing.T) {
	dt := newTools(t)
	ctx := context.Background()
	_, _, err := dt.makeRuleHandler()(ctx, nil, RuleInput{Action: "add", Rule: &dictionary.RawEntry{GithubName: "octocat", Nick: "Oc"}})
	require.NoError(t, err)

	page := `<html><head></head><body><p>thanks @octocat</p></body></html>`
	_, out, err := dt.handleRewrite(ctx, nil, RewriteInput{HTML: page})
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "thanks @octocat(Oc)")
	assert.Equal(t, 1, out.Stats.Mentions)

	_, out, _ = dt.handleRewrite(ctx, nil, RewriteInput{HTML: page, Restore: true})
	assert.Contains(t, out.HTML, "thanks @octocat</p>")

	res, _, _ := dt.handleRewrite(ctx, nil, RewriteInput{})
	assert.Equal(t, "html required", errorText(t, res))
}

func TestToggleTool(t *testing.T) {
	dt := newTools(t)
	ctx := context.Background()

	_, out, err := dt.handleToggle(ctx, nil, ToggleInput{Highlight: boolp(false)})
	require.NoError(t, err)
	assert.True(t, out.Enabled)
	assert.False(t, out.Features.Highlight)
	assert.True(t, out.Features.Replace)

	_, out, _ = dt.handleToggle(ctx, nil, ToggleInput{Enabled: boolp(false)})
	assert.False(t, out.Enabled)
	assert.False(t, dt.d.Snapshot().Enabled)

	_, status, _ := dt.handleStatus(ctx, nil, StatusInput{})
	assert.False(t, status.Enabled)
	assert.False(t, status.Features.Highlight)
	assert.Equal(t, daemon.Version, status.Version)
	assert.Nil(t, status.Proxy)
}

func TestSyncTool(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{"list":[{"account":"octocat","nickname":"Oc"}]}}`)
	}))
	defer feed.Close()

	dt := newTools(t)
	ctx := context.Background()

	res, _, _ := dt.handleSync(ctx, nil, SyncInput{})
	assert.Contains(t, errorText(t, res), "sync failed")

	_, out, _ := dt.handleSync(ctx, nil, SyncInput{AutoUpdate: boolp(false)})
	assert.False(t, out.AutoUpdate)
	assert.False(t, dt.d.Store().Settings().AutoUpdate)

	res, out, err := dt.handleSync(ctx, nil, SyncInput{URL: feed.URL})
	require.NoError(t, err)
	require.Nil(t, res)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, feed.URL, dt.d.Store().Settings().JSONURL)

	_, ok := dt.d.Resolve("octocat")
	assert.True(t, ok)
}

func TestRegisterAll(t *testing.T) {
	dt := newTools(t)
	server := mcp.NewServer(&mcp.Implementation{Name: "gnm", Version: "test"}, &mcp.ServerOptions{Instructions: Instructions})
	assert.NotPanics(t, func() { RegisterAll(server, dt) })
}
