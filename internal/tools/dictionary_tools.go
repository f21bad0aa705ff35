package tools

import (
	"context"
	"fmt"

	"github.com/standardbeagle/gnm/internal/dictionary"
	"github.com/standardbeagle/gnm/internal/engine"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ResolveInput lists identifiers to look up.
type ResolveInput struct {
	Identifiers []string `json:"identifiers" jsonschema:"GitHub usernames to resolve (case-insensitive)"`
}

// ResolveOutput carries the matches and the identifiers with no record.
type ResolveOutput struct {
	Records []dictionary.Record `json:"records"`
	Missing []string            `json:"missing,omitempty"`
}

// SearchInput is a free-text dictionary query.
type SearchInput struct {
	Query string `json:"query,omitempty" jsonschema:"Substring matched against username, nickname, domain account and email. Empty lists the first entries."`
}

// SearchOutput holds at most dictionary.SearchLimit records.
type SearchOutput struct {
	Records []dictionary.Record `json:"records"`
	Count   int                 `json:"count"`
}

// RewriteInput is an HTML document to rewrite.
type RewriteInput struct {
	HTML    string `json:"html" jsonschema:"Complete or partial HTML document"`
	Restore bool   `json:"restore,omitempty" jsonschema:"Rewrite then restore, returning the original names"`
}

// RewriteOutput is the rewritten document and scan statistics.
type RewriteOutput struct {
	HTML  string       `json:"html"`
	Stats engine.Stats `json:"stats"`
}

// RegisterDictionaryTools registers resolve, search and rewrite.
func RegisterDictionaryTools(server *mcp.Server, dt *DaemonTools) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "resolve",
		Description: `Resolve GitHub usernames against the dictionary.

Examples:
  resolve {identifiers: ["octocat"]}
  resolve {identifiers: ["octocat", "hubot"]}

Each match carries the display name "username(nickname)" used on pages.`,
	}, dt.handleResolve)

	mcp.AddTool(server, &mcp.Tool{
		Name: "search",
		Description: `Search the dictionary the way the @@ mention popup does.

Examples:
  search {query: "oc"}
  search {}`,
	}, dt.handleSearch)

	mcp.AddTool(server, &mcp.Tool{
		Name: "rewrite",
		Description: `Rewrite an HTML document with the current dictionary and feature flags.

Author links, team member links, hovercard links and @mentions in text
are rewritten to "username(nickname)"; avatars of known users are
annotated. With restore set, the document is rewritten and then restored,
which shows exactly what a toggle-off leaves behind.`,
	}, dt.handleRewrite)
}

func (dt *DaemonTools) handleResolve(ctx context.Context, req *mcp.CallToolRequest, input ResolveInput) (*mcp.CallToolResult, ResolveOutput, error) {
	if len(input.Identifiers) == 0 {
		return errorResult("identifiers required"), ResolveOutput{}, nil
	}
	out := ResolveOutput{Records: []dictionary.Record{}}
	for _, id := range input.Identifiers {
		if rec, ok := dt.d.Resolve(id); ok {
			out.Records = append(out.Records, rec)
		} else {
			out.Missing = append(out.Missing, id)
		}
	}
	return nil, out, nil
}

func (dt *DaemonTools) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	recs := dt.d.Search(input.Query)
	if recs == nil {
		recs = []dictionary.Record{}
	}
	return nil, SearchOutput{Records: recs, Count: len(recs)}, nil
}

func (dt *DaemonTools) handleRewrite(ctx context.Context, req *mcp.CallToolRequest, input RewriteInput) (*mcp.CallToolResult, RewriteOutput, error) {
	if input.HTML == "" {
		return errorResult("html required"), RewriteOutput{}, nil
	}
	out, st, err := dt.d.Rewrite([]byte(input.HTML), input.Restore)
	if err != nil {
		return errorResult(fmt.Sprintf("rewrite failed: %v", err)), RewriteOutput{}, nil
	}
	return nil, RewriteOutput{HTML: string(out), Stats: st}, nil
}
