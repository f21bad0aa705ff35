package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/standardbeagle/gnm/internal/dictionary"
	"github.com/standardbeagle/gnm/internal/remote"
	"github.com/standardbeagle/gnm/internal/store"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RuleInput represents input for the rule tool.
type RuleInput struct {
	Action string                `json:"action" jsonschema:"Action: list, add, update, remove, import, export"`
	Index  *int                  `json:"index,omitempty" jsonschema:"Rule index (required for update, remove)"`
	Rule   *dictionary.RawEntry  `json:"rule,omitempty" jsonschema:"Rule fields (required for add, update)"`
	Rules  []dictionary.RawEntry `json:"rules,omitempty" jsonschema:"Rules to import"`
	JSON   string                `json:"json,omitempty" jsonschema:"Import file contents: an array, or an object with localRules, rules, developers or data.list"`
}

// RuleOutput represents output from the rule tool.
type RuleOutput struct {
	Success  bool                  `json:"success"`
	Rule     *RuleEntry            `json:"rule,omitempty"`
	Rules    []RuleEntry           `json:"rules,omitempty"`
	Exported []dictionary.RawEntry `json:"exported,omitempty"`
	Count    int                   `json:"count,omitempty"`
	Message  string                `json:"message,omitempty"`
}

// RuleEntry is a local rule with its position.
type RuleEntry struct {
	Index      int    `json:"index"`
	GithubName string `json:"github_name"`
	Nick       string `json:"nick"`
	Domain     string `json:"domain,omitempty"`
	GithubAcc  string `json:"github_acc,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

func ruleEntry(index int, r store.LocalRule) RuleEntry {
	e := RuleEntry{
		Index:      index,
		GithubName: r.GithubName,
		Nick:       r.Nick,
		Domain:     r.Domain,
		GithubAcc:  r.GithubAcc,
	}
	if !r.CreatedAt.IsZero() {
		e.CreatedAt = r.CreatedAt.Format(time.RFC3339)
	}
	if !r.UpdatedAt.IsZero() {
		e.UpdatedAt = r.UpdatedAt.Format(time.RFC3339)
	}
	return e
}

// RegisterRuleTool registers the rule MCP tool with the server.
func RegisterRuleTool(server *mcp.Server, dt *DaemonTools) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "rule",
		Description: `Manage local rules. Local rules are appended after the synced list and
win when both define the same username.

Actions:
  list: List local rules with their indexes
  add: Add a rule (rule.github_name and rule.nick required)
  update: Merge the non-empty fields of rule into the rule at index
  remove: Delete the rule at index
  import: Append rules from rules or json; invalid entries are skipped
  export: Return rules in the shape import accepts

Examples:
  rule {action: "list"}
  rule {action: "add", rule: {github_name: "octocat", nick: "Oc", domain: "oc.d"}}
  rule {action: "update", index: 0, rule: {nick: "Cat"}}
  rule {action: "remove", index: 0}
  rule {action: "import", json: "{\"localRules\": [...]}"}
  rule {action: "export"}

Every change refreshes the dictionary and open proxied pages.`,
	}, dt.makeRuleHandler())
}

func (dt *DaemonTools) makeRuleHandler() func(context.Context, *mcp.CallToolRequest, RuleInput) (*mcp.CallToolResult, RuleOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RuleInput) (*mcp.CallToolResult, RuleOutput, error) {
		switch input.Action {
		case "list":
			return dt.handleRuleList()
		case "add":
			return dt.handleRuleAdd(input)
		case "update":
			return dt.handleRuleUpdate(input)
		case "remove":
			return dt.handleRuleRemove(input)
		case "import":
			return dt.handleRuleImport(input)
		case "export":
			return dt.handleRuleExport()
		default:
			return errorResult(fmt.Sprintf("unknown action: %s (use: list, add, update, remove, import, export)", input.Action)), RuleOutput{}, nil
		}
	}
}

func (dt *DaemonTools) handleRuleList() (*mcp.CallToolResult, RuleOutput, error) {
	rules := dt.d.Store().LocalRules()
	out := make([]RuleEntry, len(rules))
	for i, r := range rules {
		out[i] = ruleEntry(i, r)
	}
	return nil, RuleOutput{
		Success: true,
		Rules:   out,
		Count:   len(out),
	}, nil
}

func (dt *DaemonTools) handleRuleAdd(input RuleInput) (*mcp.CallToolResult, RuleOutput, error) {
	if input.Rule == nil {
		return errorResult("rule required"), RuleOutput{}, nil
	}
	rule, err := dt.d.AddRule(*input.Rule)
	if err != nil {
		return errorResult(err.Error()), RuleOutput{}, nil
	}
	entry := ruleEntry(len(dt.d.Store().LocalRules())-1, rule)
	return nil, RuleOutput{
		Success: true,
		Rule:    &entry,
		Message: fmt.Sprintf("added %s", rule.GithubName),
	}, nil
}

func (dt *DaemonTools) handleRuleUpdate(input RuleInput) (*mcp.CallToolResult, RuleOutput, error) {
	if input.Index == nil {
		return errorResult("index required"), RuleOutput{}, nil
	}
	if input.Rule == nil {
		return errorResult("rule required"), RuleOutput{}, nil
	}
	rule, err := dt.d.UpdateRule(*input.Index, *input.Rule)
	if err != nil {
		return errorResult(err.Error()), RuleOutput{}, nil
	}
	entry := ruleEntry(*input.Index, rule)
	return nil, RuleOutput{
		Success: true,
		Rule:    &entry,
		Message: fmt.Sprintf("updated rule %d", *input.Index),
	}, nil
}

func (dt *DaemonTools) handleRuleRemove(input RuleInput) (*mcp.CallToolResult, RuleOutput, error) {
	if input.Index == nil {
		return errorResult("index required"), RuleOutput{}, nil
	}
	if err := dt.d.RemoveRule(*input.Index); err != nil {
		if errors.Is(err, store.ErrIndexOutOfRange) {
			return errorResult(fmt.Sprintf("no rule at index %d", *input.Index)), RuleOutput{}, nil
		}
		return errorResult(err.Error()), RuleOutput{}, nil
	}
	return nil, RuleOutput{
		Success: true,
		Message: fmt.Sprintf("removed rule %d", *input.Index),
	}, nil
}

func (dt *DaemonTools) handleRuleImport(input RuleInput) (*mcp.CallToolResult, RuleOutput, error) {
	entries := input.Rules
	if input.JSON != "" {
		parsed, err := remote.ExtractRules([]byte(input.JSON))
		if err != nil {
			return errorResult(fmt.Sprintf("invalid import file: %v", err)), RuleOutput{}, nil
		}
		entries = append(entries, parsed...)
	}
	if len(entries) == 0 {
		return errorResult("rules or json required"), RuleOutput{}, nil
	}
	n, err := dt.d.ImportRules(entries)
	if err != nil {
		return errorResult(err.Error()), RuleOutput{}, nil
	}
	return nil, RuleOutput{
		Success: true,
		Count:   n,
		Message: fmt.Sprintf("imported %d of %d rules", n, len(entries)),
	}, nil
}

func (dt *DaemonTools) handleRuleExport() (*mcp.CallToolResult, RuleOutput, error) {
	rules := dt.d.Store().ExportLocalRules()
	return nil, RuleOutput{
		Success:  true,
		Exported: rules,
		Count:    len(rules),
	}, nil
}
