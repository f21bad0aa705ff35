package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/standardbeagle/gnm/internal/daemon"
	"github.com/standardbeagle/gnm/internal/store"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SyncInput defines input for the sync tool.
type SyncInput struct {
	URL        string `json:"url,omitempty" jsonschema:"Remote list URL. Empty uses the stored one; a new URL is stored on success."`
	AutoUpdate *bool  `json:"auto_update,omitempty" jsonschema:"Enable or disable the daily background sync"`
}

// SyncOutput defines output for the sync tool.
type SyncOutput struct {
	URL        string `json:"url,omitempty"`
	Count      int    `json:"count"`
	LastUpdate string `json:"last_update,omitempty"`
	AutoUpdate bool   `json:"auto_update"`
	Message    string `json:"message,omitempty"`
}

// ToggleInput defines input for the toggle tool. Unset fields are left as
// they are.
type ToggleInput struct {
	Enabled         *bool `json:"enabled,omitempty" jsonschema:"Master switch"`
	Replace         *bool `json:"replace,omitempty" jsonschema:"Rewrite usernames to username(nickname)"`
	Highlight       *bool `json:"highlight,omitempty" jsonschema:"Highlight rewritten names"`
	AvatarHighlight *bool `json:"avatar_highlight,omitempty" jsonschema:"Annotate avatars of known users"`
	Mention         *bool `json:"mention,omitempty" jsonschema:"@@ mention autocomplete"`
}

// ToggleOutput is the resulting state.
type ToggleOutput struct {
	Enabled  bool           `json:"enabled"`
	Features store.Features `json:"features"`
}

// StatusInput takes no arguments.
type StatusInput struct{}

// StatusOutput flattens the daemon summary.
type StatusOutput struct {
	Version     string         `json:"version"`
	StorePath   string         `json:"store_path"`
	Uptime      string         `json:"uptime"`
	Enabled     bool           `json:"enabled"`
	Features    store.Features `json:"features"`
	Records     int            `json:"records"`
	LocalRules  int            `json:"local_rules"`
	JSONURL     string         `json:"json_url,omitempty"`
	LastUpdate  string         `json:"last_update,omitempty"`
	SyncRuns    int64          `json:"sync_runs"`
	SyncFailed  int64          `json:"sync_failures"`
	Subscribers int            `json:"subscribers"`
	Proxy       *ProxyStatus   `json:"proxy,omitempty"`
}

// ProxyStatus summarizes the rewriting proxy.
type ProxyStatus struct {
	TargetURL  string `json:"target_url"`
	ListenAddr string `json:"listen_addr"`
	Running    bool   `json:"running"`
	Requests   int64  `json:"requests"`
	Rewritten  int64  `json:"rewritten"`
	Errors     int64  `json:"errors"`
	Clients    int    `json:"clients"`
	LastError  string `json:"last_error,omitempty"`
}

// RegisterDaemonTools registers sync, toggle and status.
func RegisterDaemonTools(server *mcp.Server, dt *DaemonTools) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "sync",
		Description: `Fetch the remote developer list now.

The list must look like {"data": {"list": [{"account": "...", "nickname": "..."}]}}.
On success the synced developers are replaced and pages refresh.

Examples:
  sync {}
  sync {url: "https://example.com/developers.json"}
  sync {auto_update: false}`,
	}, dt.handleSync)

	mcp.AddTool(server, &mcp.Tool{
		Name: "toggle",
		Description: `Flip the master switch or individual features.

Turning the master switch off restores every rewritten name on open pages.

Examples:
  toggle {enabled: false}
  toggle {highlight: false, avatar_highlight: false}`,
	}, dt.handleToggle)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "status",
		Description: `Show daemon version, uptime, switch state, dictionary size, sync counters and proxy statistics.`,
	}, dt.handleStatus)
}

func (dt *DaemonTools) handleSync(ctx context.Context, req *mcp.CallToolRequest, input SyncInput) (*mcp.CallToolResult, SyncOutput, error) {
	if input.AutoUpdate != nil {
		st := dt.d.Store().Settings()
		if err := dt.d.SetSync(st.JSONURL, *input.AutoUpdate); err != nil {
			return errorResult(err.Error()), SyncOutput{}, nil
		}
		if input.URL == "" && st.JSONURL == "" {
			return nil, SyncOutput{
				AutoUpdate: *input.AutoUpdate,
				Message:    fmt.Sprintf("auto update set to %v", *input.AutoUpdate),
			}, nil
		}
	}

	res, err := dt.d.Sync(ctx, input.URL)
	if err != nil {
		return errorResult(fmt.Sprintf("sync failed: %v", err)), SyncOutput{}, nil
	}
	return nil, SyncOutput{
		URL:        res.URL,
		Count:      res.Count,
		LastUpdate: res.LastUpdate.Format(time.RFC3339),
		AutoUpdate: dt.d.Store().Settings().AutoUpdate,
		Message:    fmt.Sprintf("synced %d developers from %s", res.Count, res.URL),
	}, nil
}

func (dt *DaemonTools) handleToggle(ctx context.Context, req *mcp.CallToolRequest, input ToggleInput) (*mcp.CallToolResult, ToggleOutput, error) {
	st := dt.d.Store().Settings()

	f := st.Features
	changed := false
	for _, p := range []struct {
		in  *bool
		dst *bool
	}{
		{input.Replace, &f.Replace},
		{input.Highlight, &f.Highlight},
		{input.AvatarHighlight, &f.AvatarHighlight},
		{input.Mention, &f.Mention},
	} {
		if p.in != nil && *p.in != *p.dst {
			*p.dst = *p.in
			changed = true
		}
	}
	if changed {
		if err := dt.d.SetFeatures(f); err != nil {
			return errorResult(err.Error()), ToggleOutput{}, nil
		}
	}
	if input.Enabled != nil && *input.Enabled != st.Enabled {
		if err := dt.d.SetEnabled(*input.Enabled); err != nil {
			return errorResult(err.Error()), ToggleOutput{}, nil
		}
	}

	now := dt.d.Store().Settings()
	return nil, ToggleOutput{Enabled: now.Enabled, Features: now.Features}, nil
}

func (dt *DaemonTools) handleStatus(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	return nil, statusOutput(dt.d.Info(), dt.d.Store().Settings().Features), nil
}

func statusOutput(info daemon.DaemonInfo, features store.Features) StatusOutput {
	out := StatusOutput{
		Version:     info.Version,
		StorePath:   info.StorePath,
		Uptime:      info.Uptime.Round(time.Second).String(),
		Enabled:     info.Enabled,
		Features:    features,
		Records:     info.Records,
		LocalRules:  info.LocalRules,
		JSONURL:     info.JSONURL,
		SyncRuns:    info.Sync.Runs,
		SyncFailed:  info.Sync.Failures,
		Subscribers: info.Subscribers,
	}
	if !info.LastUpdate.IsZero() {
		out.LastUpdate = info.LastUpdate.Format(time.RFC3339)
	}
	if p := info.Proxy; p != nil {
		out.Proxy = &ProxyStatus{
			TargetURL:  p.TargetURL,
			ListenAddr: p.ListenAddr,
			Running:    p.Running,
			Requests:   p.Requests,
			Rewritten:  p.Rewritten,
			Errors:     p.Errors,
			Clients:    p.Clients,
			LastError:  p.LastError,
		}
	}
	return out
}
