// Package proxy serves third-party pages through the rewriting engine. It
// reverse-proxies a configured origin, runs the engine over each HTML
// response, injects the page client, and hosts the websocket channels the
// client uses for refresh/toggle signals and mention sessions.
package proxy

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/standardbeagle/gnm/internal/debug"
	"github.com/standardbeagle/gnm/internal/engine"
	"github.com/standardbeagle/gnm/internal/store"
)

// MaxRewriteSize bounds the HTML bodies the proxy will buffer and rewrite.
// Larger pages pass through untouched.
const MaxRewriteSize = 8 << 20

// State is the shared settings the proxy reads and the control endpoints
// change.
type State interface {
	Snapshot() engine.Snapshot
	Reload() error
	SetEnabled(enabled bool) error
}

// ProxyConfig configures a ProxyServer.
type ProxyConfig struct {
	ID         string
	TargetURL  string
	ListenHost string
	ListenPort int // 0 picks a free port
	// Hosts limits rewriting to matching upstream hosts. Empty means
	// store.DefaultHosts.
	Hosts    []string
	Platform string
	State    State
	Clock    clock.Clock
}

// ProxyStats is a point-in-time view of a server.
type ProxyStats struct {
	ID         string `json:"id"`
	TargetURL  string `json:"target_url"`
	ListenAddr string `json:"listen_addr"`
	Running    bool   `json:"running"`
	Requests   int64  `json:"requests"`
	Rewritten  int64  `json:"rewritten"`
	Errors     int64  `json:"errors"`
	Clients    int    `json:"clients"`
	LastError  string `json:"last_error,omitempty"`
}

// ProxyServer is the rewriting reverse proxy.
type ProxyServer struct {
	ID         string
	ListenAddr string

	config  ProxyConfig
	target  *url.URL
	hub     *Hub
	handler http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	lastError  string

	running   atomic.Bool
	requests  atomic.Int64
	rewritten atomic.Int64
	failures  atomic.Int64
}

// NewProxyServer validates config and builds the handler. It does not
// listen until Start.
func NewProxyServer(config ProxyConfig) (*ProxyServer, error) {
	if config.State == nil {
		return nil, errors.New("proxy: state is required")
	}
	target, err := url.Parse(config.TargetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("invalid target URL %q: scheme must be http or https", config.TargetURL)
	}
	if len(config.Hosts) == 0 {
		config.Hosts = store.DefaultHosts
	}
	if config.ListenHost == "" {
		config.ListenHost = "127.0.0.1"
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.ID == "" {
		config.ID = target.Host
	}

	ps := &ProxyServer{
		ID:     config.ID,
		config: config,
		target: target,
		hub:    NewHub(),
	}

	rp := &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.Out.Host = target.Host
			// Only gzip is decoded before rewriting.
			r.Out.Header.Set("Accept-Encoding", "gzip")
		},
		ModifyResponse: ps.modifyResponse,
		ErrorHandler:   ps.proxyError,
	}

	mux := http.NewServeMux()
	mux.Handle(PathEvents, ps.hub)
	mux.Handle(PathMention, &mentionHandler{
		state:    config.State,
		platform: config.Platform,
		clock:    config.Clock,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	})
	mux.HandleFunc(PathRefresh, ps.handleRefresh)
	mux.HandleFunc(PathToggle, ps.handleToggle)
	mux.HandleFunc(PathStatus, ps.handleStatus)
	mux.Handle("/", rp)

	ps.handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.requests.Add(1)
		mux.ServeHTTP(w, r)
	})
	return ps, nil
}

// Handler returns the proxy's HTTP handler, for mounting or tests.
func (ps *ProxyServer) Handler() http.Handler {
	return ps.handler
}

// Hub returns the signal hub.
func (ps *ProxyServer) Hub() *Hub {
	return ps.hub
}

// Start listens and serves in the background.
func (ps *ProxyServer) Start(ctx context.Context) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.running.Load() {
		return errors.New("proxy already running")
	}

	addr := net.JoinHostPort(ps.config.ListenHost, strconv.Itoa(ps.config.ListenPort))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	ps.ListenAddr = ln.Addr().String()
	ps.httpServer = &http.Server{
		Handler:           ps.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ps.running.Store(true)

	srv := ps.httpServer
	go func() {
		err := srv.Serve(ln)
		ps.running.Store(false)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			ps.setError(err)
			debug.Error("proxy", "serve %s: %v", ps.ListenAddr, err)
		}
	}()

	debug.Info("proxy", "%s listening on %s -> %s", ps.ID, ps.ListenAddr, ps.target)
	return nil
}

// Stop closes signal clients and shuts the server down.
func (ps *ProxyServer) Stop(ctx context.Context) error {
	ps.mu.Lock()
	srv := ps.httpServer
	ps.httpServer = nil
	ps.mu.Unlock()

	ps.hub.Close()
	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	ps.running.Store(false)
	return err
}

// IsRunning reports whether the server is accepting connections.
func (ps *ProxyServer) IsRunning() bool {
	return ps.running.Load()
}

// Stats returns counters and status.
func (ps *ProxyServer) Stats() ProxyStats {
	ps.mu.Lock()
	lastError := ps.lastError
	ps.mu.Unlock()
	return ProxyStats{
		ID:         ps.ID,
		TargetURL:  ps.target.String(),
		ListenAddr: ps.ListenAddr,
		Running:    ps.running.Load(),
		Requests:   ps.requests.Load(),
		Rewritten:  ps.rewritten.Load(),
		Errors:     ps.failures.Load(),
		Clients:    ps.hub.Clients(),
		LastError:  lastError,
	}
}

func (ps *ProxyServer) setError(err error) {
	ps.failures.Add(1)
	ps.mu.Lock()
	ps.lastError = err.Error()
	ps.mu.Unlock()
}

func (ps *ProxyServer) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	ps.setError(err)
	debug.Warn("proxy", "%s %s: %v", r.Method, r.URL.Path, err)
	http.Error(w, "upstream unavailable", http.StatusBadGateway)
}

// modifyResponse rewrites HTML pages from matching hosts. Failures leave the
// response as the upstream sent it.
func (ps *ProxyServer) modifyResponse(resp *http.Response) error {
	if !ShouldRewrite(resp.Header.Get("Content-Type")) {
		return nil
	}
	if !store.MatchHost(ps.config.Hosts, resp.Request.URL.String()) {
		return nil
	}
	if resp.ContentLength > MaxRewriteSize {
		return nil
	}

	encoding := strings.ToLower(resp.Header.Get("Content-Encoding"))
	if encoding != "" && encoding != "gzip" && encoding != "identity" {
		debug.Log("proxy", "skipping %s: encoding %s", resp.Request.URL.Path, encoding)
		return nil
	}

	orig := resp.Body
	raw, err := io.ReadAll(io.LimitReader(orig, MaxRewriteSize+1))
	if err != nil {
		orig.Close()
		return err
	}
	if len(raw) > MaxRewriteSize {
		resp.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(raw), orig), orig}
		return nil
	}
	orig.Close()

	body := raw
	if encoding == "gzip" {
		body, err = gunzip(raw)
		if err != nil {
			ps.setError(err)
			resp.Body = io.NopCloser(bytes.NewReader(raw))
			return nil
		}
	}

	out := body
	snap := ps.config.State.Snapshot()
	if snap.Enabled {
		rewritten, st, err := engine.RewriteHTML(body, snap, false)
		if err != nil {
			debug.Warn("proxy", "rewrite %s: %v", resp.Request.URL.Path, err)
		} else {
			out = rewritten
			ps.rewritten.Add(1)
			debug.Log("proxy", "rewrote %s: %d elements, %d mentions, %d avatars",
				resp.Request.URL.Path, st.Elements, st.Mentions, st.Avatars)
		}
	}
	out = InjectAssets(out)

	resp.Body = io.NopCloser(bytes.NewReader(out))
	resp.ContentLength = int64(len(out))
	resp.Header.Set("Content-Length", strconv.Itoa(len(out)))
	resp.Header.Del("Content-Encoding")
	// The injected client is an inline script.
	resp.Header.Del("Content-Security-Policy")
	resp.Header.Del("Content-Security-Policy-Report-Only")
	return nil
}

func gunzip(b []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func (ps *ProxyServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := ps.config.State.Reload(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (ps *ProxyServer) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	enabled, err := strconv.ParseBool(r.URL.Query().Get("enabled"))
	if err != nil {
		http.Error(w, "enabled must be true or false", http.StatusBadRequest)
		return
	}
	if err := ps.config.State.SetEnabled(enabled); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "enabled": enabled})
}

func (ps *ProxyServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := ps.config.State.Snapshot()
	writeJSON(w, map[string]any{
		"proxy":    ps.Stats(),
		"enabled":  snap.Enabled,
		"features": snap.Features,
		"records":  snap.Dictionary.Len(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Log("proxy", "encode response: %v", err)
	}
}
