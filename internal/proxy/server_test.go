package proxy

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/gnm/internal/dictionary"
	"github.com/standardbeagle/gnm/internal/engine"
)

const pullPage = `<html><head><title>PR</title></head><body>
<div id="thread"><a class="author" href="/octocat">octocat</a><p>cc @hubot</p></div>
</body></html>`

type fakeState struct {
	mu      sync.Mutex
	snap    engine.Snapshot
	reloads int
	toggles []bool
}

func newFakeState() *fakeState {
	return &fakeState{snap: engine.Snapshot{
		Enabled:  true,
		Features: engine.AllFeatures(),
		Dictionary: dictionary.Build([]dictionary.RawEntry{
			{GithubName: "octocat", Nick: "Oc", Domain: "oc.d"},
			{GithubName: "hubot", Nick: "Bot", Domain: "bot.d"},
		}),
	}}
}

func (s *fakeState) Snapshot() engine.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *fakeState) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads++
	return nil
}

func (s *fakeState) SetEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Enabled = enabled
	s.toggles = append(s.toggles, enabled)
	return nil
}

func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pull":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Content-Security-Policy", "script-src 'self'")
			io.WriteString(w, pullPage)
		case "/gzip":
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				t.Errorf("upstream Accept-Encoding = %q", r.Header.Get("Accept-Encoding"))
			}
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			io.WriteString(zw, pullPage)
			zw.Close()
			w.Header().Set("Content-Type", "text/html")
			w.Header().Set("Content-Encoding", "gzip")
			w.Write(buf.Bytes())
		case "/api":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"login":"octocat"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProxy(t *testing.T, state State, hosts ...string) (*ProxyServer, *httptest.Server) {
	t.Helper()
	up := upstream(t)
	if len(hosts) == 0 {
		hosts = []string{"127.0.0.1"}
	}
	ps, err := NewProxyServer(ProxyConfig{TargetURL: up.URL, Hosts: hosts, State: state})
	require.NoError(t, err)
	front := httptest.NewServer(ps.Handler())
	t.Cleanup(func() {
		ps.Hub().Close()
		front.Close()
	})
	return ps, front
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestNewProxyServerValidates(t *testing.T) {
	_, err := NewProxyServer(ProxyConfig{TargetURL: "https://github.com"})
	assert.Error(t, err, "missing state")

	_, err = NewProxyServer(ProxyConfig{TargetURL: "ftp://github.com", State: newFakeState()})
	assert.Error(t, err)

	ps, err := NewProxyServer(ProxyConfig{TargetURL: "https://github.com", State: newFakeState()})
	require.NoError(t, err)
	assert.Equal(t, "github.com", ps.ID)
	assert.False(t, ps.IsRunning())
}

func TestProxyRewritesHTML(t *testing.T) {
	ps, front := newTestProxy(t, newFakeState())

	resp, body := get(t, front.URL+"/pull")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `octocat(Oc)</a>`)
	assert.Contains(t, body, `data-gnm-original="octocat"`)
	assert.Contains(t, body, "cc @hubot(Bot)")
	assert.Contains(t, body, `<style id="gnm-style">`)
	assert.Empty(t, resp.Header.Get("Content-Security-Policy"))
	assert.Equal(t, int64(1), ps.Stats().Rewritten)
}

func TestProxyDecodesGzip(t *testing.T) {
	_, front := newTestProxy(t, newFakeState())

	resp, body := get(t, front.URL+"/gzip")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "octocat(Oc)")
}

func TestProxyPassesThrough(t *testing.T) {
	t.Run("non-html", func(t *testing.T) {
		_, front := newTestProxy(t, newFakeState())
		_, body := get(t, front.URL+"/api")
		assert.Equal(t, `{"login":"octocat"}`, body)
	})

	t.Run("host not matched", func(t *testing.T) {
		_, front := newTestProxy(t, newFakeState(), "github.com")
		_, body := get(t, front.URL+"/pull")
		assert.Equal(t, pullPage, body)
	})

	t.Run("disabled injects client only", func(t *testing.T) {
		state := newFakeState()
		state.snap.Enabled = false
		ps, front := newTestProxy(t, state)
		_, body := get(t, front.URL+"/pull")
		assert.NotContains(t, body, "octocat(Oc)")
		assert.Contains(t, body, `<script id="gnm-client">`)
		assert.Zero(t, ps.Stats().Rewritten)
	})
}

func TestControlEndpoints(t *testing.T) {
	state := newFakeState()
	_, front := newTestProxy(t, state)

	resp, err := http.Post(front.URL+PathToggle+"?enabled=false", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []bool{false}, state.toggles)

	resp, err = http.Post(front.URL+PathToggle+"?enabled=maybe", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(front.URL+PathRefresh, "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 1, state.reloads)

	resp, _ = get(t, front.URL+PathRefresh)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	_, body := get(t, front.URL+PathStatus)
	assert.Contains(t, body, `"records":2`)
	assert.Contains(t, body, `"enabled":false`)
}

func wsURL(base, path string) string {
	return "ws" + strings.TrimPrefix(base, "http") + path
}

func TestHubBroadcast(t *testing.T) {
	ps, front := newTestProxy(t, newFakeState())

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(front.URL, PathEvents), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return ps.Hub().Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	ps.Hub().Broadcast(ToggleSignal(false))
	ps.Hub().Broadcast(RefreshSignal())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var sig Signal
	require.NoError(t, conn.ReadJSON(&sig))
	assert.Equal(t, SignalToggle, sig.Type)
	require.NotNil(t, sig.Enabled)
	assert.False(t, *sig.Enabled)

	require.NoError(t, conn.ReadJSON(&sig))
	assert.Equal(t, SignalRefresh, sig.Type)

	conn.Close()
	require.Eventually(t, func() bool { return ps.Hub().Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestStartStop(t *testing.T) {
	up := upstream(t)
	ps, err := NewProxyServer(ProxyConfig{TargetURL: up.URL, Hosts: []string{"127.0.0.1"}, State: newFakeState()})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, ps.Start(ctx))
	assert.True(t, ps.IsRunning())
	assert.Error(t, ps.Start(ctx), "double start")

	_, body := get(t, "http://"+ps.ListenAddr+"/pull")
	assert.Contains(t, body, "octocat(Oc)")

	require.NoError(t, ps.Stop(ctx))
	assert.False(t, ps.IsRunning())
	require.NoError(t, ps.Stop(ctx))
}
