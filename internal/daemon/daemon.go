// Package daemon is the long-running side of the mapper. It owns the
// settings store and the shared dictionary snapshot, runs the remote sync
// schedule and the rewriting proxy, and fans refresh/toggle events out to
// everything that renders pages.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/standardbeagle/gnm/internal/config"
	"github.com/standardbeagle/gnm/internal/debug"
	"github.com/standardbeagle/gnm/internal/dictionary"
	"github.com/standardbeagle/gnm/internal/engine"
	"github.com/standardbeagle/gnm/internal/proxy"
	"github.com/standardbeagle/gnm/internal/remote"
	"github.com/standardbeagle/gnm/internal/store"
)

// Version is the daemon version.
// Can be overridden at build time with: -ldflags "-X github.com/standardbeagle/gnm/internal/daemon.Version=x.y.z"
var Version = "0.3.0"

// BuildTime is the build timestamp (RFC3339 format).
var BuildTime = ""

// GitCommit is the git commit hash.
var GitCommit = ""

// InitialSettings seed a store that has never been written.
type InitialSettings struct {
	Enabled    bool
	Features   store.Features
	JSONURL    string
	AutoUpdate bool
}

// DaemonConfig holds configuration for the daemon.
type DaemonConfig struct {
	StoreDir string
	Initial  InitialSettings

	// EnableSync starts the periodic remote sync on Start.
	EnableSync bool
	Sync       remote.SyncerConfig

	// EnableProxy starts the rewriting proxy on Start. Proxy.State is
	// filled in by the daemon.
	EnableProxy bool
	Proxy       proxy.ProxyConfig
}

// DefaultDaemonConfig returns sensible defaults.
func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		StoreDir: store.DefaultDir,
		Initial: InitialSettings{
			Enabled:    true,
			Features:   store.DefaultSettings().Features,
			AutoUpdate: true,
		},
		EnableSync: true,
		Sync:       remote.DefaultSyncerConfig(),
	}
}

// FromConfig maps a loaded project config onto daemon settings.
func FromConfig(cfg *config.Config) DaemonConfig {
	dc := DefaultDaemonConfig()
	dc.StoreDir = cfg.StorePath()
	dc.Initial = InitialSettings{
		Enabled: cfg.Enabled,
		Features: store.Features{
			Replace:         cfg.Features.Replace,
			Highlight:       cfg.Features.Highlight,
			AvatarHighlight: cfg.Features.AvatarHighlight,
			Mention:         cfg.Features.Mention,
		},
		JSONURL:    cfg.Sync.JSONURL,
		AutoUpdate: cfg.Sync.AutoUpdate,
	}
	dc.Sync.Interval = cfg.SyncInterval()
	dc.Proxy = proxy.ProxyConfig{
		TargetURL:  cfg.Proxy.Target,
		ListenPort: cfg.Proxy.Port,
		Hosts:      cfg.Proxy.Hosts,
		Platform:   cfg.Mention.Platform,
	}
	return dc
}

// DaemonInfo summarizes a running daemon.
type DaemonInfo struct {
	Version     string            `json:"version"`
	BuildTime   string            `json:"build_time,omitempty"`
	GitCommit   string            `json:"git_commit,omitempty"`
	StorePath   string            `json:"store_path"`
	Uptime      time.Duration     `json:"uptime"`
	Enabled     bool              `json:"enabled"`
	Features    engine.Features   `json:"features"`
	Records     int               `json:"records"`
	LocalRules  int               `json:"local_rules"`
	JSONURL     string            `json:"json_url,omitempty"`
	LastUpdate  time.Time         `json:"last_update,omitempty"`
	Sync        remote.Stats      `json:"sync"`
	Proxy       *proxy.ProxyStats `json:"proxy,omitempty"`
	Subscribers int               `json:"subscribers"`
}

// Daemon is the main daemon process that manages state across clients.
type Daemon struct {
	config DaemonConfig

	store  *store.Store
	syncer *remote.Syncer
	proxy  *proxy.ProxyServer
	events *eventBus

	snap atomic.Pointer[engine.Snapshot]

	// Lifecycle
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	started    time.Time
	shutdownMu sync.Mutex
	running    bool
	shutdown   bool
}

// New opens the store and builds the first dictionary snapshot.
func New(config DaemonConfig) (*Daemon, error) {
	st, err := store.Open(config.StoreDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		config: config,
		store:  st,
		events: newEventBus(),
		ctx:    ctx,
		cancel: cancel,
	}

	if err := d.seed(); err != nil {
		cancel()
		return nil, err
	}

	d.syncer = remote.NewSyncer(config.Sync, st)
	d.syncer.OnUpdate = func(res remote.Result) {
		debug.Info("daemon", "synced %d developers from %s", res.Count, res.URL)
		d.rebuild()
		d.events.publish(Event{Type: EventRefresh})
	}

	d.rebuild()
	return d, nil
}

// seed writes the initial settings into a store that has no file yet, and
// fills in a configured sync URL the store doesn't have.
func (d *Daemon) seed() error {
	initial := d.config.Initial
	if err := d.store.Load(); errors.Is(err, store.ErrNotFound) {
		return d.store.Update(func(s *store.Settings) error {
			s.Enabled = initial.Enabled
			s.Features = initial.Features
			s.JSONURL = initial.JSONURL
			s.AutoUpdate = initial.AutoUpdate
			return nil
		})
	} else if err != nil {
		return err
	}

	if initial.JSONURL != "" && d.store.Settings().JSONURL == "" {
		st := d.store.Settings()
		return d.store.SetSync(initial.JSONURL, st.AutoUpdate)
	}
	return nil
}

// Start runs the sync schedule and the proxy as configured.
func (d *Daemon) Start(ctx context.Context) error {
	d.shutdownMu.Lock()
	defer d.shutdownMu.Unlock()
	if d.shutdown {
		return errors.New("daemon already shutdown")
	}
	if d.running {
		return errors.New("daemon already running")
	}

	if d.config.EnableProxy {
		pc := d.config.Proxy
		pc.State = d
		ps, err := proxy.NewProxyServer(pc)
		if err != nil {
			return fmt.Errorf("create proxy: %w", err)
		}
		if err := ps.Start(ctx); err != nil {
			return fmt.Errorf("start proxy: %w", err)
		}
		d.proxy = ps

		ch, unsubscribe := d.Subscribe(16)
		d.wg.Add(1)
		go d.forwardEvents(ch, unsubscribe)
	}

	if d.config.EnableSync {
		if err := d.syncer.Start(d.ctx); err != nil {
			debug.Warn("daemon", "failed to start sync: %v", err)
		}
	}

	d.started = time.Now()
	d.running = true
	debug.Info("daemon", "started: store=%s records=%d", d.store.Path(), d.Snapshot().Dictionary.Len())
	return nil
}

// forwardEvents relays daemon events to pages connected to the proxy.
func (d *Daemon) forwardEvents(ch <-chan Event, unsubscribe func()) {
	defer d.wg.Done()
	defer unsubscribe()
	for {
		select {
		case <-d.ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			switch ev.Type {
			case EventRefresh:
				d.proxy.Hub().Broadcast(proxy.RefreshSignal())
			case EventToggle:
				d.proxy.Hub().Broadcast(proxy.ToggleSignal(ev.Enabled))
			}
		}
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop(ctx context.Context) error {
	d.shutdownMu.Lock()
	if d.shutdown {
		d.shutdownMu.Unlock()
		return nil
	}
	d.shutdown = true
	d.running = false
	d.shutdownMu.Unlock()

	d.cancel()
	d.syncer.Stop()

	var errs []error
	if d.proxy != nil {
		if err := d.proxy.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("proxy: %w", err))
		}
	}
	d.events.close()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}

	debug.Info("daemon", "stopped")
	return errors.Join(errs...)
}

// Wait blocks until the daemon stops.
func (d *Daemon) Wait() {
	<-d.ctx.Done()
	d.wg.Wait()
}

// Info returns daemon information.
func (d *Daemon) Info() DaemonInfo {
	snap := d.Snapshot()
	st := d.store.Settings()
	info := DaemonInfo{
		Version:    Version,
		BuildTime:  BuildTime,
		GitCommit:  GitCommit,
		StorePath:  d.store.Path(),
		Enabled:    snap.Enabled,
		Features:   snap.Features,
		Records:    snap.Dictionary.Len(),
		LocalRules: len(st.LocalRules),
		JSONURL:    st.JSONURL,
		LastUpdate: st.LastUpdate,
		Sync:       d.syncer.Stats(),

		Subscribers: d.events.count(),
	}
	if !d.started.IsZero() {
		info.Uptime = time.Since(d.started)
	}
	if d.proxy != nil {
		ps := d.proxy.Stats()
		info.Proxy = &ps
	}
	return info
}

// Store returns the settings store.
func (d *Daemon) Store() *store.Store {
	return d.store
}

// Proxy returns the running proxy, or nil.
func (d *Daemon) Proxy() *proxy.ProxyServer {
	return d.proxy
}

// Snapshot returns the current shared state. It never blocks.
func (d *Daemon) Snapshot() engine.Snapshot {
	return *d.snap.Load()
}

// rebuild derives a new snapshot from the store.
func (d *Daemon) rebuild() {
	st := d.store.Settings()
	snap := &engine.Snapshot{
		Enabled:    st.Enabled,
		Features:   engineFeatures(st.Features),
		Dictionary: dictionary.Build(st.DictionarySource()),
	}
	d.snap.Store(snap)
	debug.Log("daemon", "snapshot rebuilt: enabled=%v records=%d", snap.Enabled, snap.Dictionary.Len())
}

func engineFeatures(f store.Features) engine.Features {
	return engine.Features{
		Replace:         f.Replace,
		Highlight:       f.Highlight,
		AvatarHighlight: f.AvatarHighlight,
		Mention:         f.Mention,
	}
}

// Reload rereads the settings file, which another process may have
// changed, and tells pages to refresh.
func (d *Daemon) Reload() error {
	if err := d.store.Load(); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	d.rebuild()
	d.events.publish(Event{Type: EventRefresh})
	return nil
}

// SetEnabled flips the master switch.
func (d *Daemon) SetEnabled(enabled bool) error {
	if err := d.store.SetEnabled(enabled); err != nil {
		return err
	}
	d.rebuild()
	d.events.publish(Event{Type: EventToggle, Enabled: enabled})
	return nil
}

// SetFeatures replaces the feature flags.
func (d *Daemon) SetFeatures(f store.Features) error {
	return d.changed(d.store.SetFeatures(f))
}

// SetSync changes the remote list URL and the auto-update flag.
func (d *Daemon) SetSync(jsonURL string, autoUpdate bool) error {
	return d.store.SetSync(jsonURL, autoUpdate)
}

// AddRule adds a local rule.
func (d *Daemon) AddRule(e dictionary.RawEntry) (store.LocalRule, error) {
	rule, err := d.store.AddLocalRule(e)
	return rule, d.changed(err)
}

// UpdateRule merges patch into the local rule at index.
func (d *Daemon) UpdateRule(index int, patch dictionary.RawEntry) (store.LocalRule, error) {
	rule, err := d.store.UpdateLocalRule(index, patch)
	return rule, d.changed(err)
}

// RemoveRule deletes the local rule at index.
func (d *Daemon) RemoveRule(index int) error {
	return d.changed(d.store.RemoveLocalRule(index))
}

// ImportRules appends valid entries as local rules.
func (d *Daemon) ImportRules(entries []dictionary.RawEntry) (int, error) {
	n, err := d.store.ImportLocalRules(entries)
	if n == 0 && err == nil {
		return 0, nil
	}
	return n, d.changed(err)
}

// changed rebuilds and signals a refresh after a successful store write.
func (d *Daemon) changed(err error) error {
	if err != nil {
		return err
	}
	d.rebuild()
	d.events.publish(Event{Type: EventRefresh})
	return nil
}

// Sync fetches the remote list now. An empty url uses the stored one; a
// different url is stored once it has synced successfully.
func (d *Daemon) Sync(ctx context.Context, url string) (remote.Result, error) {
	if url == "" {
		return d.syncer.SyncNow(ctx)
	}
	res, err := d.syncer.SyncURL(ctx, url)
	if err != nil {
		return res, err
	}
	if st := d.store.Settings(); st.JSONURL != url {
		if err := d.store.SetSync(url, st.AutoUpdate); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Resolve looks up one identifier in the current snapshot.
func (d *Daemon) Resolve(id string) (dictionary.Record, bool) {
	return d.Snapshot().Dictionary.Resolve(id)
}

// Search filters the current snapshot.
func (d *Daemon) Search(query string) []dictionary.Record {
	return d.Snapshot().Dictionary.Search(query)
}

// Rewrite runs the engine over an HTML document with the current snapshot.
func (d *Daemon) Rewrite(html []byte, restore bool) ([]byte, engine.Stats, error) {
	return engine.RewriteHTML(html, d.Snapshot(), restore)
}
