package remote

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/standardbeagle/gnm/internal/debug"
	"github.com/standardbeagle/gnm/internal/dictionary"
	"github.com/standardbeagle/gnm/internal/store"
)

// Target is where synced developers are stored.
type Target interface {
	Settings() store.Settings
	SetDevelopers(list []dictionary.RawEntry, at time.Time) error
}

// SyncerConfig configures the syncer.
type SyncerConfig struct {
	// Interval between automatic syncs.
	Interval time.Duration
	// Timeout bounds each fetch.
	Timeout time.Duration
	// Client performs the requests.
	Client *http.Client
	// Clock drives the ticker.
	Clock clock.Clock
}

// DefaultSyncerConfig returns sensible defaults.
func DefaultSyncerConfig() SyncerConfig {
	return SyncerConfig{
		Interval: 24 * time.Hour,
		Timeout:  30 * time.Second,
	}
}

// Result describes a successful sync.
type Result struct {
	URL        string    `json:"url"`
	Count      int       `json:"count"`
	LastUpdate time.Time `json:"last_update"`
}

// Stats are lifetime counters.
type Stats struct {
	Runs     int64 `json:"runs"`
	Failures int64 `json:"failures"`
	Skipped  int64 `json:"skipped"`
}

// Syncer periodically refreshes the developer list.
type Syncer struct {
	config SyncerConfig
	target Target

	// OnUpdate is called after each successful sync. Set before Start.
	OnUpdate func(Result)

	// Lifecycle management
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool

	// syncMu serializes fetch+store so overlapping syncs can't interleave.
	syncMu sync.Mutex

	// Statistics (atomics)
	runs     atomic.Int64
	failures atomic.Int64
	skipped  atomic.Int64
}

// NewSyncer creates a syncer writing into target.
func NewSyncer(config SyncerConfig, target Target) *Syncer {
	def := DefaultSyncerConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.Client == nil {
		config.Client = &http.Client{}
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	return &Syncer{config: config, target: target}
}

// Start begins the tick loop. When the stored list is older than one
// interval, a catch-up sync runs first.
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("syncer already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	ticker := s.config.Clock.Ticker(s.config.Interval)
	stale := s.stale()

	s.wg.Add(1)
	go s.run(ticker, stale)

	return nil
}

// Stop stops the syncer and waits for an in-flight sync to finish.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

// run is the main loop.
func (s *Syncer) run(ticker *clock.Ticker, catchUp bool) {
	defer s.wg.Done()
	defer ticker.Stop()

	if catchUp {
		s.tick()
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// stale reports whether the last update is older than one interval.
func (s *Syncer) stale() bool {
	st := s.target.Settings()
	return st.LastUpdate.IsZero() || s.config.Clock.Since(st.LastUpdate) >= s.config.Interval
}

// tick runs an automatic sync if auto-update is on and a URL is set.
func (s *Syncer) tick() {
	st := s.target.Settings()
	if !st.AutoUpdate || st.JSONURL == "" {
		s.skipped.Add(1)
		return
	}
	if _, err := s.SyncNow(s.ctx); err != nil {
		debug.Warn("sync", "scheduled sync failed: %v", err)
	}
}

// SyncNow fetches the configured URL and stores the result. It runs
// regardless of the auto-update flag.
func (s *Syncer) SyncNow(ctx context.Context) (Result, error) {
	return s.SyncURL(ctx, s.target.Settings().JSONURL)
}

// SyncURL fetches url and stores the result.
func (s *Syncer) SyncURL(ctx context.Context, url string) (Result, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	s.runs.Add(1)

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	list, err := Fetch(ctx, s.config.Client, url)
	if err != nil {
		s.failures.Add(1)
		return Result{}, err
	}

	now := s.config.Clock.Now()
	if err := s.target.SetDevelopers(list, now); err != nil {
		s.failures.Add(1)
		return Result{}, fmt.Errorf("failed to store developers: %w", err)
	}

	res := Result{URL: url, Count: len(list), LastUpdate: now}
	debug.Info("sync", "synced %d developers from %s", res.Count, url)

	if s.OnUpdate != nil {
		s.OnUpdate(res)
	}
	return res, nil
}

// Stats returns the lifetime counters.
func (s *Syncer) Stats() Stats {
	return Stats{
		Runs:     s.runs.Load(),
		Failures: s.failures.Load(),
		Skipped:  s.skipped.Load(),
	}
}
