// Package engine ties the dictionary, rewriter, avatar annotator, mutation
// watcher and mention autocomplete to one page. It holds the per-page state
// (enabled flag, features, current dictionary) and serializes every entry
// point, including timer callbacks, on a single lock.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/standardbeagle/gnm/internal/autocomplete"
	"github.com/standardbeagle/gnm/internal/avatar"
	"github.com/standardbeagle/gnm/internal/debug"
	"github.com/standardbeagle/gnm/internal/dictionary"
	"github.com/standardbeagle/gnm/internal/page"
	"github.com/standardbeagle/gnm/internal/rewrite"
	"github.com/standardbeagle/gnm/internal/watch"
)

// Source supplies raw dictionary entries in precedence order: later entries
// win on identifier collision.
type Source interface {
	DictionarySource() []dictionary.RawEntry
}

// SourceFunc adapts a function to Source.
type SourceFunc func() []dictionary.RawEntry

func (f SourceFunc) DictionarySource() []dictionary.RawEntry { return f() }

// Features are the individually switchable behaviors.
type Features struct {
	Replace         bool `json:"replace"`
	Highlight       bool `json:"highlight"`
	AvatarHighlight bool `json:"avatarHighlight"`
	Mention         bool `json:"mention"`
}

// AllFeatures has every feature on.
func AllFeatures() Features {
	return Features{Replace: true, Highlight: true, AvatarHighlight: true, Mention: true}
}

// Options configure an Engine.
type Options struct {
	Enabled  bool
	Features Features

	// Source is consulted on Activate and Refresh. Ignored when Dictionary
	// is set.
	Source Source
	// Dictionary supplies a prebuilt dictionary, e.g. a snapshot shared by
	// many pages.
	Dictionary func() *dictionary.Dictionary

	Clock    clock.Clock
	Debounce time.Duration

	// Mention options.
	Platform string
	Measurer autocomplete.Measurer
	Focus    func() autocomplete.Field
	OnPopup  func(autocomplete.Popup)
}

// Stats summarize the most recent scan.
type Stats struct {
	Elements int `json:"elements"`
	Mentions int `json:"mentions"`
	Avatars  int `json:"avatars"`
	Restored int `json:"restored"`
}

// Engine is the per-page controller.
type Engine struct {
	doc  *page.Document
	opts Options

	mu       sync.Mutex
	enabled  bool
	features Features
	active   bool
	torn     bool
	last     Stats
	scans    int

	dict atomic.Pointer[dictionary.Dictionary]

	rewriter *rewrite.Rewriter
	avatars  *avatar.Annotator
	watcher  *watch.Watcher
	mention  *autocomplete.Engine
}

// New creates an inactive Engine for doc.
func New(doc *page.Document, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	e := &Engine{
		doc:      doc,
		opts:     opts,
		enabled:  opts.Enabled,
		features: opts.Features,
		rewriter: rewrite.New(rewrite.Options{Highlight: opts.Features.Highlight}),
		avatars:  avatar.New(),
	}
	e.dict.Store(dictionary.Empty())
	e.watcher = watch.New(opts.Clock, opts.Debounce, e.rescan)
	e.mention = autocomplete.New(autocomplete.Options{
		Dictionary: e.Dictionary,
		Clock:      opts.Clock,
		Platform:   opts.Platform,
		Measurer:   opts.Measurer,
		Focus:      opts.Focus,
		OnChange:   opts.OnPopup,
	})
	e.mention.SetEnabled(opts.Enabled && opts.Features.Mention)
	return e
}

// Document returns the page the engine works on.
func (e *Engine) Document() *page.Document {
	return e.doc
}

// Dictionary returns the current dictionary. It never blocks.
func (e *Engine) Dictionary() *dictionary.Dictionary {
	return e.dict.Load()
}

// Mention returns the autocomplete engine bound to this page.
func (e *Engine) Mention() *autocomplete.Engine {
	return e.mention
}

// Enabled reports the master switch.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// Features returns the current feature set.
func (e *Engine) Features() Features {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.features
}

// LastStats returns what the most recent scan or restore did.
func (e *Engine) LastStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Scans returns how many scan passes have run.
func (e *Engine) Scans() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scans
}

// Activate loads the dictionary, runs the initial passes and starts watching
// for mutations. Calling it again is a no-op.
func (e *Engine) Activate() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active || e.torn {
		return e.last
	}
	e.active = true
	e.load()

	if e.enabled {
		e.scanLocked()
	}
	if e.features.Replace || e.features.AvatarHighlight {
		e.watcher.Observe()
	}
	debug.Log("engine", "activated: enabled=%v records=%d", e.enabled, e.Dictionary().Len())
	return e.last
}

// Refresh re-pulls the dictionary and rescans. Existing rewrites are
// restored first so changed display names are picked up.
func (e *Engine) Refresh() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.torn {
		return e.last
	}
	e.load()
	if !e.enabled {
		return e.last
	}
	restored := e.rewriter.Restore(e.doc.Root())
	e.scanLocked()
	e.last.Restored = restored
	return e.last
}

// Toggle flips the master switch. Turning on refreshes; turning off halts
// future scans and restores every rewrite.
func (e *Engine) Toggle(enabled bool) Stats {
	e.mu.Lock()
	e.enabled = enabled
	e.mu.Unlock()

	e.mention.SetEnabled(enabled && e.Features().Mention)
	if enabled {
		return e.Refresh()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.last = Stats{Restored: e.rewriter.Restore(e.doc.Root())}
	debug.Log("engine", "disabled, restored %d", e.last.Restored)
	return e.last
}

// SetFeatures changes the feature set. Rewrites are restored when Replace
// goes off.
func (e *Engine) SetFeatures(f Features) {
	e.mu.Lock()
	prev := e.features
	e.features = f
	e.rewriter.SetOptions(rewrite.Options{Highlight: f.Highlight})
	if prev.Replace && !f.Replace {
		e.rewriter.Restore(e.doc.Root())
	}
	if e.active && (f.Replace || f.AvatarHighlight) {
		e.watcher.Observe()
	}
	enabled := e.enabled
	e.mu.Unlock()

	e.mention.SetEnabled(enabled && f.Mention)
}

// Mutate applies a host-page edit to the document and notifies the watcher,
// the way a mutation observer would see it.
func (e *Engine) Mutate(fn func(doc *page.Document)) {
	e.mu.Lock()
	torn := e.torn
	if !torn {
		fn(e.doc)
	}
	e.mu.Unlock()

	if !torn {
		e.watcher.Notify()
	}
}

// Teardown disconnects the watcher and cancels pending timers. The engine
// cannot be reactivated.
func (e *Engine) Teardown() {
	e.watcher.Disconnect()
	e.mention.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.torn = true
	e.active = false
	debug.Log("engine", "torn down")
}

// rescan is the watcher callback.
func (e *Engine) rescan() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.torn || !e.enabled {
		return
	}
	e.scanLocked()
}

// load replaces the dictionary. Caller holds mu.
func (e *Engine) load() {
	var d *dictionary.Dictionary
	switch {
	case e.opts.Dictionary != nil:
		d = e.opts.Dictionary()
	case e.opts.Source != nil:
		d = dictionary.Build(e.opts.Source.DictionarySource())
	}
	if d == nil {
		d = dictionary.Empty()
	}
	e.dict.Store(d)
}

// scanLocked runs the enabled passes over the whole document.
func (e *Engine) scanLocked() {
	dict := e.Dictionary()
	var st Stats
	if e.features.Replace {
		rs := e.rewriter.Scan(e.doc.Body(), dict)
		st.Elements, st.Mentions = rs.Elements, rs.Mentions
	}
	if e.features.AvatarHighlight {
		st.Avatars = e.avatars.Scan(e.doc.Body(), dict)
	}
	e.last = st
	e.scans++
}
