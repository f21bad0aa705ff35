// Package autocomplete implements the mention popup: it watches editable
// fields for the trigger sequence, filters the dictionary, positions a
// candidate list under the caret and inserts the chosen identifier.
package autocomplete

import (
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/standardbeagle/gnm/internal/debug"
	"github.com/standardbeagle/gnm/internal/dictionary"
)

// BlurGrace delays closing on blur so a pointer selection can land first.
const BlurGrace = 150 * time.Millisecond

// Key is a keydown event.
type Key struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Meta  bool   `json:"meta"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
}

// Session is the state of an open popup.
type Session struct {
	Active       bool
	Field        Field
	TriggerStart int
	Candidates   []dictionary.Record
	Selected     int

	// Text and Caret are the field contents last seen while open. Known is
	// false when the session opened without a readable caret.
	Text  string
	Caret int
	Known bool
}

// Options configure an Engine.
type Options struct {
	// Dictionary returns the current dictionary. Required.
	Dictionary func() *dictionary.Dictionary
	// Clock drives the blur grace timer.
	Clock clock.Clock
	// Platform "mac" makes Meta the shortcut modifier; anything else uses Ctrl.
	Platform string
	// Measurer measures glyph advances for the caret mirror.
	Measurer Measurer
	// Focus returns the field that currently has focus, or nil.
	Focus func() Field
	// OnChange is called with the new popup state after every transition,
	// outside the engine's lock.
	OnChange func(Popup)
}

// Engine is the autocomplete state machine. At most one session is open.
// All methods are safe for concurrent use.
type Engine struct {
	opts Options

	mu        sync.Mutex
	enabled   bool
	session   Session
	popup     Popup
	blurTimer *clock.Timer
	blurGen   uint64
}

// New creates an enabled Engine.
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Measurer == nil {
		opts.Measurer = DefaultMeasurer()
	}
	if opts.Dictionary == nil {
		opts.Dictionary = dictionary.Empty
	}
	return &Engine{opts: opts, enabled: true}
}

// SetEnabled turns the feature on or off. Turning it off closes any session.
func (e *Engine) SetEnabled(on bool) {
	e.mu.Lock()
	e.enabled = on
	changed := false
	if !on && e.session.Active {
		e.closeLocked()
		changed = true
	}
	p := e.popup
	e.mu.Unlock()

	if changed {
		e.notify(p)
	}
}

// Enabled reports whether the feature is on.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// Session returns a copy of the current session.
func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session
	s.Candidates = append([]dictionary.Record(nil), s.Candidates...)
	return s
}

// Popup returns the current popup state.
func (e *Engine) Popup() Popup {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.popup
}

// ready reports whether new sessions may open. Caller holds mu.
func (e *Engine) ready() (*dictionary.Dictionary, bool) {
	if !e.enabled {
		return nil, false
	}
	dict := e.opts.Dictionary()
	return dict, dict.Len() > 0
}

// HandleInput re-evaluates the trigger after the field's content changed.
func (e *Engine) HandleInput(f Field) {
	if !Editable(f) {
		return
	}

	e.mu.Lock()
	dict, ok := e.ready()
	if !ok {
		e.mu.Unlock()
		return
	}
	text, caret, ok := f.Value()
	if !ok {
		e.mu.Unlock()
		return
	}

	changed := false
	if query, start, found := Detect(text, caret); found {
		candidates := dict.Search(query)
		debug.Log("mention", "trigger query=%q results=%d", query, len(candidates))
		if len(candidates) > 0 {
			e.openLocked(f, text, caret, start, true, candidates)
			changed = true
		} else {
			changed = e.closeLocked()
		}
	} else {
		changed = e.closeLocked()
	}
	p := e.popup
	e.mu.Unlock()

	if changed {
		e.notify(p)
	}
}

// HandleKeyDown processes navigation keys while open and the open shortcut
// at any time. It returns true when the key was consumed and the host should
// prevent its default action.
func (e *Engine) HandleKeyDown(f Field, k Key) bool {
	e.mu.Lock()
	if e.session.Active {
		if commit, handled := e.navigateLocked(k); handled {
			if commit {
				// commitLocked unlocks.
				e.commitLocked(e.session.Selected)
				return true
			}
			p := e.popup
			e.mu.Unlock()
			e.notify(p)
			return true
		}
	}

	if !e.isShortcut(k) || !Editable(f) {
		e.mu.Unlock()
		return false
	}
	dict, ok := e.ready()
	if !ok {
		e.mu.Unlock()
		return false
	}
	text, caret, ok := f.Value()
	if !ok {
		caret = 0
	}
	debug.Log("mention", "shortcut %s on %s", k.Key, f.Kind())
	e.openLocked(f, text, caret, caret, ok, dict.Search(""))
	p := e.popup
	e.mu.Unlock()

	e.notify(p)
	return true
}

// navigateLocked applies a key to the open session.
func (e *Engine) navigateLocked(k Key) (commit, handled bool) {
	n := len(e.session.Candidates)
	if n == 0 {
		return false, false
	}
	switch k.Key {
	case "ArrowDown":
		e.session.Selected = (e.session.Selected + 1) % n
		e.popup.Selected = e.session.Selected
		return false, true
	case "ArrowUp":
		e.session.Selected = (e.session.Selected - 1 + n) % n
		e.popup.Selected = e.session.Selected
		return false, true
	case "Enter", "Tab":
		return true, true
	case "Escape":
		e.closeLocked()
		return false, true
	}
	return false, false
}

func (e *Engine) isShortcut(k Key) bool {
	mod := k.Ctrl
	if e.opts.Platform == "mac" {
		mod = k.Meta
	}
	if !mod || !k.Shift {
		return false
	}
	switch k.Key {
	case "m", "M", "2", "@":
		return true
	}
	return false
}

// HandleClick closes the popup when the click lands outside both the popup
// and the bound field.
func (e *Engine) HandleClick(target Field, inPopup bool) {
	e.mu.Lock()
	if !e.session.Active || inPopup || (target != nil && target == e.session.Field) {
		e.mu.Unlock()
		return
	}
	e.closeLocked()
	p := e.popup
	e.mu.Unlock()

	e.notify(p)
}

// HandleBlur schedules a close after BlurGrace unless focus has returned to
// the bound field by then. A later blur replaces the pending check.
func (e *Engine) HandleBlur() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.blurTimer != nil {
		e.blurTimer.Stop()
	}
	e.blurGen++
	gen := e.blurGen
	e.blurTimer = e.opts.Clock.AfterFunc(BlurGrace, func() { e.blurExpired(gen) })
}

func (e *Engine) blurExpired(gen uint64) {
	var focused Field
	if e.opts.Focus != nil {
		focused = e.opts.Focus()
	}

	e.mu.Lock()
	if gen != e.blurGen {
		e.mu.Unlock()
		return
	}
	e.blurTimer = nil
	if !e.session.Active || (focused != nil && focused == e.session.Field) {
		e.mu.Unlock()
		return
	}
	e.closeLocked()
	p := e.popup
	e.mu.Unlock()

	e.notify(p)
}

// Hover moves the selection to index, as a pointer entering an item does.
func (e *Engine) Hover(index int) {
	e.mu.Lock()
	if !e.session.Active || index < 0 || index >= len(e.session.Candidates) {
		e.mu.Unlock()
		return
	}
	e.session.Selected = index
	e.popup.Selected = index
	p := e.popup
	e.mu.Unlock()

	e.notify(p)
}

// Select commits the candidate at index, as a pointer press on an item does.
// It returns false when no session is open, index is out of range or the
// field's caret can no longer be located.
func (e *Engine) Select(index int) bool {
	e.mu.Lock()
	if !e.session.Active || index < 0 || index >= len(e.session.Candidates) {
		e.mu.Unlock()
		return false
	}
	return e.commitLocked(index)
}

// Close dismisses any open session.
func (e *Engine) Close() {
	e.mu.Lock()
	changed := e.closeLocked()
	p := e.popup
	e.mu.Unlock()

	if changed {
		e.notify(p)
	}
}

// Stop cancels the blur timer and closes the session.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.blurTimer != nil {
		e.blurTimer.Stop()
		e.blurTimer = nil
	}
	e.blurGen++
	e.closeLocked()
	e.mu.Unlock()
}

// commitLocked inserts the candidate, closes the session and then, with the
// lock released, tells the host page about the edit. The synthetic input
// event re-enters HandleInput, which must not find the lock held.
func (e *Engine) commitLocked(index int) bool {
	s := e.session
	rec := s.Candidates[index]
	f := s.Field

	text, caret, ok := f.Value()
	if !ok {
		// No caret: fall back to the contents seen at the last input, but
		// only if the field still holds them. Never splice at a guess.
		if !s.Known || (text != "" && text != s.Text) {
			debug.Log("mention", "commit aborted: caret unknown on %s", f.Kind())
			changed := e.closeLocked()
			p := e.popup
			e.mu.Unlock()
			if changed {
				e.notify(p)
			}
			return false
		}
		text, caret = s.Text, s.Caret
	}
	if caret < s.TriggerStart {
		caret = s.TriggerStart
	}
	insert := "@" + rec.Identifier + " "
	newText, newCaret := Splice(text, s.TriggerStart, caret, insert)
	f.SetValue(newText, newCaret)

	debug.Log("mention", "inserted %s at %d", strings.TrimSpace(insert), s.TriggerStart)

	e.closeLocked()
	p := e.popup
	e.mu.Unlock()

	f.Dispatch("input")
	e.notify(p)
	return true
}

// openLocked starts or replaces the session and positions the popup.
func (e *Engine) openLocked(f Field, text string, caret, start int, known bool, candidates []dictionary.Record) {
	e.session = Session{
		Active:       true,
		Field:        f,
		TriggerStart: start,
		Candidates:   candidates,
		Text:         text,
		Caret:        caret,
		Known:        known,
	}
	left, top, measured := Anchor(f, text, caret, e.opts.Measurer)
	if !measured {
		debug.Trace("mention", "caret not measurable on %s, anchoring under field", f.Kind())
	}
	e.popup = Popup{
		Visible:  true,
		Left:     left,
		Top:      top,
		Items:    candidates,
		Measured: measured,
	}
}

// closeLocked hides the popup. It reports whether anything was open.
func (e *Engine) closeLocked() bool {
	was := e.session.Active
	e.session = Session{}
	e.popup = Popup{}
	return was
}

func (e *Engine) notify(p Popup) {
	if e.opts.OnChange != nil {
		e.opts.OnChange(p)
	}
}
