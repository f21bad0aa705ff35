package proxy

import (
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/standardbeagle/gnm/internal/autocomplete"
	"github.com/standardbeagle/gnm/internal/debug"
	"github.com/standardbeagle/gnm/internal/dictionary"
	"github.com/standardbeagle/gnm/internal/engine"
	"github.com/standardbeagle/gnm/internal/page"
)

// Mention message types. The page sends the first group, the server answers
// with the second.
const (
	MsgInput   = "input"
	MsgKeyDown = "keydown"
	MsgClick   = "click"
	MsgBlur    = "blur"
	MsgSelect  = "select"
	MsgHover   = "hover"

	MsgPopup = "popup"
	MsgEdit  = "edit"
	MsgKey   = "key"
)

type scrollState struct {
	Left float64 `json:"left"`
	Top  float64 `json:"top"`
}

// FieldState is the snapshot of an editable element the page sends with
// each event. ID is stable for the element's lifetime on the page.
type FieldState struct {
	ID        string              `json:"id,omitempty"`
	Kind      string              `json:"kind"`
	Value     string              `json:"value"`
	Caret     int                 `json:"caret"`
	CaretOK   bool                `json:"caretOk"`
	Bounds    autocomplete.Rect   `json:"bounds"`
	Style     *autocomplete.Style `json:"style,omitempty"`
	Scroll    *scrollState        `json:"scroll,omitempty"`
	Selection *autocomplete.Rect  `json:"selection,omitempty"`
}

// MentionRequest is one page event.
type MentionRequest struct {
	Type    string           `json:"type"`
	Field   *FieldState      `json:"field,omitempty"`
	Key     autocomplete.Key `json:"key"`
	Index   int              `json:"index"`
	InPopup bool             `json:"inPopup"`
}

// MentionReply is a server message: popup state, a field edit, or whether a
// keydown was consumed.
type MentionReply struct {
	Type     string  `json:"type"`
	Visible  bool    `json:"visible,omitempty"`
	Left     float64 `json:"left,omitempty"`
	Top      float64 `json:"top,omitempty"`
	Selected int     `json:"selected,omitempty"`
	HTML     string  `json:"html,omitempty"`
	Field    string  `json:"field,omitempty"`
	Value    string  `json:"value,omitempty"`
	Caret    int     `json:"caret,omitempty"`
	Consumed bool    `json:"consumed,omitempty"`
}

// RemoteField mirrors one editable element on the page. The session keeps
// one instance per element ID so the autocomplete engine can compare
// identities.
type RemoteField struct {
	id    string
	mu    sync.Mutex
	state FieldState
	edit  func(id, value string, caret int)
}

// ID is the page-assigned element ID.
func (f *RemoteField) ID() string { return f.id }

func (f *RemoteField) update(st FieldState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = st
}

func (f *RemoteField) Kind() autocomplete.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return autocomplete.ParseKind(f.state.Kind)
}

func (f *RemoteField) Value() (string, int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Value, f.state.Caret, f.state.CaretOK
}

func (f *RemoteField) SetValue(text string, caret int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Value = text
	f.state.Caret = caret
	f.state.CaretOK = true
}

func (f *RemoteField) Bounds() autocomplete.Rect {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Bounds
}

// Dispatch forwards the edit to the page, which fires the event there.
func (f *RemoteField) Dispatch(event string) {
	if event != "input" || f.edit == nil {
		return
	}
	text, caret, _ := f.Value()
	f.edit(f.id, text, caret)
}

func (f *RemoteField) Style() autocomplete.Style {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Style == nil {
		return autocomplete.Style{}
	}
	return *f.state.Style
}

func (f *RemoteField) Scroll() (float64, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Scroll == nil {
		return 0, 0
	}
	return f.state.Scroll.Left, f.state.Scroll.Top
}

func (f *RemoteField) SelectionRect() (autocomplete.Rect, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Selection == nil {
		return autocomplete.Rect{}, false
	}
	return *f.state.Selection, true
}

// maxFields bounds the per-connection element table.
const maxFields = 32

// MentionSession drives the mention popup for one page connection. The
// page's markup stays in the browser, so its controller runs over a blank
// document and only the autocomplete half does work.
type MentionSession struct {
	state State
	page  *engine.Engine
	ac    *autocomplete.Engine

	mu      sync.Mutex
	fields  map[string]*RemoteField
	current *RemoteField
	focused bool

	send func(MentionReply) error
}

// NewMentionSession creates a session that reports popup changes and edits
// through send.
func NewMentionSession(state State, platform string, clk clock.Clock, send func(MentionReply) error) *MentionSession {
	s := &MentionSession{
		state:  state,
		send:   send,
		fields: make(map[string]*RemoteField),
	}
	snap := state.Snapshot()
	s.page = engine.New(page.Blank(), engine.Options{
		Enabled:    snap.Enabled,
		Features:   snap.Features,
		Dictionary: func() *dictionary.Dictionary { return state.Snapshot().Dictionary },
		Clock:      clk,
		Platform:   platform,
		Focus:      s.focus,
		OnPopup:    s.popupChanged,
	})
	s.page.Activate()
	s.ac = s.page.Mention()
	return s
}

// Field returns the mirror of the element that sent the latest event, or
// nil before any field event.
func (s *MentionSession) Field() *RemoteField {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// fieldFor updates and returns the mirror for st's element.
func (s *MentionSession) fieldFor(st FieldState) *RemoteField {
	bound := s.ac.Session().Field

	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fields[st.ID]
	if !ok {
		if len(s.fields) >= maxFields {
			for id, old := range s.fields {
				if old != s.current && autocomplete.Field(old) != bound {
					delete(s.fields, id)
				}
			}
		}
		f = &RemoteField{id: st.ID, edit: s.sendEdit}
		s.fields[st.ID] = f
	}
	f.update(st)
	s.current = f
	s.focused = true
	return f
}

func (s *MentionSession) sendEdit(id, value string, caret int) {
	s.reply(MentionReply{Type: MsgEdit, Field: id, Value: value, Caret: caret})
}

// Engine returns the session's autocomplete engine.
func (s *MentionSession) Engine() *autocomplete.Engine {
	return s.ac
}

func (s *MentionSession) focus() autocomplete.Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.focused || s.current == nil {
		return nil
	}
	return s.current
}

func (s *MentionSession) popupChanged(p autocomplete.Popup) {
	s.reply(MentionReply{
		Type:     MsgPopup,
		Visible:  p.Visible,
		Left:     p.Left,
		Top:      p.Top,
		Selected: p.Selected,
		HTML:     p.HTML(),
	})
}

func (s *MentionSession) reply(r MentionReply) {
	if err := s.send(r); err != nil {
		debug.Log("mention", "send %s failed: %v", r.Type, err)
	}
}

// Handle applies one page event.
func (s *MentionSession) Handle(req MentionRequest) {
	s.page.Apply(s.state.Snapshot())

	var target autocomplete.Field
	if req.Field != nil {
		target = s.fieldFor(*req.Field)
	}

	switch req.Type {
	case MsgInput:
		if target != nil {
			s.ac.HandleInput(target)
		}
	case MsgKeyDown:
		if target != nil {
			consumed := s.ac.HandleKeyDown(target, req.Key)
			s.reply(MentionReply{Type: MsgKey, Consumed: consumed})
		}
	case MsgClick:
		s.ac.HandleClick(target, req.InPopup)
	case MsgBlur:
		s.mu.Lock()
		s.focused = false
		s.mu.Unlock()
		s.ac.HandleBlur()
	case MsgSelect:
		s.ac.Select(req.Index)
	case MsgHover:
		s.ac.Hover(req.Index)
	default:
		debug.Log("mention", "unknown message type %q", req.Type)
	}
}

// Close stops timers and drops any open popup.
func (s *MentionSession) Close() {
	s.page.Teardown()
}

// mentionHandler upgrades /__gnm/mention connections into sessions.
type mentionHandler struct {
	state    State
	platform string
	clock    clock.Clock
	upgrader websocket.Upgrader
}

func (h *mentionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Warn("mention", "upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	platform := r.URL.Query().Get("platform")
	if platform == "" {
		platform = h.platform
	}

	var writeMu sync.Mutex
	send := func(m MentionReply) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(m)
	}

	s := NewMentionSession(h.state, platform, h.clock, send)
	defer s.Close()

	for {
		var req MentionRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				debug.Log("mention", "read failed: %v", err)
			}
			return
		}
		s.Handle(req)
	}
}
