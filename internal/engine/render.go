package engine

import (
	"bytes"

	"github.com/benbjohnson/clock"

	"github.com/standardbeagle/gnm/internal/dictionary"
	"github.com/standardbeagle/gnm/internal/page"
)

// Snapshot is a consistent view of the shared settings: the master switch,
// the feature set and one dictionary build.
type Snapshot struct {
	Enabled    bool                   `json:"enabled"`
	Features   Features               `json:"features"`
	Dictionary *dictionary.Dictionary `json:"-"`
}

// RewriteHTML parses body, runs one activation with snap and renders the
// result. With restore set every rewrite is undone again before rendering,
// which must give back a document equivalent to the input.
func RewriteHTML(body []byte, snap Snapshot, restore bool) ([]byte, Stats, error) {
	doc, err := page.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, Stats{}, err
	}

	dict := snap.Dictionary
	if dict == nil {
		dict = dictionary.Empty()
	}
	e := New(doc, Options{
		Enabled:    snap.Enabled,
		Features:   snap.Features,
		Dictionary: func() *dictionary.Dictionary { return dict },
		Clock:      clock.New(),
	})
	defer e.Teardown()

	st := e.Activate()
	if restore {
		st.Restored = e.Toggle(false).Restored
	}

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return nil, st, err
	}
	return buf.Bytes(), st, nil
}

// Apply brings the engine in line with snap. The dictionary is reloaded only
// when snap carries a different build.
func (e *Engine) Apply(snap Snapshot) {
	if e.Features() != snap.Features {
		e.SetFeatures(snap.Features)
	}
	if e.Enabled() != snap.Enabled {
		e.Toggle(snap.Enabled)
		return
	}
	if snap.Dictionary != nil && snap.Dictionary != e.Dictionary() {
		e.Refresh()
	}
}
