package autocomplete

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		caret     int
		wantQuery string
		wantStart int
		wantOK    bool
	}{
		{"scenario", "hi @@oc", 7, "oc", 3, true},
		{"bare trigger", "@@", 2, "", 0, true},
		{"uppercase lowered", "x @@OcTo", 8, "octo", 2, true},
		{"underscore and hyphen", "@@a_b-c", 7, "a_b-c", 0, true},
		{"cjk nickname", "hey @@小明", 8, "小明", 4, true},
		{"caret before query end", "@@octo", 4, "oc", 0, true},
		{"single at", "hi @oc", 6, "", 0, false},
		{"space after query", "@@oc ", 5, "", 0, false},
		{"caret out of range", "@@", 5, "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, start, ok := Detect(tt.text, tt.caret)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantQuery, q)
				assert.Equal(t, tt.wantStart, start)
			}
		})
	}
}

func TestSplice(t *testing.T) {
	out, caret := Splice("hi @@oc tail", 3, 7, "@octocat ")
	assert.Equal(t, "hi @octocat  tail", out)
	assert.Equal(t, 12, caret)

	out, caret = Splice("日本@@", 2, 4, "@x ")
	assert.Equal(t, "日本@x ", out)
	assert.Equal(t, 5, caret)

	out, caret = Splice("abc", 5, 1, "!")
	assert.Equal(t, "abc!", out)
	assert.Equal(t, 4, caret)
}

func TestMirrorWrapsLongLines(t *testing.T) {
	st := Style{FontSize: 10, LineHeight: 12, ClientWidth: 40}
	mr := newMirror(CellMeasurer{Ratio: 1}, st, KindTextArea)

	x, y := mr.caret([]rune("abc"))
	assert.Equal(t, 30.0, x)
	assert.Equal(t, 0.0, y)

	// "ab" does not fit after "abc ", so it moves to the next line.
	x, y = mr.caret([]rune("abc ab"))
	assert.Equal(t, 20.0, x)
	assert.Equal(t, 12.0, y)

	// A word wider than the line breaks anywhere.
	x, y = mr.caret([]rune("abcdef"))
	assert.Equal(t, 20.0, x)
	assert.Equal(t, 12.0, y)

	x, y = mr.caret([]rune("a\nb"))
	assert.Equal(t, 10.0, x)
	assert.Equal(t, 12.0, y)

	// Wide runes take two cells.
	x, _ = mr.caret([]rune("日"))
	assert.Equal(t, 20.0, x)
}

func TestSingleLineInputDoesNotWrap(t *testing.T) {
	st := Style{FontSize: 10, ClientWidth: 20}
	mr := newMirror(CellMeasurer{Ratio: 1}, st, KindInput)
	x, y := mr.caret([]rune("abcdef"))
	assert.Equal(t, 60.0, x)
	assert.Equal(t, 0.0, y)
}
