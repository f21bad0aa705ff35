package autocomplete

import (
	"unicode"

	"github.com/mattn/go-runewidth"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// PopupGap is the vertical distance between the caret line and the popup.
const PopupGap = 4

// Measurer returns the horizontal advance of a rune at a font size in px.
type Measurer interface {
	Advance(r rune, size float64) float64
}

// FaceMeasurer scales a font.Face's advances to the requested size.
type FaceMeasurer struct {
	Face font.Face
}

// DefaultMeasurer uses the built-in 7x13 bitmap face.
func DefaultMeasurer() Measurer {
	return FaceMeasurer{Face: basicfont.Face7x13}
}

func (m FaceMeasurer) Advance(r rune, size float64) float64 {
	adv, ok := m.Face.GlyphAdvance(r)
	if !ok {
		adv, _ = m.Face.GlyphAdvance('?')
	}
	h := m.Face.Metrics().Height
	if h <= 0 || size <= 0 {
		return toFloat(adv)
	}
	return toFloat(adv) * size / toFloat(h)
}

// CellMeasurer treats text as a monospace grid: narrow runes take one cell,
// wide (East Asian) runes two.
type CellMeasurer struct {
	// Ratio is the cell width as a fraction of the font size.
	Ratio float64
}

func (m CellMeasurer) Advance(r rune, size float64) float64 {
	ratio := m.Ratio
	if ratio <= 0 {
		ratio = 0.6
	}
	return float64(runewidth.RuneWidth(r)) * ratio * size
}

func toFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

// mirror lays text out the way an offscreen copy of the field would:
// pre-wrap whitespace, long words broken anywhere.
type mirror struct {
	m     Measurer
	st    Style
	avail float64
	wrap  bool
}

func newMirror(m Measurer, st Style, kind Kind) mirror {
	if st.Monospace {
		m = CellMeasurer{}
	}
	avail := st.ClientWidth - 2*st.PaddingLeft
	return mirror{
		m:     m,
		st:    st,
		avail: avail,
		wrap:  kind == KindTextArea && avail > 0,
	}
}

func (mr mirror) lineHeight() float64 {
	if mr.st.LineHeight > 0 {
		return mr.st.LineHeight
	}
	return mr.st.FontSize * 1.2
}

func (mr mirror) advance(r rune) float64 {
	w := mr.m.Advance(r, mr.st.FontSize) + mr.st.LetterSpacing
	if r == ' ' {
		w += mr.st.WordSpacing
	}
	return w
}

// caret returns the offset of the end of text from the mirror's content
// origin.
func (mr mirror) caret(text []rune) (x, y float64) {
	lh := mr.lineHeight()
	newline := func() {
		x = 0
		y += lh
	}

	for i := 0; i < len(text); {
		r := text[i]
		switch {
		case r == '\n':
			newline()
			i++
		case unicode.IsSpace(r):
			// Trailing whitespace hangs past the edge in pre-wrap.
			x += mr.advance(r)
			i++
		default:
			j := i
			for j < len(text) && text[j] != '\n' && !unicode.IsSpace(text[j]) {
				j++
			}
			word := text[i:j]
			w := 0.0
			for _, c := range word {
				w += mr.advance(c)
			}
			if mr.wrap && x > 0 && x+w > mr.avail {
				newline()
			}
			if mr.wrap && w > mr.avail {
				for _, c := range word {
					a := mr.advance(c)
					if x > 0 && x+a > mr.avail {
						newline()
					}
					x += a
				}
			} else {
				x += w
			}
			i = j
		}
	}
	return x, y
}

// CaretRect computes the viewport rectangle of the caret at offset. ok is
// false when the field gives nothing to measure with.
func CaretRect(f Field, text string, caret int, m Measurer) (Rect, bool) {
	switch f.Kind() {
	case KindInput, KindTextArea:
		s, ok := f.(Styled)
		if !ok {
			return Rect{}, false
		}
		st := s.Style()
		if st.FontSize <= 0 {
			return Rect{}, false
		}
		runes := []rune(text)
		if caret < 0 || caret > len(runes) {
			return Rect{}, false
		}
		if m == nil {
			m = DefaultMeasurer()
		}

		mr := newMirror(m, st, f.Kind())
		x, y := mr.caret(runes[:caret])
		scrollLeft, scrollTop := s.Scroll()
		b := f.Bounds()

		left := b.Left + st.BorderLeft + st.PaddingLeft + x - scrollLeft
		top := b.Top + st.BorderTop + st.PaddingTop + y - scrollTop
		return Rect{Left: left, Top: top, Right: left, Bottom: top + mr.lineHeight()}, true

	case KindRichText:
		s, ok := f.(Selectable)
		if !ok {
			return Rect{}, false
		}
		return s.SelectionRect()
	}
	return Rect{}, false
}

// Anchor returns where the popup's top-left corner goes: just under the
// caret, or just under the field when the caret can't be measured.
func Anchor(f Field, text string, caret int, m Measurer) (left, top float64, measured bool) {
	if r, ok := CaretRect(f, text, caret, m); ok {
		return r.Left, r.Bottom + PopupGap, true
	}
	b := f.Bounds()
	return b.Left, b.Bottom + PopupGap, false
}
