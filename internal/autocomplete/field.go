package autocomplete

// Kind classifies an editable element.
type Kind int

const (
	// KindNone is not editable.
	KindNone Kind = iota
	// KindInput is a single-line text input.
	KindInput
	// KindTextArea is a plain multiline input.
	KindTextArea
	// KindRichText is a contenteditable region.
	KindRichText
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindTextArea:
		return "textarea"
	case KindRichText:
		return "richtext"
	default:
		return "none"
	}
}

// ParseKind maps a tag-like name to a Kind.
func ParseKind(s string) Kind {
	switch s {
	case "input":
		return KindInput
	case "textarea":
		return KindTextArea
	case "richtext", "contenteditable":
		return KindRichText
	default:
		return KindNone
	}
}

// Rect is a viewport rectangle in CSS pixels.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Width of the rectangle.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Field is an editable element the engine can read and write. Offsets are in
// runes.
type Field interface {
	Kind() Kind
	// Value returns the text and caret offset. ok is false when the caret
	// cannot be determined, e.g. a rich-text region with no selection.
	Value() (text string, caret int, ok bool)
	// SetValue replaces the text and collapses the caret at offset.
	SetValue(text string, caret int)
	// Bounds is the element's border box in viewport coordinates.
	Bounds() Rect
	// Dispatch fires a synthetic event (e.g. "input") at the element.
	Dispatch(event string)
}

// Style is the subset of computed style a mirror needs.
type Style struct {
	FontSize      float64 `json:"fontSize"`
	LineHeight    float64 `json:"lineHeight"`
	PaddingLeft   float64 `json:"paddingLeft"`
	PaddingTop    float64 `json:"paddingTop"`
	BorderLeft    float64 `json:"borderLeft"`
	BorderTop     float64 `json:"borderTop"`
	LetterSpacing float64 `json:"letterSpacing"`
	WordSpacing   float64 `json:"wordSpacing"`
	// ClientWidth is the content+padding width the text wraps within.
	ClientWidth float64 `json:"clientWidth"`
	// Monospace selects cell-based measurement.
	Monospace bool `json:"monospace"`
}

// Styled fields expose what the mirror measurement needs. Plain inputs that
// don't implement it fall back to anchoring under the element.
type Styled interface {
	Style() Style
	Scroll() (left, top float64)
}

// Selectable fields report the bounding box of the live selection range.
type Selectable interface {
	SelectionRect() (Rect, bool)
}

// Editable reports whether f accepts text.
func Editable(f Field) bool {
	return f != nil && f.Kind() != KindNone
}
