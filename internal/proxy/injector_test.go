package proxy

import (
	"bytes"
	"strings"
	"testing"
)

func TestShouldRewrite(t *testing.T) {
	tests := []struct {
		contentType string
		expected    bool
	}{
		{"text/html", true},
		{"text/html; charset=utf-8", true},
		{"TEXT/HTML", true},
		{"application/json", false},
		{"text/plain", false},
		{"application/javascript", false},
		{"image/png", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			result := ShouldRewrite(tt.contentType)
			if result != tt.expected {
				t.Errorf("ShouldRewrite(%q) = %v, expected %v", tt.contentType, result, tt.expected)
			}
		})
	}
}

func TestInjectAssets_Placement(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		anchor string // assets must start right after this prefix
		before string // or right before this marker
	}{
		{
			name:   "before head close",
			html:   "<!DOCTYPE html>\n<html>\n<head>\n<title>Test</title>\n</head>\n<body></body>\n</html>",
			before: "</head>",
		},
		{
			name:   "after head open",
			html:   "<html>\n<head><title>Test</title>\n<body>\n</body>\n</html>",
			anchor: "<html>\n<head>",
		},
		{
			name:   "after body with attributes",
			html:   "<html>\n<body class=\"page\" id=\"main\">\n<h1>Hi</h1>\n</body>\n</html>",
			anchor: "<html>\n<body class=\"page\" id=\"main\">",
		},
		{
			name:   "after html",
			html:   `<html lang="en">text</html>`,
			anchor: `<html lang="en">`,
		},
		{
			name:   "prepended",
			html:   "Hello World",
			anchor: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := InjectAssets([]byte(tt.html))
			idx := bytes.Index(result, []byte(`<style id="gnm-style">`))
			if idx == -1 {
				t.Fatal("style not injected")
			}
			if tt.before != "" {
				if got := bytes.Index(result, []byte(tt.before)); got < idx {
					t.Errorf("assets at %d should precede %s at %d", idx, tt.before, got)
				}
				return
			}
			// Leading newline of the asset block.
			if want := len(tt.anchor) + 1; idx != want {
				t.Errorf("assets at %d, want %d", idx, want)
			}
		})
	}
}

func TestInjectAssets_PreservesOriginalContent(t *testing.T) {
	html := []byte(`<!DOCTYPE html>
<html>
<head>
<title>Test Page</title>
<meta charset="utf-8">
</head>
<body>
<h1>Hello World</h1>
<p>This is a test.</p>
</body>
</html>`)

	result := string(InjectAssets(html))

	expectedContent := []string{
		"<!DOCTYPE html>",
		"<title>Test Page</title>",
		"<meta charset=\"utf-8\">",
		"<h1>Hello World</h1>",
		"<p>This is a test.</p>",
	}
	for _, content := range expectedContent {
		if !strings.Contains(result, content) {
			t.Errorf("Original content missing: %s", content)
		}
	}
}

func TestAssets_Content(t *testing.T) {
	assets := Assets()

	expected := []string{
		".gnm-highlight",
		".gnm-avatar-highlight",
		".gnm-mention-popup",
		".gnm-mention-item.selected",
		"location.host",
		PathEvents,
		PathMention,
		"'keydown'",
		"'focusout'",
	}
	for _, feature := range expected {
		if !strings.Contains(assets, feature) {
			t.Errorf("assets missing %s", feature)
		}
	}
}

func TestAssets_EditPlacesCaret(t *testing.T) {
	assets := Assets()

	expected := []string{
		"byId[msg.field]",
		"target.setSelectionRange(pos, pos)",
		"range.setStart(node, Math.min(pos, node.length))",
		"sel.addRange(range)",
		"id: idOf(el)",
	}
	for _, code := range expected {
		if !strings.Contains(assets, code) {
			t.Errorf("page client missing %s", code)
		}
	}
}
