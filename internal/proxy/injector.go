package proxy

import (
	"bytes"
	"strings"
)

// Paths served by the proxy itself. Everything else goes upstream.
const (
	PathPrefix  = "/__gnm/"
	PathEvents  = "/__gnm/events"
	PathMention = "/__gnm/mention"
	PathRefresh = "/__gnm/refresh"
	PathToggle  = "/__gnm/toggle"
	PathStatus  = "/__gnm/status"
)

// assetStyle styles the marks left by the rewriter and annotator, and the
// mention popup.
const assetStyle = `
<style id="gnm-style">
.gnm-highlight { background: rgba(255, 213, 79, 0.25); border-radius: 3px; }
.gnm-avatar-highlight { box-shadow: 0 0 0 2px #54aeff; border-radius: 50%; }
.gnm-mention-popup { min-width: 220px; max-height: 280px; overflow-y: auto; background: #fff; border: 1px solid #d0d7de; border-radius: 6px; box-shadow: 0 8px 24px rgba(140, 149, 159, 0.2); font: 13px/1.4 -apple-system, "Segoe UI", sans-serif; }
.gnm-mention-item { padding: 6px 10px; cursor: pointer; display: flex; gap: 6px; align-items: baseline; }
.gnm-mention-item.selected { background: #0969da; color: #fff; }
.gnm-mention-github { font-weight: 600; }
.gnm-mention-nick { opacity: 0.85; }
.gnm-mention-domain { margin-left: auto; font-size: 11px; opacity: 0.7; }
</style>
`

// assetScript is the thin page client. It reloads on refresh/toggle signals
// and forwards editable-field events to the mention session, applying the
// popup markup and edits the server sends back.
const assetScript = `
<script id="gnm-client">
(function() {
  'use strict';
  var proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
  var base = proto + '//' + location.host;
  var platform = /Mac|iPhone|iPad/.test(navigator.platform) ? 'mac' : 'other';

  function listen() {
    var ws = new WebSocket(base + '` + PathEvents + `');
    ws.onmessage = function(ev) {
      var msg = JSON.parse(ev.data);
      if (msg.type === 'refresh' || msg.type === 'toggle') location.reload();
    };
    ws.onclose = function() { setTimeout(listen, 2000); };
  }
  listen();

  var popup = document.createElement('div');
  popup.className = 'gnm-mention-popup';
  popup.style.display = 'none';
  var mention = null, field = null;
  var ids = new WeakMap(), byId = {}, nextId = 1;

  function idOf(el) {
    var id = ids.get(el);
    if (!id) {
      id = 'f' + nextId++;
      ids.set(el, id);
      byId[id] = el;
    }
    return id;
  }

  function utf16(value, caret) {
    return Array.from(value).slice(0, caret).join('').length;
  }

  function kindOf(el) {
    if (!el) return '';
    if (el.tagName === 'TEXTAREA') return 'textarea';
    if (el.tagName === 'INPUT' && (el.type === 'text' || el.type === 'search' || el.type === '')) return 'input';
    if (el.isContentEditable) return 'richtext';
    return '';
  }

  function fieldState(el) {
    var kind = kindOf(el);
    var r = el.getBoundingClientRect();
    var st = { id: idOf(el), kind: kind, bounds: { left: r.left, top: r.top, right: r.right, bottom: r.bottom } };
    if (kind === 'richtext') {
      var sel = getSelection();
      if (sel.rangeCount && sel.isCollapsed) {
        var range = sel.getRangeAt(0);
        var pre = range.cloneRange();
        pre.selectNodeContents(el);
        pre.setEnd(range.endContainer, range.endOffset);
        st.value = el.textContent;
        st.caret = Array.from(pre.toString()).length;
        st.caretOk = true;
        var rr = range.getBoundingClientRect();
        st.selection = { left: rr.left, top: rr.top, right: rr.right, bottom: rr.bottom };
      }
      return st;
    }
    var cs = getComputedStyle(el);
    st.value = el.value;
    st.caret = Array.from(el.value.slice(0, el.selectionStart)).length;
    st.caretOk = el.selectionStart === el.selectionEnd;
    st.scroll = { left: el.scrollLeft, top: el.scrollTop };
    st.style = {
      fontSize: parseFloat(cs.fontSize) || 0,
      lineHeight: parseFloat(cs.lineHeight) || 0,
      paddingLeft: parseFloat(cs.paddingLeft) || 0,
      paddingTop: parseFloat(cs.paddingTop) || 0,
      borderLeft: parseFloat(cs.borderLeftWidth) || 0,
      borderTop: parseFloat(cs.borderTopWidth) || 0,
      letterSpacing: parseFloat(cs.letterSpacing) || 0,
      wordSpacing: parseFloat(cs.wordSpacing) || 0,
      clientWidth: el.clientWidth,
      monospace: /mono/i.test(cs.fontFamily)
    };
    return st;
  }

  function send(type, el, extra) {
    if (!mention || mention.readyState !== WebSocket.OPEN) return;
    var msg = { type: type };
    if (el && kindOf(el)) msg.field = fieldState(el);
    for (var k in extra) msg[k] = extra[k];
    mention.send(JSON.stringify(msg));
  }

  function apply(msg) {
    if (msg.type === 'popup') {
      var tmp = document.createElement('div');
      tmp.innerHTML = msg.html;
      var next = tmp.firstChild;
      popup.className = next.className;
      popup.setAttribute('style', next.getAttribute('style') || '');
      popup.innerHTML = next.innerHTML;
      if (!popup.parentNode) document.body.appendChild(popup);
    } else if (msg.type === 'edit') {
      var target = (msg.field && byId[msg.field]) || field;
      if (!target) return;
      var pos = utf16(msg.value || '', msg.caret || 0);
      if (kindOf(target) === 'richtext') {
        target.textContent = msg.value || '';
        var node = target.firstChild;
        if (node) {
          var range = document.createRange();
          range.setStart(node, Math.min(pos, node.length));
          range.collapse(true);
          var sel = getSelection();
          sel.removeAllRanges();
          sel.addRange(range);
        }
      } else {
        target.value = msg.value || '';
        target.setSelectionRange(pos, pos);
      }
      target.dispatchEvent(new Event('input', { bubbles: true }));
    }
  }

  function connectMention() {
    mention = new WebSocket(base + '` + PathMention + `?platform=' + platform);
    mention.onmessage = function(ev) { apply(JSON.parse(ev.data)); };
    mention.onclose = function() { setTimeout(connectMention, 2000); };
  }
  connectMention();

  document.addEventListener('input', function(e) {
    if (e.isTrusted === false) return;
    field = e.target;
    send('input', e.target);
  }, true);
  document.addEventListener('keydown', function(e) {
    if (!kindOf(e.target)) return;
    field = e.target;
    var open = popup.style.display === 'block';
    var nav = ['ArrowDown', 'ArrowUp', 'Enter', 'Tab', 'Escape'].indexOf(e.key) >= 0;
    var shortcut = (e.ctrlKey || e.metaKey) && e.shiftKey && /^[mM2@]$/.test(e.key);
    if ((open && nav) || shortcut) e.preventDefault();
    send('keydown', e.target, { key: { key: e.key, ctrl: e.ctrlKey, meta: e.metaKey, shift: e.shiftKey, alt: e.altKey } });
  }, true);
  document.addEventListener('focusout', function(e) { send('blur', null, {}); }, true);
  document.addEventListener('mousedown', function(e) {
    var item = e.target.closest && e.target.closest('.gnm-mention-item');
    if (item) {
      e.preventDefault();
      send('select', null, { index: parseInt(item.getAttribute('data-index'), 10) });
      return;
    }
    send('click', kindOf(e.target) ? e.target : null, { inPopup: popup.contains(e.target) });
  }, true);
  popup.addEventListener('mouseover', function(e) {
    var item = e.target.closest('.gnm-mention-item');
    if (item) send('hover', null, { index: parseInt(item.getAttribute('data-index'), 10) });
  });
})();
</script>
`

// Assets returns the markup injected into every rewritten page.
func Assets() string {
	return assetStyle + assetScript
}

// InjectAssets inserts the gnm stylesheet and page client into an HTML body.
// It prefers the end of <head>, then the start of <head>, <body> or <html>,
// and prepends as a last resort.
func InjectAssets(body []byte) []byte {
	return injectAt(body, []byte(Assets()))
}

func injectAt(body, assets []byte) []byte {
	if idx := bytes.Index(body, []byte("</head>")); idx != -1 {
		return splice(body, assets, idx)
	}
	if idx := bytes.Index(body, []byte("<head>")); idx != -1 {
		return splice(body, assets, idx+len("<head>"))
	}
	for _, tag := range []string{"<body", "<html"} {
		if idx := bytes.Index(body, []byte(tag)); idx != -1 {
			if end := bytes.IndexByte(body[idx:], '>'); end != -1 {
				return splice(body, assets, idx+end+1)
			}
		}
	}
	return splice(body, assets, 0)
}

func splice(body, insert []byte, at int) []byte {
	result := make([]byte, 0, len(body)+len(insert))
	result = append(result, body[:at]...)
	result = append(result, insert...)
	result = append(result, body[at:]...)
	return result
}

// ShouldRewrite reports whether a response with this content type is a page
// the engine can work on.
func ShouldRewrite(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "text/html")
}
