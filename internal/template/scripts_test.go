package template

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteScripts_ThemeCycling(t *testing.T) {
	var buf bytes.Buffer
	writeScripts(&buf)
	script := buf.String()

	// The theme cycles auto → light → dark → auto
	if !strings.Contains(script, `current === 'auto' ? 'light'`) {
		t.Error("missing auto → light transition")
	}
	if !strings.Contains(script, `current === 'light' ? 'dark'`) {
		t.Error("missing light → dark transition")
	}
	if !strings.Contains(script, `: 'auto'`) {
		t.Error("missing dark → auto transition")
	}
}

func TestWriteScripts_CookieSetting(t *testing.T) {
	var buf bytes.Buffer
	writeScripts(&buf)
	script := buf.String()

	for _, want := range []string{`_moviego_theme=`, `path=/`, `max-age=31536000`, `SameSite=Lax`} {
		if !strings.Contains(script, want) {
			t.Errorf("missing %s", want)
		}
	}
}

func TestWriteScripts_OfflineBadge(t *testing.T) {
	var buf bytes.Buffer
	writeScripts(&buf)
	script := buf.String()

	if !strings.Contains(script, `getElementById('moviego-offline')`) {
		t.Error("missing offline badge lookup")
	}
	if !strings.Contains(script, `navigator.onLine`) {
		t.Error("missing online check")
	}
}

func TestWriteScripts_CopyButtons(t *testing.T) {
	var buf bytes.Buffer
	writeScripts(&buf)
	script := buf.String()

	if !strings.Contains(script, `.moviego-copy-btn`) || !strings.Contains(script, `closest('.moviego-code-block')`) {
		t.Error("copy button handler does not match code block markup")
	}
}

func TestWriteScripts_Balanced(t *testing.T) {
	var buf bytes.Buffer
	writeScripts(&buf)
	script := buf.String()
	if strings.Count(script, "<script>") != 1 || strings.Count(script, "</script>") != 1 {
		t.Error("expected exactly one script element")
	}
	if strings.Count(script, "(function() {") != strings.Count(script, "})();") {
		t.Error("unbalanced IIFEs")
	}
}
