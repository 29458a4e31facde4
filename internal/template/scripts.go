package template

import (
	"bytes"
)

func writeScripts(buf *bytes.Buffer) {
	buf.WriteString(`  <script>
    // Theme toggle: auto → light → dark → auto
    (function() {
      var toggle = document.getElementById('moviego-theme-toggle');
      if (!toggle) return;

      function getTheme() {
        var cookie = document.cookie.match(/_moviego_theme=(\w+)/);
        if (cookie) return cookie[1];
        return document.documentElement.getAttribute('data-theme') || 'auto';
      }

      function setTheme(theme) {
        document.documentElement.setAttribute('data-theme', theme);
        document.cookie = '_moviego_theme=' + theme + ';path=/;max-age=31536000;SameSite=Lax';
      }

      var saved = getTheme();
      if (['auto','light','dark'].indexOf(saved) !== -1 && saved !== document.documentElement.getAttribute('data-theme')) {
        setTheme(saved);
      }

      var icons = { auto: '◑', light: '☀', dark: '☾' };
      function updateButton() {
        var theme = document.documentElement.getAttribute('data-theme') || 'auto';
        toggle.textContent = icons[theme] || icons.auto;
        toggle.title = 'Theme: ' + theme;
      }
      updateButton();

      toggle.addEventListener('click', function() {
        var current = document.documentElement.getAttribute('data-theme');
        var next = current === 'auto' ? 'light' : current === 'light' ? 'dark' : 'auto';
        setTheme(next);
        updateButton();
      });
    })();

    // Offline indicator
    (function() {
      var badge = document.getElementById('moviego-offline');
      if (!badge) return;
      function update() { badge.hidden = navigator.onLine; }
      window.addEventListener('online', update);
      window.addEventListener('offline', update);
      update();
    })();

    // Copy buttons on code blocks
    (function() {
      document.querySelectorAll('.moviego-copy-btn').forEach(function(btn) {
        btn.addEventListener('click', function() {
          var block = btn.closest('.moviego-code-block');
          if (!block) return;
          var code = block.querySelector('pre code, pre');
          if (!code) return;
          navigator.clipboard.writeText(code.textContent).then(function() {
            btn.textContent = 'Copied!';
            btn.setAttribute('data-state', 'copied');
            setTimeout(function() {
              btn.textContent = 'Copy';
              btn.setAttribute('data-state', 'idle');
            }, 2000);
          });
        });
      });
    })();
  </script>
`)
}
