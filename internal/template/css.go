package template

import (
	"bytes"
	"fmt"
)

// faviconSVG is an inline SVG favicon: a film clapper.
const faviconSVG = `%3Csvg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'%3E%3Ctext y='.9em' font-size='90'%3E🎬%3C/text%3E%3C/svg%3E`

func writeThemeCSS(buf *bytes.Buffer, chromaLightCSS, chromaDarkCSS string) {
	fmt.Fprintf(buf, "    /* Theme: light */\n")
	fmt.Fprintf(buf, "    [data-theme=\"light\"] { color-scheme: light; }\n")
	writeScoped(buf, `[data-theme="light"]`, chromaLightCSS)

	fmt.Fprintf(buf, "    /* Theme: dark */\n")
	fmt.Fprintf(buf, "    [data-theme=\"dark\"] { color-scheme: dark; }\n")
	writeScoped(buf, `[data-theme="dark"]`, chromaDarkCSS)

	fmt.Fprintf(buf, "    /* Theme: auto (system preference) */\n")
	fmt.Fprintf(buf, "    [data-theme=\"auto\"] { color-scheme: light dark; }\n")
	writeScoped(buf, `[data-theme="auto"]`, chromaLightCSS)
	fmt.Fprintf(buf, "    @media (prefers-color-scheme: dark) {\n")
	writeScoped(buf, `[data-theme="auto"]`, chromaDarkCSS)
	fmt.Fprintf(buf, "    }\n")
}

// writeScoped prefixes every chroma rule with the theme selector so the
// light and dark stylesheets can coexist on one page.
func writeScoped(buf *bytes.Buffer, selector, css string) {
	if css == "" {
		return
	}
	buf.WriteString(prefixChromaCSS(css, selector))
	buf.WriteByte('\n')
}

func prefixChromaCSS(css, selector string) string {
	var out bytes.Buffer
	for _, line := range bytes.Split([]byte(css), []byte("\n")) {
		if i := bytes.Index(line, []byte(".chroma")); i >= 0 {
			out.Write(line[:i])
			out.WriteString(selector)
			out.WriteByte(' ')
			out.Write(line[i:])
		} else {
			out.Write(line)
		}
		out.WriteByte('\n')
	}
	return out.String()
}

func writeLayoutCSS(buf *bytes.Buffer) {
	buf.WriteString(layoutCSS)
}

const layoutCSS = `
    /* moviego layout */
    * { box-sizing: border-box; }
    body { margin: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Helvetica, Arial, sans-serif; }
    [data-theme="dark"] body { background: #0d1117; color: #e6edf3; }
    @media (prefers-color-scheme: dark) {
      [data-theme="auto"] body { background: #0d1117; color: #e6edf3; }
    }

    #moviego-header {
      position: sticky; top: 0; z-index: 100;
      display: flex; align-items: center; justify-content: space-between; gap: 16px;
      padding: 6px 16px; font-size: 13px;
      border-bottom: 1px solid rgba(128,128,128,0.2);
      background: rgba(246,248,250,0.95); color: #656d76;
    }
    [data-theme="dark"] #moviego-header { background: rgba(22,27,34,0.95); color: #8b949e; }
    @media (prefers-color-scheme: dark) {
      [data-theme="auto"] #moviego-header { background: rgba(22,27,34,0.95); color: #8b949e; }
    }
    #moviego-header nav { display: flex; gap: 12px; align-items: center; }
    #moviego-header a { color: inherit; text-decoration: none; }
    #moviego-header a:hover { text-decoration: underline; }
    #moviego-brand { font-weight: 700; }
    #moviego-search input {
      padding: 4px 8px; font-size: 13px; border-radius: 4px;
      border: 1px solid rgba(128,128,128,0.3); background: inherit; color: inherit;
    }
    .moviego-controls { display: flex; gap: 6px; align-items: center; }
    .moviego-controls button {
      background: none; border: 1px solid rgba(128,128,128,0.3); border-radius: 4px;
      cursor: pointer; padding: 2px 6px; font-size: 14px; color: inherit;
    }
    .moviego-badge {
      font-size: 11px; padding: 1px 6px; border-radius: 10px;
      border: 1px solid rgba(128,128,128,0.3);
    }

    main { max-width: 1200px; margin: 0 auto; padding: 24px 16px; }
    main h1 { margin: 0 0 16px; }

    .moviego-grid {
      display: grid; gap: 16px;
      grid-template-columns: repeat(auto-fill, minmax(160px, 1fr));
      list-style: none; padding: 0; margin: 0;
    }
    .moviego-card a { color: inherit; text-decoration: none; display: block; }
    .moviego-card img, .moviego-card .moviego-noposter {
      width: 100%; aspect-ratio: 2 / 3; object-fit: cover; border-radius: 6px;
      background: rgba(128,128,128,0.15); display: block;
    }
    .moviego-card h3 { font-size: 14px; margin: 8px 0 2px; }
    .moviego-card p { font-size: 12px; margin: 0; color: #656d76; }

    .moviego-pager { display: flex; justify-content: space-between; margin: 24px 0; }
    .moviego-pager a { color: #0969da; }

    #moviego-details { display: grid; grid-template-columns: 300px 1fr; gap: 32px; }
    #moviego-details .moviego-poster { width: 100%; border-radius: 8px; }
    .moviego-tagline { font-style: italic; color: #656d76; }
    .moviego-facts { display: flex; flex-wrap: wrap; gap: 12px; font-size: 14px; }
    .moviego-genres { display: flex; flex-wrap: wrap; gap: 6px; padding: 0; list-style: none; }
    .moviego-cast { display: grid; gap: 12px; grid-template-columns: repeat(auto-fill, minmax(120px, 1fr)); list-style: none; padding: 0; }
    .moviego-cast img { width: 100%; aspect-ratio: 2 / 3; object-fit: cover; border-radius: 6px; }
    .moviego-cast span { display: block; font-size: 12px; }

    .moviego-code-block {
      position: relative; margin: 16px 0;
      border: 1px solid #d0d7de; border-radius: 6px; overflow: hidden;
    }
    .moviego-code-block pre { margin: 0; }
    .moviego-code-block pre code { padding: 16px; display: block; overflow-x: auto; }
    .moviego-code-header {
      display: flex; justify-content: flex-end; align-items: center; gap: 8px;
      padding: 4px 12px; font-size: 12px; color: #656d76;
      background: #f6f8fa; border-bottom: 1px solid #d0d7de;
    }
    .moviego-copy-btn {
      background: none; border: 1px solid rgba(128,128,128,0.3); border-radius: 4px;
      cursor: pointer; padding: 2px 8px; font-size: 11px; color: inherit;
    }
    [data-theme="dark"] .moviego-code-block { border-color: #30363d; }
    [data-theme="dark"] .moviego-code-header { background: #161b22; border-color: #30363d; color: #8b949e; }
    @media (prefers-color-scheme: dark) {
      [data-theme="auto"] .moviego-code-block { border-color: #30363d; }
      [data-theme="auto"] .moviego-code-header { background: #161b22; border-color: #30363d; color: #8b949e; }
    }

    #moviego-error, #moviego-empty { text-align: center; padding: 80px 16px; }
    #moviego-error h1, #moviego-empty h1 { font-size: 40px; margin: 0 0 16px; color: #656d76; }
    #moviego-error p, #moviego-empty p { color: #656d76; font-size: 16px; }
    #moviego-error a, #moviego-empty a { color: #0969da; }

    @media (max-width: 768px) {
      #moviego-details { grid-template-columns: 1fr; }
      main { padding: 16px 8px; }
    }
`
