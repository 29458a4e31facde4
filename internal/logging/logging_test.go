package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// entries decodes every JSON log line in buf.
func entries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e map[string]any
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("log line %q: %v", line, err)
		}
		out = append(out, e)
	}
	return out
}

func onlyEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	es := entries(t, buf)
	if len(es) != 1 {
		t.Fatalf("got %d log lines, want 1: %s", len(es), buf.String())
	}
	return es[0]
}

func TestSetup_InstallsLeveledDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := Setup(&buf, slog.LevelWarn)
	if slog.Default() != logger {
		t.Fatal("Setup did not install the logger as default")
	}

	slog.Info("offline worker registered", "cache_version", "movie-app-v1")
	slog.Warn("precache failed", "path", "/favicon.svg")

	e := onlyEntry(t, &buf)
	if e["msg"] != "precache failed" || e["path"] != "/favicon.svg" || e["level"] != "WARN" {
		t.Errorf("entry = %v", e)
	}
}

func TestMiddleware_RequestLine(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		headers   map[string]string
		status    int
		wantLevel string
		want      map[string]any
	}{
		{
			name: "data query",
			path: "/data/discover",
			headers: map[string]string{
				HeaderCache:    "refetch",
				HeaderEndpoint: "discover",
				HeaderAttempts: "2",
				HeaderUpstream: "45",
			},
			status:    http.StatusOK,
			wantLevel: "INFO",
			want: map[string]any{
				"cache": "refetch", "endpoint": "discover", "offline": "",
				"attempts": float64(2), "upstream_ms": float64(45),
			},
		},
		{
			name:      "static from offline cache",
			path:      "/index.html",
			headers:   map[string]string{HeaderOffline: "cache"},
			status:    http.StatusOK,
			wantLevel: "INFO",
			want: map[string]any{
				"offline": "cache", "cache": "", "endpoint": "",
				"attempts": float64(0), "upstream_ms": float64(0),
			},
		},
		{
			name:      "auth failure",
			path:      "/data/trending",
			headers:   map[string]string{HeaderEndpoint: "trending", HeaderAttempts: "1"},
			status:    http.StatusUnauthorized,
			wantLevel: "WARN",
			want:      map[string]any{"endpoint": "trending", "attempts": float64(1)},
		},
		{
			name:      "upstream offline",
			path:      "/browse/upcoming",
			headers:   map[string]string{HeaderEndpoint: "upcoming", HeaderAttempts: "4"},
			status:    http.StatusServiceUnavailable,
			wantLevel: "ERROR",
			want:      map[string]any{"endpoint": "upcoming", "attempts": float64(4)},
		},
		{
			name:      "malformed counters",
			path:      "/data/search",
			headers:   map[string]string{HeaderAttempts: "many", HeaderUpstream: "-"},
			status:    http.StatusOK,
			wantLevel: "INFO",
			want:      map[string]any{"attempts": float64(0), "upstream_ms": float64(0)},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			h := Middleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tc.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.status)
				w.Write([]byte(`{"ok":true}`))
			}))

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))

			e := onlyEntry(t, &buf)
			if e["msg"] != "request" || e["method"] != "GET" || e["path"] != tc.path {
				t.Errorf("entry = %v", e)
			}
			if e["level"] != tc.wantLevel {
				t.Errorf("level = %v, want %s", e["level"], tc.wantLevel)
			}
			if e["status"] != float64(tc.status) {
				t.Errorf("status = %v, want %d", e["status"], tc.status)
			}
			if e["bytes"] != float64(len(`{"ok":true}`)) {
				t.Errorf("bytes = %v", e["bytes"])
			}
			if _, ok := e["total_ms"].(float64); !ok {
				t.Errorf("total_ms = %v", e["total_ms"])
			}
			for k, want := range tc.want {
				if e[k] != want {
					t.Errorf("%s = %v, want %v", k, e[k], want)
				}
			}
		})
	}
}

func TestMiddleware_ImplicitOK(t *testing.T) {
	var buf bytes.Buffer
	h := Middleware(slog.New(slog.NewJSONHandler(&buf, nil)), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if e := onlyEntry(t, &buf); e["status"] != float64(http.StatusOK) || e["bytes"] != float64(0) {
		t.Errorf("entry = %v", e)
	}
}

func TestMiddleware_ContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Middleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Warn("details section unavailable", "media_type", "movie", "id", 550)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/browse/movie/550", nil))

	es := entries(t, &buf)
	if len(es) != 2 {
		t.Fatalf("got %d log lines, want handler line + request line", len(es))
	}
	if es[0]["msg"] != "details section unavailable" || es[0]["id"] != float64(550) {
		t.Errorf("handler line = %v", es[0])
	}
	if es[1]["msg"] != "request" {
		t.Errorf("request line = %v", es[1])
	}
}

func TestFromContext_Fallbacks(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Error("FromContext without a logger should return slog.Default()")
	}
	if OrDefault(nil) != slog.Default() {
		t.Error("OrDefault(nil) should return slog.Default()")
	}
	l := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	if OrDefault(l) != l {
		t.Error("OrDefault should keep a non-nil logger")
	}
}

func TestByteCountingWriter_StreamsProxiedBody(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &ByteCountingWriter{ResponseWriter: rec}

	for _, chunk := range []string{`{"page":1,`, `"results":[]}`} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatal(err)
		}
		w.Flush()
	}

	if w.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", w.StatusCode)
	}
	if w.Bytes != int64(len(`{"page":1,"results":[]}`)) {
		t.Errorf("Bytes = %d", w.Bytes)
	}
	if !rec.Flushed {
		t.Error("Flush did not reach the underlying writer")
	}
}
