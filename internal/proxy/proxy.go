// Package proxy forwards media API requests upstream with the API
// credential attached, so browsers never hold it.
package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/cors"

	"github.com/air-gapped/moviego/internal/fetch"
	"github.com/air-gapped/moviego/internal/logging"
)

// ErrTraversal is returned for paths that try to climb out of the API root.
var ErrTraversal = errors.New("path traversal")

// Config describes the proxy.
type Config struct {
	Prefix      string // mount point, e.g. "/api/tmdb"
	Upstream    string // API root, e.g. "https://api.themoviedb.org/3"
	Token       string // bearer credential; requests fail with 500 when empty
	Timeout     time.Duration
	MaxBodySize int64
	Transport   http.RoundTripper // nil means the default transport
	Logger      *slog.Logger
}

// Handler serves GET <Prefix>/{path...}.
type Handler struct {
	prefix   string
	upstream string
	hasToken bool
	client   *fetch.Client
	logger   *slog.Logger
}

// New creates the proxy handler wrapped in permissive CORS.
func New(cfg Config) (http.Handler, error) {
	u, err := url.Parse(cfg.Upstream)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("proxy upstream %q: must be an absolute http(s) URL", cfg.Upstream)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 5 * 1024 * 1024
	}

	opts := []fetch.Option{}
	if cfg.Token != "" {
		opts = append(opts, fetch.WithBearerToken(cfg.Token))
	}
	if cfg.Transport != nil {
		opts = append(opts, fetch.WithTransport(cfg.Transport))
	}

	h := &Handler{
		prefix:   "/" + strings.Trim(cfg.Prefix, "/"),
		upstream: strings.TrimRight(cfg.Upstream, "/"),
		hasToken: cfg.Token != "",
		client:   fetch.NewClient(cfg.Timeout, cfg.MaxBodySize, opts...),
		logger:   logging.OrDefault(cfg.Logger),
	}

	c := cors.New(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type", "Authorization"},
		OptionsSuccessStatus: http.StatusNoContent,
	})
	return c.Handler(h), nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet:
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "Only GET requests are supported")
		return
	}

	if !h.hasToken {
		h.logger.Error("proxy credential not configured")
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "API configuration error")
		return
	}

	apiPath, err := ExtractPath(h.prefix, r.URL.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	target := h.upstream + apiPath
	w.Header().Set(logging.HeaderEndpoint, apiPath)
	result, err := h.client.Get(r.Context(), target, r.URL.Query())
	if err != nil {
		h.logger.Error("proxy fetch failed", "path", apiPath, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Internal Server Error",
			"message": "Failed to fetch data",
			"details": err.Error(),
		})
		return
	}

	if !result.OK() {
		h.logger.Warn("upstream error", "path", apiPath, "status", result.StatusCode)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(logging.HeaderUpstream, fmt.Sprint(result.FetchMs))
	w.WriteHeader(result.StatusCode)
	w.Write(result.Body)
}

// ExtractPath strips prefix from reqPath and returns the cleaned API path
// with a leading slash. Paths escaping the API root are rejected.
func ExtractPath(prefix, reqPath string) (string, error) {
	rest, ok := strings.CutPrefix(reqPath, prefix)
	if !ok || (rest != "" && rest[0] != '/') {
		return "", fmt.Errorf("path %q is outside %s", reqPath, prefix)
	}
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return "", fmt.Errorf("empty API path")
	}
	for _, seg := range strings.Split(rest, "/") {
		if seg == ".." {
			return "", ErrTraversal
		}
	}
	cleaned := path.Clean("/" + rest)
	if strings.Contains(cleaned, "..") {
		return "", ErrTraversal
	}
	return cleaned, nil
}

func writeError(w http.ResponseWriter, status int, title, message string) {
	writeJSON(w, status, map[string]string{"error": title, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
