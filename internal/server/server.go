package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/air-gapped/moviego/internal/config"
	"github.com/air-gapped/moviego/internal/logging"
	"github.com/air-gapped/moviego/internal/proxy"
	"github.com/air-gapped/moviego/internal/render"
	"github.com/air-gapped/moviego/internal/tmdb"
	moviegotemplate "github.com/air-gapped/moviego/internal/template"
)

// EmbeddedOrigin is the origin static requests are addressed to when no
// front-end origin is configured and the embedded shell serves them.
const EmbeddedOrigin = "http://shell.moviego.internal"

// Deps are the collaborators a Server is built from.
type Deps struct {
	API            *tmdb.Client
	Static         http.RoundTripper // transport for front-end assets, normally an offline.Container
	ProxyTransport http.RoundTripper // nil means the default transport
	Logger         *slog.Logger
}

// Server is the main moviego HTTP server.
type Server struct {
	cfg      *config.Config
	version  string
	api      *tmdb.Client
	tmpl     *moviegotemplate.Renderer
	overview *render.OverviewRenderer
	jsonView *render.JSONRenderer
	proxy    http.Handler
	static   http.Handler
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates a new moviego server with all dependencies.
func New(cfg *config.Config, version string, deps Deps) (*Server, error) {
	if deps.API == nil {
		return nil, errors.New("server: API client is required")
	}
	if deps.Static == nil {
		return nil, errors.New("server: static transport is required")
	}
	logger := logging.OrDefault(deps.Logger)

	tmpl, err := moviegotemplate.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create page renderer: %w", err)
	}

	proxyHandler, err := proxy.New(proxy.Config{
		Prefix:      cfg.ProxyPrefix,
		Upstream:    cfg.APIBaseURL,
		Token:       cfg.APIToken,
		Timeout:     cfg.FetchTimeout,
		MaxBodySize: cfg.MaxBodySize,
		Transport:   deps.ProxyTransport,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create proxy: %w", err)
	}

	origin, err := StaticOrigin(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		version:  version,
		api:      deps.API,
		tmpl:     tmpl,
		overview: render.NewOverviewRenderer(),
		jsonView: render.NewJSONRenderer(),
		proxy:    proxyHandler,
		static:   newStaticProxy(origin, deps.Static, logger),
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// StaticOrigin returns the configured front-end origin, or EmbeddedOrigin.
func StaticOrigin(cfg *config.Config) (*url.URL, error) {
	raw := cfg.StaticOrigin
	if raw == "" {
		raw = EmbeddedOrigin
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse static origin: %w", err)
	}
	return u, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.mux.HandleFunc("GET /data/{endpoint}", s.handleData)
	s.mux.HandleFunc("POST /data/invalidate", s.handleInvalidate)

	s.mux.HandleFunc("GET /browse", s.handleLanding)
	s.mux.HandleFunc("GET /browse/search", s.handleSearch)
	s.mux.HandleFunc("GET /browse/explore/{mediaType}", s.handleExplore)
	s.mux.HandleFunc("GET /browse/{list}", s.handleList)
	s.mux.HandleFunc("GET /browse/{mediaType}/{id}", s.handleDetails)

	s.mux.Handle(s.cfg.ProxyPrefix+"/", s.proxy)
	s.mux.Handle("/", s.static)
}

// Handler returns the server's HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return logging.Middleware(s.logger, s.mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// setResponseHeaders records query metadata on the response so clients and
// the request log can see it.
func setResponseHeaders(w http.ResponseWriter, env envelope) {
	h := w.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("X-Frame-Options", "DENY")

	if env.Endpoint != "" {
		h.Set(logging.HeaderEndpoint, env.Endpoint)
	}
	if env.Cache != "" {
		h.Set(logging.HeaderCache, string(env.Cache))
	}
	if env.Attempts > 0 {
		h.Set(logging.HeaderAttempts, strconv.Itoa(env.Attempts))
	}
	if env.FetchMs > 0 {
		h.Set(logging.HeaderUpstream, strconv.FormatInt(env.FetchMs, 10))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeHTML(w http.ResponseWriter, status int, page []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(page)
}
