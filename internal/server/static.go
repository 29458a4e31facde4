package server

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// newStaticProxy forwards everything not handled by another route to the
// front-end origin through transport.
func newStaticProxy(origin *url.URL, transport http.RoundTripper, logger *slog.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(origin)
			pr.SetXForwarded()
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("static fetch failed", "path", r.URL.Path, "error", err)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusBadGateway)
			io.WriteString(w, "front end unavailable\n")
		},
	}
}

// AssetTransport serves requests from a file system as if it were the
// front-end origin. The directory root maps to index.html.
type AssetTransport struct {
	fsys    fs.FS
	modTime time.Time
}

// NewAssetTransport creates a transport over fsys.
func NewAssetTransport(fsys fs.FS) *AssetTransport {
	return &AssetTransport{fsys: fsys, modTime: time.Now().UTC()}
}

// RoundTrip implements http.RoundTripper.
func (t *AssetTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		req.Body.Close()
	}
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return plainResponse(req, http.StatusMethodNotAllowed, "method not allowed\n"), nil
	}

	name := strings.TrimPrefix(path.Clean("/"+req.URL.Path), "/")
	if name == "" {
		name = "index.html"
	}
	data, err := fs.ReadFile(t.fsys, name)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
		return plainResponse(req, http.StatusNotFound, "not found\n"), nil
	}
	if err != nil {
		return nil, err
	}

	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	header := http.Header{
		"Content-Type":   {ctype},
		"Content-Length": {strconv.Itoa(len(data))},
		"Last-Modified":  {t.modTime.Format(http.TimeFormat)},
		"Cache-Control":  {"no-cache"},
	}
	var body io.ReadCloser = http.NoBody
	if req.Method == http.MethodGet {
		body = io.NopCloser(bytes.NewReader(data))
	}
	return &http.Response{
		Status:        strconv.Itoa(http.StatusOK) + " " + http.StatusText(http.StatusOK),
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          body,
		ContentLength: int64(len(data)),
		Request:       req,
	}, nil
}

func plainResponse(req *http.Request, status int, msg string) *http.Response {
	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": {"text/plain; charset=utf-8"}},
		Body:          io.NopCloser(strings.NewReader(msg)),
		ContentLength: int64(len(msg)),
		Request:       req,
	}
}
