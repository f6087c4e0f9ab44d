// Package gateway forwards backend routes through the shell's own port so
// the UI talks to a single origin regardless of backend lifecycle state.
package gateway

import (
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
)

// Gateway is a single-target reverse proxy gated on backend readiness. The
// target is fixed at construction.
type Gateway struct {
	prefix  string
	isReady func() bool
	proxy   *httputil.ReverseProxy
}

// New builds a gateway that strips prefix from incoming paths and forwards
// to the backend. isReady gates forwarding; the supervisor owns that answer.
func New(backendURL, prefix string, isReady func() bool) (*Gateway, error) {
	target, err := url.Parse(backendURL)
	if err != nil {
		return nil, err
	}
	g := &Gateway{prefix: prefix, isReady: isReady}
	g.proxy = httputil.NewSingleHostReverseProxy(target)
	g.proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("[Gateway] proxy error for %s: %v", r.URL.Path, err)
		http.Error(w, "backend unavailable", http.StatusBadGateway)
	}
	return g, nil
}

// ServeHTTP implements http.Handler. Requests are refused with 503 until the
// backend is ready, so the UI gets a clean "still starting" signal instead
// of connection errors.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if g.isReady != nil && !g.isReady() {
		http.Error(w, "backend is starting", http.StatusServiceUnavailable)
		return
	}

	if g.prefix != "" {
		trimmed := strings.TrimPrefix(r.URL.Path, g.prefix)
		if !strings.HasPrefix(trimmed, "/") {
			trimmed = "/" + trimmed
		}
		r.URL.Path = trimmed
	}

	g.proxy.ServeHTTP(w, r)
}
