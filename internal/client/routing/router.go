// Package routing is the client's local HTTP front for the web app. It sits
// between the browser and the web origin, keeping pages and assets usable
// offline: page navigations go to the network first and fall back to the
// cache, other requests are answered from the cache first. The sync API is
// never cached.
package routing

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dmitrijs2005/whattodo/internal/common"
	"github.com/dmitrijs2005/whattodo/internal/logging"
)

//go:embed offline.html
var offlinePage []byte

const (
	// CacheName is the current response cache version. Activate drops
	// entries stored under any other name.
	CacheName          = "whattodo-v1"
	DefaultOfflinePath = "/offline"
	// SourceHeader tells where a response came from: network, cache or offline.
	SourceHeader = "X-Whattodo-Source"

	defaultMaxBody = 16 << 20
)

// DefaultPrecacheAssets are the app shell pages stored on start.
var DefaultPrecacheAssets = []string{"/", "/app/lists", "/app/inbox", "/app/activity", "/marketplace", DefaultOfflinePath}

// DefaultBypass are the paths that are never cached.
var DefaultBypass = []string{"/api/**"}

var hopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Proxy-Connection", "Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

type Options struct {
	Origin         string
	Bypass         []string
	PrecacheAssets []string
	OfflinePath    string
	Client         *http.Client
	// MaxBodyBytes caps what is stored; larger responses are served but not cached.
	MaxBodyBytes int64
}

type Router struct {
	origin      *url.URL
	cache       *Cache
	monitor     *Monitor
	logger      logging.Logger
	client      *http.Client
	bypass      []string
	assets      []string
	offlinePath string
	maxBody     int64
	proxy       *httputil.ReverseProxy
}

func NewRouter(cache *Cache, monitor *Monitor, logger logging.Logger, opts Options) (*Router, error) {
	origin, err := url.Parse(opts.Origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("origin %q must be an absolute URL", opts.Origin)
	}

	bypass := opts.Bypass
	if bypass == nil {
		bypass = DefaultBypass
	}
	for _, p := range bypass {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid bypass pattern %q", p)
		}
	}

	rt := &Router{
		origin:      origin,
		cache:       cache,
		monitor:     monitor,
		logger:      logger.With("module", "routing"),
		client:      opts.Client,
		bypass:      bypass,
		assets:      opts.PrecacheAssets,
		offlinePath: opts.OfflinePath,
		maxBody:     opts.MaxBodyBytes,
	}
	if rt.client == nil {
		rt.client = &http.Client{Timeout: 30 * time.Second}
	}
	if rt.assets == nil {
		rt.assets = DefaultPrecacheAssets
	}
	if rt.offlinePath == "" {
		rt.offlinePath = DefaultOfflinePath
	}
	if rt.maxBody <= 0 {
		rt.maxBody = defaultMaxBody
	}

	rt.proxy = httputil.NewSingleHostReverseProxy(origin)
	rt.proxy.Transport = rt.client.Transport
	rt.proxy.ModifyResponse = func(*http.Response) error {
		rt.report(true)
		return nil
	}
	rt.proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		if r.Context().Err() == nil {
			rt.report(false)
		}
		rt.logger.Warn(r.Context(), "origin unreachable", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "origin unreachable", http.StatusBadGateway)
	}
	return rt, nil
}

func (rt *Router) report(ok bool) {
	if rt.monitor != nil {
		rt.monitor.Report(ok)
	}
}

// Bypassed reports whether path is excluded from caching.
func (rt *Router) Bypassed(path string) bool {
	for _, p := range rt.bypass {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

func isNavigation(r *http.Request) bool {
	if mode := r.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return mode == "navigate"
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func isSameOrigin(r *http.Request) bool {
	switch r.Header.Get("Sec-Fetch-Site") {
	case "", "same-origin", "none":
		return true
	}
	return false
}

func cacheKey(r *http.Request) string {
	return r.URL.RequestURI()
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || !isSameOrigin(r) || rt.Bypassed(r.URL.Path) {
		rt.proxy.ServeHTTP(w, r)
		return
	}
	if isNavigation(r) {
		rt.networkFirst(w, r)
		return
	}
	rt.cacheFirst(w, r)
}

func (rt *Router) networkFirst(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := cacheKey(r)

	resp, cacheable, err := rt.fetch(ctx, key, r.Header)
	if err == nil {
		if cacheable {
			rt.store(ctx, key, resp)
		}
		writeResponse(w, resp, "network")
		return
	}

	if cached := rt.lookup(ctx, key); cached != nil {
		writeResponse(w, cached, "cache")
		return
	}
	if cached := rt.lookup(ctx, rt.offlinePath); cached != nil {
		writeResponse(w, cached, "offline")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(SourceHeader, "offline")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write(offlinePage)
}

func (rt *Router) cacheFirst(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := cacheKey(r)

	if cached := rt.lookup(ctx, key); cached != nil {
		writeResponse(w, cached, "cache")
		return
	}

	resp, cacheable, err := rt.fetch(ctx, key, r.Header)
	if err != nil {
		http.Error(w, "offline", http.StatusServiceUnavailable)
		return
	}
	if cacheable && resp.Status == http.StatusOK {
		rt.store(ctx, key, resp)
	}
	writeResponse(w, resp, "network")
}

func (rt *Router) lookup(ctx context.Context, key string) *CachedResponse {
	cached, err := rt.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			rt.logger.Warn(ctx, "cache read failed", "key", key, "error", err)
		}
		return nil
	}
	return cached
}

func (rt *Router) store(ctx context.Context, key string, resp *CachedResponse) {
	if err := rt.cache.Put(ctx, key, resp); err != nil {
		rt.logger.Warn(ctx, "cache write failed", "key", key, "error", err)
	}
}

// fetch GETs requestURI from the origin. cacheable is false when the body
// exceeded the size cap.
func (rt *Router) fetch(ctx context.Context, requestURI string, header http.Header) (*CachedResponse, bool, error) {
	ref, err := url.Parse(requestURI)
	if err != nil {
		return nil, false, err
	}
	target := rt.origin.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, false, err
	}
	if header != nil {
		req.Header = header.Clone()
		for _, h := range hopHeaders {
			req.Header.Del(h)
		}
		req.Header.Del("Accept-Encoding")
	}

	resp, err := rt.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			rt.report(false)
		}
		return nil, false, err
	}
	defer resp.Body.Close()
	rt.report(true)

	body, err := io.ReadAll(io.LimitReader(resp.Body, rt.maxBody+1))
	if err != nil {
		return nil, false, err
	}
	cacheable := int64(len(body)) <= rt.maxBody
	if !cacheable {
		rest, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, err
		}
		body = append(body, rest...)
	}

	h := resp.Header.Clone()
	for _, name := range hopHeaders {
		h.Del(name)
	}
	h.Del("Content-Length")
	if resp.Uncompressed {
		h.Del("Content-Encoding")
	}

	return &CachedResponse{Status: resp.StatusCode, Header: h, Body: body, StoredAt: time.Now()}, cacheable, nil
}

func writeResponse(w http.ResponseWriter, r *CachedResponse, source string) {
	for k, vs := range r.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set(SourceHeader, source)
	w.WriteHeader(r.Status)
	_, _ = w.Write(r.Body)
}
