package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"mercator-hq/relay/pkg/config"
)

// CORS header names.
const (
	HeaderAllowOrigin  = "Access-Control-Allow-Origin"
	HeaderAllowMethods = "Access-Control-Allow-Methods"
	HeaderAllowHeaders = "Access-Control-Allow-Headers"
	HeaderMaxAge       = "Access-Control-Max-Age"
)

// CORS writes a fixed set of cross-origin headers on every response.
//
// When the allowed origins contain "*" the origin header is always "*".
// Otherwise the request Origin is echoed back only when it is listed,
// together with "Vary: Origin".
type CORS struct {
	wildcard bool
	origins  []string
	methods  string
	headers  string
	maxAge   string
}

// NewCORS builds the header set from configuration. Empty lists fall back
// to the defaults.
func NewCORS(cfg config.CORSConfig) *CORS {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = config.DefaultCORSAllowedOrigins
	}
	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = config.DefaultCORSAllowedMethods
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = config.DefaultCORSAllowedHeaders
	}

	return &CORS{
		wildcard: slices.Contains(origins, "*"),
		origins:  slices.Clone(origins),
		methods:  strings.Join(methods, ", "),
		headers:  strings.Join(headers, ", "),
		maxAge:   strconv.Itoa(cfg.MaxAge),
	}
}

// DefaultCORS returns the header set used when nothing is configured:
// any origin, GET/POST/OPTIONS, Content-Type and Authorization, one day.
func DefaultCORS() *CORS {
	return NewCORS(config.CORSConfig{MaxAge: config.DefaultCORSMaxAge})
}

// SetHeaders writes the CORS headers for r into h.
func (c *CORS) SetHeaders(h http.Header, r *http.Request) {
	switch {
	case c.wildcard:
		h.Set(HeaderAllowOrigin, "*")
	case r != nil && slices.Contains(c.origins, r.Header.Get("Origin")):
		h.Set(HeaderAllowOrigin, r.Header.Get("Origin"))
		h.Add("Vary", "Origin")
	}
	h.Set(HeaderAllowMethods, c.methods)
	h.Set(HeaderAllowHeaders, c.headers)
	h.Set(HeaderMaxAge, c.maxAge)
}

// Middleware applies the header set to every response.
//
//	handler = cors.Middleware(handler)
func (c *CORS) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.SetHeaders(w.Header(), r)
		next.ServeHTTP(w, r)
	})
}

// Preflight answers OPTIONS requests with 200 and an empty body and
// passes everything else to next. It is used in front of routes that do
// not handle preflight themselves.
func (c *CORS) Preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		c.SetHeaders(w.Header(), r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	})
}
