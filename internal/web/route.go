// Package web implements a request dispatcher: host- and path-pattern
// routing, request/response helpers (cookies, signed cookies, XSRF),
// static file serving, and output-transform middleware, generalized
// from a chi-based router into first-match-wins regex routing.
package web

import (
	"net/http"
	"regexp"
)

// Route matches requests whose Host matches HostPattern (nil matches any
// host), whose path matches PathPattern, and whose method is in Methods
// (empty means any method). The dispatcher evaluates routes in order and
// the first match wins.
type Route struct {
	Name        string
	HostPattern *regexp.Regexp
	PathPattern *regexp.Regexp
	Methods     map[string]bool
	Handler     http.Handler
}

func (rt Route) matches(r *http.Request) bool {
	if rt.HostPattern != nil && !rt.HostPattern.MatchString(r.Host) {
		return false
	}
	if rt.PathPattern != nil && !rt.PathPattern.MatchString(r.URL.Path) {
		return false
	}
	if len(rt.Methods) > 0 && !rt.Methods[r.Method] {
		return false
	}
	return true
}

// NewRoute builds a Route from a path regex and an optional host regex
// (empty string matches any host).
func NewRoute(name, hostPattern, pathPattern string, methods []string, handler http.Handler) (Route, error) {
	rt := Route{Name: name, Handler: handler}
	if hostPattern != "" {
		re, err := regexp.Compile(hostPattern)
		if err != nil {
			return Route{}, err
		}
		rt.HostPattern = re
	}
	re, err := regexp.Compile(pathPattern)
	if err != nil {
		return Route{}, err
	}
	rt.PathPattern = re
	if len(methods) > 0 {
		rt.Methods = make(map[string]bool, len(methods))
		for _, m := range methods {
			rt.Methods[m] = true
		}
	}
	return rt, nil
}
