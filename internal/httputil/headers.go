// Package httputil implements the wire-level data types shared by the
// HTTP/1 codec and the request dispatcher: canonical, insertion-ordered
// headers, cookies, HMAC-signed values, and XSRF tokens.
package httputil

import (
	"strings"
)

// Headers is an insertion-ordered, case-insensitively-keyed multimap from
// canonical header name to one or more values.
type Headers struct {
	order  []string          // canonical names, insertion order, deduped
	values map[string][]string // canonical name -> values, in occurrence order
}

// NewHeaders returns an empty Headers.
func NewHeaders() *Headers {
	return &Headers{values: make(map[string][]string)}
}

// CanonicalHeaderName renders name as "Http-Header-Case": each hyphen
// separated word capitalized.
func CanonicalHeaderName(name string) string {
	parts := strings.Split(name, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, "-")
}

// Add appends value as a new occurrence of name, preserving any existing
// occurrences so GetList returns each one.
func (h *Headers) Add(name, value string) {
	canon := CanonicalHeaderName(name)
	if _, ok := h.values[canon]; !ok {
		h.order = append(h.order, canon)
	}
	h.values[canon] = append(h.values[canon], value)
}

// Set replaces all existing occurrences of name with a single value.
func (h *Headers) Set(name, value string) {
	canon := CanonicalHeaderName(name)
	if _, ok := h.values[canon]; !ok {
		h.order = append(h.order, canon)
	}
	h.values[canon] = []string{value}
}

// Get returns all values of name joined by ", ", or "" if absent.
func (h *Headers) Get(name string) string {
	vs := h.values[CanonicalHeaderName(name)]
	if len(vs) == 0 {
		return ""
	}
	return strings.Join(vs, ", ")
}

// GetList returns every occurrence of name, in the order they were added.
func (h *Headers) GetList(name string) []string {
	return append([]string(nil), h.values[CanonicalHeaderName(name)]...)
}

// Has reports whether name has at least one value.
func (h *Headers) Has(name string) bool {
	_, ok := h.values[CanonicalHeaderName(name)]
	return ok
}

// Del removes all occurrences of name.
func (h *Headers) Del(name string) {
	canon := CanonicalHeaderName(name)
	if _, ok := h.values[canon]; !ok {
		return
	}
	delete(h.values, canon)
	for i, n := range h.order {
		if n == canon {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Names returns header names in insertion order.
func (h *Headers) Names() []string {
	return append([]string(nil), h.order...)
}

// Each calls fn once per (name, value) occurrence, in insertion order.
func (h *Headers) Each(fn func(name, value string)) {
	for _, name := range h.order {
		for _, v := range h.values[name] {
			fn(name, v)
		}
	}
}

// Clone returns a deep copy.
func (h *Headers) Clone() *Headers {
	c := NewHeaders()
	h.Each(func(name, value string) { c.Add(name, value) })
	return c
}
