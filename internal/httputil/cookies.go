package httputil

import (
	"fmt"
	"strings"
	"time"
)

// SameSite enumerates the Set-Cookie SameSite attribute values.
type SameSite string

const (
	SameSiteDefault SameSite = ""
	SameSiteLax     SameSite = "Lax"
	SameSiteStrict  SameSite = "Strict"
	SameSiteNone    SameSite = "None"
)

// Cookie models the standard HTTP cookie attribute bag.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time // zero means session cookie
	MaxAge   *int      // nil means unset
	Secure   bool
	HTTPOnly bool
	SameSite SameSite
}

// String renders the Set-Cookie header value.
func (c Cookie) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s", c.Name, c.Value)
	if c.Path == "" {
		b.WriteString("; Path=/")
	} else {
		fmt.Fprintf(&b, "; Path=%s", c.Path)
	}
	if c.Domain != "" {
		fmt.Fprintf(&b, "; Domain=%s", c.Domain)
	}
	if !c.Expires.IsZero() {
		fmt.Fprintf(&b, "; Expires=%s", c.Expires.UTC().Format(http1Time))
	}
	if c.MaxAge != nil {
		fmt.Fprintf(&b, "; Max-Age=%d", *c.MaxAge)
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	if c.SameSite != SameSiteDefault {
		fmt.Fprintf(&b, "; SameSite=%s", c.SameSite)
	}
	return b.String()
}

const http1Time = "Mon, 02 Jan 2006 15:04:05 GMT"

// ClearCookie returns the Set-Cookie value that expires an existing cookie
// named name; domain/path/secure/sameSite must match the original cookie's
// attributes for browsers to actually clear it.
func ClearCookie(name, domain, path string, secure bool, sameSite SameSite) Cookie {
	zero := 0
	return Cookie{
		Name:     name,
		Value:    "",
		Domain:   domain,
		Path:     path,
		Expires:  time.Unix(0, 0),
		MaxAge:   &zero,
		Secure:   secure,
		SameSite: sameSite,
	}
}

// ParseCookieHeader splits a request's "Cookie: a=1; b=2" header into a
// name->value map. Later occurrences of the same name win, matching how
// browsers concatenate same-named cookies from narrowest to widest path.
func ParseCookieHeader(header string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return out
}
