package web

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"loom/internal/httputil"
)

// SendError writes a JSON error body and finishes the response, clearing
// any partial state written before the error occurred.
func SendError(rp *Response, code int, message string) {
	rp.Clear()
	rp.SetStatus(code)
	rp.Header().Set("Content-Type", "application/json; charset=utf-8")
	body, _ := json.Marshal(map[string]string{"error": message})
	rp.Write(body)
	rp.Finish()
}

// Redirect finishes the response with a 301 or 302 Location redirect.
func Redirect(rp *Response, url string, permanent bool) {
	rp.Clear()
	code := http.StatusFound
	if permanent {
		code = http.StatusMovedPermanently
	}
	rp.SetStatus(code)
	rp.Header().Set("Location", url)
	rp.Finish()
}

// SetCookie stages a Set-Cookie header.
func SetCookie(rp *Response, c httputil.Cookie) {
	rp.Header().Add("Set-Cookie", c.String())
}

// ClearCookie stages a Set-Cookie that expires name immediately,
// mirroring Tornado's clear_cookie.
func ClearCookie(rp *Response, name, path string) {
	SetCookie(rp, httputil.ClearCookie(name, "", path, false, httputil.SameSiteDefault))
}

// SetSecureCookie signs value with signer and stages it as a cookie.
func SetSecureCookie(rp *Response, signer *httputil.Signer, name string, value []byte) error {
	wire, err := signer.CreateSignedValue(name, value, time.Now().Unix())
	if err != nil {
		return err
	}
	SetCookie(rp, httputil.Cookie{Name: name, Value: wire, Path: "/", HTTPOnly: true, SameSite: httputil.SameSiteLax})
	return nil
}

// GetSecureCookie verifies and decodes a cookie set by SetSecureCookie,
// rejecting it once older than maxAge.
func GetSecureCookie(r *http.Request, signer *httputil.Signer, name string, maxAge time.Duration) ([]byte, error) {
	c, err := r.Cookie(name)
	if err != nil {
		return nil, httputil.ErrInvalidSignature
	}
	return signer.DecodeSignedValue(name, c.Value, time.Now().Unix(), int64(maxAge.Seconds()))
}

const xsrfCookieName = "_xsrf"

// XSRFToken returns the masked token to embed in a form or
// X-XSRFToken/X-CSRFToken header for this request, minting and staging a
// fresh session token cookie if one isn't already present.
func XSRFToken(rp *Response, r *http.Request) (string, error) {
	var token []byte
	if c, err := r.Cookie(xsrfCookieName); err == nil {
		if t, derr := httputilDecodeHex(c.Value); derr == nil {
			token = t
		}
	}
	if token == nil {
		t, err := httputil.NewXSRFToken()
		if err != nil {
			return "", err
		}
		token = t
		SetCookie(rp, httputil.Cookie{Name: xsrfCookieName, Value: httputilEncodeHex(token), Path: "/", HTTPOnly: true, SameSite: httputil.SameSiteStrict})
	}
	return httputil.MaskXSRFToken(token)
}

// CheckXSRFCookie verifies the request's X-XSRFToken/X-CSRFToken header
// (or "_xsrf" form field) against the session's stored token, required on
// every state-changing request once XSRF protection is enabled, mirroring
// Tornado's check_xsrf_cookie.
func CheckXSRFCookie(r *http.Request) error {
	c, err := r.Cookie(xsrfCookieName)
	if err != nil {
		return httputil.ErrInvalidXSRFToken
	}
	token, err := httputilDecodeHex(c.Value)
	if err != nil {
		return httputil.ErrInvalidXSRFToken
	}
	submitted := r.Header.Get("X-XSRFToken")
	if submitted == "" {
		submitted = r.Header.Get("X-CSRFToken")
	}
	if submitted == "" {
		submitted = r.FormValue("_xsrf")
	}
	if !httputil.CheckXSRFToken(submitted, token) {
		return httputil.ErrInvalidXSRFToken
	}
	return nil
}

func httputilEncodeHex(b []byte) string { return hex.EncodeToString(b) }

func httputilDecodeHex(s string) ([]byte, error) { return hex.DecodeString(s) }
