package httputil

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// XSRF token wire format:
//
//	cookie (set by web.XSRFToken): hex(token16), with no version or
//	timestamp fields
//	form/header token: hex(mask4) | hex(mask ⊕ token)
//
// The per-response mask defeats BREACH-style compression-oracle attacks by
// making the emitted token differ on every response even though the
// underlying stored token is stable for the session.

// ErrInvalidXSRFToken is returned when a supplied masked token does not
// unmask to the stored cookie token.
var ErrInvalidXSRFToken = errors.New("httputil: invalid xsrf token")

// NewXSRFToken returns 16 random bytes suitable as a session's XSRF token.
func NewXSRFToken() ([]byte, error) {
	token := make([]byte, 16)
	if _, err := rand.Read(token); err != nil {
		return nil, err
	}
	return token, nil
}

// MaskXSRFToken returns the per-response masked form
// hex(mask) | hex(mask ⊕ token), generating a fresh random 4-byte mask
// (repeated across the token) each call so the emitted value changes on
// every response even though token is stable.
func MaskXSRFToken(token []byte) (string, error) {
	mask := make([]byte, 4)
	if _, err := rand.Read(mask); err != nil {
		return "", err
	}
	masked := xorBytes(mask, token)
	return fmt.Sprintf("%s|%s", hex.EncodeToString(mask), hex.EncodeToString(masked)), nil
}

// UnmaskXSRFToken reverses MaskXSRFToken, returning the underlying token.
func UnmaskXSRFToken(masked string) ([]byte, error) {
	maskHex, tokenHex, ok := strings.Cut(masked, "|")
	if !ok {
		return nil, ErrInvalidXSRFToken
	}
	mask, err := hex.DecodeString(maskHex)
	if err != nil {
		return nil, ErrInvalidXSRFToken
	}
	maskedToken, err := hex.DecodeString(tokenHex)
	if err != nil {
		return nil, ErrInvalidXSRFToken
	}
	if len(mask) != 4 {
		return nil, ErrInvalidXSRFToken
	}
	return xorBytes(mask, maskedToken), nil
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = a[i%len(a)] ^ b[i]
	}
	return out
}

// CheckXSRFToken reports whether submitted (the masked form from a form
// field or X-XSRFToken/X-CSRFToken header) unmasks to storedToken, compared
// in constant time.
func CheckXSRFToken(submitted string, storedToken []byte) bool {
	unmasked, err := UnmaskXSRFToken(submitted)
	if err != nil {
		return false
	}
	if len(unmasked) != len(storedToken) {
		return false
	}
	return subtle.ConstantTimeCompare(unmasked, storedToken) == 1
}
