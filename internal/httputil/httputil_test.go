package httputil_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/httputil"
)

func TestHeaders_CanonicalizationAndOrder(t *testing.T) {
	h := httputil.NewHeaders()
	h.Add("content-type", "text/plain")
	h.Add("X-FOO", "1")
	h.Add("x-foo", "2")

	assert.Equal(t, "text/plain", h.Get("Content-Type"))
	assert.Equal(t, "1, 2", h.Get("X-Foo"))
	assert.Equal(t, []string{"1", "2"}, h.GetList("x-foo"))
	assert.Equal(t, []string{"Content-Type", "X-Foo"}, h.Names())
}

func TestHeaders_SetReplaces(t *testing.T) {
	h := httputil.NewHeaders()
	h.Add("X-A", "1")
	h.Add("X-A", "2")
	h.Set("X-A", "3")
	assert.Equal(t, []string{"3"}, h.GetList("X-A"))
}

func TestHeaders_IterationOrderMatchesInsertion(t *testing.T) {
	h := httputil.NewHeaders()
	names := []string{"Host", "Accept", "Content-Length", "Cookie"}
	for _, n := range names {
		h.Add(n, "v")
	}
	var got []string
	h.Each(func(name, _ string) {
		if len(got) == 0 || got[len(got)-1] != name {
			got = append(got, name)
		}
	})
	assert.Equal(t, names, got)
}

func TestSignedValue_RoundTrip(t *testing.T) {
	signer := httputil.NewSingleSecretSigner([]byte("s"))
	wire, err := signer.CreateSignedValue("u", []byte("bob"), 1000)
	require.NoError(t, err)

	got, err := signer.DecodeSignedValue("u", wire, 1000, 86400)
	require.NoError(t, err)
	assert.Equal(t, []byte("bob"), got)
}

func TestSignedValue_TamperDetected(t *testing.T) {
	signer := httputil.NewSingleSecretSigner([]byte("s"))
	wire, err := signer.CreateSignedValue("u", []byte("bob"), 1000)
	require.NoError(t, err)

	tampered := []byte(wire)
	tampered[0] ^= 0x01
	_, err = signer.DecodeSignedValue("u", string(tampered), 1000, 86400)
	assert.ErrorIs(t, err, httputil.ErrInvalidSignature)
}

func TestSignedValue_ExpiresAfterMaxAge(t *testing.T) {
	signer := httputil.NewSingleSecretSigner([]byte("s"))
	wire, err := signer.CreateSignedValue("u", []byte("bob"), 1000)
	require.NoError(t, err)

	twoDaysLater := int64(1000 + 2*86400)
	_, err = signer.DecodeSignedValue("u", wire, twoDaysLater, 86400)
	assert.ErrorIs(t, err, httputil.ErrInvalidSignature)
}

func TestSignedValue_KeyRotation(t *testing.T) {
	signer := &httputil.Signer{Secrets: httputil.Secrets{1: []byte("old"), 2: []byte("new")}}
	wireV2, err := signer.CreateSignedValue("u", []byte("bob"), 1000)
	require.NoError(t, err)

	// Old value signed under version 1 still decodes.
	old := &httputil.Signer{Secrets: httputil.Secrets{1: []byte("old")}}
	wireV1, err := old.CreateSignedValue("u", []byte("bob"), 1000)
	require.NoError(t, err)

	got1, err := signer.DecodeSignedValue("u", wireV1, 1000, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("bob"), got1)

	got2, err := signer.DecodeSignedValue("u", wireV2, 1000, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("bob"), got2)

	signer.MinVersion = 2
	_, err = signer.DecodeSignedValue("u", wireV1, 1000, 0)
	assert.ErrorIs(t, err, httputil.ErrInvalidSignature)
}

func TestXSRF_MaskUnmaskRoundTrip(t *testing.T) {
	token, err := httputil.NewXSRFToken()
	require.NoError(t, err)

	masked, err := httputil.MaskXSRFToken(token)
	require.NoError(t, err)

	unmasked, err := httputil.UnmaskXSRFToken(masked)
	require.NoError(t, err)
	assert.Equal(t, token, unmasked)
}

func TestXSRF_DifferentMaskEachCall(t *testing.T) {
	token, _ := httputil.NewXSRFToken()
	m1, _ := httputil.MaskXSRFToken(token)
	m2, _ := httputil.MaskXSRFToken(token)
	assert.NotEqual(t, m1, m2)
	assert.True(t, httputil.CheckXSRFToken(m1, token))
	assert.True(t, httputil.CheckXSRFToken(m2, token))
}

func TestXSRF_CheckRejectsWrongToken(t *testing.T) {
	token, _ := httputil.NewXSRFToken()
	other, _ := httputil.NewXSRFToken()
	masked, _ := httputil.MaskXSRFToken(other)
	assert.False(t, httputil.CheckXSRFToken(masked, token))
}

func TestCookie_String(t *testing.T) {
	c := httputil.Cookie{Name: "sid", Value: "abc", HTTPOnly: true, Secure: true, SameSite: httputil.SameSiteLax}
	s := c.String()
	assert.Contains(t, s, "sid=abc")
	assert.Contains(t, s, "Path=/")
	assert.Contains(t, s, "HttpOnly")
	assert.Contains(t, s, "Secure")
	assert.Contains(t, s, "SameSite=Lax")
}

func TestParseCookieHeader(t *testing.T) {
	got := httputil.ParseCookieHeader("a=1; b=2;  c = 3")
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": "3"}, got)
}

func TestClearCookie_HasPastExpiry(t *testing.T) {
	c := httputil.ClearCookie("sid", "", "/", false, httputil.SameSiteDefault)
	assert.Equal(t, "", c.Value)
	assert.True(t, c.Expires.Before(time.Now()))
}
