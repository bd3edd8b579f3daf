package carrier

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	DefaultSecretHeader    = "X-Api-Key"
	DefaultSignatureHeader = "X-Carrier-Signature"
)

var ErrAuthenticationFailed = errors.New("authentication failed")

// Verifier authenticates a webhook before its body is trusted.
type Verifier interface {
	Verify(h http.Header, body []byte) error
}

// SharedSecret accepts a request whose header carries the configured secret verbatim.
type SharedSecret struct {
	Header string
	Secret string
}

func NewSharedSecret(secret string) SharedSecret {
	return SharedSecret{Header: DefaultSecretHeader, Secret: secret}
}

func (v SharedSecret) Verify(h http.Header, _ []byte) error {
	if v.Secret == "" {
		return fmt.Errorf("%w: webhook secret not configured", ErrAuthenticationFailed)
	}
	got := h.Get(headerOr(v.Header, DefaultSecretHeader))
	if got == "" {
		return fmt.Errorf("%w: missing secret header", ErrAuthenticationFailed)
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(v.Secret)) != 1 {
		return fmt.Errorf("%w: secret mismatch", ErrAuthenticationFailed)
	}
	return nil
}

// HMACSHA256 accepts a request signed over its raw body. The signature may be
// hex or base64 and may carry a "sha256=" prefix.
type HMACSHA256 struct {
	Header string
	Secret string
}

func NewHMACSHA256(secret string) HMACSHA256 {
	return HMACSHA256{Header: DefaultSignatureHeader, Secret: secret}
}

func (v HMACSHA256) Verify(h http.Header, body []byte) error {
	if v.Secret == "" {
		return fmt.Errorf("%w: webhook secret not configured", ErrAuthenticationFailed)
	}
	sig := strings.TrimSpace(h.Get(headerOr(v.Header, DefaultSignatureHeader)))
	sig = strings.TrimPrefix(sig, "sha256=")
	if sig == "" {
		return fmt.Errorf("%w: missing signature header", ErrAuthenticationFailed)
	}

	provided, ok := decodeSignature(sig)
	if !ok {
		return fmt.Errorf("%w: signature encoding", ErrAuthenticationFailed)
	}
	if !hmac.Equal(provided, v.sum(body)) {
		return fmt.Errorf("%w: signature mismatch", ErrAuthenticationFailed)
	}
	return nil
}

// Sign returns the hex signature a sender would attach to body.
func (v HMACSHA256) Sign(body []byte) string {
	return hex.EncodeToString(v.sum(body))
}

func (v HMACSHA256) sum(body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(v.Secret))
	mac.Write(body)
	return mac.Sum(nil)
}

func decodeSignature(sig string) ([]byte, bool) {
	if b, err := hex.DecodeString(sig); err == nil && len(b) == sha256.Size {
		return b, true
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(sig); err == nil && len(b) == sha256.Size {
			return b, true
		}
	}
	return nil, false
}

func headerOr(h, def string) string {
	if h == "" {
		return def
	}
	return h
}
