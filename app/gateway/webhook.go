package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrWebhookSecretMissing = errors.New("pix webhook secret is not configured")
	ErrSignatureMissing     = errors.New("webhook signature header is missing")
	ErrSignatureInvalid     = errors.New("webhook signature is invalid")
)

var defaultSignatureHeaders = []string{"X-Signature", "X-Webhook-Signature", "X-Hub-Signature-256"}

// Verifier authenticates inbound gateway callbacks. The accepted signature
// header names are an explicit ordered list; the first present header wins.
type Verifier struct {
	secret  string
	headers []string
}

func NewVerifier(secret string, signatureHeaders []string) *Verifier {
	headers := make([]string, 0, len(signatureHeaders))
	for _, name := range signatureHeaders {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			headers = append(headers, trimmed)
		}
	}
	if len(headers) == 0 {
		headers = defaultSignatureHeaders
	}
	return &Verifier{
		secret:  strings.TrimSpace(secret),
		headers: headers,
	}
}

// Configured reports whether a shared secret is present. Callers should fail
// fast at startup when it is not.
func (v *Verifier) Configured() bool {
	return v.secret != ""
}

// Signature returns the value of the first accepted signature header
// present, or "".
func (v *Verifier) Signature(header http.Header) string {
	for _, name := range v.headers {
		if value := strings.TrimSpace(header.Get(name)); value != "" {
			return value
		}
	}
	return ""
}

// Verify checks the HMAC-SHA256 signature of rawBody against the first
// signature header present. rawBody must be the exact bytes the sender
// signed; re-serializing parsed JSON breaks verification.
func (v *Verifier) Verify(rawBody []byte, header http.Header) error {
	if v.secret == "" {
		return ErrWebhookSecretMissing
	}

	signature := v.Signature(header)
	if signature == "" {
		return ErrSignatureMissing
	}

	// Some senders prefix the hex digest with the algorithm name.
	signature = strings.TrimPrefix(signature, "sha256=")

	candidate, err := hex.DecodeString(signature)
	if err != nil {
		return ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	_, _ = mac.Write(rawBody)
	expected := mac.Sum(nil)

	if !hmac.Equal(candidate, expected) {
		return ErrSignatureInvalid
	}

	return nil
}

// Sign computes the hex HMAC-SHA256 digest of body with the verifier's
// secret. Used by tests and the simulate tooling to produce valid callbacks.
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(v.secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
