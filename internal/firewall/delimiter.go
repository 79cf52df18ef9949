package firewall

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// delimiterTagPattern recognizes a well-formed GRAPHCTX_<nonce>_<hmac>
// tag shape for parsing, independent of whether the HMAC actually
// validates.
var delimiterTagPattern = regexp.MustCompile(`^GRAPHCTX_([A-Za-z0-9]+)_([A-Za-z0-9]+)$`)

const delimiterPrefix = "GRAPHCTX_"

// HMACDelimiter mints and validates per-message random tags used to
// fence untrusted context inside a prompt, grounded on
// context_manager.py's _HMAC_DELIMITER / HMACDelimiter usage. Each
// process holds its own random secret, so a delimiter minted by one
// instance never validates against another — an attacker who observes
// one instance's delimiter tags cannot forge a tag that a different
// instance will trust.
type HMACDelimiter struct {
	secret []byte
}

// NewHMACDelimiter generates a fresh process-wide secret.
func NewHMACDelimiter() *HMACDelimiter {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		// crypto/rand failing is effectively unrecoverable; degrade to a
		// constant rather than panic so a single failed read cannot
		// crash the process, at the cost of a predictable (but still
		// process-local) secret for the remainder of this instance's
		// lifetime.
		for i := range secret {
			secret[i] = byte(i)
		}
	}
	return &HMACDelimiter{secret: secret}
}

// NewHMACDelimiterWithSecret builds a delimiter minter from a caller
// supplied secret, for tests that need deterministic output or for a
// multi-process deployment sharing one secret out of band.
func NewHMACDelimiterWithSecret(secret []byte) *HMACDelimiter {
	return &HMACDelimiter{secret: secret}
}

func (d *HMACDelimiter) sign(nonce string) string {
	mac := hmac.New(sha256.New, d.secret)
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))[:16]
}

// Generate mints a fresh GRAPHCTX_<nonce>_<hmac> tag.
func (d *HMACDelimiter) Generate() string {
	nonceBytes := make([]byte, 9)
	_, _ = rand.Read(nonceBytes)
	nonce := hex.EncodeToString(nonceBytes)
	return fmt.Sprintf("%s%s_%s", delimiterPrefix, nonce, d.sign(nonce))
}

// Validate reports whether tag was minted by this instance: it must
// match the GRAPHCTX_<nonce>_<hmac> shape and its hmac component must
// equal HMAC(secret, nonce). Tags produced by another instance (a
// different secret) or forged tags fail closed.
func (d *HMACDelimiter) Validate(tag string) bool {
	if !strings.HasPrefix(tag, delimiterPrefix) {
		return false
	}
	m := delimiterTagPattern.FindStringSubmatch(tag)
	if m == nil {
		return false
	}
	nonce, mac := m[1], m[2]
	expected := d.sign(nonce)
	return hmac.Equal([]byte(mac), []byte(expected))
}

// ContextBlock wraps formatted prompt content in a freshly minted
// delimiter, mirroring context_manager.py's ContextBlock dataclass.
type ContextBlock struct {
	Content   string
	Delimiter string
}

// Wrap mints a fresh delimiter and wraps body in it.
func (d *HMACDelimiter) Wrap(body string) ContextBlock {
	delim := d.Generate()
	return ContextBlock{
		Content:   fmt.Sprintf("<%s>%s</%s>", delim, body, delim),
		Delimiter: delim,
	}
}

// ParseContextBlock extracts and HMAC-validates the delimiter wrapping
// raw, returning an error if the wrapper is malformed or the delimiter
// fails validation (e.g. it was minted by a different process).
func (d *HMACDelimiter) ParseContextBlock(raw string) (ContextBlock, error) {
	if !strings.HasPrefix(raw, "<"+delimiterPrefix) {
		return ContextBlock{}, fmt.Errorf("no valid context delimiter found")
	}
	closeIdx := strings.Index(raw, ">")
	if closeIdx < 0 {
		return ContextBlock{}, fmt.Errorf("no valid context delimiter found")
	}
	delim := raw[1:closeIdx]
	if !delimiterTagPattern.MatchString(delim) {
		return ContextBlock{}, fmt.Errorf("no valid context delimiter found")
	}
	closing := "</" + delim + ">"
	if !strings.HasSuffix(raw, closing) {
		return ContextBlock{}, fmt.Errorf("no valid context delimiter found")
	}
	body := raw[closeIdx+1 : len(raw)-len(closing)]
	if !d.Validate(delim) {
		return ContextBlock{}, fmt.Errorf("context block delimiter failed HMAC validation")
	}
	return ContextBlock{Content: body, Delimiter: delim}, nil
}
