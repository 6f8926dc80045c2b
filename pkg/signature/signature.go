package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

const (
	Prefix     = "sha256="
	SecretSize = 32
)

// Canonicalize serializes v as compact JSON with object keys sorted
// lexicographically and HTML escaping disabled.
func Canonicalize(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var generic interface{}
	if err := decoder.Decode(&generic); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(generic); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Sign returns "sha256=<hex>" of the canonical JSON of payload.
func Sign(payload interface{}, secret string) (string, error) {
	body, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	return SignBytes(body, secret), nil
}

// SignBytes signs an already serialized body.
func SignBytes(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches payload. It never panics;
// any malformed input yields false.
func Verify(payload interface{}, signature string, secret string) bool {
	body, err := Canonicalize(payload)
	if err != nil {
		return false
	}
	return VerifyBytes(body, signature, secret)
}

// VerifyBytes compares the full signature string so that hex case
// variants of a valid digest are rejected too.
func VerifyBytes(body []byte, signature string, secret string) bool {
	expected := SignBytes(body, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// GenerateSecret returns SecretSize random bytes, hex encoded.
func GenerateSecret() (string, error) {
	b := make([]byte, SecretSize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

const maskPrefix = "whsec_****"

func Mask(secret string) string {
	if len(secret) <= 4 {
		return maskPrefix
	}
	return maskPrefix + secret[len(secret)-4:]
}

// IsMasked reports whether s looks like the output of Mask.
func IsMasked(s string) bool {
	return strings.HasPrefix(s, maskPrefix)
}
