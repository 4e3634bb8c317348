package utils

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// NewHexCode returns a hex-encoded random code of n bytes (2n characters).
// Codes are the sole authorization at the door, so they always come from
// crypto/rand.
func NewHexCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// NewURLSafeCode returns a short URL-safe random code of n bytes, suitable
// for embedding directly in scan URLs.
func NewURLSafeCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
