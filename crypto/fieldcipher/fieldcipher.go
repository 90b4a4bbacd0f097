// Package fieldcipher provides authenticated symmetric encryption of short
// string fields and deterministic lookup tokens for exact-match queries over
// encrypted columns.
package fieldcipher

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/avdeenkov/uservault/errs"
)

// KeyLen is the required master key length in bytes.
const KeyLen = 32

// HKDF info labels for the two subkeys derived from the master key.
var (
	infoEncrypt = []byte("uservault/field-encrypt/v1")
	infoLookup  = []byte("uservault/lookup-token/v1")
)

// Cipher encrypts and decrypts field values under a process-wide key and
// produces deterministic lookup tokens. The key is injected once at
// construction and never rotated.
type Cipher struct {
	aead      cipher.AEAD
	lookupKey []byte
}

// ParseKey decodes a URL-safe base64 master key and checks its length.
func ParseKey(s string) ([]byte, error) {
	key, err := base64.URLEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("key is not url-safe base64: %w", err)
	}
	if len(key) != KeyLen {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeyLen, len(key))
	}
	return key, nil
}

// New derives the encryption and lookup subkeys from the master key via
// HKDF-SHA256 and prepares the AEAD.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("%w: master key must be %d bytes", errs.ErrEncrypt, KeyLen)
	}
	encKey, err := deriveKey(key, infoEncrypt)
	if err != nil {
		return nil, fmt.Errorf("%w: derive encryption key: %v", errs.ErrEncrypt, err)
	}
	lookupKey, err := deriveKey(key, infoLookup)
	if err != nil {
		return nil, fmt.Errorf("%w: derive lookup key: %v", errs.ErrEncrypt, err)
	}
	aead, err := chacha20poly1305.NewX(encKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrEncrypt, err)
	}
	return &Cipher{aead: aead, lookupKey: lookupKey}, nil
}

func deriveKey(master, info []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, master, nil, info)
	key := make([]byte, KeyLen)
	_, err := r.Read(key)
	return key, err
}

// Encrypt seals plaintext with a random nonce. Output layout: nonce||ciphertext.
// Two encryptions of the same value differ.
func (c *Cipher) Encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", errs.ErrEncrypt, err)
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+chacha20poly1305.Overhead)
	out = append(out, nonce...)
	out = append(out, c.aead.Seal(nil, nonce, []byte(plaintext), nil)...)
	return out, nil
}

// Decrypt opens nonce||ciphertext. It fails with ErrDecrypt when the input is
// malformed, was sealed under a different key, or was tampered with; callers
// must treat that as "plaintext unrecoverable", not as an empty value.
func (c *Cipher) Decrypt(ciphertext []byte) (string, error) {
	if len(ciphertext) < chacha20poly1305.NonceSizeX {
		return "", fmt.Errorf("%w: ciphertext too short", errs.ErrDecrypt)
	}
	nonce := ciphertext[:chacha20poly1305.NonceSizeX]
	pt, err := c.aead.Open(nil, nonce, ciphertext[chacha20poly1305.NonceSizeX:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrDecrypt, err)
	}
	return string(pt), nil
}

// LookupToken returns the deterministic, non-reversible token for value:
// HMAC-SHA256 of Normalize(value) under the lookup subkey. Equal normalized
// values always map to the same token, which makes encrypted columns
// exact-match queryable without decrypting rows.
func (c *Cipher) LookupToken(value string) []byte {
	mac := hmac.New(sha256.New, c.lookupKey)
	mac.Write([]byte(Normalize(value)))
	return mac.Sum(nil)
}

// Normalize canonicalizes an identifying value for comparison: whitespace
// trimmed, lowercased. Email matching is case-insensitive.
func Normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
