// Package crypto wraps the authenticated encryption, password hashing and
// random token generation used by the security services. Primitives are
// delegated to the standard library (AES-GCM) and golang.org/x/crypto
// (argon2id); this package only fixes formats and parameters.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (tuned for server-side hashing).
const (
	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 2
	argonKeyLen  uint32 = 32
	saltLen             = 16
)

// SessionIDPattern matches the fixed secure-random session id format:
// 64 lowercase hex characters.
var SessionIDPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Gateway provides authenticated symmetric encryption, password hashing
// and random token generation.
type Gateway struct {
	aead cipher.AEAD
}

// NewGateway derives a 256-bit key from secret and prepares an AES-GCM AEAD.
func NewGateway(secret string) (*Gateway, error) {
	if secret == "" {
		return nil, fmt.Errorf("encryption secret must not be empty")
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return &Gateway{aead: aead}, nil
}

// Encrypt seals plaintext with a random nonce and returns
// base64(nonce || ciphertext).
func (g *Gateway) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, g.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := g.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Tampered or truncated input fails authentication.
func (g *Gateway) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < g.aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := raw[:g.aead.NonceSize()], raw[g.aead.NonceSize():]
	plaintext, err := g.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

// HashPassword returns "hex(salt):hex(argon2id)" with a per-call random salt.
func (g *Gateway) HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(hash), nil
}

// VerifyPassword checks password against an encoded salt:hash value in
// constant time.
func (g *Gateway) VerifyPassword(password, encoded string) bool {
	parts := strings.SplitN(encoded, ":", 2)
	if len(parts) != 2 {
		return false
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(got, expected) == 1
}

// NewToken returns n cryptographically random bytes hex encoded.
func (g *Gateway) NewToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewSessionID returns a fresh session identifier: 64 lowercase hex chars.
func (g *Gateway) NewSessionID() (string, error) {
	return g.NewToken(32)
}

// ValidSessionID reports whether id matches the session id format.
func ValidSessionID(id string) bool {
	return SessionIDPattern.MatchString(id)
}
