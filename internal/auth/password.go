package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters. Changing any of these invalidates every stored hash.
const (
	pbkdf2Iterations = 100_000
	pbkdf2KeyLen     = 32 // 256-bit derived key
	saltLen          = 32
)

// encoding is used for both salts and hashes.
var encoding = base64.StdEncoding

// GenerateSalt returns 32 bytes from crypto/rand, base64 encoded.
func GenerateSalt() (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: generating salt: %v", ErrCrypto, err)
	}
	return encoding.EncodeToString(salt), nil
}

// HashPassword derives the PBKDF2-HMAC-SHA-256 key for password under the
// encoded salt and returns it base64 encoded. The result is deterministic
// for a given (password, salt) pair.
func HashPassword(password, salt string) (string, error) {
	saltBytes, err := encoding.DecodeString(salt)
	if err != nil {
		return "", fmt.Errorf("%w: decoding salt: %v", ErrDecode, err)
	}

	key := pbkdf2.Key([]byte(password), saltBytes, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return encoding.EncodeToString(key), nil
}

// VerifyPassword reports whether password hashes to expectedHash under salt.
// It never fails: empty or undecodable inputs simply return false.
func VerifyPassword(password, expectedHash, salt string) bool {
	if password == "" || expectedHash == "" || salt == "" {
		return false
	}

	expected, err := encoding.DecodeString(expectedHash)
	if err != nil {
		return false
	}

	candidate, err := HashPassword(password, salt)
	if err != nil {
		return false
	}
	got, err := encoding.DecodeString(candidate)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(expected, got) == 1
}

// NewCredentialSecret generates a fresh salt and the matching hash for password.
func NewCredentialSecret(password string) (hash, salt string, err error) {
	salt, err = GenerateSalt()
	if err != nil {
		return "", "", err
	}
	hash, err = HashPassword(password, salt)
	if err != nil {
		return "", "", err
	}
	return hash, salt, nil
}
