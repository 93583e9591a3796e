package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// unusablePrefix marks stored credentials that no password can match. bcrypt
// hashes always start with "$", so a "!" prefix never verifies.
const unusablePrefix = "!"

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	if hash == "" || IsUnusable(hash) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// UnusablePassword returns a random placeholder credential for accounts that
// were provisioned without a password.
func UnusablePassword() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate placeholder credential: %w", err)
	}
	return unusablePrefix + hex.EncodeToString(b), nil
}

func IsUnusable(hash string) bool {
	return len(hash) > 0 && hash[:1] == unusablePrefix
}
