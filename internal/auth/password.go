package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/slotswap/internal/domain"
)

// HashPassword returns the bcrypt hash of password at the default cost.
// Passwords longer than bcrypt's 72-byte limit are rejected rather than
// silently truncated.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", domain.NewValidation("password", "must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", domain.NewValidation("password", "must be at most 72 bytes")
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
