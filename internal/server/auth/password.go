package auth

import (
	"errors"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) ([]byte, error) {
	plain := []byte(password)
	defer common.WipeByteArray(plain)
	return bcrypt.GenerateFromPassword(plain, bcrypt.DefaultCost)
}

// CheckPassword returns common.ErrUnauthorized when password does not match.
func CheckPassword(hash []byte, password string) error {
	plain := []byte(password)
	defer common.WipeByteArray(plain)

	err := bcrypt.CompareHashAndPassword(hash, plain)
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return common.ErrUnauthorized
	}
	return err
}
