package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials is returned for an unknown operator or wrong password.
var ErrBadCredentials = errors.New("bad operator credentials")

// HashPassword produces the bcrypt hash stored in ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Credentials is the single operator allowed to drive the mixer remotely.
type Credentials struct {
	Operator     string
	PasswordHash string
}

// Enabled reports whether a password was configured at all.
func (c Credentials) Enabled() bool {
	return c.PasswordHash != ""
}

// Verify checks an operator name and password.
func (c Credentials) Verify(operator, password string) error {
	if !c.Enabled() {
		return ErrBadCredentials
	}
	nameOK := subtle.ConstantTimeCompare([]byte(operator), []byte(c.Operator)) == 1
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil || !nameOK {
		return ErrBadCredentials
	}
	return nil
}
