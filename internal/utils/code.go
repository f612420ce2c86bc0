package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/crypto/bcrypt"
)

const loginSecretLength = 32

// NewLoginSecret returns a URL-safe random secret for an email sign-in link.
func NewLoginSecret() (string, error) {
	return gonanoid.New(loginSecretLength)
}

// HashCode hashes a one-time secret for storage.
func HashCode(code string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckCode(code, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code))
	return err == nil
}
