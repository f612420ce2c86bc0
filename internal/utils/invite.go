package utils

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// InviteAlphabet is upper case letters and digits without 0, O, 1, I and L.
const InviteAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const DefaultInviteCodeLength = 8

// GenerateInviteCode returns a random code of exactly n characters drawn from
// InviteAlphabet. n must be positive.
func GenerateInviteCode(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invite code length must be positive, got %d", n)
	}
	return gonanoid.Generate(InviteAlphabet, n)
}
