package codes

import (
	"crypto/rand"
	"fmt"
)

// Alphabet for code generation (62 characters: 0-9, a-z, A-Z)
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const (
	ProposalPrefix = "MT"
	BookingPrefix  = "AL"

	// randomLength keeps the full code at 9 characters, the width customers
	// quote over the phone.
	randomLength = 7
)

// GenerateSecureSlug creates a cryptographically secure random Base62 slug.
func GenerateSecureSlug(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid slug length: %d", length)
	}

	// Rejection sampling to avoid modulo bias.
	// 248 is the largest multiple of 62 below 256.
	const maxRandomByte = 248

	slug := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}

		for _, b := range buf {
			if b >= maxRandomByte {
				continue
			}
			slug[written] = alphabet[int(b)%len(alphabet)]
			written++
			if written == length {
				break
			}
		}
	}

	return string(slug), nil
}

// NewProposalCode returns a fresh "MT"-prefixed tracking code. Uniqueness is
// enforced by the callers against the unique column, retrying on collision.
func NewProposalCode() (string, error) {
	return prefixedCode(ProposalPrefix)
}

// NewBookingCode returns a fresh "AL"-prefixed tracking code.
func NewBookingCode() (string, error) {
	return prefixedCode(BookingPrefix)
}

func prefixedCode(prefix string) (string, error) {
	slug, err := GenerateSecureSlug(randomLength)
	if err != nil {
		return "", err
	}
	return prefix + slug, nil
}
