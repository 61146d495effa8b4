// Package registry issues registration codes.
package registry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"donationhub/internal/domain"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// MaxIdentityLen bounds identities accepted for registration.
	MaxIdentityLen = 64

	maxAttempts = 8
)

// CodeFunc mints a candidate registration code.
type CodeFunc func() (string, error)

// NewCode returns CodeLength characters drawn uniformly from codeAlphabet.
func NewCode() (string, error) {
	buf := make([]byte, domain.CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	// 252 is the largest multiple of len(codeAlphabet) below 256.
	for i := range buf {
		for buf[i] >= 252 {
			var one [1]byte
			if _, err := rand.Read(one[:]); err != nil {
				return "", fmt.Errorf("read random: %w", err)
			}
			buf[i] = one[0]
		}
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(buf), nil
}

// Registration is the outcome of Register.
type Registration struct {
	Code     string
	Identity string
	Created  bool
}

// Register returns the code bound to identity, minting a fresh one when the
// identity is new. Colliding codes are retried a bounded number of times.
func Register(ctx context.Context, r domain.Registrar, identity string, gen CodeFunc) (Registration, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return Registration{}, fmt.Errorf("identity required: %w", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(identity) > MaxIdentityLen {
		return Registration{}, fmt.Errorf("identity longer than %d characters: %w", MaxIdentityLen, domain.ErrInvalidInput)
	}
	if gen == nil {
		gen = NewCode
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate, err := gen()
		if err != nil {
			return Registration{}, err
		}
		candidate = domain.NormalizeCode(candidate)
		if !domain.ValidCode(candidate) {
			return Registration{}, fmt.Errorf("generated code %q: %w", candidate, domain.ErrInvalidInput)
		}
		entry, created, err := r.Register(ctx, identity, candidate)
		if errors.Is(err, domain.ErrCodeExhausted) {
			continue
		}
		if err != nil {
			return Registration{}, fmt.Errorf("register %q: %w", identity, err)
		}
		return Registration{Code: entry.Code, Identity: entry.Identity, Created: created}, nil
	}
	return Registration{}, domain.ErrCodeExhausted
}

// SetDisplayName validates and stores a display name for identity.
func SetDisplayName(ctx context.Context, r domain.Registrar, identity, displayName string) error {
	identity = strings.TrimSpace(identity)
	displayName = strings.TrimSpace(displayName)
	if identity == "" || displayName == "" {
		return fmt.Errorf("username and displayName required: %w", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(identity) > MaxIdentityLen || utf8.RuneCountInString(displayName) > MaxIdentityLen {
		return fmt.Errorf("name longer than %d characters: %w", MaxIdentityLen, domain.ErrInvalidInput)
	}
	if err := r.SetDisplayName(ctx, identity, displayName); err != nil {
		return fmt.Errorf("set display name for %q: %w", identity, err)
	}
	return nil
}
