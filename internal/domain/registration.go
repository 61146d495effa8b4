package domain

import (
	"strings"
	"unicode"
)

// CodeLength is the number of characters in a registration code.
const CodeLength = 6

// RegistrationEntry binds a registration code to an identity.
type RegistrationEntry struct {
	Code     string
	Identity string
}

// DisplayNameEntry maps an identity to the display name shown in-game.
type DisplayNameEntry struct {
	Identity    string
	DisplayName string
}

// DirectorySnapshot is a point-in-time copy of the registration directory.
// Slices preserve registration insertion order so that matching is
// reproducible.
type DirectorySnapshot struct {
	Registrations []RegistrationEntry
	DisplayNames  []DisplayNameEntry
}

// IdentityForCode returns the identity registered under code. The comparison
// is exact; codes are stored upper-cased.
func (s DirectorySnapshot) IdentityForCode(code string) (string, bool) {
	for _, r := range s.Registrations {
		if r.Code == code {
			return r.Identity, true
		}
	}
	return "", false
}

// NormalizeCode upper-cases and trims a registration code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code is exactly CodeLength ASCII alphanumerics.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, r := range code {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}
