// Package matcher attributes a donation to a registered identity.
//
// Resolution is layered and stops at the first rule that produces an
// identity: an explicit identity field, a #CODE token in the message, the
// donor name against registered identities, the donor name against display
// names, and finally the raw donor name itself.
package matcher

import (
	"regexp"
	"strings"
	"unicode"

	"donationhub/internal/domain"
)

var codePattern = regexp.MustCompile(`#([A-Za-z0-9]{6})`)

// Resolve maps a donation event onto at most one identity using snap. It has
// no side effects and never fails.
func Resolve(event domain.DonationEvent, snap domain.DirectorySnapshot) domain.Match {
	if explicit := strings.TrimSpace(event.ExplicitIdentity); explicit != "" {
		return domain.Match{Identity: explicit, Method: domain.MatchExplicit}
	}

	if identity, ok := matchCode(event.Message, snap); ok {
		return domain.Match{Identity: identity, Method: domain.MatchCode}
	}

	donor := Normalize(event.Donor)
	if donor == "" {
		return domain.Match{Method: domain.MatchNone}
	}

	identities := make([]candidate, 0, len(snap.Registrations))
	for _, r := range snap.Registrations {
		identities = append(identities, candidate{identity: r.Identity, name: r.Identity})
	}
	if identity, ok := matchName(donor, identities); ok {
		return domain.Match{Identity: identity, Method: domain.MatchIdentity}
	}

	displayNames := make([]candidate, 0, len(snap.DisplayNames))
	for _, d := range snap.DisplayNames {
		displayNames = append(displayNames, candidate{identity: d.Identity, name: d.DisplayName})
	}
	if identity, ok := matchName(donor, displayNames); ok {
		return domain.Match{Identity: identity, Method: domain.MatchDisplayName}
	}

	return domain.Match{Identity: event.Donor, Method: domain.MatchFallback}
}

// ExtractCodes returns every #TOKEN candidate in message, left to right.
func ExtractCodes(message string) []string {
	matches := codePattern.FindAllStringSubmatch(message, -1)
	codes := make([]string, 0, len(matches))
	for _, m := range matches {
		codes = append(codes, m[1])
	}
	return codes
}

func matchCode(message string, snap domain.DirectorySnapshot) (string, bool) {
	if message == "" {
		return "", false
	}
	for _, code := range ExtractCodes(message) {
		if identity, ok := snap.IdentityForCode(code); ok {
			return identity, true
		}
	}
	return "", false
}

type candidate struct {
	identity string
	name     string
}

type rule func(donor, name string) bool

var nameRules = []rule{
	func(donor, name string) bool { return name == donor },
	func(donor, name string) bool { return strings.Contains(name, donor) },
	func(donor, name string) bool { return strings.Contains(donor, name) },
}

// matchName applies each rule across the whole ordered candidate list before
// moving on to the next, looser rule. An exact hit late in the list therefore
// beats a partial hit early in it.
func matchName(donor string, candidates []candidate) (string, bool) {
	normalized := make([]string, len(candidates))
	for i, c := range candidates {
		normalized[i] = Normalize(c.name)
	}
	for _, accept := range nameRules {
		for i, c := range candidates {
			if normalized[i] == "" {
				continue
			}
			if accept(donor, normalized[i]) {
				return c.identity, true
			}
		}
	}
	return "", false
}

// Normalize lower-cases s and strips all whitespace.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
