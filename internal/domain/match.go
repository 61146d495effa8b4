package domain

// MatchMethod records which matching rule attributed a donation.
type MatchMethod string

const (
	MatchExplicit    MatchMethod = "explicit"
	MatchCode        MatchMethod = "code"
	MatchIdentity    MatchMethod = "identity"
	MatchDisplayName MatchMethod = "display_name"
	MatchFallback    MatchMethod = "fallback"
	MatchNone        MatchMethod = "none"
)

// Match is the outcome of resolving a donation to an identity.
type Match struct {
	Identity string
	Method   MatchMethod
}

// Found reports whether an identity was resolved.
func (m Match) Found() bool {
	return m.Identity != ""
}
