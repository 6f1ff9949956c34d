package twofactor

// State is the verification step an account still has to complete.
type State string

const (
	NeedsEmail State = "needs_email"
	NeedsPhone State = "needs_phone"
	NeedsTwoFA State = "needs_2fa"
	Complete   State = "complete"
)

// StateOf derives the gating state from account flags. Steps are ordered:
// a later flag does not count until every earlier one is set.
func StateOf(emailVerified, phoneVerified, twoFAEnabled bool) State {
	switch {
	case !emailVerified:
		return NeedsEmail
	case !phoneVerified:
		return NeedsPhone
	case !twoFAEnabled:
		return NeedsTwoFA
	default:
		return Complete
	}
}

// Next returns the only legal successor of s. Complete is terminal.
func Next(s State) State {
	switch s {
	case NeedsEmail:
		return NeedsPhone
	case NeedsPhone:
		return NeedsTwoFA
	default:
		return Complete
	}
}
