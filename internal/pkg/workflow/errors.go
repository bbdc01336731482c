package workflow

import "fmt"

// Token rejection reasons. Confirmation links report why they stopped
// working so suppliers are not left guessing.
const (
	TokenUnknown     = "unknown"
	TokenExpired     = "expired"
	TokenAlreadyUsed = "already_used"
	TokenWrongState  = "proposal_not_pending"
)

// TokenError reports an unusable confirmation token.
type TokenError struct {
	Reason string
}

func (e *TokenError) Error() string {
	return "confirmation token rejected: " + e.Reason
}

// StateError reports a transition attempted from a status that does not
// allow it. The guarded update already refused it, so Current is the status
// observed right after the refusal.
type StateError struct {
	ProposalID uint
	Current    string
	Attempted  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("proposal %d cannot move to %s from %s", e.ProposalID, e.Attempted, e.Current)
}
