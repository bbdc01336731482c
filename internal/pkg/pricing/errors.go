package pricing

import "fmt"

// Infeasibility reasons. The API maps these to customer-facing messages, so
// the strings are stable identifiers rather than prose.
const (
	InfeasibleNoAdults      = "adults_required_for_children"
	InfeasibleChildLimit    = "children_exceed_room_limit"
	InfeasibleNoRoomOptions = "no_room_options"
)

// ValidationError reports malformed pricing input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// InfeasibleError reports that the party is well-formed but no configuration
// can seat it. Reason distinguishes the child-per-room limit from the general
// no-options case so the frontend can suggest adding adults.
type InfeasibleError struct {
	Reason string
}

func (e *InfeasibleError) Error() string {
	return "no feasible configuration: " + e.Reason
}
