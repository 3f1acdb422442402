// Package phase labels force traces with biomechanical phases, either one
// sample at a time for live feedback or over a whole recorded trial.
package phase

// Phase is one state of the jump/pull state machine.
type Phase string

const (
	QuietStanding Phase = "quiet_standing"
	Unloading     Phase = "unloading"
	Braking       Phase = "braking"
	Propulsion    Phase = "propulsion"
	Flight        Phase = "flight"
	Landing       Phase = "landing"
)

// All lists every phase in movement order.
func All() []Phase {
	return []Phase{QuietStanding, Unloading, Braking, Propulsion, Flight, Landing}
}

// CorePhases are the phases whose presence makes a jump analysable.
func CorePhases() []Phase {
	return []Phase{QuietStanding, Braking, Propulsion, Flight}
}

// Label returns a display name.
func (p Phase) Label() string {
	switch p {
	case QuietStanding:
		return "Quiet standing"
	case Unloading:
		return "Unloading"
	case Braking:
		return "Braking"
	case Propulsion:
		return "Propulsion"
	case Flight:
		return "Flight"
	case Landing:
		return "Landing"
	}
	return string(p)
}

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	for _, q := range All() {
		if p == q {
			return true
		}
	}
	return false
}
