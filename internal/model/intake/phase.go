package intake

import "fmt"

// Phase is the session's position in the intake sequence.
type Phase string

const (
	PhaseCollectingBasicInfo    Phase = "COLLECTING_BASIC_INFO"
	PhaseClassifying            Phase = "CLASSIFYING"
	PhaseCollectingRequirements Phase = "COLLECTING_REQUIREMENTS"
	PhaseValidating             Phase = "VALIDATING"
	PhasePersisting             Phase = "PERSISTING"
	PhaseComplete               Phase = "COMPLETE"
	PhaseFailed                 Phase = "FAILED"
)

// transitions holds every legal edge except the implicit edge into FAILED.
// VALIDATING may fall back to COLLECTING_REQUIREMENTS when the set is incomplete.
var transitions = map[Phase][]Phase{
	PhaseCollectingBasicInfo:    {PhaseClassifying},
	PhaseClassifying:            {PhaseCollectingRequirements},
	PhaseCollectingRequirements: {PhaseValidating},
	PhaseValidating:             {PhasePersisting, PhaseCollectingRequirements},
	PhasePersisting:             {PhaseComplete},
}

// Order returns the position of p in the forward sequence, or -1 for FAILED.
func (p Phase) Order() int {
	switch p {
	case PhaseCollectingBasicInfo:
		return 0
	case PhaseClassifying:
		return 1
	case PhaseCollectingRequirements:
		return 2
	case PhaseValidating:
		return 3
	case PhasePersisting:
		return 4
	case PhaseComplete:
		return 5
	default:
		return -1
	}
}

// Terminal reports whether no further turns are accepted.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to Phase) bool {
	if to == PhaseFailed {
		return !from.Terminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition records one phase change.
type Transition struct {
	From Phase `json:"from"`
	To   Phase `json:"to"`
}

func (t Transition) String() string {
	return fmt.Sprintf("%s -> %s", t.From, t.To)
}
