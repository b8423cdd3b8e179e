package session

// State is a step of one date's session.
type State int

const (
	Start State = iota
	Navigated
	ControlsEngaged
	Submitted
	Extracted
	Done
	Failed
)

var stateNames = [...]string{
	Start:           "start",
	Navigated:       "navigated",
	ControlsEngaged: "controls_engaged",
	Submitted:       "submitted",
	Extracted:       "extracted",
	Done:            "done",
	Failed:          "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
