package bridge

// State is the controller lifecycle phase.
type State int32

const (
	StateStarting State = iota
	StateAnnouncing
	StateSteady
	StateShuttingDown
)

var stateNames = []string{
	StateStarting:     "STARTING",
	StateAnnouncing:   "ANNOUNCING",
	StateSteady:       "STEADY",
	StateShuttingDown: "SHUTTING_DOWN",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	stateGauge.WithLabelValues(prev.String()).Set(0)
	stateGauge.WithLabelValues(s.String()).Set(1)
}
