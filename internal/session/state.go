package session

// State is the orchestrator-side lifecycle of one call attempt. It is finer
// than screening.Status, which only persists the durable milestones.
type State string

const (
	StateIdle       State = "idle"
	StateStarting   State = "starting"
	StateActive     State = "active"
	StateEnded      State = "ended"
	StateRetrieving State = "retrieving"
	StateCompleted  State = "completed"
	StateRejected   State = "rejected"
)

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateRejected
}

// Live reports whether the provider call may still be connected.
func (s State) Live() bool {
	return s == StateStarting || s == StateActive
}

// Signal is a client lifecycle notification sent when the candidate's page
// goes away or re-renders.
type Signal string

const (
	SignalPageHide Signal = "pagehide"
	SignalUnload   Signal = "unload"
	SignalNavigate Signal = "navigate"
	SignalUnmount  Signal = "unmount"
	SignalRerender Signal = "rerender"
)

// NavigationIntent reports whether the candidate is actually leaving.
// Component unmounts and re-renders happen during normal UI updates.
func (s Signal) NavigationIntent() bool {
	switch s {
	case SignalPageHide, SignalUnload, SignalNavigate:
		return true
	}
	return false
}

func (s Signal) Valid() bool {
	switch s {
	case SignalPageHide, SignalUnload, SignalNavigate, SignalUnmount, SignalRerender:
		return true
	}
	return false
}
