package session

import "sync/atomic"

// State is the conversation phase of one session.
type State int32

const (
	// StateListening means the session is capturing caller audio.
	StateListening State = iota
	// StateProcessing means an utterance is in the dialogue pipeline.
	StateProcessing
	// StateSpeaking means a reply is playing to the caller.
	StateSpeaking
	// StateInterrupted means playback was cut off by caller speech and is
	// being torn down.
	StateInterrupted
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// allowedTransitions is the legal state machine. Any transition not listed
// is rejected.
var allowedTransitions = map[State][]State{
	StateListening:   {StateProcessing},
	StateProcessing:  {StateSpeaking, StateListening},
	StateSpeaking:    {StateListening, StateInterrupted},
	StateInterrupted: {StateListening},
}

// stateMachine holds the session state with lock-free reads. Transitions are
// validated against the legal set and applied atomically, so concurrent
// actors (capture loop, playback coordinator, monitor) cannot race the
// session into an illegal phase.
type stateMachine struct {
	state atomic.Int32
}

func newStateMachine() *stateMachine {
	m := &stateMachine{}
	m.state.Store(int32(StateListening))
	return m
}

// current returns the state at this instant.
func (m *stateMachine) current() State {
	return State(m.state.Load())
}

// transition moves from one state to another. It returns false when the
// session is not in the expected source state or the move is illegal.
func (m *stateMachine) transition(from, to State) bool {
	if !legalTransition(from, to) {
		return false
	}
	return m.state.CompareAndSwap(int32(from), int32(to))
}

func legalTransition(from, to State) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
