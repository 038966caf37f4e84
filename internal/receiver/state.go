package receiver

// State represents the reception state of the receiver.
type State int

const (
	// StateIdle indicates no transfer is in progress.
	StateIdle State = iota
	// StateReceiving indicates chunks are being accumulated.
	StateReceiving
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	default:
		return "unknown"
	}
}

// Event is an input that drives a state transition.
type Event int

const (
	// EventStart is a START marker.
	EventStart Event = iota
	// EventChunk is a CHUNK payload.
	EventChunk
	// EventEnd is an END marker.
	EventEnd
	// EventAbort is an error signal from the transport.
	EventAbort
)

// String returns the string representation of the event.
func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventChunk:
		return "chunk"
	case EventEnd:
		return "end"
	case EventAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// transitions lists the accepted events per state. An event missing from a
// state's row is ignored.
var transitions = map[State]map[Event]State{
	StateIdle: {
		EventStart: StateReceiving,
		EventEnd:   StateIdle,
		EventAbort: StateIdle,
	},
	StateReceiving: {
		EventStart: StateReceiving,
		EventChunk: StateReceiving,
		EventEnd:   StateIdle,
		EventAbort: StateIdle,
	},
}

// next returns the state reached from s on e, and whether e is accepted.
func next(s State, e Event) (State, bool) {
	row, ok := transitions[s]
	if !ok {
		return s, false
	}
	to, ok := row[e]
	if !ok {
		return s, false
	}
	return to, true
}
