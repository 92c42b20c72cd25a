package instance

// ID addresses one Session. IDs start at 0.
type ID = uint32

// State is the lifecycle state of a registered Session.
type State uint8

const (
	StateActive State = iota
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateKilled:
		return "killed"
	}
	return "unknown"
}

// EventType names a lifecycle transition.
type EventType uint8

const (
	EventCreated EventType = iota
	EventKilled
	EventFinalized
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventKilled:
		return "killed"
	case EventFinalized:
		return "finalized"
	}
	return "unknown"
}

// Event reports one lifecycle transition.
type Event struct {
	// Err is the teardown error for EventKilled, if any.
	Err        error
	Generation uint64
	ID         ID
	Type       EventType
}

// Observer receives lifecycle notifications. It is called after the
// transition completes, with no table or session lock held.
type Observer interface {
	OnInstanceEvent(Event)
}
