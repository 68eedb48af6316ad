package approval

// EventKind distinguishes reviewer actions
type EventKind int

const (
	EventApprove EventKind = iota + 1
	EventReject
	EventText
)

// Event is one reviewer action. Button events carry the token of the
// request they belong to; text events carry the message.
type Event struct {
	Kind  EventKind
	Token string
	Text  string
}

// State is the position of a request in the approval flow
type State int

const (
	StateSent State = iota
	StateAwaitingReason
	StateApproved
	StateRejected
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateSent:
		return "sent"
	case StateAwaitingReason:
		return "awaiting_reason"
	case StateApproved:
		return "approved"
	case StateRejected:
		return "rejected"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// machine tracks one request. Terminal states ignore further events.
type machine struct {
	token  string
	state  State
	reason string
}

func newMachine(token string) *machine {
	return &machine{token: token, state: StateSent}
}

// apply advances the machine and reports whether ev changed its state.
// Button presses for other requests and text outside the reason step are
// ignored.
func (m *machine) apply(ev Event) bool {
	switch m.state {
	case StateSent:
		if ev.Token != m.token {
			return false
		}
		switch ev.Kind {
		case EventApprove:
			m.state = StateApproved
			return true
		case EventReject:
			m.state = StateAwaitingReason
			return true
		}
	case StateAwaitingReason:
		if ev.Kind == EventText && ev.Text != "" {
			m.state = StateRejected
			m.reason = ev.Text
			return true
		}
	}
	return false
}

func (m *machine) timeout() {
	if !m.done() {
		m.state = StateTimedOut
		m.reason = TimeoutReason
	}
}

func (m *machine) done() bool {
	return m.state == StateApproved || m.state == StateRejected || m.state == StateTimedOut
}

func (m *machine) decision() Decision {
	switch m.state {
	case StateApproved:
		return Decision{Outcome: OutcomeApproved}
	case StateRejected:
		return Decision{Outcome: OutcomeRejected, Reason: m.reason}
	default:
		return Decision{Outcome: OutcomeTimedOut, Reason: m.reason}
	}
}
