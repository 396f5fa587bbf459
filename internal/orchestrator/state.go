package orchestrator

// State is a step of the per-message cycle.
type State string

const (
	StateIdle         State = "idle"
	StateClassifying  State = "classifying"
	StateDirectAnswer State = "direct_answer"
	StateDelegating   State = "delegating"
	StateResponding   State = "responding"
)

// StateObserver is told about every state change of a cycle. It is called
// synchronously and must not block.
type StateObserver func(sessionID string, from, to State)

type tracker struct {
	sessionID string
	current   State
	observer  StateObserver
}

func (t *tracker) to(next State) {
	if t.observer != nil {
		t.observer(t.sessionID, t.current, next)
	}
	t.current = next
}
