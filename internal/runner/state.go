package runner

import "fmt"

// State is the lifecycle state of the runner:
//
//	Idle -> Running (Start) -> Succeeded | Failed (run finished) -> Idle (Reset)
type State int

const (
	StateIdle State = iota
	StateRunning
	StateSucceeded
	StateFailed
)

func (state State) String() string {
	switch state {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(state))
	}
}

func (state State) MarshalText() ([]byte, error) {
	return []byte(state.String()), nil
}
