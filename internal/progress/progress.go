// Package progress carries batch execution events from the stage runners to
// an attached monitor. Runners publish fire-and-forget; with no monitor
// attached the channel is nil and events are dropped.
package progress

type Kind int

const (
	CaseStarted Kind = iota
	CaseFinished
	CaseFailed
	MotorSkipped
)

type Event struct {
	Kind  Kind
	Stage string
	Motor string
	Case  string
	// Index is the 1-based case position within the motor's batch.
	Index int
	Total int
	// Ripple is set on finished electromagnetic cases.
	Ripple float64
	Err    error
}

// Send publishes e when a monitor is attached; a nil channel drops it.
func Send(ch chan<- Event, e Event) {
	if ch != nil {
		ch <- e
	}
}
