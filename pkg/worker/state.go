package worker

// State is a phase of a worker run.
type State int32

const (
	StateIdle State = iota
	StateLockAcquisition
	StateQuerying
	StateDispatching
	StateAggregating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLockAcquisition:
		return "lock_acquisition"
	case StateQuerying:
		return "querying"
	case StateDispatching:
		return "dispatching"
	case StateAggregating:
		return "aggregating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
