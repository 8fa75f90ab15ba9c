package beacon

// State represents the snapshot health of a Coordinator.
type State int32

const (
	// StateLoading indicates the Coordinator has not yet built a snapshot.
	StateLoading State = iota

	// StateHealthy indicates the last build succeeded and its snapshot is
	// being served.
	StateHealthy

	// StateDegraded indicates the last build or update failed. The previous
	// good snapshot is still served.
	StateDegraded

	// StateEmpty indicates no build has ever succeeded. Peers receive the
	// "no experiment" sentinel until one does.
	StateEmpty
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateEmpty:
		return "empty"
	default:
		return "unknown"
	}
}
