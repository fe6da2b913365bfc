package pipeline

// State is the lifecycle state of an Orchestrator.
type State int32

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Starting:
		return "STARTING"
	case Running:
		return "RUNNING"
	case Stopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets State appear as its name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
