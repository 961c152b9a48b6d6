package types

type RunState uint8

const (
	Running RunState = iota
	Converged
	IterationCapReached
)

var runStateNames = [...]string{"RUNNING", "CONVERGED", "ITERATION_CAP_REACHED"}

func (rs RunState) String() string {
	if int(rs) < len(runStateNames) {
		return runStateNames[rs]
	}
	return "UNKNOWN"
}

// Terminal reports whether no further transitions exist out of rs
func (rs RunState) Terminal() bool {
	return rs == Converged || rs == IterationCapReached
}
