package archiver

// Status is the lifecycle state of a run. Success, Fault and Interrupted are
// terminal and mutually exclusive.
type Status int32

const (
	StatusNew Status = iota
	InProcess
	Success
	Fault
	Interrupted
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case InProcess:
		return "in-process"
	case Success:
		return "success"
	case Fault:
		return "fault"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == Success || s == Fault || s == Interrupted
}

// Mode is the transform a run applies to each block.
type Mode int

const (
	Compress Mode = iota
	Decompress
)

// String returns the mode name.
func (m Mode) String() string {
	if m == Decompress {
		return "decompress"
	}
	return "compress"
}
